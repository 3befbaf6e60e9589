package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/gestornet/invoice-extractor/api/handlers"
	"github.com/gestornet/invoice-extractor/api/middleware"
)

// SetupRoutes wires all routes.
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, env string) {
	r.Use(middleware.CORS())

	r.GET("/health", handlers.HealthCheck)
	r.GET("/version", handlers.VersionInfo(env))

	v1 := r.Group("/api/v1")

	invoices := v1.Group("/invoices")
	{
		invoices.POST("/process", h.Invoice.ProcessBatch)
		invoices.POST("/jobs", h.Invoice.SubmitJob)
		invoices.GET("/jobs/:batchId", h.Invoice.JobStatus)
	}

	templates := v1.Group("/templates")
	{
		templates.GET("", h.Invoice.ListTemplates)
		templates.POST("/reload", h.Invoice.ReloadTemplates)
	}
}
