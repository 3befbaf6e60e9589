package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gestornet/invoice-extractor/internal/service/invoice"
	"github.com/gestornet/invoice-extractor/internal/template"
	"github.com/gestornet/invoice-extractor/internal/utils/validator"
	"github.com/gestornet/invoice-extractor/pkg/logger"
	"github.com/gestornet/invoice-extractor/pkg/queue"
	"github.com/gestornet/invoice-extractor/pkg/storage"
)

type Handlers struct {
	Invoice *InvoiceHandler
}

func NewHandlers(
	service *invoice.Service,
	templates *template.Store,
	q queue.Queue,
	store storage.Storage,
	v *validator.BatchValidator,
	log logger.Logger,
) *Handlers {
	return &Handlers{
		Invoice: NewInvoiceHandler(service, templates, q, store, v, log),
	}
}

// HealthCheck responds to liveness probes.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Version is the build version, overridable at link time with
// -ldflags "-X .../api/handlers.Version=v1.2.3".
var Version = "0.0.0"

// VersionInfo reports the build version and the deployment environment.
func VersionInfo(env string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version": Version,
			"env":     env,
		})
	}
}
