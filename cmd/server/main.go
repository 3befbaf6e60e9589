package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gestornet/invoice-extractor/api/handlers"
	"github.com/gestornet/invoice-extractor/api/routes"
	"github.com/gestornet/invoice-extractor/config"
	"github.com/gestornet/invoice-extractor/internal/extract"
	"github.com/gestornet/invoice-extractor/internal/normalize"
	"github.com/gestornet/invoice-extractor/internal/service/invoice"
	"github.com/gestornet/invoice-extractor/internal/template"
	"github.com/gestornet/invoice-extractor/internal/utils/validator"
	"github.com/gestornet/invoice-extractor/pkg/logger"
	"github.com/gestornet/invoice-extractor/pkg/queue"
	"github.com/gestornet/invoice-extractor/pkg/storage/minio"
)

func main() {
	// init logger
	log, err := logger.NewLogger(
		logger.WithLevel("info"),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", "logs/server.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	extractorCfg := config.GetExtractorConfig()
	serverCfg := config.GetServerConfig()

	templates, err := template.NewStore(extractorCfg.TemplatesDir, log)
	if err != nil {
		log.Fatal("Failed to load template store", logger.Error(err))
	}

	extractor := extract.NewExtractor(
		extract.Config{
			Languages:     extractorCfg.Languages,
			DPI:           extractorCfg.DPI,
			TextThreshold: extractorCfg.TextThreshold,
			PdftoppmPath:  extractorCfg.PdftoppmPath,
		},
		extract.NewExecRunner(log),
		extract.NewTesseractRecognizer(log),
		log,
	)

	svc := invoice.NewService(extractor, templates, invoice.Config{
		Workers:         extractorCfg.Workers,
		DocumentTimeout: extractorCfg.DocumentTimeout,
		AdvisorLocales:  normalize.ParseLocales(extractorCfg.AdvisorLocales),
	}, log)

	q, err := queue.GetQueue()
	if err != nil {
		log.Fatal("Failed to initialize queue", logger.Error(err))
	}

	store, err := minio.GetClient(log)
	if err != nil {
		log.Fatal("Failed to initialize storage", logger.Error(err))
	}

	v := validator.NewBatchValidator(serverCfg.MaxUploadSizeMB)

	h := handlers.NewHandlers(svc, templates, q, store, v, log)
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h, serverCfg.Env)

	srv := &http.Server{
		Addr:    serverCfg.Addr,
		Handler: r,
	}

	// start server
	go func() {
		log.Info("Server starting", logger.String("addr", serverCfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", logger.Error(err))
		}
	}()

	// wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
	}
}
