package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gestornet/invoice-extractor/config"
	"github.com/gestornet/invoice-extractor/internal/extract"
	"github.com/gestornet/invoice-extractor/internal/normalize"
	"github.com/gestornet/invoice-extractor/internal/service/invoice"
	"github.com/gestornet/invoice-extractor/internal/template"
	"github.com/gestornet/invoice-extractor/pkg/logger"
	"github.com/gestornet/invoice-extractor/pkg/storage/minio"
	"github.com/gestornet/invoice-extractor/pkg/worker"
)

func main() {
	log, err := logger.NewLogger(
		logger.WithLevel("info"),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	extractorCfg := config.GetExtractorConfig()
	redisCfg := config.GetRedisConfig()

	templates, err := template.NewStore(extractorCfg.TemplatesDir, log)
	if err != nil {
		log.Error("Failed to load template store", logger.Error(err))
		os.Exit(1)
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

	store, err := minio.GetClient(log)
	if err != nil {
		log.Error("Failed to initialize storage", logger.Error(err))
		os.Exit(1)
	}

	workerCfg := &worker.Config{
		RedisAddr:   redisCfg.Addr,
		RedisDB:     redisCfg.DB,
		Concurrency: redisCfg.Concurrency,
		Queues: map[string]int{
			"default": 1,
		},
	}

	batchWorker, err := worker.NewBatchWorker(workerCfg, svc, store, log)
	if err != nil {
		log.Error("Failed to create batch worker", logger.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := batchWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down worker...")
	batchWorker.Stop()
	log.Info("Worker stopped")
}
