package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gestornet/invoice-extractor/internal/models"
	"github.com/gestornet/invoice-extractor/internal/service/invoice"
	"github.com/gestornet/invoice-extractor/pkg/logger"
	"github.com/gestornet/invoice-extractor/pkg/queue"
	"github.com/gestornet/invoice-extractor/pkg/storage"
)

// BatchWorker consumes invoice:batch tasks: it fetches the staged PDFs
// from object storage, runs the extraction pipeline and writes the
// serialized BatchResult back through the task result writer.
type BatchWorker struct {
	BaseWorker
	service *invoice.Service
	storage storage.Storage
}

func NewBatchWorker(cfg *Config, svc *invoice.Service, store storage.Storage, log logger.Logger) (*BatchWorker, error) {
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      cfg.Queues,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Minute
			},
		},
	)

	w := &BatchWorker{
		BaseWorker: BaseWorker{
			server:   server,
			mux:      asynq.NewServeMux(),
			logger:   log,
			stopChan: make(chan struct{}),
		},
		service: svc,
		storage: store,
	}

	w.mux.HandleFunc(queue.TaskTypeBatchProcess, w.handleBatchProcess)
	return w, nil
}

func (w *BatchWorker) handleBatchProcess(ctx context.Context, t *asynq.Task) error {
	var task queue.BatchTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		w.logger.Error("Failed to unmarshal batch task",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("failed to unmarshal batch task: %w", err)
	}

	if task.BatchID == "" || len(task.Documents) == 0 {
		return fmt.Errorf("invalid batch task: missing batch id or documents")
	}

	w.logger.Info("Processing batch task",
		logger.String("batchId", task.BatchID),
		logger.Int("documents", len(task.Documents)),
		logger.String("advisor", task.Advisor),
	)

	docs, err := w.fetchDocuments(ctx, task)
	if err != nil {
		return err
	}

	result, err := w.service.ProcessBatch(ctx, docs, task.Advisor, task.ForceOCR)
	if err != nil {
		return fmt.Errorf("batch processing failed: %w", err)
	}
	result.BatchID = task.BatchID

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal batch result: %w", err)
	}
	if _, err := t.ResultWriter().Write(payload); err != nil {
		w.logger.Error("Failed to write batch result", logger.Error(err))
		return err
	}

	// Staged objects are only removed once the result is safely written.
	for _, staged := range task.Documents {
		if err := w.storage.Delete(ctx, staged.Key); err != nil {
			w.logger.Warn("Failed to delete staged document",
				logger.String("key", staged.Key),
				logger.Error(err),
			)
		}
	}

	return nil
}

func (w *BatchWorker) fetchDocuments(ctx context.Context, task queue.BatchTask) ([]models.Document, error) {
	docs := make([]models.Document, 0, len(task.Documents))
	for _, staged := range task.Documents {
		obj, err := w.storage.Get(ctx, staged.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch staged document %s: %w", staged.Key, err)
		}
		content, err := io.ReadAll(obj)
		obj.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read staged document %s: %w", staged.Key, err)
		}

		docs = append(docs, models.Document{
			Content:  content,
			Filename: staged.Filename,
			Advisor:  task.Advisor,
			ForceOCR: task.ForceOCR,
		})
	}
	return docs, nil
}

func (w *BatchWorker) Start(ctx context.Context) error {
	go func() {
		if err := w.server.Run(w.mux); err != nil {
			w.logger.Error("Worker server stopped", logger.Error(err))
		}
	}()

	// Staged documents of jobs that exhausted their retries are never
	// deleted by the handler; sweep them periodically.
	go w.cleanupLoop(ctx)

	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	return nil
}

const (
	cleanupInterval = time.Hour
	stagedRetention = 24 * time.Hour
)

func (w *BatchWorker) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			threshold := time.Now().Add(-stagedRetention)
			if err := w.storage.CleanupBefore(ctx, threshold); err != nil {
				w.logger.Error("Staged document cleanup failed", logger.Error(err))
				continue
			}
			w.logger.Info("Staged document cleanup completed",
				logger.Time("threshold", threshold),
			)
		}
	}
}
