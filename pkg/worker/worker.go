package worker

import (
	"context"
	"sync"

	"github.com/hibiken/asynq"

	"github.com/gestornet/invoice-extractor/pkg/logger"
)

type Worker interface {
	Start(ctx context.Context) error
	Stop() error
}

type Config struct {
	RedisAddr   string
	RedisDB     int
	Concurrency int
	Queues      map[string]int
}

type BaseWorker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	logger   logger.Logger
	stopChan chan struct{}
	stopOnce sync.Once
}

// Stop is idempotent: shutdown is triggered both by the signal handler and
// by context cancellation, whichever fires first.
func (w *BaseWorker) Stop() error {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		if w.server != nil {
			w.server.Stop()
		}
	})
	return nil
}
