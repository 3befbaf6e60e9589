// pkg/queue/queue.go
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	cfg "github.com/gestornet/invoice-extractor/config"
)

// TaskTypeBatchProcess is the asynq task type for asynchronous invoice
// batch extraction.
const TaskTypeBatchProcess = "invoice:batch"

// ErrJobNotFound is returned when no job exists for a batch id.
var ErrJobNotFound = errors.New("job not found")

// StagedDocument points at one uploaded PDF staged in object storage.
type StagedDocument struct {
	Key      string `json:"key"`
	Filename string `json:"filename"`
}

// BatchTask is the payload of an asynchronous batch job.
type BatchTask struct {
	BatchID   string           `json:"batchId"`
	Advisor   string           `json:"advisor,omitempty"`
	ForceOCR  bool             `json:"forceOcr"`
	Documents []StagedDocument `json:"documents"`
	CreatedAt time.Time        `json:"createdAt"`
}

// JobStatus reports the state of an asynchronous batch job. Result holds
// the serialized BatchResult once the job completed.
type JobStatus struct {
	BatchID string          `json:"batchId"`
	State   string          `json:"state"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Queue interface
type Queue interface {
	Enqueue(ctx context.Context, task *BatchTask) error
	GetJobStatus(ctx context.Context, batchID string) (*JobStatus, error)
}

// AsynqQueue implements Queue on redis via asynq. Finished job statuses are
// additionally cached under their own redis key so they stay resolvable
// cheaply while the retained task ages out.
type AsynqQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	redis     *redis.Client
	retention time.Duration
}

// QueueConfig for the asynq client.
type QueueConfig struct {
	RedisAddr  string
	RedisDB    int
	MaxRetries int
	JobTimeout time.Duration
	Retention  time.Duration
}

// GetQueue returns a queue built from the environment config.
func GetQueue() (*AsynqQueue, error) {
	redisCfg := cfg.GetRedisConfig()
	return NewAsynqQueue(&QueueConfig{
		RedisAddr:  redisCfg.Addr,
		RedisDB:    redisCfg.DB,
		MaxRetries: 2,
		JobTimeout: 30 * time.Minute,
		Retention:  24 * time.Hour,
	})
}

// NewAsynqQueue creates a queue instance.
func NewAsynqQueue(cfg *QueueConfig) (*AsynqQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	}

	retention := cfg.Retention
	if retention <= 0 {
		retention = 24 * time.Hour
	}

	return &AsynqQueue{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		redis: redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		}),
		retention: retention,
	}, nil
}

// Enqueue submits a batch job. The batch id doubles as the task id so the
// status endpoint can look the job up later.
func (q *AsynqQueue) Enqueue(ctx context.Context, task *BatchTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal batch task: %w", err)
	}

	opts := []asynq.Option{
		asynq.TaskID(task.BatchID),
		asynq.MaxRetry(2),
		asynq.Timeout(30 * time.Minute),
		asynq.Retention(q.retention),
	}

	t := asynq.NewTask(TaskTypeBatchProcess, payload, opts...)
	if _, err := q.client.EnqueueContext(ctx, t); err != nil {
		return fmt.Errorf("failed to enqueue batch task: %w", err)
	}

	return nil
}

// GetJobStatus implements Queue.GetJobStatus. The status cache is consulted
// first; on a miss the asynq inspector is asked and terminal statuses are
// written back to the cache.
func (q *AsynqQueue) GetJobStatus(ctx context.Context, batchID string) (*JobStatus, error) {
	key := statusKey(batchID)
	if data, err := q.redis.Get(ctx, key).Bytes(); err == nil {
		var status JobStatus
		if err := json.Unmarshal(data, &status); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cached job status: %w", err)
		}
		return &status, nil
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read job status cache: %w", err)
	}

	info, err := q.inspector.GetTaskInfo("default", batchID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get task info: %w", err)
	}

	status := &JobStatus{
		BatchID: batchID,
		State:   info.State.String(),
		Error:   info.LastErr,
	}
	if len(info.Result) > 0 {
		status.Result = json.RawMessage(info.Result)
	}

	if isTerminal(info.State) {
		if data, err := json.Marshal(status); err == nil {
			// Best effort: a cache miss next time just hits the inspector
			// again.
			q.redis.Set(ctx, key, data, q.retention)
		}
	}

	return status, nil
}

func statusKey(batchID string) string {
	return "job_status:" + batchID
}

func isTerminal(state asynq.TaskState) bool {
	return state == asynq.TaskStateCompleted || state == asynq.TaskStateArchived
}

// Close releases the underlying redis connections.
func (q *AsynqQueue) Close() error {
	if err := q.client.Close(); err != nil {
		return err
	}
	if err := q.inspector.Close(); err != nil {
		return err
	}
	return q.redis.Close()
}
