package crmsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wolfman30/leasing-ai-platform/pkg/logging"
)

// errLockHeld leaves a job for redelivery while another consumer syncs the session.
var errLockHeld = errors.New("crmsync: session sync in progress elsewhere")

// Worker consumes sync jobs from the queue and invokes the processor.
type Worker struct {
	processor *Processor
	queue     Queue
	logger    *logging.Logger

	cfg   workerConfig
	group singleflight.Group
	wg    sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	jobTimeout       time.Duration
	locker           Locker
}

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
)

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the SQS long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithJobTimeout bounds a single CRM sync including retries.
func WithJobTimeout(d time.Duration) WorkerOption {
	return func(cfg *workerConfig) {
		if d > 0 {
			cfg.jobTimeout = d
		}
	}
}

// WithWorkerLocker serializes syncs for a session across worker processes.
func WithWorkerLocker(l Locker) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.locker = l
	}
}

// NewWorker creates a queue consumer.
func NewWorker(processor *Processor, queue Queue, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if processor == nil {
		panic("crmsync: processor cannot be nil")
	}
	if queue == nil {
		panic("crmsync: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
		jobTimeout:       30 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{
		processor: processor,
		queue:     queue,
		logger:    logger,
		cfg:       cfg,
	}
}

// Start launches the consumer goroutines. They exit when ctx is done.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("lead sync worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("lead sync worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive lead sync jobs", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

// handleMessage deletes the message unless the failure is worth a redelivery.
func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	job, err := decodeJob(msg.Body)
	if err != nil {
		w.logger.Error("dropping undecodable lead sync job", "error", err, "msg_id", msg.ID)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	// Jobs for one session run one at a time; the processor skips synced sessions.
	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.jobTimeout)
	_, err, _ = w.group.Do(job.SessionID, func() (any, error) {
		return nil, w.process(jobCtx, job)
	})
	cancel()
	if err != nil && !IsPermanent(err) {
		w.logger.Warn("lead sync job left for redelivery", "error", err, "job_id", job.ID, "session_id", job.SessionID)
		return
	}
	w.deleteMessage(msg.ReceiptHandle)
}

func (w *Worker) process(ctx context.Context, job Job) error {
	if w.cfg.locker == nil {
		return w.processor.Process(ctx, job)
	}
	token, ok, err := w.cfg.locker.TryLock(ctx, job.SessionID, w.cfg.jobTimeout)
	if err != nil {
		w.logger.Warn("lead sync lock unavailable, continuing without it", "error", err, "session_id", job.SessionID)
		return w.processor.Process(ctx, job)
	}
	if !ok {
		return errLockHeld
	}
	defer func() {
		if err := w.cfg.locker.Unlock(context.WithoutCancel(ctx), job.SessionID, token); err != nil {
			w.logger.Warn("failed to release lead sync lock", "error", err, "session_id", job.SessionID)
		}
	}()
	return w.processor.Process(ctx, job)
}

func (w *Worker) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete lead sync job", "error", err)
	}
}
