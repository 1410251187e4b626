package crmsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wolfman30/leasing-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/leasing-ai-platform/pkg/logging"
)

// Dispatcher hands a qualified session to the CRM sync path. Dispatch never waits
// for the CRM unless the implementation is SyncDispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}

// Mode names a dispatch strategy.
type Mode string

const (
	ModeInline Mode = "inline"
	ModeQueue  Mode = "queue"
	ModeSync   Mode = "sync"
)

const maxRememberedSessions = 10000

// InlineDispatcher runs each sync in a background goroutine with its own timeout.
// Concurrent dispatches for one session collapse into a single call, and sessions
// this process already synced are not posted again.
type InlineDispatcher struct {
	processor *Processor
	timeout   time.Duration
	locker    Locker
	metrics   *metrics.ChatMetrics
	logger    *logging.Logger

	group singleflight.Group
	wg    sync.WaitGroup

	mu     sync.Mutex
	synced map[string]struct{}
}

var _ Dispatcher = (*InlineDispatcher)(nil)

// InlineOption customizes an InlineDispatcher.
type InlineOption func(*InlineDispatcher)

// WithLocker serializes syncs for a session across instances.
func WithLocker(l Locker) InlineOption {
	return func(d *InlineDispatcher) {
		d.locker = l
	}
}

// WithDispatchMetrics counts deduplicated dispatches.
func WithDispatchMetrics(m *metrics.ChatMetrics) InlineOption {
	return func(d *InlineDispatcher) {
		d.metrics = m
	}
}

func NewInlineDispatcher(processor *Processor, timeout time.Duration, logger *logging.Logger, opts ...InlineOption) *InlineDispatcher {
	if processor == nil {
		panic("crmsync: processor cannot be nil")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	d := &InlineDispatcher{
		processor: processor,
		timeout:   timeout,
		logger:    logger,
		synced:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch returns immediately. The request context only contributes values; its
// cancellation does not stop the sync.
func (d *InlineDispatcher) Dispatch(ctx context.Context, job Job) error {
	if d.alreadySynced(job.SessionID) {
		d.metrics.ObserveSync("deduped")
		return nil
	}
	base := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_, _, shared := d.group.Do(job.SessionID, func() (any, error) {
			return nil, d.run(base, job)
		})
		if shared {
			d.metrics.ObserveSync("deduped")
		}
	}()
	return nil
}

// Wait blocks until every dispatched sync has finished.
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}

func (d *InlineDispatcher) run(base context.Context, job Job) error {
	ctx, cancel := context.WithTimeout(base, d.timeout)
	defer cancel()

	if d.alreadySynced(job.SessionID) {
		return nil
	}
	if d.locker != nil {
		token, ok, err := d.locker.TryLock(ctx, job.SessionID, d.timeout)
		if err != nil {
			d.logger.Warn("lead sync lock unavailable, continuing without it", "error", err, "session_id", job.SessionID)
		} else if !ok {
			d.metrics.ObserveSync("deduped")
			return nil
		} else {
			defer func() {
				if err := d.locker.Unlock(context.WithoutCancel(ctx), job.SessionID, token); err != nil {
					d.logger.Warn("failed to release lead sync lock", "error", err, "session_id", job.SessionID)
				}
			}()
		}
	}

	if err := d.processor.Process(ctx, job); err != nil {
		return err
	}
	d.remember(job.SessionID)
	return nil
}

func (d *InlineDispatcher) alreadySynced(sessionID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.synced[sessionID]
	return ok
}

func (d *InlineDispatcher) remember(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.synced) >= maxRememberedSessions {
		d.synced = make(map[string]struct{})
	}
	d.synced[sessionID] = struct{}{}
}

// QueueDispatcher publishes jobs for a Worker to process.
type QueueDispatcher struct {
	queue Queue
}

var _ Dispatcher = (*QueueDispatcher)(nil)

func NewQueueDispatcher(queue Queue) *QueueDispatcher {
	if queue == nil {
		panic("crmsync: queue cannot be nil")
	}
	return &QueueDispatcher{queue: queue}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, job Job) error {
	_, body, err := encodeJob(job)
	if err != nil {
		return err
	}
	return d.queue.Send(ctx, body)
}

// SyncDispatcher processes the job on the caller's goroutine.
type SyncDispatcher struct {
	processor *Processor
	timeout   time.Duration
}

var _ Dispatcher = (*SyncDispatcher)(nil)

func NewSyncDispatcher(processor *Processor, timeout time.Duration) *SyncDispatcher {
	if processor == nil {
		panic("crmsync: processor cannot be nil")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &SyncDispatcher{processor: processor, timeout: timeout}
}

func (d *SyncDispatcher) Dispatch(ctx context.Context, job Job) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()
	return d.processor.Process(ctx, job)
}

// ErrUnknownMode is returned by ParseMode.
var ErrUnknownMode = errors.New("crmsync: unknown dispatch mode")

// ParseMode validates a LEAD_SYNC_MODE value.
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(raw); m {
	case ModeInline, ModeQueue, ModeSync:
		return m, nil
	case "":
		return ModeInline, nil
	default:
		return "", ErrUnknownMode
	}
}
