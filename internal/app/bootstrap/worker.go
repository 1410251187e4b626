package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appconfig "github.com/wolfman30/leasing-ai-platform/internal/config"
	"github.com/wolfman30/leasing-ai-platform/internal/crmsync"
	"github.com/wolfman30/leasing-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/leasing-ai-platform/pkg/logging"
)

// SyncWorker is the standalone consumer of the SQS lead sync queue.
type SyncWorker struct {
	Worker         *crmsync.Worker
	MetricsHandler http.Handler
	resources
}

// NewSyncWorker wires the session and lead stores the processor writes back to,
// plus the SQS queue it drains.
func NewSyncWorker(ctx context.Context, cfg *appconfig.Config, opts Options, workerOpts ...crmsync.WorkerOption) (*SyncWorker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	w := &SyncWorker{resources: resources{logger: logger}}
	ok := false
	defer func() {
		if !ok {
			w.Close()
		}
	}()

	clients, _, err := w.openClients(ctx, cfg, opts.AWS)
	if err != nil {
		return nil, err
	}
	sessions, err := BuildSessionStore(cfg, clients)
	if err != nil {
		return nil, err
	}
	repo, err := BuildLeadsRepository(cfg, clients)
	if err != nil {
		return nil, err
	}
	queue, err := BuildSQSQueue(cfg, opts.AWS)
	if err != nil {
		return nil, err
	}

	chatMetrics := metrics.NewChatMetrics(registry)
	processor := BuildSyncProcessor(cfg, SyncDeps{
		Sessions: sessions,
		Leads:    repo,
		Metrics:  chatMetrics,
	}, logger)
	workerOpts = append(workerOptions(syncBudget(cfg), clients.Redis), workerOpts...)
	w.Worker = crmsync.NewWorker(processor, queue, logger, workerOpts...)
	w.MetricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	ok = true
	return w, nil
}
