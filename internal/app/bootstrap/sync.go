package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/leasing-ai-platform/internal/config"
	"github.com/wolfman30/leasing-ai-platform/internal/crmsync"
	"github.com/wolfman30/leasing-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/leasing-ai-platform/pkg/logging"
)

// SyncStack is the wired CRM sync path.
type SyncStack struct {
	Mode       crmsync.Mode
	Processor  *crmsync.Processor
	Dispatcher crmsync.Dispatcher
	// Inline is set in inline mode so shutdown can drain background syncs.
	Inline *crmsync.InlineDispatcher
	// Queue is set in queue mode. Worker consumes it when the queue lives in process.
	Queue  crmsync.Queue
	Worker *crmsync.Worker
}

// SyncDeps are the collaborators the sync path writes back to.
type SyncDeps struct {
	Sessions crmsync.SessionMarker
	Leads    crmsync.LeadLinker
	Redis    *redis.Client
	AWS      *aws.Config
	Metrics  *metrics.ChatMetrics
}

// BuildSyncStack wires the gateway, processor and the dispatcher selected by LEAD_SYNC_MODE.
func BuildSyncStack(cfg *appconfig.Config, deps SyncDeps, logger *logging.Logger) (*SyncStack, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	mode, err := crmsync.ParseMode(cfg.LeadSyncMode)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: LEAD_SYNC_MODE: %w", err)
	}

	processor := BuildSyncProcessor(cfg, deps, logger)
	stack := &SyncStack{Mode: mode, Processor: processor}
	timeout := syncBudget(cfg)

	switch mode {
	case crmsync.ModeInline:
		opts := []crmsync.InlineOption{crmsync.WithDispatchMetrics(deps.Metrics)}
		if deps.Redis != nil {
			opts = append(opts, crmsync.WithLocker(crmsync.NewRedisLocker(deps.Redis)))
		}
		stack.Inline = crmsync.NewInlineDispatcher(processor, timeout, logger, opts...)
		stack.Dispatcher = stack.Inline
	case crmsync.ModeSync:
		stack.Dispatcher = crmsync.NewSyncDispatcher(processor, timeout)
	case crmsync.ModeQueue:
		queue, inProcess, err := buildSyncQueue(cfg, deps.AWS)
		if err != nil {
			return nil, err
		}
		stack.Queue = queue
		stack.Dispatcher = crmsync.NewQueueDispatcher(queue)
		if inProcess {
			stack.Worker = crmsync.NewWorker(processor, queue, logger, workerOptions(timeout, deps.Redis)...)
		}
	}
	logger.Info("lead sync configured", "mode", string(mode), "crm_configured", cfg.LeadSyncURL != "")
	return stack, nil
}

func workerOptions(timeout time.Duration, client *redis.Client) []crmsync.WorkerOption {
	opts := []crmsync.WorkerOption{crmsync.WithJobTimeout(timeout)}
	if client != nil {
		opts = append(opts, crmsync.WithWorkerLocker(crmsync.NewRedisLocker(client)))
	}
	return opts
}

// BuildSyncProcessor wires the CRM gateway and the processor that records outcomes.
func BuildSyncProcessor(cfg *appconfig.Config, deps SyncDeps, logger *logging.Logger) *crmsync.Processor {
	gateway := crmsync.NewGateway(crmsync.GatewayConfig{
		URL:         cfg.LeadSyncURL,
		APIKey:      cfg.LeadSyncAPIKey,
		Timeout:     cfg.LeadSyncTimeout,
		MaxAttempts: cfg.LeadSyncMaxAttempts,
		BaseDelay:   cfg.LeadSyncBaseDelay,
		Logger:      logger,
	})
	opts := []crmsync.ProcessorOption{
		crmsync.WithMetrics(deps.Metrics),
		crmsync.WithLogger(logger),
	}
	if deps.Leads != nil {
		opts = append(opts, crmsync.WithLeadLinker(deps.Leads))
	}
	return crmsync.NewProcessor(gateway, deps.Sessions, opts...)
}

// BuildSQSQueue returns the SQS-backed sync queue used by the standalone worker.
func BuildSQSQueue(cfg *appconfig.Config, awsCfg *aws.Config) (*crmsync.SQSQueue, error) {
	if strings.TrimSpace(cfg.LeadSyncQueueURL) == "" {
		return nil, fmt.Errorf("bootstrap: LEAD_SYNC_QUEUE_URL is required")
	}
	if awsCfg == nil {
		return nil, fmt.Errorf("bootstrap: sqs queue needs AWS config")
	}
	return crmsync.NewSQSQueue(sqs.NewFromConfig(*awsCfg), cfg.LeadSyncQueueURL), nil
}

func buildSyncQueue(cfg *appconfig.Config, awsCfg *aws.Config) (crmsync.Queue, bool, error) {
	if strings.TrimSpace(cfg.LeadSyncQueueURL) == "" {
		return crmsync.NewMemoryQueue(0), true, nil
	}
	queue, err := BuildSQSQueue(cfg, awsCfg)
	if err != nil {
		return nil, false, err
	}
	return queue, false, nil
}

// syncBudget bounds one job: every attempt may use the full request timeout.
func syncBudget(cfg *appconfig.Config) time.Duration {
	attempts := cfg.LeadSyncMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	perAttempt := cfg.LeadSyncTimeout
	if perAttempt <= 0 {
		perAttempt = 10 * time.Second
	}
	return time.Duration(attempts)*perAttempt + 5*time.Second
}
