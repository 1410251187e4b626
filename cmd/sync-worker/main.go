package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wolfman30/leasing-ai-platform/cmd/mainconfig"
	"github.com/wolfman30/leasing-ai-platform/internal/app/bootstrap"
	"github.com/wolfman30/leasing-ai-platform/internal/crmsync"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, logger, awsCfg, err := mainconfig.Environment(ctx, "sync-worker")
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	syncWorker, err := bootstrap.NewSyncWorker(ctx, cfg, bootstrap.Options{Logger: logger, AWS: &awsCfg},
		crmsync.WithWorkerCount(4),
		crmsync.WithReceiveWaitSeconds(20),
		crmsync.WithReceiveBatchSize(10),
	)
	if err != nil {
		logger.Error("failed to build sync worker", "error", err)
		os.Exit(1)
	}
	defer syncWorker.Close()

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           syncWorker.MetricsHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()

	syncWorker.Worker.Start(ctx)
	logger.Info("lead sync worker started", "queue_url", cfg.LeadSyncQueueURL)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down lead sync worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()
	_ = metricsSrv.Shutdown(doneCtx)

	waitCh := make(chan struct{})
	go func() {
		syncWorker.Worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("lead sync worker stopped")
	case <-doneCtx.Done():
		logger.Error("lead sync worker shutdown timed out", "error", doneCtx.Err())
	}
}
