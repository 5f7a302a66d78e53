package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"invoice-backend/internal/bootstrap"
	"invoice-backend/internal/shared/config"
	"invoice-backend/internal/shared/storage/db"
	"invoice-backend/internal/shared/telemetry"
	"invoice-backend/internal/workerproc"
)

func main() {
	cfg := config.Load()
	if cfg.TextractQueueURL == "" {
		log.Fatal("TEXTRACT_SQS_QUEUE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, db.DefaultWorkerOptions())
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()
	defer telemetry.Sync()

	if err := run(ctx, app.Consumer); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

type poller interface {
	StartPolling(ctx context.Context) error
	StopPolling()
}

// run polls until ctx is cancelled.
func run(ctx context.Context, c poller) error {
	go func() {
		<-ctx.Done()
		c.StopPolling()
	}()
	log.Printf("worker started")
	if err := c.StartPolling(ctx); err != nil {
		return err
	}
	log.Printf("worker stopped")
	return nil
}

var _ poller = (*workerproc.Consumer)(nil)
