// Package main runs the standalone batch worker. It drives batches through
// the server's secret-authenticated worker route until interrupted.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/phrazzld/jobtrail-api/internal/config"
	"github.com/phrazzld/jobtrail-api/internal/platform/logger"
	"github.com/phrazzld/jobtrail-api/internal/worker"
)

func main() {
	cfg, err := config.LoadWorkerClient()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stepper := worker.NewHTTPStepper(cfg.Worker.Endpoint, cfg.Secret, cfg.Worker.MaxStepsPerPoll, nil)
	d := worker.NewDispatcher(stepper, worker.Config{
		WorkerCount:     cfg.Worker.Count,
		PollInterval:    cfg.Worker.PollInterval(),
		// The server loops up to MaxStepsPerPoll per call.
		MaxStepsPerPoll: 1,
	}, l)

	l.Info("Batch worker starting",
		"endpoint", cfg.Worker.Endpoint,
		"workers", cfg.Worker.Count,
		"max_steps_per_call", cfg.Worker.MaxStepsPerPoll)
	d.Start(ctx)

	<-ctx.Done()
	l.Info("Batch worker stopping")
	d.Stop()
}
