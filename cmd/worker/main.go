// Package main is the entry point for the forgerun worker. The worker
// pool claims jobs from the durable queue and runs them through
// admission, the Container Executor, the Log Multiplexer, the Status
// Pipeline, and the Retry Controller.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"forgerun/internal/admission"
	"forgerun/internal/bootstrap"
	"forgerun/internal/config"
	"forgerun/internal/executor"
	"forgerun/internal/logmux"
	"forgerun/internal/observability"
	"forgerun/internal/retry"
	"forgerun/internal/statuspipeline"
	"forgerun/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := observability.InitTracer(ctx, "forgerun-worker", cfg.OTELCollectorAddr)
	if err != nil {
		log.Fatalf("Failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
		}
	}()

	boot, err := bootstrap.New(ctx, bootstrap.Config{
		DatabaseURL:   cfg.DatabaseURL,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		WorkspaceRoot: cfg.WorkspaceRoot,
		Service:       "worker",
		Admission: admission.Config{
			MaxConcurrent:        cfg.MaxConcurrentContainers,
			MemoryPerContainerMB: cfg.ContainerMemoryMB,
			TotalMemoryMB:        cfg.TotalMemoryMB,
			MemoryThreshold:      cfg.MemoryThreshold,
		},
	})
	if err != nil {
		log.Fatalf("Failed to bootstrap worker: %v", err)
	}

	metricsHandler, err := boot.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to init metrics: %v", err)
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		log.Println("Worker metrics listening on :6162")
		if err := http.ListenAndServe(":6162", mux); err != nil {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	store := boot.Store()
	bus := boot.Bus()

	statusPipeline := statuspipeline.New(store, bus)
	logMux := logmux.New(bus, store)

	exec := executor.New(executor.Config{
		RuntimeBinary:       cfg.RuntimeBinary,
		ContainerNamePrefix: cfg.ContainerNamePrefix,
	}, boot.Workspace(), logMux)

	retryCtrl := retry.New(store, statusPipeline).WithDelays(cfg.RetryDelays)

	pool := worker.New(store, boot.Admission(), exec, retryCtrl, statusPipeline, logMux, worker.Config{
		Concurrency: cfg.MinWorkers,
	})

	scaler := worker.NewScaler(store, pool, worker.ScalerConfig{
		MinWorkers:    cfg.MinWorkers,
		MaxWorkers:    cfg.MaxWorkers,
		JobsPerWorker: cfg.JobsPerWorker,
		Interval:      cfg.ScaleInterval,
	})

	go scaler.Run(ctx)

	log.Printf("Worker started with %d-%d workers", cfg.MinWorkers, cfg.MaxWorkers)
	go func() {
		if err := pool.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("Worker pool stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()
	<-pool.Done()
	statusPipeline.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := boot.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
