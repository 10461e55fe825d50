// Package main is the entry point for the forgerun controller.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"forgerun/internal/admission"
	"forgerun/internal/bootstrap"
	"forgerun/internal/config"
	"forgerun/internal/controller"
	"forgerun/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	shutdownTracer, err := observability.InitTracer(ctx, "forgerun-controller", cfg.OTELCollectorAddr)
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
		Service:       "controller",
		Admission: admission.Config{
			MaxConcurrent:        cfg.MaxConcurrentContainers,
			MemoryPerContainerMB: cfg.ContainerMemoryMB,
			TotalMemoryMB:        cfg.TotalMemoryMB,
			MemoryThreshold:      cfg.MemoryThreshold,
		},
	})
	if err != nil {
		log.Fatalf("Failed to bootstrap controller: %v", err)
	}

	metricsHandler, err := boot.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to init metrics: %v", err)
	}

	store := boot.Store()

	// Observable gauge: queried only when scraped, never on the hot path.
	meter := otel.Meter("forgerun-controller")
	_, err = meter.Int64ObservableGauge("forgerun.queue.depth",
		metric.WithDescription("Current number of jobs in the queue"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			depth, err := store.Depth(ctx)
			if err != nil {
				log.Printf("Failed to read queue depth: %v", err)
				return nil
			}
			obs.Observe(depth)
			return nil
		}),
	)
	if err != nil {
		log.Printf("Failed to register queue depth metric: %v", err)
	}

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := controller.New(addr, store, metricsHandler)

	go func() {
		log.Printf("forgerun controller starting on %s", addr)
		if err := srv.Run(ctx); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down controller...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	if err := boot.Shutdown(shutdownCtx); err != nil {
		log.Printf("Bootstrap shutdown error: %v", err)
	}
}
