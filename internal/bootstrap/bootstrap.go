// Package bootstrap implements the fail-closed startup ordering shared by
// both service binaries: database/schema, Admission Controller and
// workspace root, pub/sub connection and realtime relay subscription,
// metrics collector, then the caller's own worker pool or HTTP surface.
// Graceful shutdown runs the same steps in reverse.
package bootstrap

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"forgerun/internal/admission"
	"forgerun/internal/observability"
	"forgerun/internal/pubsub"
	"forgerun/internal/store/postgres"
	"forgerun/internal/workspace"
)

// Config seeds every step of the startup sequence.
type Config struct {
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	WorkspaceRoot string
	// Service names this process in the workspace path (os_tmp/<service>/<job_id>).
	Service   string
	Admission admission.Config
}

// Bootstrapper owns the services started in steps 1–4 and hands their
// handles to the caller rather than exposing any module-level singleton.
type Bootstrapper struct {
	store     *postgres.Store
	bus       *pubsub.Bus
	redis     *redis.Client
	admission *admission.Controller
	workspace *workspace.Manager

	metricsHandler  http.Handler
	metricsShutdown func(context.Context) error

	relayCancel context.CancelFunc
	relayDone   chan struct{}
}

// New runs steps 1–3 (database/schema, admission/workspace, pub/sub
// connect+relay) and fails closed: any error tears down what was already
// started before returning.
func New(ctx context.Context, cfg Config) (*Bootstrapper, error) {
	b := &Bootstrapper{}

	// Step 1: database exists, schema applied. postgres.New pings and runs
	// migrations before returning.
	store, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: step 1 database: %w", err)
	}
	b.store = store

	// Step 2: Admission Controller and workspace root.
	b.admission = admission.New(cfg.Admission)

	root := cfg.WorkspaceRoot
	if root == "" {
		root = os.TempDir()
	}
	ws, err := workspace.New(root, cfg.Service)
	if err != nil {
		b.store.Close()
		return nil, fmt.Errorf("bootstrap: step 2 workspace: %w", err)
	}
	b.workspace = ws

	// Step 3: connect pub/sub, subscribe the realtime relay to the three
	// named channels.
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		b.store.Close()
		return nil, fmt.Errorf("bootstrap: step 3 redis: %w", err)
	}
	b.redis = client
	b.bus = pubsub.New(client)

	relayCtx, cancel := context.WithCancel(context.Background())
	b.relayCancel = cancel
	b.relayDone = make(chan struct{})
	go func() {
		defer close(b.relayDone)
		if err := b.bus.Relay(relayCtx, relayLog); err != nil && relayCtx.Err() == nil {
			log.Printf("bootstrap: realtime relay stopped: %v", err)
		}
	}()

	return b, nil
}

// relayLog is the default realtime relay sink: it exists so every message
// published on the three channels is observably flowing, without the
// Bootstrapper holding a direct reference to whatever external subscriber
// hub eventually consumes it.
func relayLog(channel string, payload []byte) {
	log.Printf("bootstrap: relay [%s] %s", channel, payload)
}

// InitMetrics runs step 4: starts the metrics collector and returns its
// HTTP handler for the caller to mount.
func (b *Bootstrapper) InitMetrics() (http.Handler, error) {
	handler, shutdown, err := observability.InitMetrics()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: step 4 metrics: %w", err)
	}
	b.metricsHandler = handler
	b.metricsShutdown = shutdown
	return handler, nil
}

func (b *Bootstrapper) Store() *postgres.Store       { return b.store }
func (b *Bootstrapper) Bus() *pubsub.Bus             { return b.bus }
func (b *Bootstrapper) Admission() *admission.Controller { return b.admission }
func (b *Bootstrapper) Workspace() *workspace.Manager    { return b.workspace }

// Shutdown stops the relay, closes pub/sub, shuts down the metrics
// collector, then closes the queue/database client. It is
// bounded by ctx; a relay that won't stop promptly is abandoned rather
// than blocking shutdown indefinitely.
func (b *Bootstrapper) Shutdown(ctx context.Context) error {
	if b.relayCancel != nil {
		b.relayCancel()
		select {
		case <-b.relayDone:
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
		}
	}

	var errs []error
	if b.bus != nil {
		if err := b.bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pub/sub: %w", err))
		}
	}
	if b.metricsShutdown != nil {
		if err := b.metricsShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown metrics: %w", err))
		}
	}
	if b.store != nil {
		if err := b.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("bootstrap: shutdown: %v", errs)
	}
	return nil
}
