// Package pubsub wires the three realtime channels
// (job:status, job:logs, system:metrics) onto Redis pub/sub. The Executor
// and Log Multiplexer never import this package directly; they depend on
// the narrow Publisher interfaces their own packages declare, and the
// Bootstrapper is what hands them a *Bus satisfying those interfaces —
// keeping the realtime transport swappable and untangled from the hot
// path it serves.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"forgerun/internal/domain"
)

const (
	ChannelStatus  = "job:status"
	ChannelLogs    = "job:logs"
	ChannelMetrics = "system:metrics"
)

// statusMessage is the wire shape published on job:status.
type statusMessage struct {
	JobID     string      `json:"job_id"`
	Status    string      `json:"status"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// logMessage is the wire shape published on job:logs.
type logMessage struct {
	JobID     string    `json:"job_id"`
	Type      string    `json:"type"`
	Data      string    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Bus publishes to and subscribes from the three realtime channels over a
// Redis client.
type Bus struct {
	client *redis.Client
}

// New wraps an already-configured *redis.Client.
func New(client *redis.Client) *Bus {
	return &Bus{client: client}
}

// PublishStatus satisfies statuspipeline.Publisher.
func (b *Bus) PublishStatus(ctx context.Context, jobID string, status domain.Status) error {
	payload, err := json.Marshal(statusMessage{JobID: jobID, Status: string(status), Timestamp: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("pubsub: marshal status message: %w", err)
	}
	if err := b.client.Publish(ctx, ChannelStatus, payload).Err(); err != nil {
		return fmt.Errorf("pubsub: publish status: %w", err)
	}
	return nil
}

// PublishLog satisfies logmux.Publisher.
func (b *Bus) PublishLog(ctx context.Context, entry domain.JobLog) error {
	payload, err := json.Marshal(logMessage{
		JobID:     entry.JobID,
		Type:      string(entry.Type),
		Data:      entry.Content,
		Timestamp: entry.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("pubsub: marshal log message: %w", err)
	}
	if err := b.client.Publish(ctx, ChannelLogs, payload).Err(); err != nil {
		return fmt.Errorf("pubsub: publish log: %w", err)
	}
	return nil
}

// PublishMetrics publishes a system resource snapshot.
func (b *Bus) PublishMetrics(ctx context.Context, snap domain.SystemMetric) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("pubsub: marshal metrics snapshot: %w", err)
	}
	if err := b.client.Publish(ctx, ChannelMetrics, payload).Err(); err != nil {
		return fmt.Errorf("pubsub: publish metrics: %w", err)
	}
	return nil
}

// Relay subscribes to all three channels and forwards raw payloads to fn,
// tagged with the source channel. It is the one component permitted to
// hold a direct reference to a realtime transport (e.g. the WebSocket/SSE
// hub serving external subscribers) — the Executor and Log Multiplexer
// never do.
func (b *Bus) Relay(ctx context.Context, fn func(channel string, payload []byte)) error {
	sub := b.client.Subscribe(ctx, ChannelStatus, ChannelLogs, ChannelMetrics)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			fn(msg.Channel, []byte(msg.Payload))
		}
	}
}

// Close releases the underlying Redis client.
func (b *Bus) Close() error {
	return b.client.Close()
}
