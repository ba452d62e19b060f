package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"fanledger/internal/logger"
)

// RedisBridge forwards hub events to a Redis channel so realtime consumers
// outside the process (UI, dashboards) can attach. Publishing is
// fire-and-forget: failures are logged and the event is gone.
type RedisBridge struct {
	client  *redis.Client
	channel string
}

func NewRedisBridge(client *redis.Client, channel string) *RedisBridge {
	return &RedisBridge{client: client, channel: channel}
}

// Start consumes events until the channel closes or ctx is done.
func (b *RedisBridge) Start(ctx context.Context, events <-chan Event) {
	logger.Info("event bridge started", "channel", b.channel)

	for {
		select {
		case <-ctx.Done():
			logger.Info("event bridge stopped")
			return
		case e, ok := <-events:
			if !ok {
				logger.Info("event bridge stopped")
				return
			}
			b.publish(ctx, e)
		}
	}
}

func (b *RedisBridge) publish(ctx context.Context, e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		logger.Errorf("Failed to marshal event %s: %v", e.EventID, err)
		return
	}

	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		logger.Errorf("Failed to publish event %s: %v", e.EventID, err)
	}
}
