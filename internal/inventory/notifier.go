package inventory

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisNotifier publishes low stock events on a redis channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier constructs the notifier.
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = "inventory.low_stock"
	}
	return &RedisNotifier{client: client, channel: channel}
}

// NotifyLowStock publishes the event as JSON.
func (n *RedisNotifier) NotifyLowStock(ctx context.Context, evt LowStockEvent) error {
	if n == nil || n.client == nil {
		return errors.New("inventory: notifier not initialised")
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, body).Err()
}
