package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const relayPublishTimeout = 2 * time.Second

// RedisRelay spreads realtime events across server instances. Every
// instance publishes to one Redis channel and delivers what it receives
// from that channel to its own hub, its own messages included.
type RedisRelay struct {
	client  *redis.Client
	channel string
	hub     *Hub
	log     *zap.Logger
}

func NewRedisRelay(client *redis.Client, channel string, hub *Hub, log *zap.Logger) *RedisRelay {
	return &RedisRelay{client: client, channel: channel, hub: hub, log: log}
}

// Publish implements services.Publisher. When Redis refuses the message the
// local hub still gets it.
func (r *RedisRelay) Publish(eventType string, payload interface{}) {
	data, err := json.Marshal(Message{Type: eventType, Payload: payload})
	if err != nil {
		r.log.Error("realtime message encode failed", zap.String("type", eventType), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), relayPublishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		r.log.Warn("realtime relay publish failed, delivering locally",
			zap.String("type", eventType),
			zap.Error(err),
		)
		r.hub.Broadcast(eventType, data)
	}
}

// Run forwards channel messages to the hub until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		r.log.Error("realtime relay subscribe failed", zap.String("channel", r.channel), zap.Error(err))
		return
	}
	r.log.Info("realtime relay subscribed", zap.String("channel", r.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var envelope struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				r.log.Warn("realtime relay dropped malformed message", zap.Error(err))
				continue
			}
			r.hub.Broadcast(envelope.Type, []byte(msg.Payload))
		}
	}
}
