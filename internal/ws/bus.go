package ws

import (
	"context"
	"encoding/json"

	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/nilesh65/CodeKonnect/internal/app"
)

// BusMessage mirrors an already-encoded room frame to sibling hub
// instances. Origin lets a hub skip its own publishes.
type BusMessage struct {
	Origin string `json:"origin"`
	RoomID string `json:"roomId"`
	Frame  []byte `json:"frame"`
}

type Bus struct {
	rdb *redis.Client
	log *slog.Logger
}

// NewBus connects to redis and verifies connectivity
func NewBus(ctx context.Context, cfg app.Config, log *slog.Logger) (*Bus, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Bus{rdb: rdb, log: log}, nil
}

// Publish sends a frame to the redis channel for a room
func (b *Bus) Publish(ctx context.Context, m BusMessage) error {
	raw, _ := json.Marshal(m)
	return b.rdb.Publish(ctx, channel(m.RoomID), raw).Err()
}

// Subscribe listens to all room channels and invokes fn for each frame
func (b *Bus) Subscribe(ctx context.Context, fn func(BusMessage)) {
	pubsub := b.rdb.PSubscribe(ctx, channel("*"))
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			_ = pubsub.Close()
			return
		case msg := <-ch:
			var bm BusMessage
			_ = json.Unmarshal([]byte(msg.Payload), &bm)
			if bm.RoomID != "" {
				fn(bm)
			}
		}
	}
}

// Close shuts down the redis connection
func (b *Bus) Close() { _ = b.rdb.Close() }

// channel namespacing for room pub/sub
func channel(roomID string) string { return "room:" + roomID }
