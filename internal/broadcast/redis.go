package broadcast

import (
	"context"
	"encoding/json"

	"marketchat/backend/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// roomTopicPattern matches every room topic, see TopicForRoom
const roomTopicPattern = "room/*"

// RedisBroadcaster is a Broadcaster that routes publishes through Redis
// pub/sub so that subscribers connected to other instances receive them too.
// Each instance runs a relay that feeds incoming channel payloads into its
// local hub.
type RedisBroadcaster struct {
	rdb    *redis.Client
	hub    *Hub
	logger *logger.Logger
	cancel context.CancelFunc
}

// NewRedisBroadcaster wraps the hub with a Redis pub/sub bridge
func NewRedisBroadcaster(rdb *redis.Client, hub *Hub, log *logger.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{rdb: rdb, hub: hub, logger: log}
}

// Publish implements Broadcaster. The payload goes to Redis only; the relay
// started by Start delivers it to the local hub along with every other
// instance's hub.
func (b *RedisBroadcaster) Publish(ctx context.Context, topic string, message any) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, topic, payload).Err()
}

// Start launches the relay goroutine. It runs until Stop is called.
func (b *RedisBroadcaster) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	pubsub := b.rdb.PSubscribe(ctx, roomTopicPattern)

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.hub.Deliver(msg.Channel, []byte(msg.Payload))
			}
		}
	}()

	b.logger.Info("redis broadcast relay started", "pattern", roomTopicPattern)
}

// Stop shuts down the relay
func (b *RedisBroadcaster) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
}
