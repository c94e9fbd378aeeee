// Package broadcast fans persisted chat messages out to live subscribers of a
// room topic. Delivery is fire-and-forget: it never blocks persistence and
// offers nothing to subscribers who are not connected at publish time.
package broadcast

import "context"

// Broadcaster publishes a message to every current subscriber of a topic.
// It holds no durable state; disconnected clients recover via the message log.
type Broadcaster interface {
	Publish(ctx context.Context, topic string, message any) error
}

// TopicForRoom derives the broadcast topic for a room's public id
func TopicForRoom(roomID string) string {
	return "room/" + roomID
}
