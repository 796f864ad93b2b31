// workers/user_event_consumer.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"pong-platform/models"
	"pong-platform/services"

	"github.com/redis/go-redis/v9"
)

// Event kinds published by the auth service on the user lifecycle
// stream. The set is closed: anything else is logged and discarded at
// the boundary.
const (
	EventUserCreated = "CREATED"
	EventUserUpdated = "UPDATED"
	EventUserDeleted = "DELETED"
)

const (
	blockTimeout   = 5 * time.Second // bounded so shutdown is observed promptly
	reclaimEvery   = 10              // loop iterations between recovery passes
	reclaimMinIdle = 30 * time.Second
	retryBackoff   = time.Second
)

// UserEvent is one parsed lifecycle payload.
type UserEvent struct {
	Type      string `json:"type"`
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Avatar    string `json:"avatar,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// UserEventConsumer maintains the player read-model from the
// at-least-once user lifecycle stream. It reads through a durable
// consumer group, acknowledges an entry only after the local write
// succeeded, and periodically reclaims entries another (crashed)
// consumer left pending, so no event is permanently lost.
type UserEventConsumer struct {
	rdb      *redis.Client
	players  *services.PlayerService
	stream   string
	group    string
	consumer string
	minIdle  time.Duration // pending age before a recovery pass claims an entry
}

func NewUserEventConsumer(rdb *redis.Client, players *services.PlayerService, stream, group, consumer string) *UserEventConsumer {
	return &UserEventConsumer{
		rdb:      rdb,
		players:  players,
		stream:   stream,
		group:    group,
		consumer: consumer,
		minIdle:  reclaimMinIdle,
	}
}

// Start runs the consumer loop until ctx is cancelled. Transient
// stream errors are logged and retried, never fatal.
func (c *UserEventConsumer) Start(ctx context.Context) {
	log.Printf("🔁 user event consumer starting (stream=%s group=%s)", c.stream, c.group)
	if err := c.ensureGroup(ctx); err != nil {
		log.Printf("⚠️ consumer group setup: %v", err)
	}

	iteration := 0
	for {
		select {
		case <-ctx.Done():
			log.Println("⏹️ user event consumer stopped")
			return
		default:
		}

		iteration++
		if iteration%reclaimEvery == 0 {
			c.reclaim(ctx)
		}

		if err := c.consume(ctx); err != nil && ctx.Err() == nil {
			log.Printf("❌ stream read failed: %v", err)
			time.Sleep(retryBackoff)
		}
	}
}

// consume performs one blocking group read and handles whatever
// arrived. An empty block window is not an error.
func (c *UserEventConsumer) consume(ctx context.Context) error {
	res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    1,
		Block:    blockTimeout,
	}).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}

	for _, stream := range res {
		for _, msg := range stream.Messages {
			c.process(ctx, msg)
		}
	}
	return nil
}

// ensureGroup creates the consumer group at the stream origin.
// Re-creating an existing group is fine.
func (c *UserEventConsumer) ensureGroup(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

// process applies one entry and acknowledges it. A failed local write
// leaves the entry pending so a recovery pass redelivers it; a
// malformed payload is logged and acknowledged — redelivery cannot fix
// bad data.
func (c *UserEventConsumer) process(ctx context.Context, msg redis.XMessage) {
	event, err := ParseUserEvent(msg.Values)
	if err != nil {
		log.Printf("⚠️ dropping malformed entry %s: %v", msg.ID, err)
		c.ack(ctx, msg.ID)
		return
	}

	if err := c.apply(event); err != nil {
		log.Printf("❌ applying entry %s (%s user %d): %v — leaving pending", msg.ID, event.Type, event.ID, err)
		return
	}
	c.ack(ctx, msg.ID)
}

func (c *UserEventConsumer) ack(ctx context.Context, id string) {
	if err := c.rdb.XAck(ctx, c.stream, c.group, id).Err(); err != nil {
		log.Printf("⚠️ ack %s failed: %v", id, err)
	}
}

// apply mutates the read-model. Upserts are last-write-wins; ordering
// across redelivery is deliberately weak — the read-model is display
// only, never authoritative for gameplay outcomes.
func (c *UserEventConsumer) apply(event UserEvent) error {
	switch event.Type {
	case EventUserCreated, EventUserUpdated:
		return c.players.Upsert(models.Player{
			ID:        event.ID,
			Username:  event.Username,
			Avatar:    event.Avatar,
			UpdatedAt: time.UnixMilli(event.Timestamp),
		})
	case EventUserDeleted:
		return c.players.Delete(event.ID)
	default:
		// ParseUserEvent already rejected unknown kinds.
		return fmt.Errorf("unhandled event type %q", event.Type)
	}
}

// reclaim re-assigns entries claimed by some consumer but idle past
// the threshold (typically a crash mid-handling) to this consumer and
// processes them immediately. This bounds the staleness of
// unacknowledged work without a dead-letter mechanism.
func (c *UserEventConsumer) reclaim(ctx context.Context) {
	messages, _, err := c.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  c.minIdle,
		Start:    "0",
		Count:    16,
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("⚠️ reclaim pass failed: %v", err)
		}
		return
	}
	for _, msg := range messages {
		log.Printf("🔁 reclaimed stalled entry %s", msg.ID)
		c.process(ctx, msg)
	}
}

// ParseUserEvent decodes a stream entry's JSON payload into the closed
// event set. Unknown kinds are rejected here, at the boundary.
func ParseUserEvent(values map[string]interface{}) (UserEvent, error) {
	var event UserEvent
	payload, ok := values["payload"].(string)
	if !ok {
		return event, fmt.Errorf("entry has no payload field")
	}
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return event, fmt.Errorf("payload is not valid JSON: %w", err)
	}
	switch event.Type {
	case EventUserCreated, EventUserUpdated, EventUserDeleted:
	default:
		return event, fmt.Errorf("unknown event type %q", event.Type)
	}
	if event.ID <= 0 {
		return event, fmt.Errorf("event has no user id")
	}
	return event, nil
}
