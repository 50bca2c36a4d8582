// Package notify publishes availability changes to Redis so that other
// front-ends can refresh "tickets left" without polling.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Change kinds.
const (
	KindRegistered   = "registered"
	KindPurchased    = "purchased"
	KindUnregistered = "unregistered"
)

// TierAvailability is the remaining count of one ticket type.
type TierAvailability struct {
	TicketType string `json:"ticketType,omitempty"`
	Capacity   int    `json:"capacity"`
	Remaining  int    `json:"remaining"`
}

// Change describes one committed inventory mutation.
type Change struct {
	Kind       string             `json:"kind"`
	EventID    string             `json:"eventId"`
	UserID     string             `json:"userId"`
	TicketType string             `json:"ticketType,omitempty"`
	Quantity   int                `json:"quantity"`
	Tiers      []TierAvailability `json:"tiers"`
	OccurredAt time.Time          `json:"occurredAt"`
}

// Channel returns the pub/sub channel of an event.
func Channel(eventID string) string {
	return fmt.Sprintf("events:%s:availability", eventID)
}

// Notifier publishes committed changes.
type Notifier interface {
	Publish(ctx context.Context, c Change) error
}

// Nop discards every change.
type Nop struct{}

// Publish implements Notifier.
func (Nop) Publish(context.Context, Change) error { return nil }

// RedisNotifier publishes changes on Redis pub/sub and keeps the latest
// availability of each event in a hash.
type RedisNotifier struct {
	rdb redis.Cmdable
}

// NewRedis constructs a RedisNotifier.
func NewRedis(rdb redis.Cmdable) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

// AvailabilityKey is the hash holding remaining counts per ticket type.
func AvailabilityKey(eventID string) string {
	return fmt.Sprintf("event:%s:availability", eventID)
}

// Publish implements Notifier.
func (n *RedisNotifier) Publish(ctx context.Context, c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	if err := n.rdb.Publish(ctx, Channel(c.EventID), string(payload)).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	if len(c.Tiers) == 0 {
		return nil
	}
	fields := make([]any, 0, 2*len(c.Tiers))
	for _, t := range c.Tiers {
		field := t.TicketType
		if field == "" {
			field = "general_admission"
		}
		fields = append(fields, field, t.Remaining)
	}
	if err := n.rdb.HSet(ctx, AvailabilityKey(c.EventID), fields...).Err(); err != nil {
		return fmt.Errorf("store availability: %w", err)
	}
	return nil
}

// Dial builds a client and verifies the connection.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return rdb, nil
}
