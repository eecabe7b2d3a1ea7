// Package presence publishes room lifecycle and occupancy events to Redis
// so sibling services (dashboards, presence aggregators) can observe rooms
// without holding a WebSocket into them.
package presence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"prompter/internal/utils"
)

const Channel = "prompter:presence"

const (
	EventRoomCreated = "room_created"
	EventRoomEvicted = "room_evicted"
	EventCounts      = "counts"
)

type Event struct {
	Type      string    `json:"type"`
	RoomID    string    `json:"room_id"`
	Directors int       `json:"directors,omitempty"`
	Viewers   int       `json:"viewers,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Publisher struct {
	rdb *redis.Client
	log *utils.Logger
}

func NewPublisher(redisAddr string, log *utils.Logger) *Publisher {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	return &Publisher{rdb: rdb, log: log}
}

// Publish sends the event on the presence channel. Publishing is advisory:
// failures are logged and never surfaced to the room that triggered them.
// A nil Publisher is a no-op so callers don't have to care whether presence
// is wired.
func (p *Publisher) Publish(ctx context.Context, ev Event) {
	if p == nil {
		return
	}
	ev.Timestamp = time.Now()
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("marshal presence event", "error", err.Error())
		return
	}
	if err := p.rdb.Publish(ctx, Channel, data).Err(); err != nil {
		p.log.Warn("presence publish failed", "type", ev.Type, "room", ev.RoomID, "error", err.Error())
	}
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.rdb.Close()
}
