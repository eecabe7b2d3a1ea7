package session

import (
	"context"
	"time"

	"prompter/internal/metrics"
	"prompter/internal/presence"
	"prompter/internal/utils"
)

const (
	DefaultSweepInterval = 5 * time.Minute
	DefaultRoomTTL       = 24 * time.Hour
)

// Sweeper evicts rooms whose last activity is older than the TTL. It is a
// best-effort reaper: a room may outlive its threshold by up to one poll
// interval, never the reverse.
type Sweeper struct {
	registry *Registry
	interval time.Duration
	ttl      time.Duration
	log      *utils.Logger
	pub      *presence.Publisher
	now      func() time.Time
}

func NewSweeper(registry *Registry, interval, ttl time.Duration, log *utils.Logger, pub *presence.Publisher) *Sweeper {
	return &Sweeper{
		registry: registry,
		interval: interval,
		ttl:      ttl,
		log:      log,
		pub:      pub,
		now:      time.Now,
	}
}

// Run polls until the context is cancelled at process shutdown.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one eviction cycle: snapshot activity under the registry
// lock, pick the expired subset outside it, then evict only the rooms that
// are still expired. It returns the evicted room ids.
func (s *Sweeper) Sweep(ctx context.Context) []string {
	cutoff := s.now().Add(-s.ttl)

	var candidates []string
	for _, a := range s.registry.Scan() {
		if a.LastActive.Before(cutoff) {
			candidates = append(candidates, a.ID)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	evicted := s.registry.EvictExpired(candidates, cutoff)
	for _, id := range evicted {
		metrics.RoomEvicted()
		s.pub.Publish(ctx, presence.Event{Type: presence.EventRoomEvicted, RoomID: id})
		s.log.Info("evicted inactive room", "room", id)
	}
	return evicted
}

// SetClock overrides the sweeper's time source (used in tests).
func (s *Sweeper) SetClock(now func() time.Time) { s.now = now }
