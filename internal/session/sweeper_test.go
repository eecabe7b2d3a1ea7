package session

import (
	"context"
	"testing"
	"time"

	"prompter/internal/utils"
)

func newTestSweeper(reg *Registry, ttl time.Duration) *Sweeper {
	return NewSweeper(reg, time.Minute, ttl, utils.NewLogger(), nil)
}

func TestSweepEvictsIdleRooms(t *testing.T) {
	reg := NewRegistry()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }
	reg.SetClock(now)

	idleRoom, idleViewer := reg.CreateRoom()

	clock = clock.Add(25 * time.Hour)
	freshRoom, _ := reg.CreateRoom()

	sw := newTestSweeper(reg, 24*time.Hour)
	sw.SetClock(now)

	evicted := sw.Sweep(context.Background())
	if len(evicted) != 1 || evicted[0] != idleRoom {
		t.Fatalf("expected only the idle room evicted, got %#v", evicted)
	}
	if reg.Exists(idleRoom) {
		t.Fatalf("expected idle room removed")
	}
	if _, ok := reg.ResolveViewer(idleViewer); ok {
		t.Fatalf("expected idle room's viewer mapping removed")
	}
	if !reg.Exists(freshRoom) {
		t.Fatalf("expected fresh room kept")
	}
}

func TestSweepSparesActiveRoom(t *testing.T) {
	reg := NewRegistry()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }
	reg.SetClock(now)

	roomID, _ := reg.CreateRoom()

	// heartbeats keep an idle-but-open session alive past the window
	clock = clock.Add(23 * time.Hour)
	reg.Touch(roomID)
	clock = clock.Add(23 * time.Hour)

	sw := newTestSweeper(reg, 24*time.Hour)
	sw.SetClock(now)

	if evicted := sw.Sweep(context.Background()); len(evicted) != 0 {
		t.Fatalf("expected no evictions, got %#v", evicted)
	}
	if !reg.Exists(roomID) {
		t.Fatalf("expected room kept")
	}
}

func TestSweepNoRooms(t *testing.T) {
	sw := newTestSweeper(NewRegistry(), 24*time.Hour)
	if evicted := sw.Sweep(context.Background()); evicted != nil {
		t.Fatalf("expected nil, got %#v", evicted)
	}
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	reg := NewRegistry()
	sw := NewSweeper(reg, time.Millisecond, time.Hour, utils.NewLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected Run to return after cancellation")
	}
}
