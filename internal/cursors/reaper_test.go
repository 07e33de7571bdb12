package cursors

import (
	"context"
	"testing"
	"time"
)

func TestReapOnceDeletesOnlyAncientRows(t *testing.T) {
	service, clock, db := newTestService(t, []string{"cursor-1", "cursor-2"})

	pulse(t, service, PulseRequest{BoardID: "board-1", SessionID: "ancient", X: 0, Y: 0})
	// Past the reap horizon (10x the 1500ms stale window) for the first
	// row, then a fresh pulse from a second session.
	clock.Advance(20 * time.Second)
	pulse(t, service, PulseRequest{BoardID: "board-1", SessionID: "fresh", X: 4, Y: 4})

	reaper := NewReaper(service, time.Minute, nil)
	reaped, err := reaper.ReapOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reaped != 1 {
		t.Fatalf("expected one reaped row, got %d", reaped)
	}

	var remaining []Cursor
	if err := db.Find(&remaining).Error; err != nil {
		t.Fatalf("failed to load rows: %v", err)
	}
	if len(remaining) != 1 || remaining[0].SessionID != "fresh" {
		t.Fatalf("unexpected surviving rows: %+v", remaining)
	}
}

func TestReapOnceKeepsStaleButRecentRows(t *testing.T) {
	service, clock, _ := newTestService(t, []string{"cursor-1"})

	pulse(t, service, PulseRequest{BoardID: "board-1", SessionID: "session-1", X: 0, Y: 0})
	// Stale for reads (beyond 1500ms), still inside the reap horizon.
	clock.Advance(5 * time.Second)

	reaper := NewReaper(service, time.Minute, nil)
	reaped, err := reaper.ReapOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reaped != 0 {
		t.Fatalf("expected no reaped rows, got %d", reaped)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	service, _, _ := newTestService(t, []string{"cursor-1"})
	reaper := NewReaper(service, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reaper.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop after cancellation")
	}
}
