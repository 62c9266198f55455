package tracker

import (
	"fmt"
	"sync"
	"testing"

	"github.com/nowdeck/nowdeck/internal/domain"
	"go.uber.org/zap"
)

func playing(title string, position float64) domain.MediaSnapshot {
	return domain.MediaSnapshot{
		Title:              title,
		Artist:             "X",
		AppName:            "spotify.exe",
		Status:             domain.StatusPlaying,
		CurrentTimeSeconds: position,
		DurationSeconds:    180,
	}
}

// TestStore_Scenario walks the canonical publish sequence: first publish,
// timeline tick, pause, session gone.
func TestStore_Scenario(t *testing.T) {
	s := NewStore(zap.NewNop(), 0)

	if _, ok := s.Latest(); ok {
		t.Fatal("fresh store should report no session")
	}
	if got := s.ChangesSince(0); len(got) != 0 {
		t.Fatalf("fresh store should have no changes, got %d", len(got))
	}
	if got := s.LastID(); got != 0 {
		t.Fatalf("fresh store LastID() = %d, want 0", got)
	}

	// First publish: latest set, one event id=1.
	a := playing("Song1", 0)
	s.Publish(a)

	latest, ok := s.Latest()
	if !ok || latest.Title != "Song1" || latest.CurrentTimeSeconds != 0 {
		t.Fatalf("Latest() = %+v, ok=%v; want Song1 at t=0", latest, ok)
	}
	events := s.ChangesSince(0)
	if len(events) != 1 || events[0].ID != 1 {
		t.Fatalf("expected 1 event with id=1, got %+v", events)
	}

	// Same item, same status, ticked position: latest updates, no new event.
	s.Publish(playing("Song1", 5))

	latest, _ = s.Latest()
	if latest.CurrentTimeSeconds != 5 {
		t.Errorf("Latest position = %v, want 5", latest.CurrentTimeSeconds)
	}
	if events = s.ChangesSince(0); len(events) != 1 {
		t.Fatalf("position tick must not emit an event, log has %d", len(events))
	}

	// Status change on the same item: new event id=2.
	b := playing("Song1", 5)
	b.Status = domain.StatusPaused
	s.Publish(b)

	events = s.ChangesSince(0)
	if len(events) != 2 || events[1].ID != 2 {
		t.Fatalf("expected 2 events ending with id=2, got %+v", events)
	}

	// Session gone: new event id=3 with nil info, Latest reports no session.
	s.PublishGone()

	events = s.ChangesSince(0)
	if len(events) != 3 || events[2].ID != 3 {
		t.Fatalf("expected 3 events ending with id=3, got %+v", events)
	}
	if events[2].Info != nil {
		t.Error("gone event should carry nil info")
	}
	if _, ok := s.Latest(); ok {
		t.Error("Latest() should report no session after PublishGone")
	}

	// A second gone-marker must not emit another event.
	s.PublishGone()
	if events = s.ChangesSince(0); len(events) != 3 {
		t.Errorf("repeated PublishGone emitted an event, log has %d", len(events))
	}
	if got := s.LastID(); got != 3 {
		t.Errorf("LastID() = %d, want 3", got)
	}
}

// TestStore_IDsIncrementPerEmittedEvent verifies ids advance by exactly one
// per emitted event regardless of how many non-emitting publishes happen
// between them.
func TestStore_IDsIncrementPerEmittedEvent(t *testing.T) {
	s := NewStore(zap.NewNop(), 0)

	for track := 0; track < 5; track++ {
		title := fmt.Sprintf("Song%d", track)
		// Each track publishes once then ticks nine times.
		for tick := 0; tick < 10; tick++ {
			s.Publish(playing(title, float64(tick)))
		}
	}

	events := s.ChangesSince(0)
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}
	for i, ev := range events {
		if ev.ID != uint64(i+1) {
			t.Errorf("event %d has id %d, want %d", i, ev.ID, i+1)
		}
	}
}

func TestStore_CapacityEviction(t *testing.T) {
	const capacity = 5
	s := NewStore(zap.NewNop(), capacity)

	for i := 0; i < 12; i++ {
		s.Publish(playing(fmt.Sprintf("Song%d", i), 0))
	}

	events := s.ChangesSince(0)
	if len(events) != capacity {
		t.Fatalf("log holds %d events, capacity is %d", len(events), capacity)
	}
	// 12 events were emitted; the oldest retained must be id 8.
	if events[0].ID != 8 || events[len(events)-1].ID != 12 {
		t.Errorf("retained ids run %d..%d, want 8..12", events[0].ID, events[len(events)-1].ID)
	}
}

func TestStore_ChangesSince(t *testing.T) {
	s := NewStore(zap.NewNop(), 4)
	for i := 0; i < 10; i++ {
		s.Publish(playing(fmt.Sprintf("Song%d", i), 0))
	}
	// Retained ids: 7, 8, 9, 10.

	tests := []struct {
		name    string
		lastID  uint64
		wantIDs []uint64
	}{
		{"Evicted LastID Resyncs From Oldest", 3, []uint64{7, 8, 9, 10}},
		{"Mid Log", 8, []uint64{9, 10}},
		{"Caught Up", 10, nil},
		{"Beyond Newest", 99, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.ChangesSince(tt.lastID)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d events, want %d", len(got), len(tt.wantIDs))
			}
			prev := tt.lastID
			for i, ev := range got {
				if ev.ID != tt.wantIDs[i] {
					t.Errorf("event %d has id %d, want %d", i, ev.ID, tt.wantIDs[i])
				}
				if ev.ID <= prev {
					t.Errorf("ids not strictly ascending above lastID: %d after %d", ev.ID, prev)
				}
				prev = ev.ID
			}
		})
	}
}

// TestStore_ConcurrentAccess exercises publish and reads from separate
// goroutines under the race detector.
func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore(zap.NewNop(), 0)

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s.Publish(playing(fmt.Sprintf("Song%d", i%7), float64(i)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s.Latest()
		}
	}()
	go func() {
		defer wg.Done()
		var lastID uint64
		for i := 0; i < 200; i++ {
			for _, ev := range s.ChangesSince(lastID) {
				if ev.ID <= lastID {
					t.Errorf("non-ascending id %d after %d", ev.ID, lastID)
					return
				}
				lastID = ev.ID
			}
		}
	}()

	wg.Wait()
}

func TestStore_EventInfoIsolation(t *testing.T) {
	s := NewStore(zap.NewNop(), 0)

	first := playing("Song1", 0)
	s.Publish(first)
	s.Publish(playing("Song2", 0))

	events := s.ChangesSince(0)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Info == nil || events[0].Info.Title != "Song1" {
		t.Error("first logged event must keep the snapshot it was recorded with")
	}
}
