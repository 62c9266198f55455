package tracker

import (
	"sync"
	"time"

	"github.com/nowdeck/nowdeck/internal/domain"
	"go.uber.org/zap"
)

// DefaultCapacity is the number of change events retained when no explicit
// capacity is configured. It covers the notification client's one-second poll
// interval with a wide margin.
const DefaultCapacity = 50

// Store holds the latest media snapshot and a bounded, ordered log of change
// events. It is the single writer for both; the HTTP layer only reads.
// All operations take the same mutex, so a reader can never observe a
// half-updated snapshot or a half-appended log.
type Store struct {
	logger *zap.Logger

	mu       sync.Mutex
	latest   *domain.MediaSnapshot // nil means no session
	events   []domain.ChangeEvent
	capacity int
	nextID   uint64
}

// NewStore creates a Store retaining at most capacity change events.
// A non-positive capacity falls back to DefaultCapacity.
func NewStore(logger *zap.Logger, capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		logger:   logger,
		capacity: capacity,
		events:   make([]domain.ChangeEvent, 0, capacity),
	}
}

// Publish replaces the latest snapshot. When the transition from the previous
// snapshot is a material change, a ChangeEvent with the next sequence id is
// appended and the oldest event is evicted once capacity is exceeded.
func (s *Store) Publish(snap domain.MediaSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishLocked(&snap)
}

// PublishGone records that no media session exists anymore. Repeated calls
// while already gone do not emit further events.
func (s *Store) PublishGone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishLocked(nil)
}

func (s *Store) publishLocked(snap *domain.MediaSnapshot) {
	change := isChange(s.latest, snap)
	s.latest = snap

	if !change {
		return
	}

	s.nextID++
	ev := domain.ChangeEvent{
		ID:         s.nextID,
		RecordedAt: time.Now(),
	}
	if snap != nil {
		// Copy so later publishes can never alias the logged snapshot.
		info := *snap
		ev.Info = &info
	}
	s.events = append(s.events, ev)
	if len(s.events) > s.capacity {
		s.events = s.events[1:]
	}

	if snap != nil {
		s.logger.Info("media change recorded",
			zap.Uint64("id", ev.ID),
			zap.String("app", snap.AppName),
			zap.String("title", snap.Title),
			zap.String("status", string(snap.Status)))
	} else {
		s.logger.Info("media session gone", zap.Uint64("id", ev.ID))
	}
}

// Latest returns the current snapshot. ok is false when no session is known.
func (s *Store) Latest() (domain.MediaSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.latest == nil {
		return domain.MediaSnapshot{}, false
	}
	return *s.latest, true
}

// ChangesSince returns every retained event with id > lastID in ascending id
// order. If lastID refers to an already-evicted event the oldest retained
// events are returned and the client effectively resyncs.
func (s *Store) ChangesSince(lastID uint64) []domain.ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.ChangeEvent, 0, len(s.events))
	for _, ev := range s.events {
		if ev.ID > lastID {
			out = append(out, ev)
		}
	}
	return out
}

// LastID returns the id of the most recently recorded change event,
// 0 when none has been recorded yet.
func (s *Store) LastID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextID
}
