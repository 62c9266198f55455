package domain

import "context"

// Tracker is the authoritative holder of the current media state and its
// bounded change log. All methods are safe for concurrent use: the
// subscription callback goroutine publishes while HTTP handlers read.
type Tracker interface {
	// Publish atomically replaces the latest snapshot and, if the transition
	// is a material change (new logical item or new status), appends a
	// ChangeEvent with the next sequence id
	Publish(snap MediaSnapshot)

	// PublishGone records that no media session exists anymore
	PublishGone()

	// Latest returns the current snapshot. ok is false when no session
	// is known (nothing playing anywhere on the system)
	Latest() (snap MediaSnapshot, ok bool)

	// ChangesSince returns every retained event with id > lastID in
	// ascending id order. A lastID older than the oldest retained event
	// simply returns everything retained; the client resyncs
	ChangesSince(lastID uint64) []ChangeEvent
}

// Subscriber drives the media-session subscription lifecycle
type Subscriber interface {
	// Start acquires the session bus, registers listeners and performs the
	// initial capture-and-publish. It returns once the consumer loop runs
	Start(ctx context.Context) error

	// Stop unregisters listeners best-effort and releases the bus
	Stop(ctx context.Context) error
}

// ArtworkSource retrieves the artwork bytes for the current media session
type ArtworkSource interface {
	// Fetch resolves the latest snapshot's artwork reference to raw image
	// bytes and a content type. Returns artwork.ErrNotAvailable when the
	// current session has no retrievable artwork
	Fetch(ctx context.Context) (data []byte, contentType string, err error)
}

// Config defines the application configuration surface
type Config interface {
	// Addr returns the HTTP listen address
	Addr() string

	// ChangeLogCapacity returns the maximum retained change events
	ChangeLogCapacity() int

	// ArtworkCacheSize returns the maximum cached artwork entries
	ArtworkCacheSize() int
}
