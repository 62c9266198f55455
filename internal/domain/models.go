package domain

import "time"

// PlaybackStatus represents the playback state reported by the media session
type PlaybackStatus string

const (
	// StatusPlaying indicates the media is currently playing
	StatusPlaying PlaybackStatus = "PLAYING"
	// StatusPaused indicates the media is paused
	StatusPaused PlaybackStatus = "PAUSED"
	// StatusStopped indicates the media is stopped
	StatusStopped PlaybackStatus = "STOPPED"
	// StatusClosed indicates the owning app closed its session
	StatusClosed PlaybackStatus = "CLOSED"
	// StatusOpened indicates a session was opened but playback has not started
	StatusOpened PlaybackStatus = "OPENED"
	// StatusChanged indicates the session is transitioning between tracks
	StatusChanged PlaybackStatus = "CHANGED"
	// StatusUnknown is the fallback when the status could not be read
	StatusUnknown PlaybackStatus = "UNKNOWN"
)

// ParsePlaybackStatus maps a raw status string from the session bus to a
// PlaybackStatus. Unrecognized values become StatusUnknown.
func ParsePlaybackStatus(raw string) PlaybackStatus {
	switch raw {
	case "Playing", "PLAYING":
		return StatusPlaying
	case "Paused", "PAUSED":
		return StatusPaused
	case "Stopped", "STOPPED":
		return StatusStopped
	case "Closed", "CLOSED":
		return StatusClosed
	case "Opened", "OPENED":
		return StatusOpened
	case "Changing", "CHANGING", "CHANGED":
		return StatusChanged
	default:
		return StatusUnknown
	}
}

// MediaSnapshot is a fully-formed capture of the current media session at one
// instant. It is a value type: replaced wholesale on every update, never
// mutated in place. Empty strings mean the field could not be read.
type MediaSnapshot struct {
	// Title of the currently playing track
	Title string
	// Artist is the primary artist name
	Artist string
	// AlbumTitle is the album name
	AlbumTitle string
	// AdditionalArtists holds any artists beyond the primary one
	AdditionalArtists []string
	// AppName identifies the app owning the session (e.g. "spotify")
	AppName string
	// Status is the playback state at capture time
	Status PlaybackStatus
	// CurrentTimeSeconds is the playback position in seconds
	CurrentTimeSeconds float64
	// DurationSeconds is the track length in seconds, 0 when unknown
	DurationSeconds float64
	// HasThumbnail is true only if the session reports retrievable artwork
	HasThumbnail bool
	// ArtURL is the raw artwork reference reported by the session
	ArtURL string
	// CapturedAt is the wall-clock time this snapshot was produced
	CapturedAt time.Time
}

// ChangeEvent records one transition between two logically distinct media
// states. IDs are assigned by the store, start at 1 and strictly increase in
// insertion order. Info is nil when the transition was to "no session".
type ChangeEvent struct {
	ID         uint64
	Info       *MediaSnapshot
	RecordedAt time.Time
}
