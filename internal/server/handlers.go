package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nowdeck/nowdeck/internal/artwork"
	"github.com/nowdeck/nowdeck/internal/domain"
	"go.uber.org/zap"
)

// snapshotPayload is the wire form of a MediaSnapshot. The field names are
// the contract the overlay pages poll against.
type snapshotPayload struct {
	Title              string                `json:"title"`
	Artist             string                `json:"artist"`
	AlbumTitle         string                `json:"album_title"`
	AppName            string                `json:"app_name"`
	Status             domain.PlaybackStatus `json:"status"`
	CurrentTimeSeconds float64               `json:"current_time_seconds"`
	DurationSeconds    float64               `json:"duration_seconds"`
	AdditionalArtists  []string              `json:"additional_artists"`
	Timestamp          float64               `json:"timestamp"`
	HasThumbnail       bool                  `json:"has_thumbnail"`
}

// changePayload is the wire form of a ChangeEvent. Info is null for the
// transition to "no session"; the notification page renders that as stopped.
type changePayload struct {
	ID         uint64           `json:"id"`
	Info       *snapshotPayload `json:"info"`
	RecordedAt float64          `json:"recorded_at"`
}

type errorPayload struct {
	Error     string                `json:"error"`
	Status    domain.PlaybackStatus `json:"status,omitempty"`
	AppName   string                `json:"app_name,omitempty"`
	Timestamp float64               `json:"timestamp,omitempty"`
}

func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / 1e9
}

func newSnapshotPayload(snap domain.MediaSnapshot) *snapshotPayload {
	artists := snap.AdditionalArtists
	if artists == nil {
		artists = []string{}
	}
	return &snapshotPayload{
		Title:              snap.Title,
		Artist:             snap.Artist,
		AlbumTitle:         snap.AlbumTitle,
		AppName:            snap.AppName,
		Status:             snap.Status,
		CurrentTimeSeconds: snap.CurrentTimeSeconds,
		DurationSeconds:    snap.DurationSeconds,
		AdditionalArtists:  artists,
		Timestamp:          unixSeconds(snap.CapturedAt),
		HasThumbnail:       snap.HasThumbnail,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// isPlayable reports whether a snapshot is worth showing on the persistent
// display: OPENED/CLOSED/STOPPED sessions and sessions with no title are
// treated as "nothing playing" even though their transitions are logged.
func isPlayable(snap domain.MediaSnapshot) bool {
	switch snap.Status {
	case domain.StatusOpened, domain.StatusClosed, domain.StatusStopped:
		return false
	}
	return strings.TrimSpace(snap.Title) != ""
}

func (s *Server) handleCurrentMedia(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.tracker.Latest()
	if !ok {
		writeJSON(w, http.StatusOK, errorPayload{
			Error:  "No media currently playing",
			Status: domain.StatusUnknown,
		})
		return
	}

	if !isPlayable(snap) {
		writeJSON(w, http.StatusOK, errorPayload{
			Error:     "No active media playing",
			Status:    snap.Status,
			AppName:   snap.AppName,
			Timestamp: unixSeconds(snap.CapturedAt),
		})
		return
	}

	writeJSON(w, http.StatusOK, newSnapshotPayload(snap))
}

func (s *Server) handleMediaChanges(w http.ResponseWriter, r *http.Request) {
	var lastID uint64
	if raw := r.URL.Query().Get("last_id"); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			lastID = parsed
		}
	}

	events := s.tracker.ChangesSince(lastID)

	out := make([]changePayload, 0, len(events))
	for _, ev := range events {
		change := changePayload{
			ID:         ev.ID,
			RecordedAt: unixSeconds(ev.RecordedAt),
		}
		if ev.Info != nil {
			change.Info = newSnapshotPayload(*ev.Info)
		}
		out = append(out, change)
	}

	// A fresh client with nothing retained still gets the current state so
	// its first poll is never empty-handed.
	if lastID == 0 && len(out) == 0 {
		if snap, ok := s.tracker.Latest(); ok {
			out = append(out, changePayload{
				Info:       newSnapshotPayload(snap),
				RecordedAt: unixSeconds(time.Now()),
			})
		}
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAlbumArt(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.artwork.Fetch(r.Context())
	if err != nil {
		if !errors.Is(err, artwork.ErrNotAvailable) {
			s.logger.Warn("album art fetch failed", zap.Error(err))
		}
		http.Error(w, "No album art available", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=60")
	_, _ = w.Write(data)
}
