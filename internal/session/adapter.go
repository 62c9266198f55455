package session

import (
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/nowdeck/nowdeck/internal/domain"
	"go.uber.org/zap"
)

const (
	mprisPrefix = "org.mpris.MediaPlayer2."
	mprisPath   = "/org/mpris/MediaPlayer2"
	playerIface = "org.mpris.MediaPlayer2.Player"

	propMetadata       = playerIface + ".Metadata"
	propPlaybackStatus = playerIface + ".PlaybackStatus"
	propPosition       = playerIface + ".Position"
)

// The tracker's timeline contract is 100 ns ticks; seconds = ticks / 1e7.
// The session bus reports positions and lengths in microseconds, so values
// are normalized to ticks before the single conversion point below.
const (
	ticksPerSecond      = 10_000_000
	ticksPerMicrosecond = 10
)

// ticksToSeconds converts a 100 ns tick count to seconds. Negative tick
// counts (seen from misbehaving players mid-seek) clamp to zero.
func ticksToSeconds(ticks int64) float64 {
	if ticks < 0 {
		return 0
	}
	return float64(ticks) / ticksPerSecond
}

// Adapter reads the full state of one media session in a single logical
// capture: metadata, playback status and timeline position from the same
// player name. Each of the three reads can fail independently; a failed read
// degrades only its portion of the snapshot to unknown defaults instead of
// aborting the capture.
type Adapter struct {
	logger *zap.Logger
	conn   BusClient
}

// NewAdapter creates an Adapter reading sessions over the given bus client
func NewAdapter(logger *zap.Logger, conn BusClient) *Adapter {
	return &Adapter{logger: logger, conn: conn}
}

// Capture produces a consistent snapshot of the named player's session.
// It never fails outright: unreadable portions stay at their zero values and
// Status falls back to UNKNOWN.
func (a *Adapter) Capture(player string) domain.MediaSnapshot {
	snap := domain.MediaSnapshot{
		AppName:    appName(player),
		Status:     domain.StatusUnknown,
		CapturedAt: time.Now(),
	}

	a.readMetadata(player, &snap)
	a.readPlaybackStatus(player, &snap)
	a.readPosition(player, &snap)

	return snap
}

// appName derives the styling/display key from the player bus name, e.g.
// "org.mpris.MediaPlayer2.spotify" -> "spotify".
func appName(player string) string {
	return strings.TrimPrefix(player, mprisPrefix)
}

func (a *Adapter) readMetadata(player string, snap *domain.MediaSnapshot) {
	variant, err := a.conn.GetProperty(player, mprisPath, propMetadata)
	if err != nil {
		a.logger.Warn("metadata read failed, degrading to unknowns",
			zap.String("player", player), zap.Error(err))
		return
	}

	// Some players return nil or unexpected types when idle.
	metadata, ok := variant.Value().(map[string]dbus.Variant)
	if !ok {
		a.logger.Debug("metadata variant is not a map, skipping",
			zap.String("player", player))
		return
	}

	if titleVar, ok := metadata["xesam:title"]; ok {
		if title, ok := titleVar.Value().(string); ok {
			snap.Title = title
		}
	}

	// Artist is an array per the MPRIS contract, but non-compliant players
	// send a bare string. The first entry is the primary artist, the rest
	// become additional artists.
	if artistVar, ok := metadata["xesam:artist"]; ok {
		switch artists := artistVar.Value().(type) {
		case []string:
			if len(artists) > 0 {
				snap.Artist = artists[0]
			}
			if len(artists) > 1 {
				snap.AdditionalArtists = append([]string(nil), artists[1:]...)
			}
		case string:
			snap.Artist = artists
		default:
			a.logger.Debug("unexpected artist type in metadata",
				zap.String("player", player))
		}
	}

	if albumVar, ok := metadata["xesam:album"]; ok {
		if album, ok := albumVar.Value().(string); ok {
			snap.AlbumTitle = album
		}
	}

	if artVar, ok := metadata["mpris:artUrl"]; ok {
		if artURL, ok := artVar.Value().(string); ok && artURL != "" {
			snap.ArtURL = artURL
			snap.HasThumbnail = true
		}
	}

	if lengthVar, ok := metadata["mpris:length"]; ok {
		if micros, ok := asInt64(lengthVar.Value()); ok {
			snap.DurationSeconds = ticksToSeconds(micros * ticksPerMicrosecond)
		}
	}
}

func (a *Adapter) readPlaybackStatus(player string, snap *domain.MediaSnapshot) {
	variant, err := a.conn.GetProperty(player, mprisPath, propPlaybackStatus)
	if err != nil {
		a.logger.Warn("playback status read failed, degrading to UNKNOWN",
			zap.String("player", player), zap.Error(err))
		return
	}

	raw, ok := variant.Value().(string)
	if !ok {
		a.logger.Debug("playback status variant is not a string",
			zap.String("player", player))
		return
	}
	snap.Status = domain.ParsePlaybackStatus(raw)
}

func (a *Adapter) readPosition(player string, snap *domain.MediaSnapshot) {
	variant, err := a.conn.GetProperty(player, mprisPath, propPosition)
	if err != nil {
		a.logger.Debug("position read failed, leaving position at zero",
			zap.String("player", player), zap.Error(err))
		return
	}

	if micros, ok := asInt64(variant.Value()); ok {
		snap.CurrentTimeSeconds = ticksToSeconds(micros * ticksPerMicrosecond)
	}
}

// asInt64 normalizes the integer types players use for microsecond values
func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
