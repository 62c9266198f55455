package session

import (
	"fmt"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/nowdeck/nowdeck/internal/domain"
	"github.com/nowdeck/nowdeck/internal/session/mocks"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

const testPlayer = "org.mpris.MediaPlayer2.spotify"

// TestTicksToSeconds pins the tick-to-second ratio: 10,000,000 ticks per
// second, bit-for-bit.
func TestTicksToSeconds(t *testing.T) {
	tests := []struct {
		ticks int64
		want  float64
	}{
		{50_000_000, 5.0},
		{10_000_000, 1.0},
		{0, 0},
		{1, 1e-7},
		{1_800_000_000, 180.0},
		{-5, 0}, // misbehaving player mid-seek
	}

	for _, tt := range tests {
		if got := ticksToSeconds(tt.ticks); got != tt.want {
			t.Errorf("ticksToSeconds(%d) = %v, want %v", tt.ticks, got, tt.want)
		}
	}
}

func TestAppName(t *testing.T) {
	if got := appName(testPlayer); got != "spotify" {
		t.Errorf("appName = %q, want %q", got, "spotify")
	}
	if got := appName(":1.42"); got != ":1.42" {
		t.Errorf("appName should pass through non-player names, got %q", got)
	}
}

func TestCapture_FullRead(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	conn := mocks.NewMockBusClient(ctrl)
	conn.EXPECT().GetProperty(testPlayer, mprisPath, propMetadata).Return(
		dbus.MakeVariant(map[string]dbus.Variant{
			"xesam:title":  dbus.MakeVariant("Bohemian Rhapsody"),
			"xesam:artist": dbus.MakeVariant([]string{"Queen", "Freddie Mercury"}),
			"xesam:album":  dbus.MakeVariant("A Night at the Opera"),
			"mpris:artUrl": dbus.MakeVariant("https://example.com/cover.jpg"),
			"mpris:length": dbus.MakeVariant(int64(180_000_000)), // microseconds
		}), nil)
	conn.EXPECT().GetProperty(testPlayer, mprisPath, propPlaybackStatus).Return(
		dbus.MakeVariant("Playing"), nil)
	conn.EXPECT().GetProperty(testPlayer, mprisPath, propPosition).Return(
		dbus.MakeVariant(int64(5_000_000)), nil) // microseconds

	snap := NewAdapter(zap.NewNop(), conn).Capture(testPlayer)

	if snap.Title != "Bohemian Rhapsody" {
		t.Errorf("Title = %q", snap.Title)
	}
	if snap.Artist != "Queen" {
		t.Errorf("Artist = %q", snap.Artist)
	}
	if len(snap.AdditionalArtists) != 1 || snap.AdditionalArtists[0] != "Freddie Mercury" {
		t.Errorf("AdditionalArtists = %v", snap.AdditionalArtists)
	}
	if snap.AlbumTitle != "A Night at the Opera" {
		t.Errorf("AlbumTitle = %q", snap.AlbumTitle)
	}
	if snap.AppName != "spotify" {
		t.Errorf("AppName = %q", snap.AppName)
	}
	if snap.Status != domain.StatusPlaying {
		t.Errorf("Status = %q", snap.Status)
	}
	if snap.DurationSeconds != 180.0 {
		t.Errorf("DurationSeconds = %v, want 180", snap.DurationSeconds)
	}
	if snap.CurrentTimeSeconds != 5.0 {
		t.Errorf("CurrentTimeSeconds = %v, want 5", snap.CurrentTimeSeconds)
	}
	if !snap.HasThumbnail || snap.ArtURL != "https://example.com/cover.jpg" {
		t.Errorf("artwork fields = %v %q", snap.HasThumbnail, snap.ArtURL)
	}
	if snap.CapturedAt.IsZero() {
		t.Error("CapturedAt not set")
	}
}

// TestCapture_PartialFailures verifies that each failing read degrades only
// its own portion of the snapshot instead of aborting the capture.
func TestCapture_PartialFailures(t *testing.T) {
	busErr := fmt.Errorf("org.freedesktop.DBus.Error.NoReply")

	goodMetadata := dbus.MakeVariant(map[string]dbus.Variant{
		"xesam:title": dbus.MakeVariant("Song1"),
	})

	tests := []struct {
		name  string
		setup func(m *mocks.MockBusClient)
		check func(t *testing.T, snap domain.MediaSnapshot)
	}{
		{
			name: "Metadata Read Fails",
			setup: func(m *mocks.MockBusClient) {
				m.EXPECT().GetProperty(testPlayer, mprisPath, propMetadata).Return(dbus.Variant{}, busErr)
				m.EXPECT().GetProperty(testPlayer, mprisPath, propPlaybackStatus).Return(dbus.MakeVariant("Paused"), nil)
				m.EXPECT().GetProperty(testPlayer, mprisPath, propPosition).Return(dbus.MakeVariant(int64(1_000_000)), nil)
			},
			check: func(t *testing.T, snap domain.MediaSnapshot) {
				if snap.Title != "" || snap.Artist != "" {
					t.Errorf("metadata fields should stay unknown, got %q/%q", snap.Title, snap.Artist)
				}
				if snap.Status != domain.StatusPaused {
					t.Errorf("Status = %q, want PAUSED", snap.Status)
				}
				if snap.CurrentTimeSeconds != 1.0 {
					t.Errorf("CurrentTimeSeconds = %v, want 1", snap.CurrentTimeSeconds)
				}
			},
		},
		{
			name: "Status Read Fails",
			setup: func(m *mocks.MockBusClient) {
				m.EXPECT().GetProperty(testPlayer, mprisPath, propMetadata).Return(goodMetadata, nil)
				m.EXPECT().GetProperty(testPlayer, mprisPath, propPlaybackStatus).Return(dbus.Variant{}, busErr)
				m.EXPECT().GetProperty(testPlayer, mprisPath, propPosition).Return(dbus.MakeVariant(int64(0)), nil)
			},
			check: func(t *testing.T, snap domain.MediaSnapshot) {
				if snap.Title != "Song1" {
					t.Errorf("Title = %q, want Song1", snap.Title)
				}
				if snap.Status != domain.StatusUnknown {
					t.Errorf("Status = %q, want UNKNOWN", snap.Status)
				}
			},
		},
		{
			name: "Position Read Fails",
			setup: func(m *mocks.MockBusClient) {
				m.EXPECT().GetProperty(testPlayer, mprisPath, propMetadata).Return(goodMetadata, nil)
				m.EXPECT().GetProperty(testPlayer, mprisPath, propPlaybackStatus).Return(dbus.MakeVariant("Playing"), nil)
				m.EXPECT().GetProperty(testPlayer, mprisPath, propPosition).Return(dbus.Variant{}, busErr)
			},
			check: func(t *testing.T, snap domain.MediaSnapshot) {
				if snap.CurrentTimeSeconds != 0 {
					t.Errorf("CurrentTimeSeconds = %v, want 0", snap.CurrentTimeSeconds)
				}
				if snap.Status != domain.StatusPlaying {
					t.Errorf("Status = %q, want PLAYING", snap.Status)
				}
			},
		},
		{
			name: "Idle Player Returns Non-Map Metadata",
			setup: func(m *mocks.MockBusClient) {
				m.EXPECT().GetProperty(testPlayer, mprisPath, propMetadata).Return(dbus.MakeVariant(12345), nil)
				m.EXPECT().GetProperty(testPlayer, mprisPath, propPlaybackStatus).Return(dbus.MakeVariant("Stopped"), nil)
				m.EXPECT().GetProperty(testPlayer, mprisPath, propPosition).Return(dbus.MakeVariant(int64(0)), nil)
			},
			check: func(t *testing.T, snap domain.MediaSnapshot) {
				if snap.Title != "" || snap.HasThumbnail {
					t.Errorf("unexpected fields from non-map metadata: %+v", snap)
				}
				if snap.Status != domain.StatusStopped {
					t.Errorf("Status = %q, want STOPPED", snap.Status)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			conn := mocks.NewMockBusClient(ctrl)
			tt.setup(conn)

			snap := NewAdapter(zap.NewNop(), conn).Capture(testPlayer)

			if snap.AppName != "spotify" {
				t.Errorf("AppName = %q, want spotify", snap.AppName)
			}
			tt.check(t, snap)
		})
	}
}

// TestCapture_ArtistAsString covers non-compliant players sending the artist
// as a bare string instead of an array.
func TestCapture_ArtistAsString(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	conn := mocks.NewMockBusClient(ctrl)
	conn.EXPECT().GetProperty(testPlayer, mprisPath, propMetadata).Return(
		dbus.MakeVariant(map[string]dbus.Variant{
			"xesam:artist": dbus.MakeVariant("Single Artist"),
		}), nil)
	conn.EXPECT().GetProperty(testPlayer, mprisPath, propPlaybackStatus).Return(
		dbus.MakeVariant("Playing"), nil)
	conn.EXPECT().GetProperty(testPlayer, mprisPath, propPosition).Return(
		dbus.MakeVariant(int64(0)), nil)

	snap := NewAdapter(zap.NewNop(), conn).Capture(testPlayer)

	if snap.Artist != "Single Artist" {
		t.Errorf("Artist = %q, want 'Single Artist'", snap.Artist)
	}
	if len(snap.AdditionalArtists) != 0 {
		t.Errorf("AdditionalArtists = %v, want empty", snap.AdditionalArtists)
	}
}
