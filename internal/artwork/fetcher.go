package artwork

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/nowdeck/nowdeck/internal/domain"
	"go.uber.org/zap"
)

// ErrNotAvailable means the current session has no retrievable artwork.
// Callers substitute a placeholder.
var ErrNotAvailable = errors.New("no artwork available")

const (
	_maxImageSize      = 10 * 1024 * 1024 // 10 MB
	_defaultCacheSize  = 20
	_spotifyCropX      = 33
	_spotifyCropSize   = 234
	_spotifyCropRightX = _spotifyCropX + _spotifyCropSize
)

type cacheEntry struct {
	data        []byte
	contentType string
}

// Fetcher resolves the tracker's latest artwork reference to raw image bytes.
// Stateless per call apart from a small bounded cache keyed by
// app:title:artist, evicted oldest-inserted first.
type Fetcher struct {
	logger  *zap.Logger
	tracker domain.Tracker
	client  *http.Client

	mu       sync.Mutex
	cache    map[string]cacheEntry
	order    []string
	maxCache int
}

// NewFetcher creates a Fetcher reading the current artwork reference from the
// given tracker. A non-positive maxCache falls back to 20 entries.
func NewFetcher(logger *zap.Logger, tracker domain.Tracker, maxCache int) *Fetcher {
	if maxCache <= 0 {
		maxCache = _defaultCacheSize
	}
	return &Fetcher{
		logger:  logger,
		tracker: tracker,
		client: &http.Client{
			Timeout: 10 * time.Second, // never let a slow art host block the daemon
		},
		cache:    make(map[string]cacheEntry),
		maxCache: maxCache,
	}
}

// Fetch returns the artwork bytes and content type for whatever the tracker
// currently reports as latest. Returns ErrNotAvailable when nothing is
// playing, the session reports no artwork, or the read fails.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, string, error) {
	snap, ok := f.tracker.Latest()
	if !ok || !snap.HasThumbnail || snap.ArtURL == "" {
		return nil, "", ErrNotAvailable
	}

	key := cacheKey(snap)
	if entry, hit := f.lookup(key); hit {
		f.logger.Debug("artwork cache hit", zap.String("key", key))
		return entry.data, entry.contentType, nil
	}

	data, err := f.resolve(ctx, snap.ArtURL)
	if err != nil {
		f.logger.Warn("artwork read failed",
			zap.String("app", snap.AppName),
			zap.String("url", snap.ArtURL),
			zap.Error(err))
		return nil, "", fmt.Errorf("%w: %v", ErrNotAvailable, err)
	}

	// Spotify delivers its art letterboxed; crop out the square cover.
	if strings.Contains(strings.ToLower(snap.AppName), "spotify") {
		data = f.cropSpotify(data)
	}

	contentType := http.DetectContentType(data)
	f.store(key, cacheEntry{data: data, contentType: contentType})

	f.logger.Debug("artwork fetched",
		zap.String("app", snap.AppName),
		zap.Int("bytes", len(data)),
		zap.String("contentType", contentType))
	return data, contentType, nil
}

func cacheKey(snap domain.MediaSnapshot) string {
	return snap.AppName + ":" + snap.Title + ":" + snap.Artist
}

func (f *Fetcher) lookup(key string) (cacheEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.cache[key]
	return entry, ok
}

func (f *Fetcher) store(key string, entry cacheEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.cache[key]; !exists {
		f.order = append(f.order, key)
	}
	f.cache[key] = entry

	for len(f.order) > f.maxCache {
		oldest := f.order[0]
		f.order = f.order[1:]
		delete(f.cache, oldest)
	}
}

// resolve reads the artwork bytes behind a reference: players hand out
// http(s) URLs (streaming services) or file:// paths (local libraries).
func (f *Fetcher) resolve(ctx context.Context, ref string) ([]byte, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid artwork reference: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		return f.fetchHTTP(ctx, ref)
	case "file":
		path, err := url.PathUnescape(u.Path)
		if err != nil {
			path = u.Path
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read artwork file: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported artwork scheme %q", u.Scheme)
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "nowdeck/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "image/") {
		return nil, fmt.Errorf("url is not an image: %s", resp.Header.Get("Content-Type"))
	}

	limitReader := io.LimitReader(resp.Body, _maxImageSize)

	data, err := io.ReadAll(limitReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	return data, nil
}

// cropSpotify crops the 234x234 cover out of Spotify's letterboxed art,
// starting at (33,0). Images too small to crop, or that fail to decode,
// pass through untouched.
func (f *Fetcher) cropSpotify(data []byte) []byte {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		f.logger.Debug("spotify art decode failed, serving original", zap.Error(err))
		return data
	}

	bounds := img.Bounds()
	if bounds.Dx() < _spotifyCropRightX || bounds.Dy() < _spotifyCropSize {
		f.logger.Debug("spotify art too small to crop",
			zap.Int("w", bounds.Dx()), zap.Int("h", bounds.Dy()))
		return data
	}

	cropped := imaging.Crop(img, image.Rect(_spotifyCropX, 0, _spotifyCropRightX, _spotifyCropSize))

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, cropped, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		f.logger.Debug("spotify art re-encode failed, serving original", zap.Error(err))
		return data
	}
	return buf.Bytes()
}
