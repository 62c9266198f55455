package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/nowdeck/nowdeck/internal/domain"
	"go.uber.org/zap"
)

// State names the subscription level the manager currently holds
type State string

const (
	// StateUnsubscribed means no bus listeners are registered
	StateUnsubscribed State = "UNSUBSCRIBED"
	// StateManagerOnly means only the bus-level session-changed listener is registered
	StateManagerOnly State = "SUBSCRIBED_TO_MANAGER_ONLY"
	// StateSessionBound means listeners are registered on one live session
	StateSessionBound State = "SUBSCRIBED_TO_SESSION"
)

const (
	signalNameOwnerChanged  = "org.freedesktop.DBus.NameOwnerChanged"
	signalPropertiesChanged = "org.freedesktop.DBus.Properties.PropertiesChanged"
	propsIface              = "org.freedesktop.DBus.Properties"
)

// Manager owns the media-session subscription. It registers a bus-level
// listener for session arrival/departure and session-level listeners on
// exactly one live player at a time, and funnels every notification through a
// single consumer goroutine that re-captures the session and publishes into
// the tracker. Callbacks therefore never execute re-entrantly against the
// store.
type Manager struct {
	logger  *zap.Logger
	tracker domain.Tracker
	connect func() (BusClient, error)

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	conn        BusClient
	adapter     *Adapter
	state       State
	playerNames map[string]string // unique bus names (:1.45) -> well-known names
	current     string            // well-known name of the bound session, "" when none
}

// NewManager creates a Manager publishing into the given tracker
func NewManager(logger *zap.Logger, tracker domain.Tracker) *Manager {
	return &Manager{
		logger:  logger,
		tracker: tracker,
		connect: func() (BusClient, error) { return NewStdBusClient() },
		state:   StateUnsubscribed,

		playerNames: make(map[string]string),
	}
}

// Start acquires the session bus, registers listeners, performs the initial
// capture-and-publish and launches the consumer loop. Bus acquisition is the
// one operation that can fail outright; the caller decides whether that is
// fatal (reads keep serving "no session" either way).
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true

	// The loop outlives the start context; Stop cancels it.
	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.mu.Unlock()

	conn, err := m.connect()
	if err != nil {
		m.mu.Lock()
		m.running = false
		m.cancel = nil
		m.mu.Unlock()
		cancel()
		return fmt.Errorf("session bus acquisition failed: %w", err)
	}

	m.mu.Lock()
	m.conn = conn
	m.adapter = NewAdapter(m.logger, conn)
	m.mu.Unlock()

	if err := conn.AddMatchSignal(managerMatchOptions()...); err != nil {
		// Keep running: session switches go unnoticed but an already-bound
		// session would still be served.
		m.logger.Warn("bus-level subscription failed", zap.Error(err))
	} else {
		m.setState(StateManagerOnly)
		m.logger.Info("subscribed to session manager")
	}

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)

	// Initial capture-and-publish regardless of subscription success, so the
	// first poll is never empty-handed when a session already exists.
	if err := m.bindInitialSession(); err != nil {
		m.logger.Warn("initial session discovery failed", zap.Error(err))
		m.tracker.PublishGone()
	}

	m.wg.Add(1)
	go m.run(runCtx, signals)

	return nil
}

// Stop cancels the consumer loop and unregisters all listeners best-effort.
// Failure to unregister is logged, not fatal.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		if m.current != "" {
			if err := m.conn.RemoveMatchSignal(sessionMatchOptions(m.current)...); err != nil {
				m.logger.Warn("failed to release session listeners",
					zap.String("player", m.current), zap.Error(err))
			}
		}
		if m.state != StateUnsubscribed {
			if err := m.conn.RemoveMatchSignal(managerMatchOptions()...); err != nil {
				m.logger.Warn("failed to release bus-level listener", zap.Error(err))
			}
		}
		if err := m.conn.Close(); err != nil {
			m.logger.Warn("failed to close bus connection", zap.Error(err))
		}
		m.conn = nil
	}

	m.current = ""
	m.state = StateUnsubscribed
	m.logger.Info("session manager shutdown complete")
	return nil
}

// State returns the current subscription state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func managerMatchOptions() []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	}
}

func sessionMatchOptions(player string) []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchObjectPath(mprisPath),
		dbus.WithMatchInterface(propsIface),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchSender(player),
	}
}

// bindInitialSession discovers running players, maps their unique names and
// binds the most plausible current session: the first player reporting
// Playing, falling back to the first player found.
func (m *Manager) bindInitialSession() error {
	names, err := m.conn.ListNames()
	if err != nil {
		return fmt.Errorf("failed to list bus names: %w", err)
	}

	var players []string
	for _, name := range names {
		if !strings.HasPrefix(name, mprisPrefix) {
			continue
		}
		players = append(players, name)
		m.logger.Info("detected media session", zap.String("name", name))

		if uniqueName, err := m.conn.GetNameOwner(name); err == nil {
			m.mu.Lock()
			m.playerNames[uniqueName] = name
			m.mu.Unlock()
		}
	}

	if len(players) == 0 {
		m.logger.Info("no media session present")
		m.tracker.PublishGone()
		return nil
	}

	chosen := players[0]
	for _, player := range players {
		variant, err := m.conn.GetProperty(player, mprisPath, propPlaybackStatus)
		if err != nil {
			continue
		}
		if raw, ok := variant.Value().(string); ok && domain.ParsePlaybackStatus(raw) == domain.StatusPlaying {
			chosen = player
			break
		}
	}

	m.switchTo(chosen)
	return nil
}

// run is the single consumer loop. Every notification funnels through here,
// serializing capture-and-publish against the tracker.
func (m *Manager) run(ctx context.Context, signals chan *dbus.Signal) {
	defer m.wg.Done()

	m.logger.Info("signal consumer loop started")

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("signal consumer loop stopped")
			return
		case sig := <-signals:
			if sig == nil {
				continue
			}
			switch sig.Name {
			case signalNameOwnerChanged:
				m.handleNameOwnerChanged(sig)
			case signalPropertiesChanged:
				m.handlePropertiesChanged(sig)
			}
		}
	}
}

// handleNameOwnerChanged tracks session lifecycle: a player appearing while
// none is bound becomes the current session; the bound player disappearing
// hands over to any remaining player or publishes a gone-marker.
func (m *Manager) handleNameOwnerChanged(sig *dbus.Signal) {
	if len(sig.Body) < 3 {
		return
	}

	name, ok := sig.Body[0].(string)
	if !ok || !strings.HasPrefix(name, mprisPrefix) {
		return
	}

	oldOwner, _ := sig.Body[1].(string)
	newOwner, _ := sig.Body[2].(string)

	switch {
	case newOwner != "" && oldOwner == "":
		// New session appeared
		m.mu.Lock()
		m.playerNames[newOwner] = name
		noCurrent := m.current == ""
		m.mu.Unlock()

		m.logger.Info("media session appeared",
			zap.String("player", name), zap.String("unique", newOwner))

		if noCurrent {
			m.switchTo(name)
		}

	case newOwner == "" && oldOwner != "":
		// Session disappeared
		m.mu.Lock()
		delete(m.playerNames, oldOwner)
		wasCurrent := m.current == name
		replacement := ""
		if wasCurrent {
			for _, candidate := range m.playerNames {
				if candidate != name {
					replacement = candidate
					break
				}
			}
		}
		m.mu.Unlock()

		m.logger.Info("media session vanished",
			zap.String("player", name), zap.String("unique", oldOwner))

		if wasCurrent {
			m.switchTo(replacement)
		}

	default:
		// Ownership transfer, keep the mapping current
		m.mu.Lock()
		delete(m.playerNames, oldOwner)
		m.playerNames[newOwner] = name
		m.mu.Unlock()
	}
}

// handlePropertiesChanged reacts to session-level notifications. A signal
// from the bound session triggers capture-and-publish; a Playing signal from
// another session makes that session current.
func (m *Manager) handlePropertiesChanged(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}

	interfaceName, ok := sig.Body[0].(string)
	if !ok || interfaceName != playerIface {
		return
	}

	changedProps, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}

	player := m.resolvePlayer(sig.Sender)

	m.mu.Lock()
	current := m.current
	m.mu.Unlock()

	switch {
	case current == "":
		// A signal implies a session exists even if its arrival was missed
		if strings.HasPrefix(player, mprisPrefix) {
			m.switchTo(player)
		}

	case player != current:
		if status, ok := changedStatus(changedProps); ok && status == domain.StatusPlaying {
			m.logger.Info("current session changed",
				zap.String("from", current), zap.String("to", player))
			m.switchTo(player)
		}

	default:
		m.captureAndPublish(current)
	}
}

// switchTo releases the session-level listeners of the previously bound
// session, binds the given player and performs a capture-and-publish.
// An empty player name means "no session": the manager falls back to the
// manager-only state and publishes a gone-marker. Registration failures are
// logged and degrade to manager-only; the capture still runs so a poll gets
// whatever state is readable.
func (m *Manager) switchTo(player string) {
	m.mu.Lock()
	old := m.current
	conn := m.conn
	m.mu.Unlock()

	if old != "" && old != player {
		if err := conn.RemoveMatchSignal(sessionMatchOptions(old)...); err != nil {
			m.logger.Warn("failed to release session listeners",
				zap.String("player", old), zap.Error(err))
		}
	}

	if player == "" {
		m.mu.Lock()
		m.current = ""
		m.state = StateManagerOnly
		m.mu.Unlock()
		m.tracker.PublishGone()
		return
	}

	if err := conn.AddMatchSignal(sessionMatchOptions(player)...); err != nil {
		m.logger.Warn("failed to register session listeners",
			zap.String("player", player), zap.Error(err))
		m.mu.Lock()
		m.current = ""
		m.state = StateManagerOnly
		m.mu.Unlock()
		m.captureAndPublish(player)
		return
	}

	m.mu.Lock()
	m.current = player
	m.state = StateSessionBound
	m.mu.Unlock()

	m.logger.Info("session bound", zap.String("player", player))
	m.captureAndPublish(player)
}

func (m *Manager) captureAndPublish(player string) {
	m.tracker.Publish(m.adapter.Capture(player))
}

// resolvePlayer returns the well-known player name for a unique bus name,
// falling back to the unique name when no mapping exists
func (m *Manager) resolvePlayer(uniqueName string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if wellKnown, ok := m.playerNames[uniqueName]; ok {
		return wellKnown
	}
	return uniqueName
}

// changedStatus extracts the playback status carried in a PropertiesChanged
// payload, if any
func changedStatus(props map[string]dbus.Variant) (domain.PlaybackStatus, bool) {
	variant, ok := props["PlaybackStatus"]
	if !ok {
		return domain.StatusUnknown, false
	}
	raw, ok := variant.Value().(string)
	if !ok {
		return domain.StatusUnknown, false
	}
	return domain.ParsePlaybackStatus(raw), true
}
