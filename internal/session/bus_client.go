package session

import (
	"github.com/godbus/dbus/v5"
)

// BusClient defines the interface for session-bus operations.
// This abstraction allows us to mock bus interactions in tests.
//
//go:generate mockgen -destination=mocks/bus_client_mock.go -package=mocks github.com/nowdeck/nowdeck/internal/session BusClient
type BusClient interface {
	// Close closes the bus connection
	Close() error

	// AddMatchSignal adds a signal match rule
	AddMatchSignal(options ...dbus.MatchOption) error

	// RemoveMatchSignal removes a previously added signal match rule
	RemoveMatchSignal(options ...dbus.MatchOption) error

	// Signal registers a channel to receive bus signals
	Signal(ch chan<- *dbus.Signal)

	// ListNames returns all names on the bus
	ListNames() ([]string, error)

	// GetNameOwner returns the unique name that owns the given well-known name
	GetNameOwner(name string) (string, error)

	// GetProperty retrieves a property from a bus object
	// player: the bus name (e.g., "org.mpris.MediaPlayer2.spotify")
	// path: the object path (e.g., "/org/mpris/MediaPlayer2")
	// prop: the property name (e.g., "org.mpris.MediaPlayer2.Player.Metadata")
	GetProperty(player, path, prop string) (dbus.Variant, error)
}

// StdBusClient is the real implementation using godbus
type StdBusClient struct {
	conn *dbus.Conn
}

// NewStdBusClient creates a real client connected to the session bus
func NewStdBusClient() (*StdBusClient, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, err
	}
	return &StdBusClient{conn: conn}, nil
}

// Close closes the bus connection
func (c *StdBusClient) Close() error {
	return c.conn.Close()
}

// AddMatchSignal adds a signal match rule
func (c *StdBusClient) AddMatchSignal(options ...dbus.MatchOption) error {
	return c.conn.AddMatchSignal(options...)
}

// RemoveMatchSignal removes a previously added signal match rule
func (c *StdBusClient) RemoveMatchSignal(options ...dbus.MatchOption) error {
	return c.conn.RemoveMatchSignal(options...)
}

// Signal registers a channel to receive bus signals
func (c *StdBusClient) Signal(ch chan<- *dbus.Signal) {
	c.conn.Signal(ch)
}

// ListNames returns all names on the bus
func (c *StdBusClient) ListNames() ([]string, error) {
	var names []string
	err := c.conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names)
	return names, err
}

// GetNameOwner returns the unique name that owns the given well-known name
func (c *StdBusClient) GetNameOwner(name string) (string, error) {
	var owner string
	err := c.conn.BusObject().Call("org.freedesktop.DBus.GetNameOwner", 0, name).Store(&owner)
	return owner, err
}

// GetProperty retrieves a property from a bus object
func (c *StdBusClient) GetProperty(player, path, prop string) (dbus.Variant, error) {
	obj := c.conn.Object(player, dbus.ObjectPath(path))
	return obj.GetProperty(prop)
}
