package dcsconnect

import "github.com/ctrue/dcs-connect/pkg/dcs"

// State returns the current lifecycle state.
func (c *Connector) State() State {
	return State(c.state.Load())
}

// IsConnected reports whether a verified session is live.
func (c *Connector) IsConnected() bool {
	return c.State() == StateConnected
}

// ServerInfo returns a snapshot of the session metadata. Zero value when
// disconnected.
func (c *Connector) ServerInfo() dcs.ServerInfo {
	c.infoMu.Lock()
	defer c.infoMu.Unlock()
	return c.info
}

// ServerAddr returns the configured target address, empty when no target
// is set.
func (c *Connector) ServerAddr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

// ClientID returns the client id passed to Connect.
func (c *Connector) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// Units returns a point-in-time copy of all cached units.
func (c *Connector) Units() []dcs.Unit {
	return c.entities.Units()
}

// Unit returns a copy of the cached unit with the given id.
func (c *Connector) Unit(id uint32) (dcs.Unit, bool) {
	return c.entities.Unit(id)
}

// Players returns a point-in-time copy of all known players, including
// disconnected ones.
func (c *Connector) Players() []dcs.Player {
	return c.entities.Players()
}

// Player returns a copy of the player with the given id.
func (c *Connector) Player(id uint32) (dcs.Player, bool) {
	return c.entities.Player(id)
}

// PlayerByName returns a copy of the first player with the given display
// name. Display names are not guaranteed unique.
func (c *Connector) PlayerByName(name string) (dcs.Player, bool) {
	return c.entities.PlayerByName(name)
}

// Groups returns a point-in-time copy of the group roster.
func (c *Connector) Groups() []dcs.Group {
	return c.entities.Groups()
}

// Marks returns a point-in-time copy of the known map marks.
func (c *Connector) Marks() []dcs.MarkEvent {
	return c.marks.Marks()
}
