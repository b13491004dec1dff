package cache

import "github.com/ctrue/dcs-connect/pkg/dcs"

// PlayerConnected registers a player from a connect event and marks it
// connected. An already-known id keeps its existing record; only the
// connected flag is touched.
func (c *Entities) PlayerConnected(id uint32, name, ucid, addr string) dcs.Player {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.players[id]
	if !ok {
		p = &dcs.Player{ID: id, Kind: dcs.PlayerNetworked, Name: name, UCID: ucid, RemoteAddress: addr}
		c.players[id] = p
	}
	p.Connected = true
	return *p
}

// PlayerDisconnected marks a known player disconnected and records the
// reason. Unknown ids are ignored.
func (c *Entities) PlayerDisconnected(id uint32, reason string) (dcs.Player, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.players[id]
	if !ok {
		return dcs.Player{}, false
	}
	p.Connected = false
	p.Status = "Disconnect reason: " + reason
	return *p, true
}

// PlayerChangedSlot updates coalition and slot of a known player. Unknown
// ids are ignored; the roster refresh at connect time is the source of
// truth for initial population.
func (c *Entities) PlayerChangedSlot(id uint32, coalition dcs.Coalition, slot string) (dcs.Player, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.players[id]
	if !ok {
		return dcs.Player{}, false
	}
	p.Coalition = coalition
	p.SlotID = slot
	return *p, true
}

// RefreshPlayers applies the roster pulled after a successful handshake.
func (c *Entities) RefreshPlayers(records []dcs.Player) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range records {
		p, ok := c.players[r.ID]
		if !ok {
			cp := r
			cp.Kind = dcs.PlayerNetworked
			cp.Connected = true
			c.players[r.ID] = &cp
			continue
		}
		p.Connected = true
		p.Coalition = r.Coalition
		p.SlotID = r.SlotID
		p.RemoteAddress = r.RemoteAddress
	}
}

// EnsurePlayerByName finds a player by display name, creating a
// locally-inferred record when the name is unknown. The second return
// reports whether a record was created. Local records are keyed by name
// and share the LocalPlayerID sentinel, so inferring a second pilot never
// displaces the first. Display names are not guaranteed unique by the
// server; the first match wins, which can misattribute events under name
// collisions.
func (c *Entities) EnsurePlayerByName(name string) (dcs.Player, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p := c.playerByNameLocked(name); p != nil {
		return *p, false
	}
	p := &dcs.Player{ID: dcs.LocalPlayerID, Kind: dcs.PlayerLocal, Name: name}
	c.locals[name] = p
	return *p, true
}

// PlayerByName returns a copy of the first player with the given display
// name.
func (c *Entities) PlayerByName(name string) (dcs.Player, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p := c.playerByNameLocked(name); p != nil {
		return *p, true
	}
	return dcs.Player{}, false
}

func (c *Entities) playerByNameLocked(name string) *dcs.Player {
	for _, p := range c.players {
		if p.Name == name {
			return p
		}
	}
	if p, ok := c.locals[name]; ok {
		return p
	}
	return nil
}

// Player returns a copy of the player with the given id.
func (c *Entities) Player(id uint32) (dcs.Player, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.players[id]; ok {
		return *p, true
	}
	return dcs.Player{}, false
}

// Players returns a point-in-time copy of all known players, networked
// and locally-inferred.
func (c *Entities) Players() []dcs.Player {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]dcs.Player, 0, len(c.players)+len(c.locals))
	for _, p := range c.players {
		out = append(out, *p)
	}
	for _, p := range c.locals {
		out = append(out, *p)
	}
	return out
}

// RefreshGroups applies the group roster pulled after a successful
// handshake. Existing entries are overwritten in place.
func (c *Entities) RefreshGroups(records []dcs.Group) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range records {
		cp := r
		c.groups[r.ID] = &cp
	}
}

// Groups returns a point-in-time copy of all known groups.
func (c *Entities) Groups() []dcs.Group {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]dcs.Group, 0, len(c.groups))
	for _, g := range c.groups {
		out = append(out, *g)
	}
	return out
}
