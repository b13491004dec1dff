// Package cache holds the in-memory view of the simulation: units, players
// and groups for the lifetime of one connection session. It is pure data
// plus diff logic; applying a message returns the derived change, raising
// notifications is the caller's job.
package cache

import (
	"sync"

	"github.com/ctrue/dcs-connect/pkg/dcs"
)

// Occupancy describes a player-in-unit transition derived from a single
// telemetry message.
type Occupancy struct {
	UnitID     uint32
	Change     dcs.OccupancyChange
	PlayerName string
}

// Entities caches units, players and groups. One mutex guards all three
// maps because the unit path also reads and creates players.
type Entities struct {
	mu      sync.Mutex
	units   map[uint32]*dcs.Unit
	players map[uint32]*dcs.Player
	groups  map[uint32]*dcs.Group

	// Locally-inferred players all carry the LocalPlayerID sentinel,
	// so they live in their own map keyed by display name.
	locals map[string]*dcs.Player
}

func NewEntities() *Entities {
	return &Entities{
		units:   make(map[uint32]*dcs.Unit),
		players: make(map[uint32]*dcs.Player),
		groups:  make(map[uint32]*dcs.Group),
		locals:  make(map[string]*dcs.Player),
	}
}

// Reset clears units, players and groups atomically. Called from cleanup
// after the processors have been joined, so no writer is in flight.
func (c *Entities) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.units = make(map[uint32]*dcs.Unit)
	c.players = make(map[uint32]*dcs.Player)
	c.groups = make(map[uint32]*dcs.Group)
	c.locals = make(map[string]*dcs.Player)
}

// ApplyUnit upserts a telemetry snapshot and reports the occupancy
// transition it implies, if any. The rules:
//
//	new unit, pilot set            -> entered (new name)
//	pilot empty  -> pilot set      -> entered (new name)
//	pilot set    -> pilot empty    -> left (old name)
//	anything else                  -> no transition
//
// The returned unit is a copy of the cache record after the update.
func (c *Entities) ApplyUnit(u *dcs.Unit) (dcs.Unit, *Occupancy) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var occ *Occupancy

	prev, ok := c.units[u.ID]
	if !ok {
		if u.PlayerName != "" {
			occ = &Occupancy{UnitID: u.ID, Change: dcs.PlayerEnteredUnit, PlayerName: u.PlayerName}
		}
	} else {
		switch {
		case prev.PlayerName == "" && u.PlayerName != "":
			occ = &Occupancy{UnitID: u.ID, Change: dcs.PlayerEnteredUnit, PlayerName: u.PlayerName}
		case prev.PlayerName != "" && u.PlayerName == "":
			occ = &Occupancy{UnitID: u.ID, Change: dcs.PlayerLeftUnit, PlayerName: prev.PlayerName}
		}
	}

	stored := *u
	c.units[u.ID] = &stored
	return stored, occ
}

// RemoveUnit drops a unit after a "gone" notice. If the unit was occupied,
// the implied "left" transition is reported so the pilot can be notified
// before the record disappears.
func (c *Entities) RemoveUnit(id uint32) (removed *dcs.Unit, occ *Occupancy) {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, ok := c.units[id]
	if !ok {
		return nil, nil
	}
	delete(c.units, id)

	cp := *u
	if u.PlayerName != "" {
		occ = &Occupancy{UnitID: id, Change: dcs.PlayerLeftUnit, PlayerName: u.PlayerName}
	}
	return &cp, occ
}

// Unit returns a copy of the unit with the given id.
func (c *Entities) Unit(id uint32) (dcs.Unit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if u, ok := c.units[id]; ok {
		return *u, true
	}
	return dcs.Unit{}, false
}

// Units returns a point-in-time copy of all known units.
func (c *Entities) Units() []dcs.Unit {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]dcs.Unit, 0, len(c.units))
	for _, u := range c.units {
		out = append(out, *u)
	}
	return out
}
