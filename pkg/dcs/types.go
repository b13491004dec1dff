// Package dcs holds the data model shared between the connector, its
// subscribers and the supporting services: units, players, groups, the
// session metadata and the messages carried by the two server streams.
package dcs

import "math"

// Coalition identifies the faction an entity belongs to.
type Coalition int32

const (
	CoalitionAll Coalition = iota
	CoalitionNeutral
	CoalitionRed
	CoalitionBlue
)

func (c Coalition) String() string {
	switch c {
	case CoalitionAll:
		return "ALL"
	case CoalitionNeutral:
		return "NEUTRAL"
	case CoalitionRed:
		return "RED"
	case CoalitionBlue:
		return "BLUE"
	default:
		return "UNKNOWN"
	}
}

// GroupCategory mirrors the server's group categories.
type GroupCategory int32

const (
	GroupCategoryUnspecified GroupCategory = iota
	GroupCategoryAirplane
	GroupCategoryHelicopter
	GroupCategoryGround
	GroupCategoryShip
	GroupCategoryTrain
)

// SmokeColor selects the color for a smoke marker.
type SmokeColor int32

const (
	SmokeGreen SmokeColor = iota
	SmokeRed
	SmokeWhite
	SmokeOrange
	SmokeBlue
)

// Unit is one cache entry of the telemetry stream. PlayerName is empty
// while the unit is unmanned.
type Unit struct {
	ID            uint32
	Name          string
	Callsign      string
	Type          string
	PlayerName    string
	GroupID       uint32
	GroupName     string
	GroupCategory GroupCategory
	NumberInGroup uint32
	Coalition     Coalition

	// Kinematic snapshot. Latitude/Longitude in decimal degrees,
	// Altitude in meters AMSL, Heading in degrees, Speed in m/s.
	Latitude  float64
	Longitude float64
	Altitude  float64
	Heading   float64
	Speed     float64
}

// PlayerKind distinguishes networked players from locally-inferred ones.
type PlayerKind int

const (
	// PlayerNetworked has a server-assigned id from the multiplayer lobby.
	PlayerNetworked PlayerKind = iota
	// PlayerLocal is inferred from a unit's pilot name when the player is
	// connected directly to the simulation and has no lobby record.
	PlayerLocal
)

// LocalPlayerID is the sentinel id given to locally-inferred players.
const LocalPlayerID uint32 = math.MaxUint32

// Player is a known player for the lifetime of one connection session.
// Players are never removed, only marked disconnected.
type Player struct {
	ID   uint32
	Kind PlayerKind
	Name string

	// UCID is the persistent account identifier. Empty for local players.
	UCID          string
	RemoteAddress string
	Connected     bool

	// Status is free text, such as the reason of the last disconnect.
	Status    string
	Coalition Coalition
	SlotID    string
}

// Group is populated from the roster refresh at connect time. Groups are
// not updated incrementally from the telemetry stream.
type Group struct {
	ID        uint32
	Name      string
	Coalition Coalition
	Category  GroupCategory
}

// ServerInfo is the session metadata refreshed at connect time. MissionTime
// advances with every streamed message; its value is only meaningful within
// a single connection epoch.
type ServerInfo struct {
	Theatre            string
	MissionName        string
	MissionDescription string
	IsServer           bool
	IsMultiplayer      bool
	MissionTime        float64
}

// UnitGone is the removal notice of the telemetry stream.
type UnitGone struct {
	ID   uint32
	Name string
}

// UnitMessage is one raw message of the telemetry stream. Exactly one of
// Unit and Gone is set.
type UnitMessage struct {
	Time float64
	Unit *Unit
	Gone *UnitGone
}

// UnitUpdate is the notification delivered to the unit-update subscriber
// after a telemetry message has been applied to the cache.
type UnitUpdate struct {
	Time float64

	// Unit is the post-update cache snapshot. Nil for removals.
	Unit *Unit

	GoneID   uint32
	GoneName string
}

// Deleted reports whether the update describes a removed unit.
func (u UnitUpdate) Deleted() bool {
	return u.Unit == nil
}

// UpdatedUnit builds an update notification for a live unit.
func UpdatedUnit(time float64, unit *Unit) UnitUpdate {
	return UnitUpdate{Time: time, Unit: unit}
}

// DeletedUnit builds an update notification for a removed unit.
func DeletedUnit(time float64, id uint32, name string) UnitUpdate {
	return UnitUpdate{Time: time, GoneID: id, GoneName: name}
}
