package dcs

// OccupancyChange says whether a player entered or left a unit.
type OccupancyChange int

const (
	PlayerEnteredUnit OccupancyChange = iota
	PlayerLeftUnit
)

func (c OccupancyChange) String() string {
	if c == PlayerEnteredUnit {
		return "entered"
	}
	return "left"
}

// PlayerInUnitChange is raised when the occupancy of a unit changes, either
// observed directly in a telemetry delta or derived from a player event.
type PlayerInUnitChange struct {
	UnitID uint32
	Change OccupancyChange

	// Player is a snapshot of the player record at the time of the change.
	Player Player
}

// ChatMessage is raised when a known player sends a chat line.
type ChatMessage struct {
	PlayerID uint32
	Message  string
}

// GroupCommandExecuted is raised when a registered group menu command is
// invoked by a player.
type GroupCommandExecuted struct {
	GroupID    uint32
	MenuItemID string
}

// StatusChange is raised whenever the connection status flips or the
// human-readable reason changes.
type StatusChange struct {
	Connected bool
	Reason    string
}
