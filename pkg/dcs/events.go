package dcs

// EventKind is the discriminant of the event stream's tagged union.
type EventKind int32

const (
	EventUnknown EventKind = iota
	EventBirth
	EventMissionStart
	EventMissionEnd
	EventConnect
	EventDisconnect
	EventPlayerEnterUnit
	EventPlayerChangeSlot
	EventPlayerLeaveUnit
	EventPlayerSendChat
	EventPilotDead
	EventCoalitionCommand
	EventGroupCommand
	EventMissionCommand
	EventMarkAdd
	EventMarkChange
	EventMarkRemove
)

var eventKindNames = map[EventKind]string{
	EventUnknown:          "unknown",
	EventBirth:            "birth",
	EventMissionStart:     "mission_start",
	EventMissionEnd:       "mission_end",
	EventConnect:          "connect",
	EventDisconnect:       "disconnect",
	EventPlayerEnterUnit:  "player_enter_unit",
	EventPlayerChangeSlot: "player_change_slot",
	EventPlayerLeaveUnit:  "player_leave_unit",
	EventPlayerSendChat:   "player_send_chat",
	EventPilotDead:        "pilot_dead",
	EventCoalitionCommand: "coalition_command",
	EventGroupCommand:     "group_command",
	EventMissionCommand:   "mission_command",
	EventMarkAdd:          "mark_add",
	EventMarkChange:       "mark_change",
	EventMarkRemove:       "mark_remove",
}

func (k EventKind) String() string {
	if s, ok := eventKindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Event is one raw message of the event stream. Kind selects which payload
// pointer is set; all others are nil.
type Event struct {
	Time float64
	Kind EventKind

	Birth            *BirthEvent
	MissionStart     *MissionStartEvent
	MissionEnd       *MissionEndEvent
	Connect          *ConnectEvent
	Disconnect       *DisconnectEvent
	PlayerEnterUnit  *PlayerEnterUnitEvent
	PlayerChangeSlot *PlayerChangeSlotEvent
	PlayerLeaveUnit  *PlayerLeaveUnitEvent
	PlayerSendChat   *PlayerSendChatEvent
	PilotDead        *PilotDeadEvent
	CoalitionCommand *CoalitionCommandEvent
	GroupCommand     *GroupCommandEvent
	MissionCommand   *MissionCommandEvent
	MarkAdd          *MarkEvent
	MarkChange       *MarkEvent
	MarkRemove       *MarkEvent
}

// Initiator identifies the entity that caused an event. Unit is nil when
// the initiator is not a unit (for example a scenery object).
type Initiator struct {
	Unit *Unit
}

// BirthEvent fires when a unit spawns into the mission.
type BirthEvent struct {
	Initiator Initiator
	Place     string
}

// MissionStartEvent fires once when the mission begins.
type MissionStartEvent struct{}

// MissionEndEvent fires once when the mission ends.
type MissionEndEvent struct{}

// ConnectEvent fires when a player connects to the multiplayer server.
type ConnectEvent struct {
	ID      uint32
	Name    string
	UCID    string
	Address string
}

// DisconnectEvent fires when a player disconnects.
type DisconnectEvent struct {
	ID     uint32
	Reason string
}

// PlayerEnterUnitEvent fires when the local player enters a unit. The
// server only raises it in single player.
type PlayerEnterUnitEvent struct {
	Initiator Initiator
}

// PlayerChangeSlotEvent fires when a player occupies a different slot.
type PlayerChangeSlotEvent struct {
	PlayerID  uint32
	Coalition Coalition
	SlotID    string
}

// PlayerLeaveUnitEvent fires when the local player leaves a unit. The
// server only raises it in single player.
type PlayerLeaveUnitEvent struct {
	Initiator Initiator
}

// PlayerSendChatEvent carries one chat line.
type PlayerSendChatEvent struct {
	PlayerID uint32
	Message  string
}

// PilotDeadEvent fires when the pilot of a unit dies.
type PilotDeadEvent struct {
	Initiator Initiator
}

// CoalitionCommandEvent fires when a coalition menu command is invoked.
type CoalitionCommandEvent struct {
	Coalition Coalition
	Details   map[string]string
}

// GroupCommandEvent fires when a group menu command is invoked. Details
// carries the payload registered with the command; the connector expects a
// "menuId" entry.
type GroupCommandEvent struct {
	GroupID   uint32
	GroupName string
	Details   map[string]string
}

// MissionCommandEvent fires when a mission-wide menu command is invoked.
type MissionCommandEvent struct {
	Details map[string]string
}

// MarkEvent covers map mark additions, changes and removals.
type MarkEvent struct {
	ID        uint32
	Initiator Initiator
	Coalition Coalition
	Text      string
	Latitude  float64
	Longitude float64
}
