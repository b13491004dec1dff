package recorder

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseModels lists every struct that maps to a table in the recording
// schema.
var DatabaseModels = []interface{}{
	&Session{},
	&UnitState{},
	&UnitTrack{},
	&SimEvent{},
	&ChatLine{},
	&OccupancyRow{},
}

// Session is one recorded connection epoch against a server.
type Session struct {
	gorm.Model
	ServerAddr         string       `json:"serverAddr" gorm:"size:127"`
	Theatre            string       `json:"theatre" gorm:"size:127"`
	MissionName        string       `json:"missionName" gorm:"size:200"`
	MissionDescription string       `json:"missionDescription" gorm:"size:2000"`
	StartTime          time.Time    `json:"startTime" gorm:"index:idx_session_start"`
	EndTime            sql.NullTime `json:"endTime"`

	UnitStates    []UnitState
	UnitTracks    []UnitTrack
	SimEvents     []SimEvent
	ChatLines     []ChatLine
	OccupancyRows []OccupancyRow
}

func (*Session) TableName() string {
	return "sessions"
}

// UnitState is one kinematic snapshot of a unit, positioned in EPSG:3857
// for direct rendering on web map tiles.
type UnitState struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_unitstate_session_id"`
	Session   Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`

	MissionTime float64 `json:"missionTime" gorm:"index:idx_unitstate_mission_time"`
	UnitID      uint32  `json:"unitId" gorm:"index:idx_unitstate_unit_id"`
	UnitName    string  `json:"unitName" gorm:"size:127"`
	TypeName    string  `json:"typeName" gorm:"size:64"`
	PlayerName  string  `json:"playerName" gorm:"size:64"`
	GroupName   string  `json:"groupName" gorm:"size:127"`
	Coalition   string  `json:"coalition" gorm:"size:16"`

	Position     geom.Point `json:"position"` // projected, with altitude as Z
	ElevationASL float32    `json:"elevationASL"`
	Heading      uint16     `json:"heading" gorm:"default:0"`
	Speed        float32    `json:"speed"`
}

func (*UnitState) TableName() string {
	return "unit_states"
}

// UnitTrack is the flight path of one unit over a whole session,
// flattened to a projected line string when the session ends.
type UnitTrack struct {
	ID        uint    `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID uint    `json:"sessionId" gorm:"index:idx_unittrack_session_id"`
	Session   Session `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`

	UnitID   uint32          `json:"unitId" gorm:"index:idx_unittrack_unit_id"`
	UnitName string          `json:"unitName" gorm:"size:127"`
	Samples  int             `json:"samples"`
	Path     geom.LineString `json:"path"` // projected
}

func (*UnitTrack) TableName() string {
	return "unit_tracks"
}

// SimEvent is one simulation event with its payload flattened to JSON.
type SimEvent struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_simevent_session_id"`
	Session   Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`

	MissionTime float64        `json:"missionTime"`
	Kind        string         `json:"kind" gorm:"size:32;index:idx_simevent_kind"`
	Payload     datatypes.JSON `json:"payload"`
}

func (*SimEvent) TableName() string {
	return "sim_events"
}

// ChatLine is one chat message attributed to a known player.
type ChatLine struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_chatline_session_id"`
	Session   Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`

	PlayerID   uint32 `json:"playerId"`
	PlayerName string `json:"playerName" gorm:"size:64"`
	Message    string `json:"message" gorm:"size:2000"`
}

func (*ChatLine) TableName() string {
	return "chat_lines"
}

// OccupancyRow is one enter/leave transition of a player and a unit.
type OccupancyRow struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_occupancy_session_id"`
	Session   Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`

	UnitID     uint32 `json:"unitId" gorm:"index:idx_occupancy_unit_id"`
	PlayerName string `json:"playerName" gorm:"size:64"`
	Change     string `json:"change" gorm:"size:16"`
}

func (*OccupancyRow) TableName() string {
	return "occupancy_rows"
}
