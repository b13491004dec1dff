// Package rpc defines the transport boundary of the connector. An
// implementation typically wraps the generated DCS-gRPC client stubs; the
// repository also ships an in-memory implementation for tests and demos.
//
// All blocking calls take a context. Streams end with io.EOF when the
// server closes them cleanly and with a transport error otherwise; the
// connector treats both outcomes the same way.
package rpc

import (
	"context"

	"github.com/ctrue/dcs-connect/pkg/dcs"
)

// Dialer opens connections to a simulation server.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Connection, error)
}

// Connection groups the per-service clients of one transport channel.
// Close releases the channel; service handles must not be used afterwards.
type Connection interface {
	Mission() MissionService
	Hook() HookService
	Net() NetService
	Trigger() TriggerService
	World() WorldService
	Coalition() CoalitionService
	Close() error
}

// UnitStream is an open server-stream of unit telemetry.
type UnitStream interface {
	// Recv blocks for the next message. Returns io.EOF on clean
	// end-of-stream and a transport error otherwise. A pending Recv is
	// unblocked promptly when the stream's context is cancelled.
	Recv() (dcs.UnitMessage, error)
	Close() error
}

// EventStream is an open server-stream of simulation events.
type EventStream interface {
	Recv() (dcs.Event, error)
	Close() error
}

// MissionService covers mission queries, the two subscription streams and
// the menu-command registrations.
type MissionService interface {
	GetScenarioCurrentTime(ctx context.Context) (float64, error)
	StreamUnits(ctx context.Context, pollRate, maxBackoff uint32) (UnitStream, error)
	StreamEvents(ctx context.Context) (EventStream, error)

	AddCoalitionCommand(ctx context.Context, coalition dcs.Coalition, name string, details map[string]string) (path string, err error)
	RemoveCoalitionCommand(ctx context.Context, coalition dcs.Coalition) error
	AddGroupCommand(ctx context.Context, groupName, name string, details map[string]string) (path string, err error)
	AddGroupCommandSubMenu(ctx context.Context, groupName, name string) (path string, err error)
	RemoveGroupCommand(ctx context.Context, groupName string) error
}

// HookService covers the server-hook environment: mission identity, pause
// control and server flags.
type HookService interface {
	GetMissionName(ctx context.Context) (string, error)
	GetMissionDescription(ctx context.Context) (string, error)
	IsServer(ctx context.Context) (bool, error)
	IsMultiplayer(ctx context.Context) (bool, error)
	SetPaused(ctx context.Context, paused bool) error
	GetPaused(ctx context.Context) (bool, error)
	ReloadCurrentMission(ctx context.Context) error
}

// PlayerRecord is one entry of the multiplayer roster.
type PlayerRecord struct {
	ID            uint32
	Name          string
	UCID          string
	Coalition     dcs.Coalition
	Slot          string
	RemoteAddress string
}

// NetService covers the multiplayer lobby: roster and chat.
type NetService interface {
	GetPlayers(ctx context.Context) ([]PlayerRecord, error)
	SendChat(ctx context.Context, coalition dcs.Coalition, message string) error
	SendChatTo(ctx context.Context, playerID uint32, message string) error
}

// TriggerService covers the world-effect triggers: text, pyrotechnics and
// map marks.
type TriggerService interface {
	OutText(ctx context.Context, text string, displayTime int32, clearView bool) error
	OutTextForCoalition(ctx context.Context, coalition dcs.Coalition, text string, displayTime int32) error
	OutTextForGroup(ctx context.Context, groupID uint32, text string, displayTime int32) error
	OutTextForUnit(ctx context.Context, unitID uint32, text string, displayTime int32) error
	Smoke(ctx context.Context, color dcs.SmokeColor, lat, lon float64) error
	IlluminationBomb(ctx context.Context, lat, lon float64, alt float64, power uint32) error
	Explosion(ctx context.Context, lat, lon float64, power uint32) error
	MarkToAll(ctx context.Context, message, text string, lat, lon float64, readOnly bool) (markID uint32, err error)
	RemoveMark(ctx context.Context, markID uint32) error
}

// WorldService covers world-level queries.
type WorldService interface {
	GetTheatre(ctx context.Context) (string, error)
}

// GroupRecord is one entry of the group roster.
type GroupRecord struct {
	ID        uint32
	Name      string
	Coalition dcs.Coalition
	Category  dcs.GroupCategory
}

// CoalitionService covers coalition-level queries.
type CoalitionService interface {
	GetGroups(ctx context.Context, coalition dcs.Coalition, category dcs.GroupCategory) ([]GroupRecord, error)
}
