// Package publish forwards connector notifications to NATS subjects so
// other services can consume the live feed without holding their own
// server connection. Payloads are JSON; publishes are fire-and-forget.
package publish

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/ctrue/dcs-connect/internal/config"
	"github.com/ctrue/dcs-connect/pkg/dcs"
)

// Publisher bridges connector notifications onto NATS subjects.
type Publisher struct {
	nc     *nats.Conn
	prefix string
	log    zerolog.Logger
}

// Connect dials the NATS server from the given config.
func Connect(log zerolog.Logger, cfg config.NATSConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("dcs-connect"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", cfg.URL, err)
	}

	log.Info().Str("url", cfg.URL).Str("prefix", cfg.SubjectPrefix).Msg("Connected to NATS")
	return &Publisher{nc: nc, prefix: cfg.SubjectPrefix, log: log}, nil
}

// Close drains pending publishes and closes the connection.
func (p *Publisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.log.Debug().Err(err).Msg("Draining NATS connection")
		p.nc.Close()
	}
}

func (p *Publisher) subject(suffix string) string {
	return p.prefix + "." + suffix
}

func (p *Publisher) publish(subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		p.log.Warn().Err(err).Str("subject", subject).Msg("Failed to encode notification")
		return
	}
	if err := p.nc.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).Str("subject", subject).Msg("Failed to publish notification")
	}
}

// UnitUpdated publishes a telemetry update. Removals go to a separate
// subject so consumers can subscribe to one without the other.
func (p *Publisher) UnitUpdated(u dcs.UnitUpdate) {
	if u.Deleted() {
		p.publish(p.subject("units.deleted"), map[string]any{
			"missionTime": u.Time,
			"unitId":      u.GoneID,
			"unitName":    u.GoneName,
		})
		return
	}
	p.publish(p.subject("units.updated"), map[string]any{
		"missionTime": u.Time,
		"unit":        u.Unit,
	})
}

// Occupancy publishes an enter/leave transition.
func (p *Publisher) Occupancy(change dcs.PlayerInUnitChange) {
	p.publish(p.subject("players.occupancy"), map[string]any{
		"unitId":     change.UnitID,
		"change":     change.Change.String(),
		"playerId":   change.Player.ID,
		"playerName": change.Player.Name,
	})
}

// PlayersChanged publishes the roster snapshot after a mutation.
func (p *Publisher) PlayersChanged(players []dcs.Player) {
	p.publish(p.subject("players.changed"), map[string]any{
		"players": players,
	})
}

// Chat publishes a chat line.
func (p *Publisher) Chat(msg dcs.ChatMessage) {
	p.publish(p.subject("chat"), msg)
}

// Status publishes a connection status transition.
func (p *Publisher) Status(change dcs.StatusChange) {
	p.publish(p.subject("status"), change)
}

// GroupCommand publishes an executed menu command.
func (p *Publisher) GroupCommand(cmd dcs.GroupCommandExecuted) {
	p.publish(p.subject("commands.group"), cmd)
}

// Event publishes a raw simulation event under a per-kind subject.
func (p *Publisher) Event(e dcs.Event) {
	p.publish(p.subject("events."+e.Kind.String()), e)
}
