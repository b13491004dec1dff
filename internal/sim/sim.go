// Package sim is an in-memory rpc.Dialer backed by a scripted world:
// a handful of aircraft flying great-circle legs, a small multiplayer
// roster and a trickle of chat. The console uses it for demo mode so the
// whole pipeline can run without a live server.
package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ctrue/dcs-connect/internal/geo"
	"github.com/ctrue/dcs-connect/pkg/dcs"
	"github.com/ctrue/dcs-connect/pkg/rpc"
)

// Config tunes the scripted world. Zero values fall back to defaults.
type Config struct {
	UnitCount   int
	Tick        time.Duration
	Theatre     string
	MissionName string

	// FailAfter, when positive, tears the streams down that long after
	// dial. Used to demonstrate automatic reconnection.
	FailAfter time.Duration
}

func (c Config) withDefaults() Config {
	if c.UnitCount <= 0 {
		c.UnitCount = 4
	}
	if c.Tick <= 0 {
		c.Tick = time.Second
	}
	if c.Theatre == "" {
		c.Theatre = "Caucasus"
	}
	if c.MissionName == "" {
		c.MissionName = "Scripted Sortie"
	}
	return c
}

// Dialer builds a fresh scripted world per dial.
type Dialer struct {
	cfg Config
}

// New creates a scripted dialer.
func New(cfg Config) *Dialer {
	return &Dialer{cfg: cfg.withDefaults()}
}

// Dial never fails; the address only shows up in the scripted metadata.
func (d *Dialer) Dial(ctx context.Context, addr string) (rpc.Connection, error) {
	c := &conn{
		cfg:  d.cfg,
		addr: addr,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	c.seed()

	if d.cfg.FailAfter > 0 {
		c.failTimer = time.AfterFunc(d.cfg.FailAfter, func() {
			c.fail(errors.New("scripted stream failure"))
		})
	}
	return c, nil
}

type conn struct {
	cfg  Config
	addr string

	mu          sync.Mutex
	rng         *rand.Rand
	units       []dcs.Unit
	players     []rpc.PlayerRecord
	missionTime float64
	paused      bool

	failErr   error
	failedCh  chan struct{}
	failOnce  sync.Once
	closeOnce sync.Once
	closedCh  chan struct{}
	failTimer *time.Timer

	markSeq atomic.Uint32
}

// seed places the aircraft on a spread of headings around a Caucasus
// anchor point, with one flown by a scripted player.
func (c *conn) seed() {
	c.closedCh = make(chan struct{})
	c.failedCh = make(chan struct{})
	c.missionTime = 28800 // 08:00

	for i := 0; i < c.cfg.UnitCount; i++ {
		u := dcs.Unit{
			ID:            uint32(100 + i),
			Name:          fmt.Sprintf("Enfield-%d", i+1),
			Callsign:      fmt.Sprintf("Enfield %d-1", i+1),
			Type:          "F/A-18C",
			GroupID:       uint32(10 + i),
			GroupName:     fmt.Sprintf("Enfield-%d", i+1),
			GroupCategory: dcs.GroupCategoryAirplane,
			NumberInGroup: 1,
			Coalition:     dcs.CoalitionBlue,
			Latitude:      42.2 + c.rng.Float64()*0.5,
			Longitude:     41.8 + c.rng.Float64()*0.8,
			Altitude:      4000 + c.rng.Float64()*3000,
			Heading:       c.rng.Float64() * 360,
			Speed:         200 + c.rng.Float64()*80,
		}
		if i == 0 {
			u.PlayerName = "Viper"
		}
		c.units = append(c.units, u)
	}

	c.players = []rpc.PlayerRecord{
		{ID: 2, Name: "Viper", UCID: "scripted-viper", Coalition: dcs.CoalitionBlue, Slot: c.units[0].Name},
	}
}

func (c *conn) fail(err error) {
	c.failOnce.Do(func() {
		c.mu.Lock()
		c.failErr = err
		c.mu.Unlock()
		close(c.failedCh)
	})
}

func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		if c.failTimer != nil {
			c.failTimer.Stop()
		}
		close(c.closedCh)
	})
	return nil
}

// advance flies every unit one tick along its heading and drifts the
// heading a little so the flight paths curve.
func (c *conn) advance() []dcs.UnitMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.missionTime += c.cfg.Tick.Seconds()
	msgs := make([]dcs.UnitMessage, 0, len(c.units))
	for i := range c.units {
		u := &c.units[i]
		u.Latitude, u.Longitude = geo.Destination(u.Latitude, u.Longitude, u.Heading, u.Speed*c.cfg.Tick.Seconds())
		u.Heading += c.rng.Float64()*4 - 2
		if u.Heading < 0 {
			u.Heading += 360
		} else if u.Heading >= 360 {
			u.Heading -= 360
		}
		copied := *u
		msgs = append(msgs, dcs.UnitMessage{Time: c.missionTime, Unit: &copied})
	}
	return msgs
}

func (c *conn) now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.missionTime
}

func (c *conn) streamErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failErr != nil {
		return c.failErr
	}
	return io.EOF
}

func (c *conn) Mission() rpc.MissionService     { return (*missionService)(c) }
func (c *conn) Hook() rpc.HookService           { return (*hookService)(c) }
func (c *conn) Net() rpc.NetService             { return (*netService)(c) }
func (c *conn) Trigger() rpc.TriggerService     { return (*triggerService)(c) }
func (c *conn) World() rpc.WorldService         { return (*worldService)(c) }
func (c *conn) Coalition() rpc.CoalitionService { return (*coalitionService)(c) }

// unitStream produces one burst of snapshots per tick.
type unitStream struct {
	c       *conn
	ctx     context.Context
	ticker  *time.Ticker
	pending []dcs.UnitMessage
}

func (s *unitStream) Recv() (dcs.UnitMessage, error) {
	for len(s.pending) == 0 {
		select {
		case <-s.ctx.Done():
			return dcs.UnitMessage{}, s.ctx.Err()
		case <-s.c.closedCh:
			return dcs.UnitMessage{}, io.EOF
		case <-s.c.failedCh:
			return dcs.UnitMessage{}, s.c.streamErr()
		case <-s.ticker.C:
			s.pending = s.c.advance()
		}
	}
	msg := s.pending[0]
	s.pending = s.pending[1:]
	return msg, nil
}

func (s *unitStream) Close() error {
	s.ticker.Stop()
	return nil
}

// eventStream emits the scripted player's connect once, then an
// occasional chat line.
type eventStream struct {
	c       *conn
	ctx     context.Context
	ticker  *time.Ticker
	pending []dcs.Event
	ticks   int
}

func (s *eventStream) Recv() (dcs.Event, error) {
	for len(s.pending) == 0 {
		select {
		case <-s.ctx.Done():
			return dcs.Event{}, s.ctx.Err()
		case <-s.c.closedCh:
			return dcs.Event{}, io.EOF
		case <-s.c.failedCh:
			return dcs.Event{}, s.c.streamErr()
		case <-s.ticker.C:
			s.ticks++
			if s.ticks%10 == 0 {
				s.pending = append(s.pending, dcs.Event{
					Time: s.c.now(),
					Kind: dcs.EventPlayerSendChat,
					PlayerSendChat: &dcs.PlayerSendChatEvent{
						PlayerID: 2,
						Message:  fmt.Sprintf("checking in, tick %d", s.ticks),
					},
				})
			}
		}
	}
	e := s.pending[0]
	s.pending = s.pending[1:]
	return e, nil
}

func (s *eventStream) Close() error {
	s.ticker.Stop()
	return nil
}

type missionService conn

func (m *missionService) GetScenarioCurrentTime(ctx context.Context) (float64, error) {
	return (*conn)(m).now(), nil
}

func (m *missionService) StreamUnits(ctx context.Context, pollRate, maxBackoff uint32) (rpc.UnitStream, error) {
	c := (*conn)(m)
	return &unitStream{c: c, ctx: ctx, ticker: time.NewTicker(c.cfg.Tick)}, nil
}

func (m *missionService) StreamEvents(ctx context.Context) (rpc.EventStream, error) {
	c := (*conn)(m)
	s := &eventStream{c: c, ctx: ctx, ticker: time.NewTicker(c.cfg.Tick)}
	s.pending = append(s.pending, dcs.Event{
		Time: c.now(),
		Kind: dcs.EventConnect,
		Connect: &dcs.ConnectEvent{
			ID:      2,
			Name:    "Viper",
			UCID:    "scripted-viper",
			Address: "198.51.100.7",
		},
	})
	return s, nil
}

func (m *missionService) AddCoalitionCommand(ctx context.Context, coalition dcs.Coalition, name string, details map[string]string) (string, error) {
	return "F10/" + name, nil
}

func (m *missionService) RemoveCoalitionCommand(ctx context.Context, coalition dcs.Coalition) error {
	return nil
}

func (m *missionService) AddGroupCommand(ctx context.Context, groupName, name string, details map[string]string) (string, error) {
	return "F10/" + groupName + "/" + name, nil
}

func (m *missionService) AddGroupCommandSubMenu(ctx context.Context, groupName, name string) (string, error) {
	return "F10/" + groupName + "/" + name, nil
}

func (m *missionService) RemoveGroupCommand(ctx context.Context, groupName string) error {
	return nil
}

type hookService conn

func (h *hookService) GetMissionName(ctx context.Context) (string, error) {
	return (*conn)(h).cfg.MissionName, nil
}

func (h *hookService) GetMissionDescription(ctx context.Context) (string, error) {
	return "Scripted demo mission generated in memory", nil
}

func (h *hookService) IsServer(ctx context.Context) (bool, error)      { return true, nil }
func (h *hookService) IsMultiplayer(ctx context.Context) (bool, error) { return true, nil }

func (h *hookService) SetPaused(ctx context.Context, paused bool) error {
	c := (*conn)(h)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = paused
	return nil
}

func (h *hookService) GetPaused(ctx context.Context) (bool, error) {
	c := (*conn)(h)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused, nil
}

func (h *hookService) ReloadCurrentMission(ctx context.Context) error { return nil }

type netService conn

func (n *netService) GetPlayers(ctx context.Context) ([]rpc.PlayerRecord, error) {
	c := (*conn)(n)
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]rpc.PlayerRecord(nil), c.players...), nil
}

func (n *netService) SendChat(ctx context.Context, coalition dcs.Coalition, message string) error {
	return nil
}

func (n *netService) SendChatTo(ctx context.Context, playerID uint32, message string) error {
	return nil
}

type triggerService conn

func (t *triggerService) OutText(ctx context.Context, text string, displayTime int32, clearView bool) error {
	return nil
}

func (t *triggerService) OutTextForCoalition(ctx context.Context, coalition dcs.Coalition, text string, displayTime int32) error {
	return nil
}

func (t *triggerService) OutTextForGroup(ctx context.Context, groupID uint32, text string, displayTime int32) error {
	return nil
}

func (t *triggerService) OutTextForUnit(ctx context.Context, unitID uint32, text string, displayTime int32) error {
	return nil
}

func (t *triggerService) Smoke(ctx context.Context, color dcs.SmokeColor, lat, lon float64) error {
	return nil
}

func (t *triggerService) IlluminationBomb(ctx context.Context, lat, lon, alt float64, power uint32) error {
	return nil
}

func (t *triggerService) Explosion(ctx context.Context, lat, lon float64, power uint32) error {
	return nil
}

func (t *triggerService) MarkToAll(ctx context.Context, message, text string, lat, lon float64, readOnly bool) (uint32, error) {
	return (*conn)(t).markSeq.Add(1), nil
}

func (t *triggerService) RemoveMark(ctx context.Context, markID uint32) error { return nil }

type worldService conn

func (w *worldService) GetTheatre(ctx context.Context) (string, error) {
	return (*conn)(w).cfg.Theatre, nil
}

type coalitionService conn

func (co *coalitionService) GetGroups(ctx context.Context, coalition dcs.Coalition, category dcs.GroupCategory) ([]rpc.GroupRecord, error) {
	c := (*conn)(co)
	c.mu.Lock()
	defer c.mu.Unlock()
	groups := make([]rpc.GroupRecord, 0, len(c.units))
	for _, u := range c.units {
		groups = append(groups, rpc.GroupRecord{
			ID:        u.GroupID,
			Name:      u.GroupName,
			Coalition: u.Coalition,
			Category:  u.GroupCategory,
		})
	}
	return groups, nil
}
