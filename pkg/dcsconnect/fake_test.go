package dcsconnect

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/ctrue/dcs-connect/pkg/dcs"
	"github.com/ctrue/dcs-connect/pkg/rpc"
)

// fakeDialer is a scripted in-memory transport. Tests flip availability,
// feed the streams and inspect what commands reached the server.
type fakeDialer struct {
	mu        sync.Mutex
	available bool
	blocking  bool
	dials     int
	conns     []*fakeConn

	theatre     string
	missionName string
	players     []rpc.PlayerRecord
	groups      []rpc.GroupRecord
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		available:   true,
		theatre:     "Caucasus",
		missionName: "Operation Test",
		players: []rpc.PlayerRecord{
			{ID: 1, Name: "Alice", UCID: "ucid-1", Slot: "a"},
		},
		groups: []rpc.GroupRecord{
			{ID: 9, Name: "Aerial-1", Coalition: dcs.CoalitionBlue, Category: dcs.GroupCategoryAirplane},
		},
	}
}

func (d *fakeDialer) setAvailable(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.available = v
}

// setBlocking makes Dial hang until its context is cancelled, standing
// in for a server that accepts the TCP connection but never answers.
func (d *fakeDialer) setBlocking(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blocking = v
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) lastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) Dial(ctx context.Context, addr string) (rpc.Connection, error) {
	d.mu.Lock()
	d.dials++
	available, blocking := d.available, d.blocking
	d.mu.Unlock()

	if blocking {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if !available {
		return nil, rpc.ErrUnavailable
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	conn := newFakeConn(d)
	d.conns = append(d.conns, conn)
	return conn, nil
}

type fakeConn struct {
	d           *fakeDialer
	closed      atomic.Bool
	unitsOpened atomic.Bool

	units  *fakeUnitStream
	events *fakeEventStream

	mu        sync.Mutex
	chatLines []string
	paused    bool
}

func newFakeConn(d *fakeDialer) *fakeConn {
	return &fakeConn{
		d:      d,
		units:  newFakeUnitStream(),
		events: newFakeEventStream(),
	}
}

func (c *fakeConn) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.units.end(errors.New("transport closed"))
		c.events.end(errors.New("transport closed"))
	}
	return nil
}

func (c *fakeConn) chat() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.chatLines...)
}

func (c *fakeConn) Mission() rpc.MissionService     { return (*fakeMission)(c) }
func (c *fakeConn) Hook() rpc.HookService           { return (*fakeHook)(c) }
func (c *fakeConn) Net() rpc.NetService             { return (*fakeNet)(c) }
func (c *fakeConn) Trigger() rpc.TriggerService     { return (*fakeTrigger)(c) }
func (c *fakeConn) World() rpc.WorldService         { return (*fakeWorld)(c) }
func (c *fakeConn) Coalition() rpc.CoalitionService { return (*fakeCoalition)(c) }

// fakeUnitStream delivers scripted telemetry. end makes Recv return the
// given error once the queued messages are drained.
type fakeUnitStream struct {
	msgs    chan dcs.UnitMessage
	done    chan struct{}
	endOnce sync.Once

	mu  sync.Mutex
	err error
}

func newFakeUnitStream() *fakeUnitStream {
	return &fakeUnitStream{
		msgs: make(chan dcs.UnitMessage, 64),
		done: make(chan struct{}),
	}
}

func (s *fakeUnitStream) push(msg dcs.UnitMessage) {
	s.msgs <- msg
}

func (s *fakeUnitStream) end(err error) {
	s.endOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *fakeUnitStream) Recv() (dcs.UnitMessage, error) {
	// Drain queued messages before reporting the end of the stream.
	select {
	case m := <-s.msgs:
		return m, nil
	default:
	}
	select {
	case m := <-s.msgs:
		return m, nil
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.err == nil {
			return dcs.UnitMessage{}, io.EOF
		}
		return dcs.UnitMessage{}, s.err
	}
}

func (s *fakeUnitStream) Close() error {
	s.end(io.EOF)
	return nil
}

type fakeEventStream struct {
	msgs    chan dcs.Event
	done    chan struct{}
	endOnce sync.Once

	mu  sync.Mutex
	err error
}

func newFakeEventStream() *fakeEventStream {
	return &fakeEventStream{
		msgs: make(chan dcs.Event, 64),
		done: make(chan struct{}),
	}
}

func (s *fakeEventStream) push(e dcs.Event) {
	s.msgs <- e
}

func (s *fakeEventStream) end(err error) {
	s.endOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *fakeEventStream) Recv() (dcs.Event, error) {
	select {
	case e := <-s.msgs:
		return e, nil
	default:
	}
	select {
	case e := <-s.msgs:
		return e, nil
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.err == nil {
			return dcs.Event{}, io.EOF
		}
		return dcs.Event{}, s.err
	}
}

func (s *fakeEventStream) Close() error {
	s.end(io.EOF)
	return nil
}

type fakeMission fakeConn

func (m *fakeMission) GetScenarioCurrentTime(ctx context.Context) (float64, error) {
	return 43200, nil
}

func (m *fakeMission) StreamUnits(ctx context.Context, pollRate, maxBackoff uint32) (rpc.UnitStream, error) {
	c := (*fakeConn)(m)
	c.unitsOpened.Store(true)
	return c.units, nil
}

func (m *fakeMission) StreamEvents(ctx context.Context) (rpc.EventStream, error) {
	return (*fakeConn)(m).events, nil
}

func (m *fakeMission) AddCoalitionCommand(ctx context.Context, coalition dcs.Coalition, name string, details map[string]string) (string, error) {
	return "F10/" + name, nil
}

func (m *fakeMission) RemoveCoalitionCommand(ctx context.Context, coalition dcs.Coalition) error {
	return nil
}

func (m *fakeMission) AddGroupCommand(ctx context.Context, groupName, name string, details map[string]string) (string, error) {
	return "F10/" + groupName + "/" + name, nil
}

func (m *fakeMission) AddGroupCommandSubMenu(ctx context.Context, groupName, name string) (string, error) {
	return "F10/" + groupName + "/" + name, nil
}

func (m *fakeMission) RemoveGroupCommand(ctx context.Context, groupName string) error {
	return nil
}

type fakeHook fakeConn

func (h *fakeHook) GetMissionName(ctx context.Context) (string, error) {
	return (*fakeConn)(h).d.missionName, nil
}

func (h *fakeHook) GetMissionDescription(ctx context.Context) (string, error) {
	return "scripted mission", nil
}

func (h *fakeHook) IsServer(ctx context.Context) (bool, error)      { return true, nil }
func (h *fakeHook) IsMultiplayer(ctx context.Context) (bool, error) { return true, nil }

func (h *fakeHook) SetPaused(ctx context.Context, paused bool) error {
	c := (*fakeConn)(h)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = paused
	return nil
}

func (h *fakeHook) GetPaused(ctx context.Context) (bool, error) {
	c := (*fakeConn)(h)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused, nil
}

func (h *fakeHook) ReloadCurrentMission(ctx context.Context) error { return nil }

type fakeNet fakeConn

func (n *fakeNet) GetPlayers(ctx context.Context) ([]rpc.PlayerRecord, error) {
	return (*fakeConn)(n).d.players, nil
}

func (n *fakeNet) SendChat(ctx context.Context, coalition dcs.Coalition, message string) error {
	c := (*fakeConn)(n)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chatLines = append(c.chatLines, message)
	return nil
}

func (n *fakeNet) SendChatTo(ctx context.Context, playerID uint32, message string) error {
	c := (*fakeConn)(n)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chatLines = append(c.chatLines, message)
	return nil
}

type fakeTrigger fakeConn

func (t *fakeTrigger) OutText(ctx context.Context, text string, displayTime int32, clearView bool) error {
	return nil
}

func (t *fakeTrigger) OutTextForCoalition(ctx context.Context, coalition dcs.Coalition, text string, displayTime int32) error {
	return nil
}

func (t *fakeTrigger) OutTextForGroup(ctx context.Context, groupID uint32, text string, displayTime int32) error {
	return nil
}

func (t *fakeTrigger) OutTextForUnit(ctx context.Context, unitID uint32, text string, displayTime int32) error {
	return nil
}

func (t *fakeTrigger) Smoke(ctx context.Context, color dcs.SmokeColor, lat, lon float64) error {
	return nil
}

func (t *fakeTrigger) IlluminationBomb(ctx context.Context, lat, lon, alt float64, power uint32) error {
	return nil
}

func (t *fakeTrigger) Explosion(ctx context.Context, lat, lon float64, power uint32) error {
	return nil
}

func (t *fakeTrigger) MarkToAll(ctx context.Context, message, text string, lat, lon float64, readOnly bool) (uint32, error) {
	return 42, nil
}

func (t *fakeTrigger) RemoveMark(ctx context.Context, markID uint32) error { return nil }

type fakeWorld fakeConn

func (w *fakeWorld) GetTheatre(ctx context.Context) (string, error) {
	return (*fakeConn)(w).d.theatre, nil
}

type fakeCoalition fakeConn

func (co *fakeCoalition) GetGroups(ctx context.Context, coalition dcs.Coalition, category dcs.GroupCategory) ([]rpc.GroupRecord, error) {
	return (*fakeConn)(co).d.groups, nil
}
