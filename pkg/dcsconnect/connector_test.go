package dcsconnect

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctrue/dcs-connect/pkg/dcs"
)

const (
	waitFor = 2 * time.Second
	tick    = 2 * time.Millisecond
)

func newTestConnector(t *testing.T, d *fakeDialer) *Connector {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := New(Config{
		ReconnectInterval: 10 * time.Millisecond,
		JoinTimeout:       50 * time.Millisecond,
		UnitPollRate:      1,
	}, d, logger)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func waitConnected(t *testing.T, c *Connector) {
	t.Helper()
	require.Eventually(t, c.IsConnected, waitFor, tick, "connector never reached connected state")
}

// recorder collects notifications across goroutines.
type recorder[T any] struct {
	mu    sync.Mutex
	items []T
}

func (r *recorder[T]) add(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, v)
}

func (r *recorder[T]) all() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.items...)
}

func (r *recorder[T]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func TestConnectorConnectsAndVerifies(t *testing.T) {
	d := newFakeDialer()
	c := newTestConnector(t, d)

	c.Connect("127.0.0.1", 10051, "test-client")
	waitConnected(t, c)

	info := c.ServerInfo()
	assert.Equal(t, "Caucasus", info.Theatre)
	assert.Equal(t, "Operation Test", info.MissionName)
	assert.True(t, info.IsServer)
	assert.True(t, info.IsMultiplayer)
	assert.Equal(t, float64(43200), info.MissionTime)

	groups := c.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, "Aerial-1", groups[0].Name)

	players := c.Players()
	require.Len(t, players, 1)
	assert.Equal(t, "Alice", players[0].Name)
	assert.True(t, players[0].Connected)
}

func TestConnectorConnectSameTargetIsNoOp(t *testing.T) {
	d := newFakeDialer()
	c := newTestConnector(t, d)

	c.Connect("127.0.0.1", 10051, "test-client")
	waitConnected(t, c)

	c.Connect("127.0.0.1", 10051, "test-client")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, d.dialCount())
	assert.True(t, c.IsConnected())
}

func TestConnectorRetriesUntilServerAvailable(t *testing.T) {
	d := newFakeDialer()
	d.setAvailable(false)
	c := newTestConnector(t, d)

	c.Connect("127.0.0.1", 10051, "test-client")
	require.Eventually(t, func() bool { return d.dialCount() >= 3 }, waitFor, tick)
	assert.False(t, c.IsConnected())

	d.setAvailable(true)
	waitConnected(t, c)
}

func TestConnectorDisconnectStopsReconnecting(t *testing.T) {
	d := newFakeDialer()
	c := newTestConnector(t, d)

	c.Connect("127.0.0.1", 10051, "test-client")
	waitConnected(t, c)

	c.Disconnect()
	assert.False(t, c.IsConnected())
	assert.Equal(t, StateDisconnected, c.State())

	dials := d.dialCount()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, dials, d.dialCount(), "reconnect timer should be inert after Disconnect")

	// Idempotent.
	c.Disconnect()
	assert.False(t, c.IsConnected())
}

func TestConnectorDisconnectClearsState(t *testing.T) {
	d := newFakeDialer()
	c := newTestConnector(t, d)

	c.Connect("127.0.0.1", 10051, "test-client")
	waitConnected(t, c)

	d.lastConn().units.push(dcs.UnitMessage{Unit: &dcs.Unit{ID: 7, Name: "unit-7"}})
	require.Eventually(t, func() bool { return len(c.Units()) == 1 }, waitFor, tick)

	c.Disconnect()
	assert.Empty(t, c.Units())
	assert.Empty(t, c.Players())
	assert.Empty(t, c.Groups())
	assert.Equal(t, dcs.ServerInfo{}, c.ServerInfo())
}

func TestConnectorReconnectsAfterStreamFailure(t *testing.T) {
	d := newFakeDialer()
	c := newTestConnector(t, d)

	statuses := &recorder[dcs.StatusChange]{}
	c.OnStatusChange(statuses.add)

	c.Connect("127.0.0.1", 10051, "test-client")
	waitConnected(t, c)
	first := d.lastConn()

	first.units.end(errors.New("stream torn down"))

	require.Eventually(t, func() bool {
		return c.IsConnected() && d.lastConn() != first
	}, waitFor, tick, "connector never re-established the session")

	got := statuses.all()
	require.GreaterOrEqual(t, len(got), 3)
	assert.True(t, got[0].Connected)
	assert.False(t, got[1].Connected)
	assert.Contains(t, got[1].Reason, "unit stream")
	assert.True(t, got[2].Connected)
}

func TestConnectorUnitUpdatesAndOccupancy(t *testing.T) {
	d := newFakeDialer()
	c := newTestConnector(t, d)

	updates := &recorder[dcs.UnitUpdate]{}
	occupancy := &recorder[dcs.PlayerInUnitChange]{}
	c.OnUnitUpdate(updates.add)
	c.OnPlayerInUnitChange(occupancy.add)

	c.Connect("127.0.0.1", 10051, "test-client")
	waitConnected(t, c)
	conn := d.lastConn()

	// Unmanned unit appears.
	conn.units.push(dcs.UnitMessage{Time: 10, Unit: &dcs.Unit{ID: 7, Name: "unit-7", Type: "F-16C"}})
	require.Eventually(t, func() bool { return updates.len() == 1 }, waitFor, tick)
	assert.Zero(t, occupancy.len())

	// Bob climbs in. He is not on the lobby roster, so a local player
	// record is created for him.
	conn.units.push(dcs.UnitMessage{Time: 11, Unit: &dcs.Unit{ID: 7, Name: "unit-7", Type: "F-16C", PlayerName: "Bob"}})
	require.Eventually(t, func() bool { return occupancy.len() == 1 }, waitFor, tick)

	entered := occupancy.all()[0]
	assert.Equal(t, dcs.PlayerEnteredUnit, entered.Change)
	assert.Equal(t, uint32(7), entered.UnitID)
	assert.Equal(t, "Bob", entered.Player.Name)
	assert.Equal(t, dcs.LocalPlayerID, entered.Player.ID)
	assert.Equal(t, dcs.PlayerLocal, entered.Player.Kind)

	unit, ok := c.Unit(7)
	require.True(t, ok)
	assert.Equal(t, "Bob", unit.PlayerName)

	// The unit disappears while manned. Bob leaves before the removal
	// notification goes out.
	conn.units.push(dcs.UnitMessage{Time: 12, Gone: &dcs.UnitGone{ID: 7, Name: "unit-7"}})
	require.Eventually(t, func() bool { return occupancy.len() == 2 }, waitFor, tick)

	left := occupancy.all()[1]
	assert.Equal(t, dcs.PlayerLeftUnit, left.Change)
	assert.Equal(t, "Bob", left.Player.Name)

	require.Eventually(t, func() bool { return updates.len() == 3 }, waitFor, tick)
	last := updates.all()[2]
	assert.True(t, last.Deleted())
	assert.Equal(t, uint32(7), last.GoneID)
	assert.Equal(t, "unit-7", last.GoneName)

	_, ok = c.Unit(7)
	assert.False(t, ok)
}

func TestConnectorZeroPollRateSkipsUnitStream(t *testing.T) {
	d := newFakeDialer()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := New(Config{
		ReconnectInterval: 10 * time.Millisecond,
		JoinTimeout:       50 * time.Millisecond,
	}, d, logger)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	chats := &recorder[dcs.ChatMessage]{}
	c.OnChatMessage(chats.add)

	c.Connect("127.0.0.1", 10051, "test-client")
	waitConnected(t, c)

	conn := d.lastConn()
	assert.False(t, conn.unitsOpened.Load())

	// The event stream still runs without unit telemetry.
	conn.events.push(dcs.Event{Kind: dcs.EventPlayerSendChat, PlayerSendChat: &dcs.PlayerSendChatEvent{
		PlayerID: 1, Message: "radio check",
	}})
	require.Eventually(t, func() bool { return chats.len() == 1 }, waitFor, tick)
	assert.Empty(t, c.Units())
}

func TestConnectorMissionTimeIsMonotonic(t *testing.T) {
	d := newFakeDialer()
	c := newTestConnector(t, d)

	c.Connect("127.0.0.1", 10051, "test-client")
	waitConnected(t, c)
	conn := d.lastConn()

	conn.units.push(dcs.UnitMessage{Time: 43300, Unit: &dcs.Unit{ID: 1, Name: "u1"}})
	require.Eventually(t, func() bool { return c.ServerInfo().MissionTime == 43300 }, waitFor, tick)

	// A message with an older timestamp must not rewind the clock.
	conn.units.push(dcs.UnitMessage{Time: 43250, Unit: &dcs.Unit{ID: 2, Name: "u2"}})
	require.Eventually(t, func() bool { return len(c.Units()) == 2 }, waitFor, tick)
	assert.Equal(t, float64(43300), c.ServerInfo().MissionTime)
}

func TestConnectorPlayerEvents(t *testing.T) {
	d := newFakeDialer()
	c := newTestConnector(t, d)

	chats := &recorder[dcs.ChatMessage]{}
	raw := &recorder[dcs.Event]{}
	c.OnChatMessage(chats.add)
	c.OnEvent(raw.add)

	c.Connect("127.0.0.1", 10051, "test-client")
	waitConnected(t, c)
	conn := d.lastConn()

	conn.events.push(dcs.Event{Kind: dcs.EventConnect, Connect: &dcs.ConnectEvent{
		ID: 3, Name: "Bob", UCID: "ucid-3", Address: "10.0.0.5",
	}})
	require.Eventually(t, func() bool {
		p, ok := c.Player(3)
		return ok && p.Connected
	}, waitFor, tick)

	conn.events.push(dcs.Event{Kind: dcs.EventPlayerChangeSlot, PlayerChangeSlot: &dcs.PlayerChangeSlotEvent{
		PlayerID: 3, Coalition: dcs.CoalitionRed, SlotID: "red-7",
	}})
	require.Eventually(t, func() bool {
		p, _ := c.Player(3)
		return p.SlotID == "red-7" && p.Coalition == dcs.CoalitionRed
	}, waitFor, tick)

	conn.events.push(dcs.Event{Kind: dcs.EventPlayerSendChat, PlayerSendChat: &dcs.PlayerSendChatEvent{
		PlayerID: 3, Message: "fox two",
	}})
	require.Eventually(t, func() bool { return chats.len() == 1 }, waitFor, tick)
	assert.Equal(t, dcs.ChatMessage{PlayerID: 3, Message: "fox two"}, chats.all()[0])

	conn.events.push(dcs.Event{Kind: dcs.EventDisconnect, Disconnect: &dcs.DisconnectEvent{
		ID: 3, Reason: "timeout",
	}})
	require.Eventually(t, func() bool {
		p, _ := c.Player(3)
		return !p.Connected
	}, waitFor, tick)
	p, _ := c.Player(3)
	assert.Equal(t, "Disconnect reason: timeout", p.Status)

	// Every event reaches the raw subscriber regardless of handlers.
	assert.GreaterOrEqual(t, raw.len(), 4)
}

func TestConnectorPlayersChangedOnRosterMutations(t *testing.T) {
	d := newFakeDialer()
	c := newTestConnector(t, d)

	rosters := &recorder[[]dcs.Player]{}
	c.OnPlayersChanged(rosters.add)

	c.Connect("127.0.0.1", 10051, "test-client")
	waitConnected(t, c)
	conn := d.lastConn()

	// The handshake roster refresh already raises one notification.
	require.Eventually(t, func() bool { return rosters.len() >= 1 }, waitFor, tick)
	require.Len(t, rosters.all()[0], 1)
	assert.Equal(t, "Alice", rosters.all()[0][0].Name)

	conn.events.push(dcs.Event{Kind: dcs.EventConnect, Connect: &dcs.ConnectEvent{
		ID: 3, Name: "Bob", UCID: "ucid-3", Address: "10.0.0.5",
	}})
	require.Eventually(t, func() bool { return rosters.len() >= 2 }, waitFor, tick)
	assert.Len(t, rosters.all()[1], 2)

	conn.events.push(dcs.Event{Kind: dcs.EventPlayerChangeSlot, PlayerChangeSlot: &dcs.PlayerChangeSlotEvent{
		PlayerID: 3, Coalition: dcs.CoalitionRed, SlotID: "red-7",
	}})
	require.Eventually(t, func() bool { return rosters.len() >= 3 }, waitFor, tick)

	conn.events.push(dcs.Event{Kind: dcs.EventDisconnect, Disconnect: &dcs.DisconnectEvent{
		ID: 3, Reason: "timeout",
	}})
	require.Eventually(t, func() bool { return rosters.len() >= 4 }, waitFor, tick)

	// Disconnected players stay on the roster snapshot.
	last := rosters.all()[rosters.len()-1]
	assert.Len(t, last, 2)
}

func TestConnectorPlayersChangedOnInferredPilot(t *testing.T) {
	d := newFakeDialer()
	c := newTestConnector(t, d)

	rosters := &recorder[[]dcs.Player]{}
	c.OnPlayersChanged(rosters.add)

	c.Connect("127.0.0.1", 10051, "test-client")
	waitConnected(t, c)
	require.Eventually(t, func() bool { return rosters.len() >= 1 }, waitFor, tick)
	before := rosters.len()

	// A pilot name seen only in telemetry creates a local roster entry.
	d.lastConn().units.push(dcs.UnitMessage{Time: 10, Unit: &dcs.Unit{ID: 7, Name: "unit-7", PlayerName: "Bob"}})
	require.Eventually(t, func() bool { return rosters.len() > before }, waitFor, tick)

	p, ok := c.PlayerByName("Bob")
	require.True(t, ok)
	assert.Equal(t, dcs.LocalPlayerID, p.ID)

	// The same pilot seen again is no further roster mutation.
	after := rosters.len()
	d.lastConn().units.push(dcs.UnitMessage{Time: 11, Unit: &dcs.Unit{ID: 7, Name: "unit-7", PlayerName: ""}})
	d.lastConn().units.push(dcs.UnitMessage{Time: 12, Unit: &dcs.Unit{ID: 7, Name: "unit-7", PlayerName: "Bob"}})
	require.Eventually(t, func() bool {
		u, _ := c.Unit(7)
		return u.PlayerName == "Bob"
	}, waitFor, tick)
	assert.Equal(t, after, rosters.len())
}

func TestConnectorChatFromUnknownPlayerDropped(t *testing.T) {
	d := newFakeDialer()
	c := newTestConnector(t, d)

	chats := &recorder[dcs.ChatMessage]{}
	c.OnChatMessage(chats.add)

	c.Connect("127.0.0.1", 10051, "test-client")
	waitConnected(t, c)
	conn := d.lastConn()

	conn.events.push(dcs.Event{Kind: dcs.EventPlayerSendChat, PlayerSendChat: &dcs.PlayerSendChatEvent{
		PlayerID: 999, Message: "who is this",
	}})
	conn.events.push(dcs.Event{Kind: dcs.EventPlayerSendChat, PlayerSendChat: &dcs.PlayerSendChatEvent{
		PlayerID: 1, Message: "check in",
	}})

	// Only the known player's line arrives; the unknown id is dropped.
	require.Eventually(t, func() bool { return chats.len() == 1 }, waitFor, tick)
	assert.Equal(t, dcs.ChatMessage{PlayerID: 1, Message: "check in"}, chats.all()[0])
}

func TestConnectorDisconnectCancelsPendingDial(t *testing.T) {
	d := newFakeDialer()
	d.setBlocking(true)
	c := newTestConnector(t, d)

	c.Connect("127.0.0.1", 10051, "test-client")
	require.Eventually(t, func() bool { return d.dialCount() >= 1 }, waitFor, tick)

	// Disconnect must not wait out the dial timeout.
	start := time.Now()
	c.Disconnect()
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, StateDisconnected, c.State())
}

func TestConnectorGroupCommandEvent(t *testing.T) {
	d := newFakeDialer()
	c := newTestConnector(t, d)

	commands := &recorder[dcs.GroupCommandExecuted]{}
	c.OnGroupCommandExecuted(commands.add)

	c.Connect("127.0.0.1", 10051, "test-client")
	waitConnected(t, c)
	conn := d.lastConn()

	conn.events.push(dcs.Event{Kind: dcs.EventGroupCommand, GroupCommand: &dcs.GroupCommandEvent{
		GroupID: 9, GroupName: "Aerial-1", Details: map[string]string{"menuId": "recon-1"},
	}})
	require.Eventually(t, func() bool { return commands.len() == 1 }, waitFor, tick)
	assert.Equal(t, dcs.GroupCommandExecuted{GroupID: 9, MenuItemID: "recon-1"}, commands.all()[0])

	// Missing payload id is logged and dropped, not delivered.
	conn.events.push(dcs.Event{Kind: dcs.EventGroupCommand, GroupCommand: &dcs.GroupCommandEvent{
		GroupID: 9, GroupName: "Aerial-1", Details: map[string]string{},
	}})
	conn.events.push(dcs.Event{Kind: dcs.EventGroupCommand, GroupCommand: &dcs.GroupCommandEvent{
		GroupID: 9, GroupName: "Aerial-1", Details: map[string]string{"menuId": "recon-2"},
	}})
	require.Eventually(t, func() bool { return commands.len() == 2 }, waitFor, tick)
	assert.Equal(t, "recon-2", commands.all()[1].MenuItemID)
}

func TestConnectorMarkEvents(t *testing.T) {
	d := newFakeDialer()
	c := newTestConnector(t, d)

	c.Connect("127.0.0.1", 10051, "test-client")
	waitConnected(t, c)
	conn := d.lastConn()

	conn.events.push(dcs.Event{Kind: dcs.EventMarkAdd, MarkAdd: &dcs.MarkEvent{
		ID: 5, Text: "target here", Latitude: 42.1, Longitude: 41.6,
	}})
	require.Eventually(t, func() bool { return len(c.Marks()) == 1 }, waitFor, tick)

	conn.events.push(dcs.Event{Kind: dcs.EventMarkChange, MarkChange: &dcs.MarkEvent{
		ID: 5, Text: "target moved", Latitude: 42.2, Longitude: 41.7,
	}})
	require.Eventually(t, func() bool {
		marks := c.Marks()
		return len(marks) == 1 && marks[0].Text == "target moved"
	}, waitFor, tick)

	conn.events.push(dcs.Event{Kind: dcs.EventMarkRemove, MarkRemove: &dcs.MarkEvent{ID: 5}})
	require.Eventually(t, func() bool { return len(c.Marks()) == 0 }, waitFor, tick)
}

func TestConnectorCommandsRequireConnection(t *testing.T) {
	d := newFakeDialer()
	c := newTestConnector(t, d)
	ctx := context.Background()

	assert.ErrorIs(t, c.SendChatMessage(ctx, dcs.CoalitionAll, "hi"), ErrNotConnected)
	assert.ErrorIs(t, c.SendChatMessageToPlayer(ctx, 1, "hi"), ErrNotConnected)
	assert.ErrorIs(t, c.ShowText(ctx, "hi", 10, false), ErrNotConnected)
	assert.ErrorIs(t, c.SetPaused(ctx, true), ErrNotConnected)
	assert.ErrorIs(t, c.ReloadCurrentMission(ctx), ErrNotConnected)
	assert.ErrorIs(t, c.RefreshPlayers(ctx), ErrNotConnected)
	assert.ErrorIs(t, c.RefreshGroups(ctx), ErrNotConnected)

	_, err := c.GetPaused(ctx)
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = c.GetScenarioCurrentTime(ctx)
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = c.AddGroupCommand(ctx, "Aerial-1", "Recon", "recon-1")
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = c.AddGroupCommandSubMenu(ctx, "Aerial-1", "Tasks")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, c.RemoveGroupCommand(ctx, "Aerial-1"), ErrNotConnected)
	_, err = c.AddCoalitionCommand(ctx, dcs.CoalitionBlue, "Intel", "intel-1")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, c.RemoveCoalitionCommand(ctx, dcs.CoalitionBlue), ErrNotConnected)
}

func TestConnectorTriggerCommandsAreBestEffort(t *testing.T) {
	d := newFakeDialer()
	c := newTestConnector(t, d)
	ctx := context.Background()

	// The world-effect triggers silently do nothing while disconnected.
	assert.NoError(t, c.ShowTextForCoalition(ctx, dcs.CoalitionBlue, "hi", 10))
	assert.NoError(t, c.ShowTextForGroup(ctx, 9, "hi", 10))
	assert.NoError(t, c.ShowTextForUnit(ctx, 7, "hi", 10))
	assert.NoError(t, c.Smoke(ctx, dcs.SmokeRed, 42.1, 41.6))
	assert.NoError(t, c.IlluminationBomb(ctx, 42.1, 41.6, 500, 1))
	assert.NoError(t, c.Explosion(ctx, 42.1, 41.6, 100))
	assert.NoError(t, c.RemoveMark(ctx, 5))

	id, err := c.AddMark(ctx, "m", "text", 42.1, 41.6, false)
	assert.NoError(t, err)
	assert.Zero(t, id)
}

func TestConnectorCommandsReachServer(t *testing.T) {
	d := newFakeDialer()
	c := newTestConnector(t, d)
	ctx := context.Background()

	c.Connect("127.0.0.1", 10051, "test-client")
	waitConnected(t, c)
	conn := d.lastConn()

	require.NoError(t, c.SendChatMessage(ctx, dcs.CoalitionAll, "hello from test"))
	assert.Equal(t, []string{"hello from test"}, conn.chat())

	path, err := c.AddGroupCommand(ctx, "Aerial-1", "Recon", "recon-1")
	require.NoError(t, err)
	assert.Equal(t, "F10/Aerial-1/Recon", path)

	require.NoError(t, c.SetPaused(ctx, true))
	paused, err := c.GetPaused(ctx)
	require.NoError(t, err)
	assert.True(t, paused)

	id, err := c.AddMark(ctx, "m", "text", 42.1, 41.6, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), id)

	tm, err := c.GetScenarioCurrentTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(43200), tm)
}

func TestConnectorSubscriberPanicIsContained(t *testing.T) {
	d := newFakeDialer()
	c := newTestConnector(t, d)

	c.OnUnitUpdate(func(dcs.UnitUpdate) {
		panic("subscriber bug")
	})

	c.Connect("127.0.0.1", 10051, "test-client")
	waitConnected(t, c)
	conn := d.lastConn()

	conn.units.push(dcs.UnitMessage{Time: 1, Unit: &dcs.Unit{ID: 1, Name: "u1"}})
	conn.units.push(dcs.UnitMessage{Time: 2, Unit: &dcs.Unit{ID: 2, Name: "u2"}})

	// Both messages still reach the cache and the connector stays up.
	require.Eventually(t, func() bool { return len(c.Units()) == 2 }, waitFor, tick)
	assert.True(t, c.IsConnected())
}

func TestConnectorSubscriptionReplacement(t *testing.T) {
	d := newFakeDialer()
	c := newTestConnector(t, d)

	first := &recorder[dcs.UnitUpdate]{}
	second := &recorder[dcs.UnitUpdate]{}
	c.OnUnitUpdate(first.add)
	c.OnUnitUpdate(second.add)

	c.Connect("127.0.0.1", 10051, "test-client")
	waitConnected(t, c)
	conn := d.lastConn()

	conn.units.push(dcs.UnitMessage{Time: 1, Unit: &dcs.Unit{ID: 1, Name: "u1"}})
	require.Eventually(t, func() bool { return second.len() == 1 }, waitFor, tick)
	assert.Zero(t, first.len(), "replaced subscriber must not be called")

	// Nil clears the slot.
	c.OnUnitUpdate(nil)
	conn.units.push(dcs.UnitMessage{Time: 2, Unit: &dcs.Unit{ID: 2, Name: "u2"}})
	require.Eventually(t, func() bool { return len(c.Units()) == 2 }, waitFor, tick)
	assert.Equal(t, 1, second.len())
}

func TestConnectorCloseIsIdempotent(t *testing.T) {
	d := newFakeDialer()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := New(Config{ReconnectInterval: 10 * time.Millisecond}, d, logger)
	require.NoError(t, err)

	c.Connect("127.0.0.1", 10051, "test-client")
	waitConnected(t, c)

	c.Close()
	c.Close()
	assert.False(t, c.IsConnected())
}

func TestNewRejectsNilDialer(t *testing.T) {
	_, err := New(Config{}, nil, nil)
	require.Error(t, err)
}
