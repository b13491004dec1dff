package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctrue/dcs-connect/internal/config"
	"github.com/ctrue/dcs-connect/pkg/dcs"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()

	m := NewDBManager(zerolog.Nop(), config.DBConfig{}, t.TempDir())
	require.NoError(t, m.ConnectLocal(filepath.Join(t.TempDir(), "test.db")))
	t.Cleanup(func() { _ = m.Close() })

	r := New(m, zerolog.Nop(), time.Hour)
	require.NoError(t, r.Init())
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func startSession(t *testing.T, r *Recorder) {
	t.Helper()
	require.NoError(t, r.StartSession("127.0.0.1:10051", dcs.ServerInfo{
		Theatre:     "Caucasus",
		MissionName: "Operation Test",
	}))
	require.NotZero(t, r.SessionID())
}

func TestRecorderSessionLifecycle(t *testing.T) {
	r := newTestRecorder(t)
	startSession(t, r)

	var session Session
	require.NoError(t, r.db.DB.First(&session, r.SessionID()).Error)
	assert.Equal(t, "Operation Test", session.MissionName)
	assert.Equal(t, "Caucasus", session.Theatre)
	assert.False(t, session.EndTime.Valid)

	id := r.SessionID()
	require.NoError(t, r.EndSession())
	assert.Zero(t, r.SessionID())

	require.NoError(t, r.db.DB.First(&session, id).Error)
	assert.True(t, session.EndTime.Valid)
}

func TestRecorderUnitStates(t *testing.T) {
	r := newTestRecorder(t)
	startSession(t, r)

	r.RecordUnitUpdate(dcs.UpdatedUnit(100, &dcs.Unit{
		ID: 7, Name: "unit-7", Type: "F-16C", PlayerName: "Bob",
		GroupName: "Aerial-1", Coalition: dcs.CoalitionBlue,
		Latitude: 42.1, Longitude: 41.6, Altitude: 3000, Heading: 270, Speed: 220,
	}))
	r.RecordUnitUpdate(dcs.UpdatedUnit(105, &dcs.Unit{
		ID: 7, Name: "unit-7", Type: "F-16C",
		Latitude: 42.2, Longitude: 41.7, Altitude: 3100,
	}))
	// Removal notices carry no kinematics.
	r.RecordUnitUpdate(dcs.DeletedUnit(110, 7, "unit-7"))

	assert.Equal(t, 2, r.QueueDepth())
	r.Flush()
	assert.Zero(t, r.QueueDepth())

	var states []UnitState
	require.NoError(t, r.db.DB.Order("id").Find(&states).Error)
	require.Len(t, states, 2)
	assert.Equal(t, uint32(7), states[0].UnitID)
	assert.Equal(t, "Bob", states[0].PlayerName)
	assert.Equal(t, "BLUE", states[0].Coalition)
	assert.Equal(t, float64(100), states[0].MissionTime)
	assert.Equal(t, r.SessionID(), states[0].SessionID)
	assert.Empty(t, states[1].PlayerName)
}

func TestRecorderEvents(t *testing.T) {
	r := newTestRecorder(t)
	startSession(t, r)

	r.RecordEvent(dcs.Event{Time: 50, Kind: dcs.EventConnect, Connect: &dcs.ConnectEvent{
		ID: 3, Name: "Bob", UCID: "ucid-3",
	}})
	r.RecordEvent(dcs.Event{Time: 60, Kind: dcs.EventMarkAdd, MarkAdd: &dcs.MarkEvent{
		ID: 5, Text: "target", Latitude: 42.1, Longitude: 41.6,
	}})
	r.Flush()

	var events []SimEvent
	require.NoError(t, r.db.DB.Order("id").Find(&events).Error)
	require.Len(t, events, 2)
	assert.Equal(t, "connect", events[0].Kind)
	assert.Contains(t, string(events[0].Payload), `"name":"Bob"`)
	assert.Equal(t, "mark_add", events[1].Kind)
	assert.Contains(t, string(events[1].Payload), `"text":"target"`)
}

func TestRecorderChatAndOccupancy(t *testing.T) {
	r := newTestRecorder(t)
	startSession(t, r)

	r.RecordChat("Bob", dcs.ChatMessage{PlayerID: 3, Message: "fox two"})
	r.RecordOccupancy(dcs.PlayerInUnitChange{
		UnitID: 7,
		Change: dcs.PlayerEnteredUnit,
		Player: dcs.Player{Name: "Bob"},
	})
	r.Flush()

	var chats []ChatLine
	require.NoError(t, r.db.DB.Find(&chats).Error)
	require.Len(t, chats, 1)
	assert.Equal(t, "fox two", chats[0].Message)
	assert.Equal(t, "Bob", chats[0].PlayerName)

	var occ []OccupancyRow
	require.NoError(t, r.db.DB.Find(&occ).Error)
	require.Len(t, occ, 1)
	assert.Equal(t, "entered", occ[0].Change)
	assert.Equal(t, uint32(7), occ[0].UnitID)
}

func TestRecorderDropsRowsWithoutSession(t *testing.T) {
	r := newTestRecorder(t)

	r.RecordUnitUpdate(dcs.UpdatedUnit(1, &dcs.Unit{ID: 1, Name: "u1"}))
	r.RecordChat("Bob", dcs.ChatMessage{PlayerID: 3, Message: "hi"})
	r.RecordEvent(dcs.Event{Kind: dcs.EventMissionStart, MissionStart: &dcs.MissionStartEvent{}})
	assert.Zero(t, r.QueueDepth())
}

func TestRecorderWritesTracksOnSessionEnd(t *testing.T) {
	r := newTestRecorder(t)
	startSession(t, r)
	id := r.SessionID()

	// Two samples for unit 7, one for unit 8. Only the former makes a path.
	r.RecordUnitUpdate(dcs.UpdatedUnit(1, &dcs.Unit{ID: 7, Name: "unit-7", Latitude: 42.1, Longitude: 41.6}))
	r.RecordUnitUpdate(dcs.UpdatedUnit(2, &dcs.Unit{ID: 7, Name: "unit-7", Latitude: 42.2, Longitude: 41.7}))
	r.RecordUnitUpdate(dcs.UpdatedUnit(2, &dcs.Unit{ID: 8, Name: "unit-8", Latitude: 42.0, Longitude: 41.0}))

	require.NoError(t, r.EndSession())

	var tracks []UnitTrack
	require.NoError(t, r.db.DB.Find(&tracks).Error)
	require.Len(t, tracks, 1)
	assert.Equal(t, uint32(7), tracks[0].UnitID)
	assert.Equal(t, id, tracks[0].SessionID)
	assert.Equal(t, 2, tracks[0].Samples)
}

func TestRecorderFlushIsIdempotent(t *testing.T) {
	r := newTestRecorder(t)
	startSession(t, r)

	r.RecordChat("Bob", dcs.ChatMessage{PlayerID: 3, Message: "hi"})
	r.Flush()
	r.Flush()

	var count int64
	require.NoError(t, r.db.DB.Model(&ChatLine{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
