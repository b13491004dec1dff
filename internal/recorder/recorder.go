package recorder

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ctrue/dcs-connect/internal/geo"
	"github.com/ctrue/dcs-connect/internal/queue"
	"github.com/ctrue/dcs-connect/pkg/dcs"
)

// queues holds the write queues for batch DB insertion.
type queues struct {
	UnitStates    *queue.Queue[UnitState]
	SimEvents     *queue.Queue[SimEvent]
	ChatLines     *queue.Queue[ChatLine]
	OccupancyRows *queue.Queue[OccupancyRow]
}

func newQueues() *queues {
	return &queues{
		UnitStates:    queue.New[UnitState](),
		SimEvents:     queue.New[SimEvent](),
		ChatLines:     queue.New[ChatLine](),
		OccupancyRows: queue.New[OccupancyRow](),
	}
}

// Recorder batches session data into the recording database. Record
// methods only push to in-memory queues and never block on the database;
// a background goroutine drains the queues on a fixed interval.
type Recorder struct {
	db        *DBManager
	log       zerolog.Logger
	queues    *queues
	sessionID atomic.Uint64
	interval  time.Duration
	stopChan  chan struct{}
	doneChan  chan struct{}
	started   bool

	trackMu sync.Mutex
	tracks  map[uint32]*unitTrack
}

// unitTrack accumulates one unit's sampled path for the session.
type unitTrack struct {
	name   string
	points []geo.TrackPoint
}

// New creates a recorder on top of a connected database manager.
func New(db *DBManager, log zerolog.Logger, flushInterval time.Duration) *Recorder {
	if flushInterval <= 0 {
		flushInterval = 10 * time.Second
	}
	return &Recorder{
		db:       db,
		log:      log,
		queues:   newQueues(),
		interval: flushInterval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
		tracks:   make(map[uint32]*unitTrack),
	}
}

// Init migrates the schema and starts the flush goroutine.
func (r *Recorder) Init() error {
	if err := r.db.Setup(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	r.started = true
	go r.flushLoop()
	return nil
}

// Close flushes what is still queued and stops the flush goroutine.
func (r *Recorder) Close() error {
	if r.started {
		close(r.stopChan)
		<-r.doneChan
		r.started = false
	}
	r.Flush()
	return nil
}

// StartSession inserts a session row and makes it the target of all
// subsequent record calls. Inserted synchronously so the id is available
// right away.
func (r *Recorder) StartSession(addr string, info dcs.ServerInfo) error {
	if !r.db.IsValid {
		return nil
	}

	session := Session{
		ServerAddr:         addr,
		Theatre:            info.Theatre,
		MissionName:        info.MissionName,
		MissionDescription: info.MissionDescription,
		StartTime:          time.Now(),
	}
	if err := r.db.DB.Create(&session).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	r.sessionID.Store(uint64(session.ID))
	r.log.Info().Uint("sessionId", session.ID).Str("mission", info.MissionName).Msg("Recording session started")
	return nil
}

// EndSession flushes the queues and stamps the session's end time.
func (r *Recorder) EndSession() error {
	id := uint(r.sessionID.Load())
	if id == 0 || !r.db.IsValid {
		return nil
	}
	r.Flush()
	r.writeTracks(id)
	r.sessionID.Store(0)

	err := r.db.DB.Model(&Session{}).Where("id = ?", id).
		Update("end_time", time.Now()).Error
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	r.log.Info().Uint("sessionId", id).Msg("Recording session ended")
	return nil
}

// SessionID returns the id of the active session, 0 when none is open.
func (r *Recorder) SessionID() uint {
	return uint(r.sessionID.Load())
}

// RecordUnitUpdate queues a kinematic snapshot. Removal notices carry no
// kinematics and are stored as events by the caller instead.
func (r *Recorder) RecordUnitUpdate(u dcs.UnitUpdate) {
	if u.Deleted() || r.SessionID() == 0 {
		return
	}
	unit := u.Unit

	state := UnitState{
		Time:         time.Now(),
		MissionTime:  u.Time,
		UnitID:       unit.ID,
		UnitName:     unit.Name,
		TypeName:     unit.Type,
		PlayerName:   unit.PlayerName,
		GroupName:    unit.GroupName,
		Coalition:    unit.Coalition.String(),
		ElevationASL: float32(unit.Altitude),
		Heading:      uint16(unit.Heading),
		Speed:        float32(unit.Speed),
	}

	point, err := geo.Point3857From4326(unit.Longitude, unit.Latitude, unit.Altitude)
	if err != nil {
		r.log.Debug().Err(err).Uint32("unitId", unit.ID).Msg("Skipping unprojectable position")
	} else {
		state.Position = point
	}

	r.queues.UnitStates.Push(state)

	r.trackMu.Lock()
	tr, ok := r.tracks[unit.ID]
	if !ok {
		tr = &unitTrack{name: unit.Name}
		r.tracks[unit.ID] = tr
	}
	tr.points = append(tr.points, geo.TrackPoint{Longitude: unit.Longitude, Latitude: unit.Latitude})
	r.trackMu.Unlock()
}

// RecordEvent queues a simulation event with its payload as JSON.
func (r *Recorder) RecordEvent(e dcs.Event) {
	if r.SessionID() == 0 {
		return
	}

	payload, err := json.Marshal(eventPayload(e))
	if err != nil {
		r.log.Warn().Err(err).Str("kind", e.Kind.String()).Msg("Failed to encode event payload")
		payload = []byte("{}")
	}

	r.queues.SimEvents.Push(SimEvent{
		Time:        time.Now(),
		MissionTime: e.Time,
		Kind:        e.Kind.String(),
		Payload:     datatypes.JSON(payload),
	})
}

// RecordChat queues a chat line.
func (r *Recorder) RecordChat(playerName string, msg dcs.ChatMessage) {
	if r.SessionID() == 0 {
		return
	}
	r.queues.ChatLines.Push(ChatLine{
		Time:       time.Now(),
		PlayerID:   msg.PlayerID,
		PlayerName: playerName,
		Message:    msg.Message,
	})
}

// RecordOccupancy queues an enter/leave transition.
func (r *Recorder) RecordOccupancy(change dcs.PlayerInUnitChange) {
	if r.SessionID() == 0 {
		return
	}
	r.queues.OccupancyRows.Push(OccupancyRow{
		Time:       time.Now(),
		UnitID:     change.UnitID,
		PlayerName: change.Player.Name,
		Change:     change.Change.String(),
	})
}

// QueueDepth reports how many rows are waiting for the next flush.
func (r *Recorder) QueueDepth() int {
	return r.queues.UnitStates.Len() +
		r.queues.SimEvents.Len() +
		r.queues.ChatLines.Len() +
		r.queues.OccupancyRows.Len()
}

// Flush drains every queue into the database. Also called by the flush
// goroutine on its interval.
func (r *Recorder) Flush() {
	if !r.db.IsValid {
		return
	}
	sessionID := uint(r.sessionID.Load())

	writeQueue(r.db.DB, r.queues.UnitStates, "unit states", r.log, func(items []UnitState) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	})
	writeQueue(r.db.DB, r.queues.SimEvents, "sim events", r.log, func(items []SimEvent) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	})
	writeQueue(r.db.DB, r.queues.ChatLines, "chat lines", r.log, func(items []ChatLine) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	})
	writeQueue(r.db.DB, r.queues.OccupancyRows, "occupancy rows", r.log, func(items []OccupancyRow) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	})
}

// writeTracks flattens the accumulated unit paths to line strings and
// stores one row per unit. Units with fewer than two samples have no
// path worth keeping.
func (r *Recorder) writeTracks(sessionID uint) {
	r.trackMu.Lock()
	tracks := r.tracks
	r.tracks = make(map[uint32]*unitTrack)
	r.trackMu.Unlock()

	rows := make([]UnitTrack, 0, len(tracks))
	for unitID, tr := range tracks {
		path, err := geo.TrackLineString(tr.points)
		if err != nil {
			continue
		}
		rows = append(rows, UnitTrack{
			SessionID: sessionID,
			UnitID:    unitID,
			UnitName:  tr.name,
			Samples:   len(tr.points),
			Path:      path,
		})
	}
	if len(rows) == 0 {
		return
	}
	if err := r.db.DB.Create(&rows).Error; err != nil {
		r.log.Error().Err(err).Msg("Error writing unit tracks")
	}
}

func (r *Recorder) flushLoop() {
	defer close(r.doneChan)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.Flush()
		}
	}
}

// writeQueue writes all items from a queue to the database in one
// transaction. On failure the batch goes back on the queue for the next
// flush.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log zerolog.Logger, stamp func([]T)) {
	if q.Len() == 0 {
		return
	}

	tx := db.Begin()
	items := q.GetAndEmpty()
	if len(items) == 0 {
		tx.Rollback()
		return
	}
	if stamp != nil {
		stamp(items)
	}
	if err := tx.Create(&items).Error; err != nil {
		log.Error().Err(err).Str("queue", name).Msg("Error writing batch")
		tx.Rollback()
		q.Push(items...)
		return
	}
	tx.Commit()
}

// eventPayload flattens the populated branch of the event union into a
// loggable map.
func eventPayload(e dcs.Event) map[string]any {
	p := map[string]any{}
	switch {
	case e.Birth != nil:
		p["place"] = e.Birth.Place
		addInitiator(p, e.Birth.Initiator)
	case e.Connect != nil:
		p["playerId"] = e.Connect.ID
		p["name"] = e.Connect.Name
		p["ucid"] = e.Connect.UCID
		p["address"] = e.Connect.Address
	case e.Disconnect != nil:
		p["playerId"] = e.Disconnect.ID
		p["reason"] = e.Disconnect.Reason
	case e.PlayerEnterUnit != nil:
		addInitiator(p, e.PlayerEnterUnit.Initiator)
	case e.PlayerChangeSlot != nil:
		p["playerId"] = e.PlayerChangeSlot.PlayerID
		p["coalition"] = e.PlayerChangeSlot.Coalition.String()
		p["slotId"] = e.PlayerChangeSlot.SlotID
	case e.PlayerLeaveUnit != nil:
		addInitiator(p, e.PlayerLeaveUnit.Initiator)
	case e.PlayerSendChat != nil:
		p["playerId"] = e.PlayerSendChat.PlayerID
		p["message"] = e.PlayerSendChat.Message
	case e.PilotDead != nil:
		addInitiator(p, e.PilotDead.Initiator)
	case e.CoalitionCommand != nil:
		p["coalition"] = e.CoalitionCommand.Coalition.String()
		p["details"] = e.CoalitionCommand.Details
	case e.GroupCommand != nil:
		p["groupId"] = e.GroupCommand.GroupID
		p["groupName"] = e.GroupCommand.GroupName
		p["details"] = e.GroupCommand.Details
	case e.MissionCommand != nil:
		p["details"] = e.MissionCommand.Details
	case e.MarkAdd != nil:
		addMark(p, e.MarkAdd)
	case e.MarkChange != nil:
		addMark(p, e.MarkChange)
	case e.MarkRemove != nil:
		addMark(p, e.MarkRemove)
	}
	return p
}

func addInitiator(p map[string]any, in dcs.Initiator) {
	if in.Unit == nil {
		return
	}
	p["unitId"] = in.Unit.ID
	p["unitName"] = in.Unit.Name
	p["playerName"] = in.Unit.PlayerName
}

func addMark(p map[string]any, m *dcs.MarkEvent) {
	p["markId"] = m.ID
	p["text"] = m.Text
	p["lat"] = m.Latitude
	p["lon"] = m.Longitude
}
