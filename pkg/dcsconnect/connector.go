// Package dcsconnect implements a resilient client for a DCS World
// server. The connector owns a connection state machine with automatic
// reconnection, two stream-ingestion pipelines feeding an in-memory
// entity cache, and a command façade over the server's services.
//
// One background goroutine owns all state transitions. Connection
// attempts, stream failures and disconnect requests are funneled into it
// over channels, so connect, cleanup and reconnect can never interleave.
package dcsconnect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ctrue/dcs-connect/internal/cache"
	"github.com/ctrue/dcs-connect/internal/channel"
	"github.com/ctrue/dcs-connect/internal/dispatcher"
	"github.com/ctrue/dcs-connect/internal/logging"
	"github.com/ctrue/dcs-connect/pkg/dcs"
	"github.com/ctrue/dcs-connect/pkg/rpc"
)

// ErrNotConnected is returned by commands that need a live connection.
var ErrNotConnected = errors.New("not connected to server")

// State is the connection lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateCleaningUp
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateCleaningUp:
		return "cleaning up"
	default:
		return "unknown"
	}
}

const (
	dialTimeout   = 5 * time.Second
	verifyTimeout = 10 * time.Second
)

// Config tunes the connector. Zero values fall back to defaults.
type Config struct {
	// ReconnectInterval is the period of the reconnect timer.
	ReconnectInterval time.Duration

	// JoinTimeout bounds how long cleanup waits for the pipeline
	// goroutines of a dead session.
	JoinTimeout time.Duration

	// UnitPollRate and MaxBackoff are passed through to the unit
	// telemetry subscription, in seconds. A zero UnitPollRate disables
	// the unit stream entirely; the event stream still runs.
	UnitPollRate uint32
	MaxBackoff   uint32

	// Queue capacities of the two receiver-to-processor pipes.
	UnitQueueSize  int
	EventQueueSize int
}

func (c Config) withDefaults() Config {
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = time.Second
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = 100 * time.Millisecond
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = 30
	}
	if c.UnitQueueSize <= 0 {
		c.UnitQueueSize = 8192
	}
	if c.EventQueueSize <= 0 {
		c.EventQueueSize = 1024
	}
	return c
}

// session is the per-connection-epoch state: the transport connection,
// the two hand-off pipes and the four pipeline goroutines. A new session
// is built for every successful connect; cleanup tears the whole thing
// down and drops the reference.
type session struct {
	conn   rpc.Connection
	ctx    context.Context
	cancel context.CancelFunc

	unitCh  *channel.Buffered[dcs.UnitMessage]
	eventCh *channel.Buffered[dcs.Event]

	recvWG sync.WaitGroup
	procWG sync.WaitGroup
}

// streamFailure is a receiver's report that its stream ended.
type streamFailure struct {
	sess *session
	name string
	err  error
}

// Connector is the resilient client. Create it with New, point it at a
// server with Connect, and release it with Close. All methods are safe
// for concurrent use.
type Connector struct {
	cfg    Config
	dialer rpc.Dialer
	log    *slog.Logger
	disp   *dispatcher.Dispatcher

	entities *cache.Entities
	marks    *cache.MarkCache

	state atomic.Int32

	mu            sync.Mutex
	addr          string
	clientID      string
	wantConnected bool
	sess          *session
	attemptCancel context.CancelFunc

	infoMu sync.Mutex
	info   dcs.ServerInfo

	subs subscriptions

	statusMu      sync.Mutex
	lastConnected bool
	lastReason    string

	kickCh       chan struct{}
	disconnectCh chan chan struct{}
	failCh       chan streamFailure
	stopCh       chan struct{}
	doneCh       chan struct{}
	closeOnce    sync.Once
}

// New creates a connector using the given transport dialer. The connector
// stays idle until Connect is called.
func New(cfg Config, dialer rpc.Dialer, logger *slog.Logger) (*Connector, error) {
	if dialer == nil {
		return nil, errors.New("dcsconnect: nil dialer")
	}
	if logger == nil {
		logger = slog.Default()
	}

	disp, err := dispatcher.New(logging.NewDispatcherLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("creating event dispatcher: %w", err)
	}

	c := &Connector{
		cfg:          cfg.withDefaults(),
		dialer:       dialer,
		log:          logger,
		disp:         disp,
		entities:     cache.NewEntities(),
		marks:        cache.NewMarkCache(),
		kickCh:       make(chan struct{}, 1),
		disconnectCh: make(chan chan struct{}),
		failCh:       make(chan streamFailure, 2),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	c.registerHandlers()

	go c.run()
	return c, nil
}

// Connect points the connector at a server and enables automatic
// connection. The client id identifies this client to the server and is
// attached to connection logs. Calling Connect again with the same
// target while already enabled is a no-op; a different target tears down
// the current session first. Connect returns immediately, the attempt
// itself happens on the connector's own goroutine.
func (c *Connector) Connect(host string, port int, clientID string) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	c.mu.Lock()
	if c.wantConnected && c.addr == addr {
		c.mu.Unlock()
		return
	}
	retarget := c.sess != nil && c.addr != addr
	c.addr = addr
	c.clientID = clientID
	c.wantConnected = true
	c.mu.Unlock()

	if retarget {
		c.requestCleanup()
	}
	c.kick()
}

// Disconnect tears down the current session and disables automatic
// reconnection. It returns after cleanup has finished. Safe to call when
// already disconnected.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	c.wantConnected = false
	cancel := c.attemptCancel
	c.mu.Unlock()
	if cancel != nil {
		// Unblock an attempt stuck in dial or verification.
		cancel()
	}
	c.requestCleanup()
}

// Close disconnects and stops the connector's background goroutine.
// The connector cannot be reused afterwards.
func (c *Connector) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.wantConnected = false
		cancel := c.attemptCancel
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		close(c.stopCh)
		<-c.doneCh
	})
}

// kick schedules an immediate connection attempt.
func (c *Connector) kick() {
	select {
	case c.kickCh <- struct{}{}:
	default:
	}
}

// requestCleanup asks the run goroutine to tear down the current session
// and waits until it has done so.
func (c *Connector) requestCleanup() {
	ack := make(chan struct{})
	select {
	case c.disconnectCh <- ack:
		<-ack
	case <-c.doneCh:
	}
}

// run is the owner goroutine of the state machine.
func (c *Connector) run() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.cfg.ReconnectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			c.cleanup("client shutting down")
			return

		case ack := <-c.disconnectCh:
			c.cleanup("disconnect requested")
			close(ack)

		case f := <-c.failCh:
			c.mu.Lock()
			current := c.sess != nil && c.sess == f.sess
			c.mu.Unlock()
			if !current {
				// Stale report from a session already torn down.
				continue
			}
			if errors.Is(f.err, io.EOF) {
				c.log.Info("stream closed by server", "stream", f.name)
			} else {
				c.log.Warn("stream failed", "stream", f.name, "error", f.err)
			}
			c.cleanup(fmt.Sprintf("%s ended: %v", f.name, f.err))

		case <-c.kickCh:
			c.attempt()

		case <-ticker.C:
			c.attempt()
		}
	}
}

// attempt runs one connection attempt if the connector is idle and a
// target is set. Failures are logged and retried on the next tick.
// Dial and verification run inline on the run goroutine, so the whole
// attempt is bounded by a cancellable context that Disconnect and Close
// fire to avoid waiting out the dial and verify timeouts.
func (c *Connector) attempt() {
	c.mu.Lock()
	addr := c.addr
	clientID := c.clientID
	idle := c.wantConnected && c.sess == nil && addr != ""
	c.mu.Unlock()
	if !idle {
		return
	}

	actx, cancelAttempt := context.WithCancel(context.Background())
	c.mu.Lock()
	c.attemptCancel = cancelAttempt
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.attemptCancel = nil
		c.mu.Unlock()
		cancelAttempt()
	}()

	c.state.Store(int32(StateConnecting))
	c.log.Debug("connecting", "addr", addr, "clientId", clientID)

	dialCtx, cancelDial := context.WithTimeout(actx, dialTimeout)
	conn, err := c.dialer.Dial(dialCtx, addr)
	cancelDial()
	if err != nil {
		c.state.Store(int32(StateDisconnected))
		switch {
		case rpc.IsUnavailable(err):
			c.log.Debug("server unavailable", "addr", addr)
		case errors.Is(err, context.Canceled):
			c.log.Debug("connection attempt cancelled", "addr", addr)
		default:
			c.log.Error("dial failed", "addr", addr, "error", err)
		}
		return
	}

	info, err := c.verify(actx, conn)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			c.log.Debug("connection attempt cancelled", "addr", addr)
		} else {
			c.log.Error("connection verification failed", "addr", addr, "error", err)
		}
		_ = conn.Close()
		c.entities.Reset()
		c.state.Store(int32(StateDisconnected))
		return
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &session{
		conn:    conn,
		ctx:     sctx,
		cancel:  cancel,
		unitCh:  channel.New[dcs.UnitMessage](c.cfg.UnitQueueSize),
		eventCh: channel.New[dcs.Event](c.cfg.EventQueueSize),
	}

	var units rpc.UnitStream
	if c.cfg.UnitPollRate > 0 {
		units, err = conn.Mission().StreamUnits(sctx, c.cfg.UnitPollRate, c.cfg.MaxBackoff)
		if err != nil {
			c.log.Error("opening unit stream failed", "error", err)
			c.abortSession(s)
			return
		}
	}
	events, err := conn.Mission().StreamEvents(sctx)
	if err != nil {
		c.log.Error("opening event stream failed", "error", err)
		c.abortSession(s)
		return
	}

	c.infoMu.Lock()
	c.info = info
	c.infoMu.Unlock()

	if units != nil {
		s.recvWG.Add(1)
		go c.receiveUnits(s, units)
		s.procWG.Add(1)
		go c.processUnits(s)
		c.disp.ObserveQueue("units", s.unitCh.Len)
	}
	s.recvWG.Add(1)
	go c.receiveEvents(s, events)
	s.procWG.Add(1)
	go c.processEvents(s)
	c.disp.ObserveQueue("events", s.eventCh.Len)

	c.mu.Lock()
	if !c.wantConnected {
		// Disconnect raced the attempt; drop the session before it is
		// ever visible.
		c.mu.Unlock()
		c.abortSession(s)
		return
	}
	c.sess = s
	c.mu.Unlock()
	c.state.Store(int32(StateConnected))

	c.log.Info("connected", "addr", addr, "clientId", clientID, "mission", info.MissionName, "theatre", info.Theatre)
	c.notifyStatus(true, "Connected to "+addr)
}

// abortSession is the bail-out for an attempt that built a session but
// never started its goroutines.
func (c *Connector) abortSession(s *session) {
	s.cancel()
	_ = s.conn.Close()
	c.entities.Reset()
	c.state.Store(int32(StateDisconnected))
}

// verify probes the server's services and pulls the initial rosters.
// A failure in any step treats the whole connection as unusable.
func (c *Connector) verify(ctx context.Context, conn rpc.Connection) (dcs.ServerInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	var info dcs.ServerInfo
	var err error

	info.MissionTime, err = conn.Mission().GetScenarioCurrentTime(ctx)
	if err != nil {
		return info, fmt.Errorf("get scenario time: %w", err)
	}
	info.Theatre, err = conn.World().GetTheatre(ctx)
	if err != nil {
		return info, fmt.Errorf("get theatre: %w", err)
	}
	info.MissionName, err = conn.Hook().GetMissionName(ctx)
	if err != nil {
		return info, fmt.Errorf("get mission name: %w", err)
	}
	info.MissionDescription, err = conn.Hook().GetMissionDescription(ctx)
	if err != nil {
		return info, fmt.Errorf("get mission description: %w", err)
	}
	info.IsServer, err = conn.Hook().IsServer(ctx)
	if err != nil {
		return info, fmt.Errorf("is server: %w", err)
	}
	info.IsMultiplayer, err = conn.Hook().IsMultiplayer(ctx)
	if err != nil {
		return info, fmt.Errorf("is multiplayer: %w", err)
	}

	groups, err := conn.Coalition().GetGroups(ctx, dcs.CoalitionAll, dcs.GroupCategoryUnspecified)
	if err != nil {
		return info, fmt.Errorf("get groups: %w", err)
	}
	gs := make([]dcs.Group, 0, len(groups))
	for _, g := range groups {
		gs = append(gs, dcs.Group{ID: g.ID, Name: g.Name, Coalition: g.Coalition, Category: g.Category})
	}
	c.entities.RefreshGroups(gs)

	if info.IsMultiplayer {
		players, err := conn.Net().GetPlayers(ctx)
		if err != nil {
			return info, fmt.Errorf("get players: %w", err)
		}
		c.entities.RefreshPlayers(playerRecordsToPlayers(players))
		c.notifyPlayersChanged()
	}

	return info, nil
}

// cleanup tears down the current session: cancel, close the transport,
// join the receivers, close the pipes, join the processors, clear the
// caches, then report the new status. Runs only on the run goroutine.
func (c *Connector) cleanup(reason string) {
	c.mu.Lock()
	s := c.sess
	c.sess = nil
	c.mu.Unlock()
	if s == nil {
		c.state.Store(int32(StateDisconnected))
		return
	}

	c.state.Store(int32(StateCleaningUp))
	c.log.Info("cleaning up connection", "reason", reason)

	s.cancel()
	if err := s.conn.Close(); err != nil {
		c.log.Debug("closing connection", "error", err)
	}

	if waitTimeout(&s.recvWG, c.cfg.JoinTimeout) {
		// Receivers are gone, nobody can write anymore.
		s.unitCh.Close()
		s.eventCh.Close()
	} else {
		// Leave the pipes open; the processors exit via the cancelled
		// context instead and a late send cannot hit a closed pipe.
		c.log.Warn("stream receivers did not stop in time")
	}

	if !waitTimeout(&s.procWG, c.cfg.JoinTimeout) {
		c.log.Warn("stream processors did not stop in time")
	}

	c.entities.Reset()
	c.marks.Reset()
	c.infoMu.Lock()
	c.info = dcs.ServerInfo{}
	c.infoMu.Unlock()

	c.state.Store(int32(StateDisconnected))
	c.notifyStatus(false, reason)
}

// notifyStatus reports a status transition to the subscriber, suppressing
// repeats of the same status and reason.
func (c *Connector) notifyStatus(connected bool, reason string) {
	c.statusMu.Lock()
	if c.lastConnected == connected && c.lastReason == reason {
		c.statusMu.Unlock()
		return
	}
	c.lastConnected = connected
	c.lastReason = reason
	c.statusMu.Unlock()

	c.log.Info("connection status changed", "connected", connected, "reason", reason)
	c.subs.notifyStatus(c.log, dcs.StatusChange{Connected: connected, Reason: reason})
}

func playerRecordsToPlayers(records []rpc.PlayerRecord) []dcs.Player {
	out := make([]dcs.Player, 0, len(records))
	for _, r := range records {
		out = append(out, dcs.Player{
			ID:            r.ID,
			Name:          r.Name,
			UCID:          r.UCID,
			Coalition:     r.Coalition,
			SlotID:        r.Slot,
			RemoteAddress: r.RemoteAddress,
		})
	}
	return out
}

// waitTimeout waits for the group with an upper bound. Reports whether
// the group finished in time.
func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
