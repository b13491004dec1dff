package dcsconnect

import (
	"log/slog"
	"sync"

	"github.com/ctrue/dcs-connect/pkg/dcs"
)

// subscriptions is the callback registry. Each notification type has a
// single slot; registering replaces the previous callback and nil clears
// the slot. Callbacks run on the pipeline goroutine that produced the
// notification, so a slow callback back-pressures its own pipeline and
// nothing else.
type subscriptions struct {
	mu             sync.RWMutex
	unitUpdate     func(dcs.UnitUpdate)
	playerInUnit   func(dcs.PlayerInUnitChange)
	playersChanged func([]dcs.Player)
	chat           func(dcs.ChatMessage)
	groupCommand   func(dcs.GroupCommandExecuted)
	status         func(dcs.StatusChange)
	event          func(dcs.Event)
}

// OnUnitUpdate registers the callback for unit cache updates and
// removals. Only one callback is held; the latest registration wins.
func (c *Connector) OnUnitUpdate(fn func(dcs.UnitUpdate)) {
	c.subs.mu.Lock()
	defer c.subs.mu.Unlock()
	c.subs.unitUpdate = fn
}

// OnPlayerInUnitChange registers the callback for occupancy transitions.
func (c *Connector) OnPlayerInUnitChange(fn func(dcs.PlayerInUnitChange)) {
	c.subs.mu.Lock()
	defer c.subs.mu.Unlock()
	c.subs.playerInUnit = fn
}

// OnPlayersChanged registers the callback for player roster mutations.
// It receives a point-in-time copy of the roster after each connect,
// disconnect, slot change, roster refresh or inferred local player.
func (c *Connector) OnPlayersChanged(fn func([]dcs.Player)) {
	c.subs.mu.Lock()
	defer c.subs.mu.Unlock()
	c.subs.playersChanged = fn
}

// OnChatMessage registers the callback for player chat lines.
func (c *Connector) OnChatMessage(fn func(dcs.ChatMessage)) {
	c.subs.mu.Lock()
	defer c.subs.mu.Unlock()
	c.subs.chat = fn
}

// OnGroupCommandExecuted registers the callback for invoked group menu
// commands.
func (c *Connector) OnGroupCommandExecuted(fn func(dcs.GroupCommandExecuted)) {
	c.subs.mu.Lock()
	defer c.subs.mu.Unlock()
	c.subs.groupCommand = fn
}

// OnStatusChange registers the callback for connection status
// transitions.
func (c *Connector) OnStatusChange(fn func(dcs.StatusChange)) {
	c.subs.mu.Lock()
	defer c.subs.mu.Unlock()
	c.subs.status = fn
}

// OnEvent registers the callback for raw simulation events, delivered
// before the connector's own handling.
func (c *Connector) OnEvent(fn func(dcs.Event)) {
	c.subs.mu.Lock()
	defer c.subs.mu.Unlock()
	c.subs.event = fn
}

func (s *subscriptions) notifyUnitUpdate(log *slog.Logger, u dcs.UnitUpdate) {
	s.mu.RLock()
	fn := s.unitUpdate
	s.mu.RUnlock()
	if fn != nil {
		safeCall(log, "unit update", func() { fn(u) })
	}
}

func (s *subscriptions) notifyPlayerInUnit(log *slog.Logger, ch dcs.PlayerInUnitChange) {
	s.mu.RLock()
	fn := s.playerInUnit
	s.mu.RUnlock()
	if fn != nil {
		safeCall(log, "player in unit", func() { fn(ch) })
	}
}

func (s *subscriptions) notifyPlayersChanged(log *slog.Logger, players []dcs.Player) {
	s.mu.RLock()
	fn := s.playersChanged
	s.mu.RUnlock()
	if fn != nil {
		safeCall(log, "players changed", func() { fn(players) })
	}
}

func (s *subscriptions) notifyChat(log *slog.Logger, msg dcs.ChatMessage) {
	s.mu.RLock()
	fn := s.chat
	s.mu.RUnlock()
	if fn != nil {
		safeCall(log, "chat message", func() { fn(msg) })
	}
}

func (s *subscriptions) notifyGroupCommand(log *slog.Logger, cmd dcs.GroupCommandExecuted) {
	s.mu.RLock()
	fn := s.groupCommand
	s.mu.RUnlock()
	if fn != nil {
		safeCall(log, "group command", func() { fn(cmd) })
	}
}

func (s *subscriptions) notifyStatus(log *slog.Logger, st dcs.StatusChange) {
	s.mu.RLock()
	fn := s.status
	s.mu.RUnlock()
	if fn != nil {
		safeCall(log, "status change", func() { fn(st) })
	}
}

func (s *subscriptions) notifyEvent(log *slog.Logger, e dcs.Event) {
	s.mu.RLock()
	fn := s.event
	s.mu.RUnlock()
	if fn != nil {
		safeCall(log, "event", func() { fn(e) })
	}
}

// safeCall contains a panicking subscriber so it cannot take down the
// pipeline goroutine it runs on.
func safeCall(log *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("subscriber callback panicked", "callback", name, "panic", r)
		}
	}()
	fn()
}
