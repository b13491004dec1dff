package dcsconnect

import (
	"errors"

	"github.com/ctrue/dcs-connect/pkg/dcs"
)

var errMissingPayload = errors.New("event payload missing")

// registerHandlers wires the event kinds the connector reacts to.
// Kinds that only matter to subscribers are registered as observe-only
// handlers so they don't count as unhandled.
func (c *Connector) registerHandlers() {
	c.disp.Register(dcs.EventConnect, c.handlePlayerConnect)
	c.disp.Register(dcs.EventDisconnect, c.handlePlayerDisconnect)
	c.disp.Register(dcs.EventPlayerChangeSlot, c.handlePlayerChangeSlot)
	c.disp.Register(dcs.EventPlayerSendChat, c.handlePlayerSendChat)
	c.disp.Register(dcs.EventPlayerEnterUnit, c.handlePlayerEnterUnit)
	c.disp.Register(dcs.EventPlayerLeaveUnit, c.handlePlayerLeaveUnit)
	c.disp.Register(dcs.EventGroupCommand, c.handleGroupCommand)
	c.disp.Register(dcs.EventMarkAdd, c.handleMarkAdd)
	c.disp.Register(dcs.EventMarkChange, c.handleMarkChange)
	c.disp.Register(dcs.EventMarkRemove, c.handleMarkRemove)

	observed := []dcs.EventKind{
		dcs.EventBirth,
		dcs.EventMissionStart,
		dcs.EventMissionEnd,
		dcs.EventPilotDead,
		dcs.EventCoalitionCommand,
		dcs.EventMissionCommand,
	}
	for _, k := range observed {
		kind := k
		c.disp.Register(kind, func(e dcs.Event) error {
			c.log.Debug("observed event", "kind", kind.String())
			return nil
		})
	}
}

func (c *Connector) handlePlayerConnect(e dcs.Event) error {
	ev := e.Connect
	if ev == nil {
		return errMissingPayload
	}
	p := c.entities.PlayerConnected(ev.ID, ev.Name, ev.UCID, ev.Address)
	c.log.Info("player connected", "id", p.ID, "name", p.Name)
	c.notifyPlayersChanged()
	return nil
}

func (c *Connector) handlePlayerDisconnect(e dcs.Event) error {
	ev := e.Disconnect
	if ev == nil {
		return errMissingPayload
	}
	p, ok := c.entities.PlayerDisconnected(ev.ID, ev.Reason)
	if !ok {
		c.log.Debug("disconnect for unknown player", "id", ev.ID)
		return nil
	}
	c.log.Info("player disconnected", "id", p.ID, "name", p.Name, "reason", ev.Reason)
	c.notifyPlayersChanged()
	return nil
}

func (c *Connector) handlePlayerChangeSlot(e dcs.Event) error {
	ev := e.PlayerChangeSlot
	if ev == nil {
		return errMissingPayload
	}
	p, ok := c.entities.PlayerChangedSlot(ev.PlayerID, ev.Coalition, ev.SlotID)
	if !ok {
		c.log.Debug("slot change for unknown player", "id", ev.PlayerID)
		return nil
	}
	c.log.Info("player changed slot", "id", p.ID, "name", p.Name, "coalition", ev.Coalition.String(), "slot", ev.SlotID)
	c.notifyPlayersChanged()
	return nil
}

// handlePlayerSendChat raises chat from known players only; lines from
// ids missing in the roster are dropped.
func (c *Connector) handlePlayerSendChat(e dcs.Event) error {
	ev := e.PlayerSendChat
	if ev == nil {
		return errMissingPayload
	}
	if _, ok := c.entities.Player(ev.PlayerID); !ok {
		c.log.Debug("chat from unknown player", "id", ev.PlayerID)
		return nil
	}
	c.subs.notifyChat(c.log, dcs.ChatMessage{PlayerID: ev.PlayerID, Message: ev.Message})
	return nil
}

// handlePlayerEnterUnit covers the single-player path where the server
// raises the enter event directly instead of a pilot-name delta.
func (c *Connector) handlePlayerEnterUnit(e dcs.Event) error {
	ev := e.PlayerEnterUnit
	if ev == nil {
		return errMissingPayload
	}
	u := ev.Initiator.Unit
	if u == nil || u.PlayerName == "" {
		return nil
	}
	p, created := c.entities.EnsurePlayerByName(u.PlayerName)
	if created {
		c.notifyPlayersChanged()
	}
	c.subs.notifyPlayerInUnit(c.log, dcs.PlayerInUnitChange{
		UnitID: u.ID,
		Change: dcs.PlayerEnteredUnit,
		Player: p,
	})
	return nil
}

func (c *Connector) handlePlayerLeaveUnit(e dcs.Event) error {
	ev := e.PlayerLeaveUnit
	if ev == nil {
		return errMissingPayload
	}
	u := ev.Initiator.Unit
	if u == nil || u.PlayerName == "" {
		return nil
	}
	p, created := c.entities.EnsurePlayerByName(u.PlayerName)
	if created {
		c.notifyPlayersChanged()
	}
	c.subs.notifyPlayerInUnit(c.log, dcs.PlayerInUnitChange{
		UnitID: u.ID,
		Change: dcs.PlayerLeftUnit,
		Player: p,
	})
	return nil
}

func (c *Connector) handleGroupCommand(e dcs.Event) error {
	ev := e.GroupCommand
	if ev == nil {
		return errMissingPayload
	}
	menuID, ok := ev.Details["menuId"]
	if !ok {
		c.log.Warn("group command without menuId", "group", ev.GroupName)
		return nil
	}
	c.subs.notifyGroupCommand(c.log, dcs.GroupCommandExecuted{
		GroupID:    ev.GroupID,
		MenuItemID: menuID,
	})
	return nil
}

func (c *Connector) handleMarkAdd(e dcs.Event) error {
	if e.MarkAdd == nil {
		return errMissingPayload
	}
	c.marks.Set(*e.MarkAdd)
	return nil
}

func (c *Connector) handleMarkChange(e dcs.Event) error {
	if e.MarkChange == nil {
		return errMissingPayload
	}
	c.marks.Set(*e.MarkChange)
	return nil
}

func (c *Connector) handleMarkRemove(e dcs.Event) error {
	if e.MarkRemove == nil {
		return errMissingPayload
	}
	c.marks.Delete(e.MarkRemove.ID)
	return nil
}
