package dcsconnect

import (
	"github.com/ctrue/dcs-connect/internal/cache"
	"github.com/ctrue/dcs-connect/pkg/dcs"
	"github.com/ctrue/dcs-connect/pkg/rpc"
)

// receiveUnits pulls telemetry messages off the wire and hands them to
// the unit processor. It does no decoding work of its own so a slow
// subscriber stalls the pipe, not the socket.
func (c *Connector) receiveUnits(s *session, stream rpc.UnitStream) {
	defer s.recvWG.Done()
	for {
		msg, err := stream.Recv()
		if err != nil {
			c.reportStreamEnd(s, "unit stream", err)
			return
		}
		if !s.unitCh.SendCtx(s.ctx, msg) {
			return
		}
	}
}

// receiveEvents pulls simulation events off the wire and hands them to
// the event processor.
func (c *Connector) receiveEvents(s *session, stream rpc.EventStream) {
	defer s.recvWG.Done()
	for {
		e, err := stream.Recv()
		if err != nil {
			c.reportStreamEnd(s, "event stream", err)
			return
		}
		if !s.eventCh.SendCtx(s.ctx, e) {
			return
		}
	}
}

// reportStreamEnd tells the run goroutine that a stream ended. During
// cleanup the session context is already cancelled and the report is
// dropped, the teardown is underway either way.
func (c *Connector) reportStreamEnd(s *session, name string, err error) {
	select {
	case c.failCh <- streamFailure{sess: s, name: name, err: err}:
	case <-s.ctx.Done():
	}
}

// processUnits drains the unit pipe and applies each message to the
// cache. On shutdown it finishes whatever is already queued before
// stopping.
func (c *Connector) processUnits(s *session) {
	defer s.procWG.Done()
	for {
		select {
		case msg, ok := <-s.unitCh.Receive():
			if !ok {
				return
			}
			c.applyUnitMessage(msg)
		case <-s.ctx.Done():
			for {
				select {
				case msg, ok := <-s.unitCh.Receive():
					if !ok {
						return
					}
					c.applyUnitMessage(msg)
				default:
					return
				}
			}
		}
	}
}

// processEvents drains the event pipe, forwards each raw event to the
// event subscriber and routes it through the dispatcher.
func (c *Connector) processEvents(s *session) {
	defer s.procWG.Done()
	for {
		select {
		case e, ok := <-s.eventCh.Receive():
			if !ok {
				return
			}
			c.applyEvent(e)
		case <-s.ctx.Done():
			for {
				select {
				case e, ok := <-s.eventCh.Receive():
					if !ok {
						return
					}
					c.applyEvent(e)
				default:
					return
				}
			}
		}
	}
}

// applyUnitMessage updates the cache from one telemetry message and
// raises the derived notifications. For updates the unit notification
// precedes a possible "entered", for removals the "left" precedes the
// removal notification, so subscribers never see a player inside a unit
// they have not heard of.
func (c *Connector) applyUnitMessage(msg dcs.UnitMessage) {
	c.setMissionTime(msg.Time)

	switch {
	case msg.Unit != nil:
		stored, occ := c.entities.ApplyUnit(msg.Unit)
		c.subs.notifyUnitUpdate(c.log, dcs.UpdatedUnit(msg.Time, &stored))
		if occ != nil {
			c.notifyOccupancy(*occ)
		}

	case msg.Gone != nil:
		_, occ := c.entities.RemoveUnit(msg.Gone.ID)
		if occ != nil {
			c.notifyOccupancy(*occ)
		}
		c.subs.notifyUnitUpdate(c.log, dcs.DeletedUnit(msg.Time, msg.Gone.ID, msg.Gone.Name))
	}
}

// applyEvent advances mission time, forwards the raw event and routes it
// to the registered handler.
func (c *Connector) applyEvent(e dcs.Event) {
	c.setMissionTime(e.Time)
	c.subs.notifyEvent(c.log, e)
	if err := c.disp.Dispatch(e); err != nil {
		c.log.Error("event handling failed", "kind", e.Kind.String(), "error", err)
	}
}

// notifyOccupancy resolves the player behind an occupancy transition and
// notifies the subscriber. Unknown names become locally-inferred player
// records, which is itself a roster mutation.
func (c *Connector) notifyOccupancy(occ cache.Occupancy) {
	p, created := c.entities.EnsurePlayerByName(occ.PlayerName)
	if created {
		c.notifyPlayersChanged()
	}
	c.subs.notifyPlayerInUnit(c.log, dcs.PlayerInUnitChange{
		UnitID: occ.UnitID,
		Change: occ.Change,
		Player: p,
	})
}

// notifyPlayersChanged hands the subscriber a roster snapshot after any
// player cache mutation.
func (c *Connector) notifyPlayersChanged() {
	c.subs.notifyPlayersChanged(c.log, c.entities.Players())
}

// setMissionTime records the latest mission time seen on either stream.
func (c *Connector) setMissionTime(t float64) {
	if t == 0 {
		return
	}
	c.infoMu.Lock()
	if t > c.info.MissionTime {
		c.info.MissionTime = t
	}
	c.infoMu.Unlock()
}
