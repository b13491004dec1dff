package dcsconnect

import (
	"context"

	"github.com/ctrue/dcs-connect/pkg/dcs"
	"github.com/ctrue/dcs-connect/pkg/rpc"
)

// connection returns the live transport connection or ErrNotConnected.
func (c *Connector) connection() (rpc.Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || State(c.state.Load()) != StateConnected {
		return nil, ErrNotConnected
	}
	return c.sess.conn, nil
}

// SendChatMessage sends a chat line to a coalition (or everyone with
// CoalitionAll). Returns ErrNotConnected when no session is live.
func (c *Connector) SendChatMessage(ctx context.Context, coalition dcs.Coalition, message string) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}
	return conn.Net().SendChat(ctx, coalition, message)
}

// SendChatMessageToPlayer sends a private chat line to one player.
func (c *Connector) SendChatMessageToPlayer(ctx context.Context, playerID uint32, message string) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}
	return conn.Net().SendChatTo(ctx, playerID, message)
}

// ShowText displays text to all players. Returns ErrNotConnected when no
// session is live.
func (c *Connector) ShowText(ctx context.Context, text string, displayTime int32, clearView bool) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}
	return conn.Trigger().OutText(ctx, text, displayTime, clearView)
}

// ShowTextForCoalition displays text to one coalition. A best-effort
// visual: silently skipped while disconnected.
func (c *Connector) ShowTextForCoalition(ctx context.Context, coalition dcs.Coalition, text string, displayTime int32) error {
	conn, err := c.connection()
	if err != nil {
		return nil
	}
	return conn.Trigger().OutTextForCoalition(ctx, coalition, text, displayTime)
}

// ShowTextForGroup displays text to one group. Best-effort.
func (c *Connector) ShowTextForGroup(ctx context.Context, groupID uint32, text string, displayTime int32) error {
	conn, err := c.connection()
	if err != nil {
		return nil
	}
	return conn.Trigger().OutTextForGroup(ctx, groupID, text, displayTime)
}

// ShowTextForUnit displays text to one unit. Best-effort.
func (c *Connector) ShowTextForUnit(ctx context.Context, unitID uint32, text string, displayTime int32) error {
	conn, err := c.connection()
	if err != nil {
		return nil
	}
	return conn.Trigger().OutTextForUnit(ctx, unitID, text, displayTime)
}

// Smoke places a smoke marker at a world position. Best-effort.
func (c *Connector) Smoke(ctx context.Context, color dcs.SmokeColor, lat, lon float64) error {
	conn, err := c.connection()
	if err != nil {
		return nil
	}
	return conn.Trigger().Smoke(ctx, color, lat, lon)
}

// IlluminationBomb spawns an illumination flare. Best-effort.
func (c *Connector) IlluminationBomb(ctx context.Context, lat, lon, alt float64, power uint32) error {
	conn, err := c.connection()
	if err != nil {
		return nil
	}
	return conn.Trigger().IlluminationBomb(ctx, lat, lon, alt, power)
}

// Explosion spawns an explosion effect. Best-effort.
func (c *Connector) Explosion(ctx context.Context, lat, lon float64, power uint32) error {
	conn, err := c.connection()
	if err != nil {
		return nil
	}
	return conn.Trigger().Explosion(ctx, lat, lon, power)
}

// AddMark places a map mark visible to everyone. Best-effort: while
// disconnected it reports id 0 without error.
func (c *Connector) AddMark(ctx context.Context, message, text string, lat, lon float64, readOnly bool) (uint32, error) {
	conn, err := c.connection()
	if err != nil {
		return 0, nil
	}
	return conn.Trigger().MarkToAll(ctx, message, text, lat, lon, readOnly)
}

// RemoveMark removes a map mark. Best-effort.
func (c *Connector) RemoveMark(ctx context.Context, markID uint32) error {
	conn, err := c.connection()
	if err != nil {
		return nil
	}
	return conn.Trigger().RemoveMark(ctx, markID)
}

// SetPaused pauses or resumes the simulation.
func (c *Connector) SetPaused(ctx context.Context, paused bool) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}
	return conn.Hook().SetPaused(ctx, paused)
}

// GetPaused reports whether the simulation is paused.
func (c *Connector) GetPaused(ctx context.Context) (bool, error) {
	conn, err := c.connection()
	if err != nil {
		return false, err
	}
	return conn.Hook().GetPaused(ctx)
}

// ReloadCurrentMission restarts the running mission.
func (c *Connector) ReloadCurrentMission(ctx context.Context) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}
	return conn.Hook().ReloadCurrentMission(ctx)
}

// GetScenarioCurrentTime queries the server's mission clock directly.
func (c *Connector) GetScenarioCurrentTime(ctx context.Context) (float64, error) {
	conn, err := c.connection()
	if err != nil {
		return 0, err
	}
	return conn.Mission().GetScenarioCurrentTime(ctx)
}

// AddGroupCommand registers a menu command for one group. The menuID is
// echoed back in the group command notification when a player invokes it.
func (c *Connector) AddGroupCommand(ctx context.Context, groupName, name, menuID string) (string, error) {
	conn, err := c.connection()
	if err != nil {
		return "", err
	}
	return conn.Mission().AddGroupCommand(ctx, groupName, name, map[string]string{"menuId": menuID})
}

// AddGroupCommandSubMenu registers a sub-menu for one group.
func (c *Connector) AddGroupCommandSubMenu(ctx context.Context, groupName, name string) (string, error) {
	conn, err := c.connection()
	if err != nil {
		return "", err
	}
	return conn.Mission().AddGroupCommandSubMenu(ctx, groupName, name)
}

// RemoveGroupCommand removes the registered menu commands of one group.
func (c *Connector) RemoveGroupCommand(ctx context.Context, groupName string) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}
	return conn.Mission().RemoveGroupCommand(ctx, groupName)
}

// AddCoalitionCommand registers a menu command for one coalition.
func (c *Connector) AddCoalitionCommand(ctx context.Context, coalition dcs.Coalition, name, menuID string) (string, error) {
	conn, err := c.connection()
	if err != nil {
		return "", err
	}
	return conn.Mission().AddCoalitionCommand(ctx, coalition, name, map[string]string{"menuId": menuID})
}

// RemoveCoalitionCommand removes the registered menu commands of one
// coalition.
func (c *Connector) RemoveCoalitionCommand(ctx context.Context, coalition dcs.Coalition) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}
	return conn.Mission().RemoveCoalitionCommand(ctx, coalition)
}

// RefreshPlayers re-pulls the multiplayer roster into the cache.
func (c *Connector) RefreshPlayers(ctx context.Context) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}
	players, err := conn.Net().GetPlayers(ctx)
	if err != nil {
		return err
	}
	c.entities.RefreshPlayers(playerRecordsToPlayers(players))
	c.notifyPlayersChanged()
	return nil
}

// RefreshGroups re-pulls the group roster into the cache.
func (c *Connector) RefreshGroups(ctx context.Context) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}
	groups, err := conn.Coalition().GetGroups(ctx, dcs.CoalitionAll, dcs.GroupCategoryUnspecified)
	if err != nil {
		return err
	}
	gs := make([]dcs.Group, 0, len(groups))
	for _, g := range groups {
		gs = append(gs, dcs.Group{ID: g.ID, Name: g.Name, Coalition: g.Coalition, Category: g.Category})
	}
	c.entities.RefreshGroups(gs)
	return nil
}
