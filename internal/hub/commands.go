package hub

import (
	"go.uber.org/zap"

	"github.com/DoyleJ11/fanwars-backend/internal/engine"
	"github.com/DoyleJ11/fanwars-backend/internal/room"
	"github.com/DoyleJ11/fanwars-backend/pkg/types"
)

// command handles a client command. Every rejection answers with an empty
// ack and leaves state untouched; clients cannot tell why.
func (h *Hub) command(cmd Command) {
	if _, ok := h.clients[cmd.ConnID]; !ok {
		return
	}
	reply := h.apply(cmd)
	h.send(cmd.ConnID, types.Reply(cmd.Ack, reply...))
}

func (h *Hub) apply(cmd Command) []types.Message {
	cl := h.clients[cmd.ConnID]
	r := h.rooms[cl.roomID]
	if r == nil || !r.Active() {
		return nil
	}
	c, ok := r.CharacterOf(cmd.ConnID)
	if !ok {
		return nil
	}

	switch cmd.Type {
	case CmdTakeSeat:
		return h.takeSeat(r, c, cmd)
	case CmdBuyItem:
		return h.buyItem(r, c, cmd)
	case CmdUseItem:
		return h.useItem(r, c, cmd)
	default:
		return nil
	}
}

func (h *Hub) takeSeat(r *room.Room, c *engine.Character, cmd Command) []types.Message {
	if err := r.TakeSeat(c.ID, cmd.SeatID); err != nil {
		h.logger.Debug("take seat rejected", zap.String("conn", cmd.ConnID), zap.Int("seat", cmd.SeatID), zap.Error(err))
		return nil
	}
	seats := seatsMessage(seatView(c.SeatID, c.ID))
	h.broadcast(r, cmd.ConnID, seats, characterMessage(h.characterView(r, *c, false)))
	return []types.Message{seats, characterMessage(h.characterView(r, *c, true))}
}

func (h *Hub) buyItem(r *room.Room, c *engine.Character, cmd Command) []types.Message {
	item, ok := h.items[cmd.ItemID]
	if !ok {
		return nil
	}
	_, next, err := engine.Apply(*c, h.rules.Engine, engine.Command{Type: engine.CmdBuyItem, Item: item})
	if err != nil {
		h.logger.Debug("buy rejected", zap.String("conn", cmd.ConnID), zap.String("item", item.ID), zap.Error(err))
		return nil
	}
	*c = next
	return []types.Message{characterMessage(h.characterView(r, *c, true))}
}

func (h *Hub) useItem(r *room.Room, c *engine.Character, cmd Command) []types.Message {
	item, ok := h.items[cmd.ItemID]
	if !ok {
		return nil
	}
	if item.Behavior == engine.BehaviorOffensive {
		return h.fire(r, c, item, cmd)
	}

	_, next, err := engine.Apply(*c, h.rules.Engine, engine.Command{Type: engine.CmdUseDefense, Item: item})
	if err != nil {
		h.logger.Debug("defense rejected", zap.String("conn", cmd.ConnID), zap.String("item", item.ID), zap.Error(err))
		return nil
	}
	*c = next
	h.broadcast(r, cmd.ConnID, characterMessage(h.characterView(r, *c, false)))
	return []types.Message{characterMessage(h.characterView(r, *c, true))}
}

func (h *Hub) fire(r *room.Room, c *engine.Character, item engine.Item, cmd Command) []types.Message {
	if c.Down() {
		return nil
	}
	if _, ok := r.ConnectionOf(cmd.TargetID); !ok {
		return nil
	}
	target, _ := r.Character(cmd.TargetID)
	if target.Down() || target.TeamID == c.TeamID {
		return nil
	}

	_, next, err := engine.Apply(*c, h.rules.Engine, engine.Command{Type: engine.CmdFire, Item: item})
	if err != nil {
		h.logger.Debug("fire rejected", zap.String("conn", cmd.ConnID), zap.String("item", item.ID), zap.Error(err))
		return nil
	}
	*c = next

	p := r.AddProjectile(target.ID)
	fired := types.Message{Type: types.TypeUpdateProjectiles, Data: []types.Projectile{projectileView(p)}}
	h.broadcast(r, cmd.ConnID, fired)
	h.after(h.rules.FlightDelay, ProjectileLanded{RoomID: r.ID, ProjectileID: p.ID})

	return []types.Message{characterMessage(h.characterView(r, *c, true)), fired}
}

// projectileLanded resolves a projectile by ids only; the room, the
// projectile or its target may be gone by now.
func (h *Hub) projectileLanded(msg ProjectileLanded) {
	r := h.rooms[msg.RoomID]
	if r == nil {
		return
	}
	p, ok := r.RemoveProjectile(msg.ProjectileID)
	if !ok {
		return
	}
	removed := types.Message{Type: types.TypeRemoveProjectiles, Data: []string{p.ID}}

	target, ok := r.Character(p.TargetID)
	if !ok || target.Down() || !r.Active() {
		h.broadcast(r, "", removed)
		return
	}

	events, next, err := engine.Apply(*target, h.rules.Engine, engine.Command{Type: engine.CmdTakeHit})
	if err != nil {
		h.broadcast(r, "", removed)
		return
	}
	*target = next
	if engine.ContainsEvent(events, engine.EvtKnockedOut) {
		r.AddKnockout(target.TeamID)
		h.logger.Info("character knocked out",
			zap.String("room", r.ID),
			zap.String("character", target.ID),
			zap.String("team", target.TeamID))
	}

	hit := *target
	h.fanout(r, "", func(connID string) []types.Message {
		return []types.Message{removed, characterMessage(h.characterFor(r, hit, connID))}
	})
}
