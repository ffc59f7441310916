package hub

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/fanwars-backend/internal/engine"
	"github.com/DoyleJ11/fanwars-backend/pkg/types"
)

// join runs the in-memory part of the handshake. Token verification and the
// user lookup happen in the transport before the Join is posted.
func (h *Hub) join(msg Join) error {
	r := h.rooms[msg.RoomID]
	switch {
	case r == nil || !r.Active():
		return ErrRoomNotFound
	case msg.User.IsLeaver(h.deps.Now()):
		return ErrBanned
	case !r.HasTeam(msg.TeamID):
		return ErrUnknownTeam
	case r.TeamCount(msg.TeamID) >= r.TeamLimit():
		return ErrTeamFull
	}
	if _, ok := h.userConns[msg.User.ID]; ok {
		return ErrDuplicateSession
	}
	if _, ok := h.clients[msg.ConnID]; ok {
		return ErrDuplicateSession
	}

	c := engine.NewCharacter(uuid.NewString(), msg.TeamID, msg.User.ID, h.rules.Engine)
	r.AddCharacter(msg.ConnID, c)
	h.clients[msg.ConnID] = &client{
		connID: msg.ConnID,
		roomID: r.ID,
		user:   msg.User,
		outbox: msg.Outbox,
	}
	h.userConns[msg.User.ID] = msg.ConnID

	h.logger.Debug("joined",
		zap.String("room", r.ID),
		zap.String("conn", msg.ConnID),
		zap.String("user", msg.User.ID),
		zap.String("character", c.ID),
		zap.String("team", c.TeamID))

	h.push(msg.ConnID, h.startMessages(r, msg.ConnID, c.ID)...)
	h.broadcast(r, msg.ConnID, characterMessage(h.characterView(r, c, false)))
	return nil
}

// leave removes a connection. A seated character leaving an active room earns
// its user the leave penalty.
func (h *Hub) leave(connID string) {
	cl, ok := h.clients[connID]
	if !ok {
		return
	}
	h.disconnect(connID)

	r := h.rooms[cl.roomID]
	if r == nil {
		return
	}
	c, ok := r.RemoveCharacter(connID)
	if !ok {
		return
	}

	msgs := []types.Message{{Type: types.TypeRemoveCharacters, Data: []string{c.ID}}}
	if c.SeatID > 0 {
		msgs = append(msgs, types.Message{Type: types.TypeUpdateSeats, Data: []types.Seat{seatView(c.SeatID, "")}})
	}
	h.broadcast(r, connID, msgs...)

	if c.SeatID == 0 || !r.Active() {
		return
	}
	userID := cl.user.ID
	until := h.deps.Now().Add(h.rules.LeaveBan)
	logger := h.logger.With(zap.String("user", userID), zap.String("room", r.ID))
	logger.Info("seated character left, applying leave penalty", zap.Time("until", until))
	h.async(func(ctx context.Context) HubMsg {
		if err := h.deps.Users.PunishForLeave(ctx, userID, until); err != nil {
			logger.Error("failed to apply leave penalty", zap.Error(err))
		}
		return nil
	})
}
