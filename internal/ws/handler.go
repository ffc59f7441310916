package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/fanwars-backend/internal/hub"
	"github.com/DoyleJ11/fanwars-backend/internal/store"
	"github.com/DoyleJ11/fanwars-backend/internal/types"
	wire "github.com/DoyleJ11/fanwars-backend/pkg/types"
)

const (
	outboxSize   = 64
	readLimit    = 4096
	writeTimeout = 3 * time.Second
)

type TokenVerifier interface {
	ValidateToken(token string) (string, error)
}

type UserLookup interface {
	GetUser(ctx context.Context, id string) (store.User, error)
}

type Deps struct {
	Hub    *hub.Hub
	Tokens TokenVerifier
	Users  UserLookup
	Logger *zap.Logger

	// OriginPatterns loosens the same-origin check, e.g. "localhost:*" in dev.
	OriginPatterns []string
}

// Handler upgrades /ws?token=&roomId=&teamId= requests into match sessions.
// The handshake is decided before the upgrade so rejections are plain HTTP
// errors. The token is checked first; anonymous callers learn nothing else.
func Handler(d Deps) http.HandlerFunc {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		user, err := authorize(r.Context(), d, q.Get("token"))
		if err != nil {
			if !errors.Is(err, hub.ErrUnauthorized) {
				logger.Error("failed to load user", zap.Error(err))
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			reject(w, logger, err)
			return
		}

		roomID, teamID := q.Get("roomId"), q.Get("teamId")
		if roomID == "" || teamID == "" {
			http.Error(w, "missing roomId or teamId", http.StatusBadRequest)
			return
		}

		connID := uuid.NewString()
		out := make(chan wire.Frame, outboxSize)
		reply := make(chan error, 1)
		if !d.Hub.Post(hub.Join{ConnID: connID, RoomID: roomID, TeamID: teamID, User: user, Outbox: out, Reply: reply}) {
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}
		select {
		case err = <-reply:
		case <-d.Hub.Done():
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}
		if err != nil {
			reject(w, logger, err)
			return
		}
		defer d.Hub.Post(hub.Leave{ConnID: connID})

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: d.OriginPatterns})
		if err != nil {
			logger.Debug("upgrade failed", zap.String("conn", connID), zap.Error(err))
			return
		}
		defer conn.CloseNow()
		conn.SetReadLimit(readLimit)

		log := logger.With(zap.String("conn", connID), zap.String("room", roomID), zap.String("user", user.ID))
		log.Debug("session started")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine. The hub closes the outbox to end the session.
		go func() {
			defer cancel()
			for f := range out {
				if err := writeFrame(ctx, conn, f); err != nil {
					log.Debug("write failed", zap.Error(err))
					return
				}
			}
			_ = conn.Close(websocket.StatusNormalClosure, "session ended")
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					log.Debug("session closed by client")
				default:
					log.Debug("read failed", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = writeFrame(ctx, conn, wire.Frame{Event: wire.EventError, Data: []wire.Message{}, Error: "bad json"})
				continue
			}
			if !d.Hub.Post(toCommand(connID, cm)) {
				return
			}
		}
	}
}

func authorize(ctx context.Context, d Deps, token string) (store.User, error) {
	if token == "" {
		return store.User{}, hub.ErrUnauthorized
	}
	userID, err := d.Tokens.ValidateToken(token)
	if err != nil {
		return store.User{}, hub.ErrUnauthorized
	}
	user, err := d.Users.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, hub.ErrUnauthorized
	}
	return user, err
}

func reject(w http.ResponseWriter, logger *zap.Logger, err error) {
	logger.Debug("handshake rejected", zap.Error(err))
	http.Error(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, hub.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, hub.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, hub.ErrBanned):
		return http.StatusForbidden
	case errors.Is(err, hub.ErrTeamFull), errors.Is(err, hub.ErrDuplicateSession):
		return http.StatusConflict
	case errors.Is(err, hub.ErrUnknownTeam):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// toCommand never fails: malformed fields reach the hub and are rejected
// there with an empty ack.
func toCommand(connID string, m types.ClientMessage) hub.Command {
	seatID, _ := strconv.Atoi(m.SeatID)
	return hub.Command{
		ConnID:   connID,
		Type:     hub.CommandType(m.Type),
		Ack:      m.Ack,
		SeatID:   seatID,
		ItemID:   m.ItemID,
		TargetID: m.TargetID,
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, f wire.Frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}
