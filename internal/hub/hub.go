package hub

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/fanwars-backend/internal/engine"
	"github.com/DoyleJ11/fanwars-backend/internal/room"
	"github.com/DoyleJ11/fanwars-backend/internal/store"
	"github.com/DoyleJ11/fanwars-backend/pkg/types"
)

// Handshake rejections. No session state exists after any of them.
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrRoomNotFound     = errors.New("room not found")
	ErrBanned           = errors.New("banned for leaving")
	ErrUnknownTeam      = errors.New("team is not playing in this room")
	ErrTeamFull         = errors.New("team is full")
	ErrDuplicateSession = errors.New("already connected")
)

type MatchDirectory interface {
	ListMatches(ctx context.Context, ids []string) ([]store.Match, error)
}

type RoomDirectory interface {
	ClaimRooms(ctx context.Context, ids []string) ([]store.Room, error)
	RestoreRooms(ctx context.Context) ([]store.Room, error)
}

type RatingLedger interface {
	AdjustTeamRating(ctx context.Context, id string, delta int) error
	AdjustUserRating(ctx context.Context, id string, delta int) error
}

type Users interface {
	GetUser(ctx context.Context, id string) (store.User, error)
	PunishForLeave(ctx context.Context, id string, until time.Time) error
}

type Catalog interface {
	ListItems(ctx context.Context) ([]store.Item, error)
	ListCountries(ctx context.Context) ([]store.Country, error)
}

type Deps struct {
	Matches MatchDirectory
	Rooms   RoomDirectory
	Ratings RatingLedger
	Users   Users
	Catalog Catalog
	Logger  *zap.Logger
	Now     func() time.Time
}

type Rules struct {
	SeatCapacity int
	Engine       engine.Rules
	FlightDelay  time.Duration
	EndGrace     time.Duration
	LeaveBan     time.Duration
	VictoryDelta int
	DefeatDelta  int
}

func DefaultRules() Rules {
	return Rules{
		SeatCapacity: 16,
		Engine:       engine.DefaultRules(),
		FlightDelay:  time.Second,
		EndGrace:     10 * time.Second,
		LeaveBan:     4 * time.Minute,
		VictoryDelta: 25,
		DefeatDelta:  15,
	}
}

type client struct {
	connID  string
	roomID  string
	user    store.User
	outbox  chan types.Frame
	dropped bool
}

// Hub is the session engine. All room and connection state is owned by the
// loop goroutine; everything else talks to it through Inbox.
type Hub struct {
	inbox  chan HubMsg
	ctx    context.Context
	cancel context.CancelFunc

	rules  Rules
	deps   Deps
	logger *zap.Logger

	rooms      map[string]*room.Room
	matchRooms map[string][]string
	matches    map[string]store.Match // last upstream snapshot per match
	ended      map[string]bool        // matches that ended; never claimed again
	clients    map[string]*client
	userConns  map[string]string

	items        map[string]engine.Item
	itemOrder    []string
	countries    []store.Country
	catalogReady bool

	drops []string
}

func NewHub(parent context.Context, rules Rules, deps Deps) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	h := &Hub{
		inbox:      make(chan HubMsg, 256),
		ctx:        ctx,
		cancel:     cancel,
		rules:      rules,
		deps:       deps,
		logger:     deps.Logger.Named("hub"),
		rooms:      make(map[string]*room.Room),
		matchRooms: make(map[string][]string),
		matches:    make(map[string]store.Match),
		ended:      make(map[string]bool),
		clients:    make(map[string]*client),
		userConns:  make(map[string]string),
		items:      make(map[string]engine.Item),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) Rules() Rules { return h.rules }

func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

// Post delivers msg to the loop unless the hub has shut down.
func (h *Hub) Post(msg HubMsg) bool {
	select {
	case h.inbox <- msg:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Join:
				msg.Reply <- h.join(msg)
			case Leave:
				h.leave(msg.ConnID)
			case Command:
				h.command(msg)
			case Lifecycle:
				h.lifecycle(msg)
			case ProjectileLanded:
				h.projectileLanded(msg)
			case roomsClaimed:
				h.roomsClaimed(msg)
			case catalogLoaded:
				h.catalogLoaded(msg)
			case matchesLoaded:
				h.matchesLoaded(msg)
			case ratingsSettled:
				h.ratingsSettled(msg)
			case closeConnections:
				for _, connID := range msg.ConnIDs {
					h.disconnect(connID)
				}
			case GetRooms:
				msg.Reply <- h.roomInfos()
			case Inspect:
				msg.Reply <- h.inspect(msg.RoomID)
			case Shutdown:
				h.cancel()
			}
			h.flushDrops()
		}
	}
}

func (h *Hub) shutdown() {
	for connID, cl := range h.clients {
		close(cl.outbox)
		delete(h.clients, connID)
	}
	clear(h.userConns)
	clear(h.rooms)
	clear(h.matchRooms)
	clear(h.matches)
}

// async runs fn off the loop and posts its result back. fn must only touch
// collaborators, never hub state.
func (h *Hub) async(fn func(ctx context.Context) HubMsg) {
	go func() {
		if msg := fn(h.ctx); msg != nil {
			h.Post(msg)
		}
	}()
}

// after posts msg once d has elapsed. There is no cancellation; handlers must
// tolerate targets that no longer exist.
func (h *Hub) after(d time.Duration, msg HubMsg) {
	time.AfterFunc(d, func() { h.Post(msg) })
}

func (h *Hub) send(connID string, frame types.Frame) {
	cl, ok := h.clients[connID]
	if !ok || cl.dropped {
		return
	}
	select {
	case cl.outbox <- frame:
	default:
		// Client is slow/full - drop them.
		cl.dropped = true
		h.drops = append(h.drops, connID)
	}
}

func (h *Hub) push(connID string, msgs ...types.Message) {
	if len(msgs) > 0 {
		h.send(connID, types.Push(msgs...))
	}
}

// broadcast pushes msgs to every connection in r except the one given.
func (h *Hub) broadcast(r *room.Room, except string, msgs ...types.Message) {
	for _, connID := range r.Connections() {
		if connID != except {
			h.push(connID, msgs...)
		}
	}
}

// fanout pushes a per-recipient message list to every connection in r except
// the one given.
func (h *Hub) fanout(r *room.Room, except string, build func(connID string) []types.Message) {
	for _, connID := range r.Connections() {
		if connID != except {
			h.push(connID, build(connID)...)
		}
	}
}

func (h *Hub) flushDrops() {
	for len(h.drops) > 0 {
		connID := h.drops[0]
		h.drops = h.drops[1:]
		h.logger.Info("dropping slow client", zap.String("conn", connID))
		h.leave(connID)
	}
}

// disconnect ends a connection from the server side. The transport sees its
// outbox closed.
func (h *Hub) disconnect(connID string) {
	cl, ok := h.clients[connID]
	if !ok {
		return
	}
	delete(h.clients, connID)
	if h.userConns[cl.user.ID] == connID {
		delete(h.userConns, cl.user.ID)
	}
	close(cl.outbox)
}
