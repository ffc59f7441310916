package hub

import (
	"github.com/DoyleJ11/fanwars-backend/internal/engine"
	"github.com/DoyleJ11/fanwars-backend/internal/events"
	"github.com/DoyleJ11/fanwars-backend/internal/room"
	"github.com/DoyleJ11/fanwars-backend/internal/store"
	"github.com/DoyleJ11/fanwars-backend/pkg/types"
)

type HubMsg interface{ isHubMsg() }

// Join asks for a session in RoomID on TeamID. The hub answers on Reply with
// nil or one of the handshake errors; on success frames start arriving on
// Outbox.
type Join struct {
	ConnID string
	RoomID string
	TeamID string
	User   store.User
	Outbox chan types.Frame
	Reply  chan error
}

type Leave struct{ ConnID string }

type CommandType string

const (
	CmdTakeSeat CommandType = "takeSeat"
	CmdBuyItem  CommandType = "buyItem"
	CmdUseItem  CommandType = "useItem"
)

// Command is a client command. The response is an ack frame on the
// connection's outbox, empty when the command was rejected.
type Command struct {
	ConnID   string
	Type     CommandType
	Ack      *int64
	SeatID   int
	ItemID   string
	TargetID string
}

type Lifecycle struct{ Event events.Event }

type ProjectileLanded struct {
	RoomID       string
	ProjectileID string
}

type GetRooms struct{ Reply chan []RoomInfo }

// Inspect reflects a room's internal state without data races. A nil reply
// means the room does not exist.
type Inspect struct {
	RoomID string
	Reply  chan *RoomState
}

type Shutdown struct{}

type roomsClaimed struct {
	rooms   []store.Room
	matches []store.Match
}

type catalogLoaded struct {
	items     []store.Item
	countries []store.Country
}

type matchesLoaded struct{ matches []store.Match }

type ratingsSettled struct{ settlements []settlement }

type closeConnections struct{ ConnIDs []string }

type RoomInfo struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	MatchID     string         `json:"matchId"`
	Phase       room.Phase     `json:"phase"`
	Connections int            `json:"connections"`
	Knockouts   map[string]int `json:"knockouts"`
}

type RoomState struct {
	RoomInfo
	Characters  []engine.Character
	Seats       []room.Seat
	Projectiles []room.Projectile
}

func (Join) isHubMsg()             {}
func (Leave) isHubMsg()            {}
func (Command) isHubMsg()          {}
func (Lifecycle) isHubMsg()        {}
func (ProjectileLanded) isHubMsg() {}
func (GetRooms) isHubMsg()         {}
func (Inspect) isHubMsg()          {}
func (Shutdown) isHubMsg()         {}
func (roomsClaimed) isHubMsg()     {}
func (catalogLoaded) isHubMsg()    {}
func (matchesLoaded) isHubMsg()    {}
func (ratingsSettled) isHubMsg()   {}
func (closeConnections) isHubMsg() {}
