package room

import (
	"cmp"
	"errors"
	"slices"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/DoyleJ11/fanwars-backend/internal/engine"
)

var ErrSeatNotFound = errors.New("seat not found")
var ErrSeatTaken = errors.New("seat taken")
var ErrWrongSide = errors.New("seat belongs to the other team")
var ErrAlreadySeated = errors.New("character already seated")
var ErrCharacterNotFound = errors.New("character not found")

type Phase string

const (
	PhaseClaimed Phase = "claimed"
	PhaseActive  Phase = "active"
	PhaseEnded   Phase = "ended"
)

type Seat struct {
	ID          int
	CharacterID string
}

type Projectile struct {
	ID       string
	TargetID string
}

// Room is the in-memory session of one claimed room. It is not safe for
// concurrent use; the hub loop is its only owner.
type Room struct {
	ID      string
	MatchID string
	Name    string

	// Teams holds the match's two team ids. Seats 1..capacity/2 belong to
	// Teams[0], the rest to Teams[1].
	Teams [2]string

	phase       Phase
	seats       []string
	scores      map[string]int
	projectiles map[string]Projectile
	order       []string // projectile ids in firing order

	characters map[string]*engine.Character
	connByChar map[string]string
	charByConn map[string]string
}

func New(id, matchID, name string, teams [2]string, capacity int) *Room {
	return &Room{
		ID:          id,
		MatchID:     matchID,
		Name:        name,
		Teams:       teams,
		phase:       PhaseClaimed,
		seats:       make([]string, capacity),
		scores:      map[string]int{teams[0]: 0, teams[1]: 0},
		projectiles: map[string]Projectile{},
		characters:  map[string]*engine.Character{},
		connByChar:  map[string]string{},
		charByConn:  map[string]string{},
	}
}

func (r *Room) Phase() Phase   { return r.phase }
func (r *Room) Active() bool   { return r.phase == PhaseActive }
func (r *Room) Capacity() int  { return len(r.seats) }
func (r *Room) TeamLimit() int { return len(r.seats) / 2 }

func (r *Room) Activate() {
	if r.phase == PhaseClaimed {
		r.phase = PhaseActive
	}
}

func (r *Room) End() { r.phase = PhaseEnded }

func (r *Room) HasTeam(teamID string) bool {
	return teamID != "" && (r.Teams[0] == teamID || r.Teams[1] == teamID)
}

func (r *Room) Opponent(teamID string) string {
	if r.Teams[0] == teamID {
		return r.Teams[1]
	}
	return r.Teams[0]
}

// AddCharacter registers c as the character of connection connID.
func (r *Room) AddCharacter(connID string, c engine.Character) {
	r.characters[c.ID] = &c
	r.connByChar[c.ID] = connID
	r.charByConn[connID] = c.ID
}

// RemoveCharacter drops the character of connID and vacates its seat.
func (r *Room) RemoveCharacter(connID string) (engine.Character, bool) {
	charID, ok := r.charByConn[connID]
	if !ok {
		return engine.Character{}, false
	}
	c := r.characters[charID]
	if c.SeatID > 0 {
		r.seats[c.SeatID-1] = ""
	}
	delete(r.characters, charID)
	delete(r.connByChar, charID)
	delete(r.charByConn, connID)
	return *c, true
}

func (r *Room) Character(charID string) (*engine.Character, bool) {
	c, ok := r.characters[charID]
	return c, ok
}

func (r *Room) CharacterOf(connID string) (*engine.Character, bool) {
	charID, ok := r.charByConn[connID]
	if !ok {
		return nil, false
	}
	return r.Character(charID)
}

func (r *Room) ConnectionOf(charID string) (string, bool) {
	connID, ok := r.connByChar[charID]
	return connID, ok
}

// Connections returns the connection ids in the room in a stable order.
func (r *Room) Connections() []string {
	ids := lo.Keys(r.charByConn)
	slices.Sort(ids)
	return ids
}

// Characters returns the room's characters ordered by id.
func (r *Room) Characters() []engine.Character {
	out := make([]engine.Character, 0, len(r.characters))
	for _, c := range r.characters {
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b engine.Character) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (r *Room) TeamCount(teamID string) int {
	return lo.CountBy(lo.Values(r.characters), func(c *engine.Character) bool {
		return c.TeamID == teamID
	})
}

// SideOf returns the team owning seatID.
func (r *Room) SideOf(seatID int) (string, bool) {
	if seatID < 1 || seatID > len(r.seats) {
		return "", false
	}
	if seatID <= r.TeamLimit() {
		return r.Teams[0], true
	}
	return r.Teams[1], true
}

func (r *Room) TakeSeat(charID string, seatID int) error {
	c, ok := r.characters[charID]
	if !ok {
		return ErrCharacterNotFound
	}
	side, ok := r.SideOf(seatID)
	if !ok {
		return ErrSeatNotFound
	}
	if side != c.TeamID {
		return ErrWrongSide
	}
	if r.seats[seatID-1] != "" {
		return ErrSeatTaken
	}
	if c.SeatID > 0 {
		return ErrAlreadySeated
	}
	r.seats[seatID-1] = charID
	c.SeatID = seatID
	return nil
}

// Seats returns the occupied seats.
func (r *Room) Seats() []Seat {
	var out []Seat
	for i, charID := range r.seats {
		if charID != "" {
			out = append(out, Seat{ID: i + 1, CharacterID: charID})
		}
	}
	return out
}

func (r *Room) AddProjectile(targetID string) Projectile {
	p := Projectile{ID: uuid.NewString(), TargetID: targetID}
	r.projectiles[p.ID] = p
	r.order = append(r.order, p.ID)
	return p
}

func (r *Room) RemoveProjectile(id string) (Projectile, bool) {
	p, ok := r.projectiles[id]
	if !ok {
		return Projectile{}, false
	}
	delete(r.projectiles, id)
	r.order = slices.DeleteFunc(r.order, func(v string) bool { return v == id })
	return p, true
}

func (r *Room) Projectiles() []Projectile {
	out := make([]Projectile, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.projectiles[id])
	}
	return out
}

func (r *Room) Score(teamID string) int { return r.scores[teamID] }

// AddKnockout credits the team opposing the knocked out character's team.
func (r *Room) AddKnockout(victimTeamID string) {
	r.scores[r.Opponent(victimTeamID)]++
}

// Winner compares the local knockout counters. A tie has no winner.
func (r *Room) Winner() (string, bool) {
	a, b := r.scores[r.Teams[0]], r.scores[r.Teams[1]]
	switch {
	case a > b:
		return r.Teams[0], true
	case b > a:
		return r.Teams[1], true
	default:
		return "", false
	}
}
