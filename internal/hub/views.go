package hub

import (
	"cmp"
	"slices"
	"strconv"

	"github.com/DoyleJ11/fanwars-backend/internal/engine"
	"github.com/DoyleJ11/fanwars-backend/internal/room"
	"github.com/DoyleJ11/fanwars-backend/internal/store"
	"github.com/DoyleJ11/fanwars-backend/pkg/types"
)

// characterView renders c. Money and item counts are only included when the
// view goes to the character's own connection.
func (h *Hub) characterView(r *room.Room, c engine.Character, private bool) types.Character {
	v := types.Character{ID: c.ID, TeamID: c.TeamID, Health: c.Health}
	if c.SeatID > 0 {
		seat := strconv.Itoa(c.SeatID)
		v.SeatID = &seat
	}
	if connID, ok := r.ConnectionOf(c.ID); ok {
		if cl, ok := h.clients[connID]; ok {
			v.User = userView(cl.user)
		}
	}
	if private {
		money := c.Money
		v.Money = &money
		v.Items = make([]types.ItemCount, 0, len(h.itemOrder))
		for _, id := range h.itemOrder {
			v.Items = append(v.Items, types.ItemCount{ID: id, Count: c.Count(id)})
		}
	}
	return v
}

// characterFor renders c as seen by connID.
func (h *Hub) characterFor(r *room.Room, c engine.Character, connID string) types.Character {
	owner, _ := r.ConnectionOf(c.ID)
	return h.characterView(r, c, owner == connID)
}

func characterMessage(views ...types.Character) types.Message {
	return types.Message{Type: types.TypeUpdateCharacters, Data: views}
}

func userView(u store.User) *types.User {
	v := &types.User{ID: u.ID, Nickname: u.Nickname, PhotoURL: u.PhotoURL, Rating: u.Rating}
	if u.CountryID != nil {
		v.CountryID = *u.CountryID
	}
	return v
}

// seatView renders a seat. An empty charID renders a vacated seat.
func seatView(seatID int, charID string) types.Seat {
	v := types.Seat{ID: strconv.Itoa(seatID)}
	if charID != "" {
		v.CharacterID = &charID
	}
	return v
}

func seatsMessage(seats ...types.Seat) types.Message {
	return types.Message{Type: types.TypeUpdateSeats, Data: seats}
}

func projectileView(p room.Projectile) types.Projectile {
	return types.Projectile{ID: p.ID, TargetID: p.TargetID}
}

func teamsMessage(m store.Match) types.Message {
	return types.Message{Type: types.TypeUpdateTeams, Data: []types.Team{
		{ID: m.RadiantTeamID, Name: m.RadiantTeam.Name, LogoURL: m.RadiantTeam.LogoURL, Score: m.RadiantScore},
		{ID: m.DireTeamID, Name: m.DireTeam.Name, LogoURL: m.DireTeam.LogoURL, Score: m.DireScore},
	}}
}

func (h *Hub) itemsMessage() types.Message {
	items := make([]types.Item, 0, len(h.itemOrder))
	for _, id := range h.itemOrder {
		it := h.items[id]
		items = append(items, types.Item{
			ID:       it.ID,
			Type:     it.Behavior.String(),
			Name:     it.Name,
			Price:    it.Price,
			PhotoURL: it.PhotoURL,
		})
	}
	return types.Message{Type: types.TypeUpdateItems, Data: items}
}

func (h *Hub) countriesMessage() types.Message {
	countries := make([]types.Country, 0, len(h.countries))
	for _, c := range h.countries {
		countries = append(countries, types.Country{ID: c.ID, Name: c.Name, FlagURL: c.FlagURL})
	}
	return types.Message{Type: types.TypeUpdateCountries, Data: countries}
}

// startMessages is everything a freshly accepted connection needs to render
// the room.
func (h *Hub) startMessages(r *room.Room, connID, charID string) []types.Message {
	chars := r.Characters()
	views := make([]types.Character, 0, len(chars))
	for _, c := range chars {
		views = append(views, h.characterFor(r, c, connID))
	}

	// every seat, so clients learn the layout
	occupied := make(map[int]string)
	for _, s := range r.Seats() {
		occupied[s.ID] = s.CharacterID
	}
	seats := make([]types.Seat, 0, r.Capacity())
	for id := 1; id <= r.Capacity(); id++ {
		seats = append(seats, seatView(id, occupied[id]))
	}

	projectiles := make([]types.Projectile, 0)
	for _, p := range r.Projectiles() {
		projectiles = append(projectiles, projectileView(p))
	}

	return []types.Message{
		{Type: types.TypeStart, Data: types.StartData{MyCharacterID: charID}},
		teamsMessage(h.matches[r.MatchID]),
		h.itemsMessage(),
		h.countriesMessage(),
		characterMessage(views...),
		seatsMessage(seats...),
		{Type: types.TypeUpdateProjectiles, Data: projectiles},
	}
}

func (h *Hub) roomInfo(r *room.Room) RoomInfo {
	return RoomInfo{
		ID:          r.ID,
		Name:        r.Name,
		MatchID:     r.MatchID,
		Phase:       r.Phase(),
		Connections: len(r.Connections()),
		Knockouts:   map[string]int{r.Teams[0]: r.Score(r.Teams[0]), r.Teams[1]: r.Score(r.Teams[1])},
	}
}

func (h *Hub) roomInfos() []RoomInfo {
	out := make([]RoomInfo, 0, len(h.rooms))
	for _, r := range h.rooms {
		out = append(out, h.roomInfo(r))
	}
	slices.SortFunc(out, func(a, b RoomInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (h *Hub) inspect(roomID string) *RoomState {
	r := h.rooms[roomID]
	if r == nil {
		return nil
	}
	return &RoomState{
		RoomInfo:    h.roomInfo(r),
		Characters:  r.Characters(),
		Seats:       r.Seats(),
		Projectiles: r.Projectiles(),
	}
}
