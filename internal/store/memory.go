package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Memory is an in-process implementation of the Store operations. It backs
// tests and --dev runs.
type Memory struct {
	mu        sync.Mutex
	addr      string
	teams     map[string]Team
	matches   map[string]Match
	rooms     map[string]Room
	users     map[string]User
	items     map[string]Item
	countries map[string]Country
}

func NewMemory(addr string) *Memory {
	return &Memory{
		addr:      addr,
		teams:     map[string]Team{},
		matches:   map[string]Match{},
		rooms:     map[string]Room{},
		users:     map[string]User{},
		items:     map[string]Item{},
		countries: map[string]Country{},
	}
}

func (m *Memory) PutTeam(t Team) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teams[t.ID] = t
}

func (m *Memory) PutMatch(match Match) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches[match.ID] = match
}

func (m *Memory) PutRoom(r Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[r.ID] = r
}

func (m *Memory) PutUser(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *Memory) PutItem(i Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[i.ID] = i
}

func (m *Memory) PutCountry(c Country) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.countries[c.ID] = c
}

// SetScore updates the upstream score of a match the way the live poller does.
func (m *Memory) SetScore(matchID string, radiant, dire int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[matchID]
	if !ok {
		return fmt.Errorf("setting score of %s: %w", matchID, ErrNotFound)
	}
	match.RadiantScore = radiant
	match.DireScore = dire
	m.matches[matchID] = match
	return nil
}

func (m *Memory) Team(id string) (Team, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[id]
	return t, ok
}

func (m *Memory) User(id string) (User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	return u, ok
}

func (m *Memory) Room(id string) (Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	return r, ok
}

func (m *Memory) ListMatches(_ context.Context, ids []string) ([]Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Match
	for _, id := range lo.Uniq(ids) {
		match, ok := m.matches[id]
		if !ok {
			continue
		}
		match.RadiantTeam = m.teams[match.RadiantTeamID]
		match.DireTeam = m.teams[match.DireTeamID]
		out = append(out, match)
	}
	return out, nil
}

func (m *Memory) ClaimRooms(_ context.Context, ids []string) ([]Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Room
	for _, id := range lo.Uniq(ids) {
		r, ok := m.rooms[id]
		if !ok {
			continue
		}
		if r.MatchServerURL == "" {
			r.MatchServerURL = m.addr
			m.rooms[id] = r
		}
		if r.MatchServerURL == m.addr {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) RestoreRooms(context.Context) ([]Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := lo.Filter(lo.Values(m.rooms), func(r Room, _ int) bool { return r.MatchServerURL == m.addr })
	slices.SortFunc(out, func(a, b Room) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *Memory) AdjustTeamRating(_ context.Context, id string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[id]
	if !ok {
		return fmt.Errorf("adjusting rating of %s: %w", id, ErrNotFound)
	}
	t.Rating += delta
	m.teams[id] = t
	return nil
}

func (m *Memory) AdjustUserRating(_ context.Context, id string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("adjusting rating of %s: %w", id, ErrNotFound)
	}
	u.Rating += delta
	m.users[id] = u
	return nil
}

func (m *Memory) GetUser(_ context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, fmt.Errorf("getting user %s: %w", id, ErrNotFound)
	}
	return u, nil
}

func (m *Memory) PunishForLeave(_ context.Context, id string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("punishing user %s: %w", id, ErrNotFound)
	}
	u.UnbanAt = &until
	m.users[id] = u
	return nil
}

func (m *Memory) ListItems(context.Context) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := lo.Values(m.items)
	slices.SortFunc(out, func(a, b Item) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *Memory) ListCountries(context.Context) ([]Country, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := lo.Values(m.countries)
	slices.SortFunc(out, func(a, b Country) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

// Seed fills m with a playable fixture: two teams, one match, one room, the
// two item kinds and a few countries.
func (m *Memory) Seed() {
	m.PutTeam(Team{ID: "1", Name: "Radiant Stars", LogoURL: "/logos/1.png"})
	m.PutTeam(Team{ID: "2", Name: "Dire Wolves", LogoURL: "/logos/2.png"})
	m.PutMatch(Match{ID: "1", ExternalID: "dev-1", StartedAt: time.Now(), RadiantTeamID: "1", DireTeamID: "2"})
	m.PutRoom(Room{ID: "1", Name: "Room 1", MatchID: "1"})
	m.PutItem(Item{ID: "1", Name: "Rocket", Behavior: 1, Price: 7, PhotoURL: "/items/item-1.svg"})
	m.PutItem(Item{ID: "2", Name: "Potion", Behavior: 0, Price: 5, PhotoURL: "/items/item-2.svg"})
	m.PutCountry(Country{ID: "1", Name: "USA", FlagURL: "/countries/US.png"})
	m.PutCountry(Country{ID: "2", Name: "Ukraine", FlagURL: "/countries/UA.png"})
	m.PutCountry(Country{ID: "3", Name: "Italy", FlagURL: "/countries/IT.png"})
}
