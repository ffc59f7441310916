package hub

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/fanwars-backend/internal/engine"
	"github.com/DoyleJ11/fanwars-backend/internal/events"
	"github.com/DoyleJ11/fanwars-backend/internal/room"
	"github.com/DoyleJ11/fanwars-backend/internal/store"
	"github.com/DoyleJ11/fanwars-backend/pkg/types"
)

// Start loads reference data, restores the rooms this server already owns and
// feeds lifecycle events from bus into the loop.
func (h *Hub) Start(bus events.Bus) error {
	ch, err := bus.Subscribe(h.ctx)
	if err != nil {
		return fmt.Errorf("subscribing to lifecycle events: %w", err)
	}
	go func() {
		for e := range ch {
			if !h.Post(Lifecycle{Event: e}) {
				return
			}
		}
	}()

	h.async(h.loadCatalog)
	h.async(h.restoreRooms)
	return nil
}

func (h *Hub) loadCatalog(ctx context.Context) HubMsg {
	items, err := h.deps.Catalog.ListItems(ctx)
	if err != nil {
		h.logger.Error("failed to load items", zap.Error(err))
		return nil
	}
	countries, err := h.deps.Catalog.ListCountries(ctx)
	if err != nil {
		h.logger.Error("failed to load countries", zap.Error(err))
		return nil
	}
	return catalogLoaded{items: items, countries: countries}
}

func (h *Hub) restoreRooms(ctx context.Context) HubMsg {
	rooms, err := h.deps.Rooms.RestoreRooms(ctx)
	if err != nil {
		h.logger.Error("failed to restore rooms", zap.Error(err))
		return nil
	}
	return h.withMatches(ctx, rooms)
}

func (h *Hub) claimRooms(ids []string) {
	h.async(func(ctx context.Context) HubMsg {
		rooms, err := h.deps.Rooms.ClaimRooms(ctx, ids)
		if err != nil {
			h.logger.Error("failed to claim rooms", zap.Strings("rooms", ids), zap.Error(err))
			return nil
		}
		return h.withMatches(ctx, rooms)
	})
}

func (h *Hub) withMatches(ctx context.Context, rooms []store.Room) HubMsg {
	if len(rooms) == 0 {
		return nil
	}
	matchIDs := lo.Uniq(lo.Map(rooms, func(r store.Room, _ int) string { return r.MatchID }))
	matches, err := h.deps.Matches.ListMatches(ctx, matchIDs)
	if err != nil {
		h.logger.Error("failed to load matches for rooms", zap.Strings("matches", matchIDs), zap.Error(err))
		return nil
	}
	return roomsClaimed{rooms: rooms, matches: matches}
}

func (h *Hub) lifecycle(msg Lifecycle) {
	e := msg.Event
	h.logger.Debug("lifecycle event", zap.String("kind", string(e.Kind)),
		zap.Strings("rooms", e.RoomIDs), zap.Strings("matches", e.MatchIDs))

	switch e.Kind {
	case events.KindRoomAdded:
		ids := lo.Filter(lo.Uniq(e.RoomIDs), func(id string, _ int) bool { return h.rooms[id] == nil })
		if len(ids) > 0 {
			h.claimRooms(ids)
		}

	case events.KindMatchScoreChanged:
		ids := lo.Filter(lo.Uniq(e.MatchIDs), func(id string, _ int) bool { return len(h.matchRooms[id]) > 0 })
		if len(ids) == 0 {
			return
		}
		h.async(func(ctx context.Context) HubMsg {
			matches, err := h.deps.Matches.ListMatches(ctx, ids)
			if err != nil {
				h.logger.Error("failed to load changed matches", zap.Strings("matches", ids), zap.Error(err))
				return nil
			}
			return matchesLoaded{matches: matches}
		})

	case events.KindMatchEnded:
		h.matchEnded(lo.Uniq(e.MatchIDs))

	default:
		h.logger.Warn("unknown lifecycle event", zap.String("kind", string(e.Kind)))
	}
}

func (h *Hub) catalogLoaded(msg catalogLoaded) {
	clear(h.items)
	h.itemOrder = h.itemOrder[:0]
	for _, it := range msg.items {
		h.items[it.ID] = engine.Item{
			ID:       it.ID,
			Name:     it.Name,
			Behavior: engine.ItemBehavior(it.Behavior),
			Price:    it.Price,
			PhotoURL: it.PhotoURL,
		}
		h.itemOrder = append(h.itemOrder, it.ID)
	}
	h.countries = msg.countries
	h.catalogReady = true

	for _, r := range h.rooms {
		r.Activate()
	}
	h.logger.Info("catalog loaded", zap.Int("items", len(msg.items)), zap.Int("countries", len(msg.countries)))
}

func (h *Hub) roomsClaimed(msg roomsClaimed) {
	matches := lo.KeyBy(msg.matches, func(m store.Match) string { return m.ID })
	for _, sr := range msg.rooms {
		if h.rooms[sr.ID] != nil {
			continue
		}
		if h.ended[sr.MatchID] {
			h.logger.Debug("skipping room of ended match", zap.String("room", sr.ID), zap.String("match", sr.MatchID))
			continue
		}
		m, ok := matches[sr.MatchID]
		if !ok {
			h.logger.Warn("claimed room has no live match", zap.String("room", sr.ID), zap.String("match", sr.MatchID))
			continue
		}

		r := room.New(sr.ID, sr.MatchID, sr.Name, m.TeamIDs(), h.rules.SeatCapacity)
		if h.catalogReady {
			r.Activate()
		}
		h.rooms[r.ID] = r
		h.matchRooms[m.ID] = append(h.matchRooms[m.ID], r.ID)
		if _, ok := h.matches[m.ID]; !ok {
			h.matches[m.ID] = m
		}
		h.logger.Info("room claimed", zap.String("room", r.ID), zap.String("match", m.ID), zap.String("phase", string(r.Phase())))
	}
}

// matchesLoaded reconciles upstream scores against the last snapshot. Each
// seated, standing character earns its own team's positive score delta.
func (h *Hub) matchesLoaded(msg matchesLoaded) {
	for _, m := range msg.matches {
		prev, ok := h.matches[m.ID]
		if !ok {
			// ended while the lookup was in flight
			continue
		}
		prevScores, scores := prev.Scores(), m.Scores()
		deltas := map[string]int{}
		changed := false
		for teamID, score := range scores {
			deltas[teamID] = score - prevScores[teamID]
			if deltas[teamID] != 0 {
				changed = true
			}
		}
		if !changed {
			continue
		}
		h.matches[m.ID] = m
		teams := teamsMessage(m)

		for _, roomID := range h.matchRooms[m.ID] {
			r := h.rooms[roomID]
			if r == nil || !r.Active() {
				continue
			}
			for _, connID := range r.Connections() {
				msgs := []types.Message{teams}
				if c, ok := r.CharacterOf(connID); ok && c.SeatID > 0 && !c.Down() && deltas[c.TeamID] > 0 {
					_, next, err := engine.Apply(*c, h.rules.Engine, engine.Command{Type: engine.CmdGrantMoney, Amount: deltas[c.TeamID]})
					if err == nil {
						*c = next
						msgs = append(msgs, characterMessage(h.characterView(r, *c, true)))
					}
				}
				h.push(connID, msgs...)
			}
		}
		h.logger.Info("match score changed", zap.String("match", m.ID), zap.Any("scores", scores))
	}
}

type settlement struct {
	roomID  string
	winner  string
	loser   string
	decided bool
	users   map[string]int // user id -> rating delta
}

// matchEnded freezes every room bound to the ended matches and persists the
// rating outcome. Rooms are told and removed once persistence resolves.
func (h *Hub) matchEnded(matchIDs []string) {
	var batch []settlement
	for _, matchID := range matchIDs {
		h.ended[matchID] = true
		for _, roomID := range h.matchRooms[matchID] {
			r := h.rooms[roomID]
			if r == nil || r.Phase() == room.PhaseEnded {
				continue
			}
			r.End()

			s := settlement{roomID: r.ID, users: map[string]int{}}
			s.winner, s.decided = r.Winner()
			if s.decided {
				s.loser = r.Opponent(s.winner)
				for _, c := range r.Characters() {
					s.users[c.UserID] = h.ratingDelta(s, c.TeamID)
				}
			}
			batch = append(batch, s)
			h.logger.Info("match ended",
				zap.String("match", matchID),
				zap.String("room", r.ID),
				zap.String("winner", s.winner),
				zap.Int("knockouts_a", r.Score(r.Teams[0])),
				zap.Int("knockouts_b", r.Score(r.Teams[1])))
		}
		delete(h.matchRooms, matchID)
		delete(h.matches, matchID)
	}
	if len(batch) == 0 {
		return
	}

	h.async(func(ctx context.Context) HubMsg {
		if err := h.persistRatings(ctx, batch); err != nil {
			h.logger.Error("failed to persist ratings", zap.Error(err))
		}
		return ratingsSettled{settlements: batch}
	})
}

func (h *Hub) ratingDelta(s settlement, teamID string) int {
	switch {
	case !s.decided:
		return 0
	case teamID == s.winner:
		return h.rules.VictoryDelta
	default:
		return -h.rules.DefeatDelta
	}
}

// persistRatings writes every team and user delta of the batch, collecting
// all failures instead of stopping at the first.
func (h *Hub) persistRatings(ctx context.Context, batch []settlement) error {
	var (
		mu   sync.Mutex
		errs error
		g    errgroup.Group
	)
	g.SetLimit(8)
	record := func(err error) {
		if err != nil {
			mu.Lock()
			errs = multierr.Append(errs, err)
			mu.Unlock()
		}
	}

	for _, s := range batch {
		if !s.decided {
			continue
		}
		g.Go(func() error {
			record(h.deps.Ratings.AdjustTeamRating(ctx, s.winner, h.rules.VictoryDelta))
			return nil
		})
		g.Go(func() error {
			record(h.deps.Ratings.AdjustTeamRating(ctx, s.loser, -h.rules.DefeatDelta))
			return nil
		})
		for userID, delta := range s.users {
			g.Go(func() error {
				record(h.deps.Ratings.AdjustUserRating(ctx, userID, delta))
				return nil
			})
		}
	}
	_ = g.Wait()
	return errs
}

func (h *Hub) ratingsSettled(msg ratingsSettled) {
	for _, s := range msg.settlements {
		r := h.rooms[s.roomID]
		if r == nil {
			continue
		}
		var winnerID *string
		if s.decided {
			winnerID = &s.winner
		}

		conns := r.Connections()
		for _, connID := range conns {
			end := types.EndData{WinnerID: winnerID}
			if c, ok := r.CharacterOf(connID); ok {
				end.MyRatingDelta = h.ratingDelta(s, c.TeamID)
			}
			h.push(connID, types.Message{Type: types.TypeEnd, Data: end})
		}
		delete(h.rooms, r.ID)
		h.after(h.rules.EndGrace, closeConnections{ConnIDs: conns})
		h.logger.Info("room closed", zap.String("room", r.ID), zap.Int("connections", len(conns)))
	}
}
