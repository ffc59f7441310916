package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{name: "record not found", err: gorm.ErrRecordNotFound, want: ErrNotFound},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, want: ErrConflict},
		{name: "serialization failure", err: fmt.Errorf("tx: %w", &pgconn.PgError{Code: "40001"}), want: ErrConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapError(tc.err)
			require.ErrorIs(t, got, tc.want)
			require.ErrorIs(t, got, tc.err)
		})
	}

	other := errors.New("boom")
	assert.Equal(t, other, mapError(other))
	truncation := &pgconn.PgError{Code: "22001"}
	assert.Equal(t, error(truncation), mapError(truncation))
	assert.NotErrorIs(t, mapError(truncation), ErrConflict)
}

// dryRun builds statements against the Postgres dialect without a server.
func dryRun(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=test dbname=test sslmode=disable"}),
		&gorm.Config{DryRun: true, DisableAutomaticPing: true, SkipDefaultTransaction: true})
	require.NoError(t, err)
	return db
}

func TestClaimUnowned_OnlyTouchesUnownedRooms(t *testing.T) {
	res := claimUnowned(dryRun(t), []string{"r1", "r2"}, "ws://a")
	require.NoError(t, res.Error)

	sql := res.Statement.SQL.String()
	assert.Contains(t, sql, `UPDATE "rooms" SET "match_server_url"=$1`)
	assert.Contains(t, sql, "id IN ($2,$3)")
	assert.Contains(t, sql, "match_server_url = '' OR match_server_url IS NULL")
	assert.Equal(t, []any{"ws://a", "r1", "r2"}, res.Statement.Vars)
}

func TestAddRating_IncrementsInPlace(t *testing.T) {
	cases := []struct {
		name  string
		model any
		table string
	}{
		{name: "team", model: &Team{}, table: "teams"},
		{name: "user", model: &User{}, table: "users"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := addRating(dryRun(t), tc.model, "x1", -15)
			require.NoError(t, res.Error)

			sql := res.Statement.SQL.String()
			assert.Contains(t, sql, fmt.Sprintf(`UPDATE "%s" SET "rating"=rating + $1`, tc.table))
			assert.Contains(t, sql, "WHERE id = $2")
			assert.Equal(t, []any{-15, "x1"}, res.Statement.Vars)
		})
	}
}

func TestUser_IsLeaver(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Minute)
	earlier := now.Add(-time.Minute)

	assert.False(t, User{}.IsLeaver(now))
	assert.True(t, User{UnbanAt: &later}.IsLeaver(now))
	assert.False(t, User{UnbanAt: &earlier}.IsLeaver(now))
	assert.False(t, User{UnbanAt: &now}.IsLeaver(now))
}

func TestMemory_ClaimAndRestore(t *testing.T) {
	ctx := context.Background()
	mine := NewMemory("ws://a:8080")
	mine.PutRoom(Room{ID: "r1", MatchID: "m1"})
	mine.PutRoom(Room{ID: "r2", MatchID: "m1", MatchServerURL: "ws://other:8080"})
	mine.PutRoom(Room{ID: "r3", MatchID: "m2"})

	rooms, err := mine.ClaimRooms(ctx, []string{"r1", "r2", "missing", "r1"})
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "r1", rooms[0].ID)
	assert.Equal(t, "ws://a:8080", rooms[0].MatchServerURL)

	// claiming again is idempotent for rooms we already own
	rooms, err = mine.ClaimRooms(ctx, []string{"r1"})
	require.NoError(t, err)
	require.Len(t, rooms, 1)

	restored, err := mine.RestoreRooms(ctx)
	require.NoError(t, err)
	require.Len(t, restored, 1)
	assert.Equal(t, "r1", restored[0].ID)

	r2, _ := mine.Room("r2")
	assert.Equal(t, "ws://other:8080", r2.MatchServerURL)
}

func TestMemory_Ratings(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("addr")
	m.PutTeam(Team{ID: "t1", Rating: 10})
	m.PutUser(User{ID: "u1", Rating: 3})

	require.NoError(t, m.AdjustTeamRating(ctx, "t1", 25))
	require.NoError(t, m.AdjustUserRating(ctx, "u1", -15))
	require.ErrorIs(t, m.AdjustTeamRating(ctx, "nope", 1), ErrNotFound)
	require.ErrorIs(t, m.AdjustUserRating(ctx, "nope", 1), ErrNotFound)

	team, _ := m.Team("t1")
	user, _ := m.User("u1")
	assert.Equal(t, 35, team.Rating)
	assert.Equal(t, -12, user.Rating)
}

func TestMemory_PunishForLeave(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("addr")
	m.PutUser(User{ID: "u1"})
	until := time.Now().Add(4 * time.Minute)

	require.NoError(t, m.PunishForLeave(ctx, "u1", until))
	u, err := m.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u.UnbanAt)
	assert.True(t, u.UnbanAt.Equal(until))

	_, err = m.GetUser(ctx, "u2")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_SeedIsPlayable(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("addr")
	m.Seed()

	matches, err := m.ListMatches(ctx, []string{"1"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Radiant Stars", matches[0].RadiantTeam.Name)
	assert.Equal(t, [2]string{"1", "2"}, matches[0].TeamIDs())

	items, err := m.ListItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	countries, err := m.ListCountries(ctx)
	require.NoError(t, err)
	require.Len(t, countries, 3)
	assert.Equal(t, "Italy", countries[0].Name)

	require.NoError(t, m.SetScore("1", 4, 2))
	matches, _ = m.ListMatches(ctx, []string{"1"})
	assert.Equal(t, map[string]int{"1": 4, "2": 2}, matches[0].Scores())
}
