package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/fanwars-backend/internal/engine"
)

func newRoom(capacity int) *Room {
	r := New("r1", "m1", "Room 1", [2]string{"radiant", "dire"}, capacity)
	r.Activate()
	return r
}

func join(r *Room, connID, charID, teamID string) {
	r.AddCharacter(connID, engine.NewCharacter(charID, teamID, "u-"+charID, engine.DefaultRules()))
}

func TestRoom_PhaseMachine(t *testing.T) {
	r := New("r1", "m1", "Room 1", [2]string{"a", "b"}, 4)
	assert.Equal(t, PhaseClaimed, r.Phase())
	assert.False(t, r.Active())

	r.Activate()
	assert.True(t, r.Active())

	r.End()
	r.Activate() // ended is terminal
	assert.Equal(t, PhaseEnded, r.Phase())
}

func TestRoom_TakeSeat(t *testing.T) {
	cases := []struct {
		name    string
		charID  string
		seatID  int
		wantErr error
	}{
		{name: "own side", charID: "c1", seatID: 1},
		{name: "other side", charID: "c1", seatID: 3, wantErr: ErrWrongSide},
		{name: "occupied", charID: "c2", seatID: 2, wantErr: ErrSeatTaken},
		{name: "out of range", charID: "c1", seatID: 5, wantErr: ErrSeatNotFound},
		{name: "zero seat", charID: "c1", seatID: 0, wantErr: ErrSeatNotFound},
		{name: "unknown character", charID: "nope", seatID: 1, wantErr: ErrCharacterNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRoom(4)
			join(r, "conn1", "c1", "radiant")
			join(r, "conn2", "c2", "radiant")
			join(r, "conn3", "c3", "radiant")
			require.NoError(t, r.TakeSeat("c3", 2))

			err := r.TakeSeat(tc.charID, tc.seatID)
			require.ErrorIs(t, err, tc.wantErr)
			if tc.wantErr == nil {
				c, _ := r.Character(tc.charID)
				assert.Equal(t, tc.seatID, c.SeatID)
			}
		})
	}
}

func TestRoom_OneSeatPerCharacter(t *testing.T) {
	r := newRoom(4)
	join(r, "conn1", "c1", "radiant")
	require.NoError(t, r.TakeSeat("c1", 1))
	require.ErrorIs(t, r.TakeSeat("c1", 2), ErrAlreadySeated)
	assert.Equal(t, []Seat{{ID: 1, CharacterID: "c1"}}, r.Seats())
}

func TestRoom_RemoveCharacterVacatesSeat(t *testing.T) {
	r := newRoom(4)
	join(r, "conn1", "c1", "dire")
	require.NoError(t, r.TakeSeat("c1", 4))

	c, ok := r.RemoveCharacter("conn1")
	require.True(t, ok)
	assert.Equal(t, 4, c.SeatID)
	assert.Empty(t, r.Seats())

	_, ok = r.ConnectionOf("c1")
	assert.False(t, ok)
	_, ok = r.CharacterOf("conn1")
	assert.False(t, ok)

	_, ok = r.RemoveCharacter("conn1")
	assert.False(t, ok)
}

func TestRoom_IndexesAndCounts(t *testing.T) {
	r := newRoom(16)
	join(r, "b", "c2", "dire")
	join(r, "a", "c1", "radiant")
	join(r, "c", "c3", "radiant")

	assert.Equal(t, []string{"a", "b", "c"}, r.Connections())
	assert.Equal(t, 2, r.TeamCount("radiant"))
	assert.Equal(t, 1, r.TeamCount("dire"))
	assert.Equal(t, 8, r.TeamLimit())

	connID, ok := r.ConnectionOf("c2")
	require.True(t, ok)
	assert.Equal(t, "b", connID)

	chars := r.Characters()
	require.Len(t, chars, 3)
	assert.Equal(t, "c1", chars[0].ID)
}

func TestRoom_Projectiles(t *testing.T) {
	r := newRoom(4)
	p1 := r.AddProjectile("c1")
	p2 := r.AddProjectile("c2")
	assert.NotEqual(t, p1.ID, p2.ID)
	assert.Equal(t, []Projectile{p1, p2}, r.Projectiles())

	got, ok := r.RemoveProjectile(p1.ID)
	require.True(t, ok)
	assert.Equal(t, "c1", got.TargetID)
	assert.Equal(t, []Projectile{p2}, r.Projectiles())

	_, ok = r.RemoveProjectile(p1.ID)
	assert.False(t, ok)
}

func TestRoom_Winner(t *testing.T) {
	r := newRoom(4)
	_, ok := r.Winner()
	assert.False(t, ok, "tie has no winner")

	r.AddKnockout("dire")
	r.AddKnockout("dire")
	r.AddKnockout("radiant")

	winner, ok := r.Winner()
	require.True(t, ok)
	assert.Equal(t, "radiant", winner)
	assert.Equal(t, 2, r.Score("radiant"))
	assert.Equal(t, 1, r.Score("dire"))
}
