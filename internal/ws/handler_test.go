package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/fanwars-backend/internal/auth"
	"github.com/DoyleJ11/fanwars-backend/internal/events"
	"github.com/DoyleJ11/fanwars-backend/internal/hub"
	"github.com/DoyleJ11/fanwars-backend/internal/room"
	"github.com/DoyleJ11/fanwars-backend/internal/store"
	"github.com/DoyleJ11/fanwars-backend/internal/types"
)

type frame struct {
	Event string `json:"event"`
	Ack   *int64 `json:"ack"`
	Data  []struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	} `json:"data"`
	Error string `json:"error"`
}

type fixture struct {
	srv    *httptest.Server
	tokens *auth.Service
	mem    *store.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	mem := store.NewMemory("ws://test")
	mem.Seed()
	mem.PutRoom(store.Room{ID: "1", Name: "Room 1", MatchID: "1", MatchServerURL: "ws://test"})
	for i := 1; i <= 3; i++ {
		mem.PutUser(store.User{ID: fmt.Sprintf("u%d", i), Nickname: fmt.Sprintf("player%d", i)})
	}

	h := hub.NewHub(ctx, hub.DefaultRules(), hub.Deps{Matches: mem, Rooms: mem, Ratings: mem, Users: mem, Catalog: mem})
	require.NoError(t, h.Start(events.NewLocalBus()))
	require.Eventually(t, func() bool {
		reply := make(chan *hub.RoomState, 1)
		h.Inbox() <- hub.Inspect{RoomID: "1", Reply: reply}
		st := <-reply
		return st != nil && st.Phase == room.PhaseActive
	}, time.Second, 5*time.Millisecond)

	tokens := auth.NewService("test-secret", time.Hour)
	srv := httptest.NewServer(Handler(Deps{Hub: h, Tokens: tokens, Users: mem}))
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, tokens: tokens, mem: mem}
}

func (f *fixture) url(token, roomID, teamID string) string {
	q := url.Values{"token": {token}, "roomId": {roomID}, "teamId": {teamID}}
	return "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/?" + q.Encode()
}

func (f *fixture) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := f.tokens.GenerateToken(userID)
	require.NoError(t, err)
	return tok
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func writeJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func TestHandler_HandshakeRejections(t *testing.T) {
	f := newFixture(t)
	until := time.Now().Add(time.Minute)
	f.mem.PutUser(store.User{ID: "banned", UnbanAt: &until})

	cases := []struct {
		name   string
		url    string
		status int
	}{
		{name: "missing token", url: f.url("", "1", "1"), status: http.StatusUnauthorized},
		{name: "missing everything", url: f.url("", "", ""), status: http.StatusUnauthorized},
		{name: "garbage token without room", url: f.url("nope", "", "1"), status: http.StatusUnauthorized},
		{name: "garbage token", url: f.url("nope", "1", "1"), status: http.StatusUnauthorized},
		{name: "unknown user", url: f.url(f.token(t, "ghost"), "1", "1"), status: http.StatusUnauthorized},
		{name: "unknown room", url: f.url(f.token(t, "u1"), "9", "1"), status: http.StatusNotFound},
		{name: "banned", url: f.url(f.token(t, "banned"), "1", "1"), status: http.StatusForbidden},
		{name: "unknown team", url: f.url(f.token(t, "u1"), "1", "7"), status: http.StatusBadRequest},
		{name: "missing team", url: f.url(f.token(t, "u1"), "1", ""), status: http.StatusBadRequest},
		{name: "missing room", url: f.url(f.token(t, "u1"), "", "1"), status: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			conn, resp, err := websocket.Dial(ctx, tc.url, nil)
			if conn != nil {
				conn.CloseNow()
			}
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestHandler_Session(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, f.url(f.token(t, "u1"), "1", "1"), nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	start := readFrame(t, conn)
	assert.Equal(t, "messages", start.Event)
	require.NotEmpty(t, start.Data)
	assert.Equal(t, "start", start.Data[0].Type)

	// the same user cannot open a second session
	_, resp, err := websocket.Dial(ctx, f.url(f.token(t, "u1"), "1", "2"), nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	ack := int64(1)
	writeJSON(t, conn, types.ClientMessage{Type: types.CmdTakeSeat, Ack: &ack, SeatID: "1"})
	got := readFrame(t, conn)
	assert.Equal(t, "ack", got.Event)
	require.NotNil(t, got.Ack)
	assert.Equal(t, int64(1), *got.Ack)
	require.Len(t, got.Data, 2)
	assert.Equal(t, "updateSeats", got.Data[0].Type)

	ack = 2
	writeJSON(t, conn, types.ClientMessage{Type: types.CmdTakeSeat, Ack: &ack, SeatID: "x"})
	got = readFrame(t, conn)
	assert.Equal(t, "ack", got.Event)
	assert.Empty(t, got.Data)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{")))
	got = readFrame(t, conn)
	assert.Equal(t, "error", got.Event)
	assert.Equal(t, "bad json", got.Error)

	// a seated character leaving is punished
	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool {
		u, _ := f.mem.User("u1")
		return u.UnbanAt != nil
	}, time.Second, 5*time.Millisecond)
}
