package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hubFixture struct {
	hub      *Hub
	server   *httptest.Server
	registry *RoomRegistry
	matchID  string
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	st := newMemStore()
	clock := clockwork.NewFakeClock()
	registry := NewRoomRegistry(clock)
	broadcaster := NewBroadcaster(registry)
	syncService := NewSyncService(st, registry, NewMatchTimer(clock), broadcaster, 2*time.Second)

	hub := NewHub(syncService, NewConnTokens("hub-test", time.Hour, clock), DefaultHubConfig())
	broadcaster.SetSender(hub)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		server.Close()
		cancel()
	})

	m, _ := seedMatch(t, st, 3)
	return &hubFixture{hub: hub, server: server, registry: registry, matchID: m.ID}
}

func (f *hubFixture) dial(t *testing.T, query string) (*websocket.Conn, string, string) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	hello := readFrame(t, conn)
	require.Equal(t, EventConnected, hello.Type)
	var payload struct {
		ConnectionID string `json:"connectionId"`
		Token        string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(hello.Payload, &payload))
	require.NotEmpty(t, payload.ConnectionID)
	require.NotEmpty(t, payload.Token)
	return conn, payload.ConnectionID, payload.Token
}

func readFrame(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg wireMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func sendFrame(t *testing.T, conn *websocket.Conn, msg InboundMessage) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func TestHub_JoinAndBroadcast(t *testing.T) {
	f := newHubFixture(t)

	alice, aliceID, _ := f.dial(t, "")
	sendFrame(t, alice, InboundMessage{Type: ActionJoin, MatchID: f.matchID, RequestID: "j1", Payload: json.RawMessage(`{"userName":"Alice"}`)})
	ack := readFrame(t, alice)
	assert.Equal(t, EventAck, ack.Type)
	assert.Equal(t, "j1", ack.RequestID)

	bob, bobID, _ := f.dial(t, "")
	sendFrame(t, bob, InboundMessage{Type: ActionJoin, MatchID: f.matchID, RequestID: "j2"})
	assert.Equal(t, EventAck, readFrame(t, bob).Type)

	joined := readFrame(t, alice)
	assert.Equal(t, EventParticipantJoined, joined.Type)
	assert.Equal(t, bobID, decodePayload[ParticipantPayload](t, joined).ConnectionID)

	sendFrame(t, bob, InboundMessage{Type: ActionUpdateScore, MatchID: f.matchID, Payload: json.RawMessage(`{"team":"team2","score":2}`)})
	assert.Equal(t, EventAck, readFrame(t, bob).Type)
	scored := readFrame(t, alice)
	assert.Equal(t, EventScoreUpdated, scored.Type)
	assert.Equal(t, 2, decodePayload[ScorePayload](t, scored).Score)

	require.NoError(t, bob.Close())
	left := readFrame(t, alice)
	assert.Equal(t, EventParticipantLeft, left.Type)
	payload := decodePayload[ParticipantPayload](t, left)
	assert.Equal(t, bobID, payload.ConnectionID)
	assert.Equal(t, 1, payload.ParticipantsCount)
	assert.True(t, f.registry.IsAttached(f.matchID, aliceID))
}

func TestHub_TokenResumesConnectionID(t *testing.T) {
	f := newHubFixture(t)

	first, id, token := f.dial(t, "")
	sendFrame(t, first, InboundMessage{Type: ActionJoin, MatchID: f.matchID})
	require.Equal(t, EventAck, readFrame(t, first).Type)

	second, resumedID, _ := f.dial(t, "?token="+token)
	assert.Equal(t, id, resumedID)

	sendFrame(t, second, InboundMessage{Type: ActionPing, RequestID: "p"})
	assert.Equal(t, EventPong, readFrame(t, second).Type)
	assert.True(t, f.registry.IsAttached(f.matchID, id), "a replaced socket keeps the room attachment")

	_, freshID, _ := f.dial(t, "?token=garbage")
	assert.NotEqual(t, id, freshID)
}

func TestHub_SendToUnknownConnection(t *testing.T) {
	f := newHubFixture(t)
	assert.False(t, f.hub.Send("nobody", []byte(`{}`)))
	assert.Equal(t, 0, f.hub.ClientCount())
}
