package services

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// wireMessage is the decoded form of an outbound frame.
type wireMessage struct {
	Type      string          `json:"type"`
	MatchID   string          `json:"matchId"`
	RequestID string          `json:"requestId"`
	Payload   json.RawMessage `json:"payload"`
}

// recordingSender keeps every frame handed to each connection, in order.
type recordingSender struct {
	mu     sync.Mutex
	frames map[string][][]byte
	closed map[string]bool
}

func newRecordingSender() *recordingSender {
	return &recordingSender{
		frames: make(map[string][][]byte),
		closed: make(map[string]bool),
	}
}

func (s *recordingSender) Send(connectionID string, data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed[connectionID] {
		return false
	}
	s.frames[connectionID] = append(s.frames[connectionID], append([]byte(nil), data...))
	return true
}

func (s *recordingSender) close(connectionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed[connectionID] = true
}

func (s *recordingSender) messages(t *testing.T, connectionID string) []wireMessage {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wireMessage, 0, len(s.frames[connectionID]))
	for _, frame := range s.frames[connectionID] {
		var msg wireMessage
		require.NoError(t, json.Unmarshal(frame, &msg))
		out = append(out, msg)
	}
	return out
}

func (s *recordingSender) ofType(t *testing.T, connectionID, typ string) []wireMessage {
	t.Helper()
	var out []wireMessage
	for _, msg := range s.messages(t, connectionID) {
		if msg.Type == typ {
			out = append(out, msg)
		}
	}
	return out
}

func (s *recordingSender) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = make(map[string][][]byte)
}

func decodePayload[T any](t *testing.T, msg wireMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(msg.Payload, &v))
	return v
}
