package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
)

// Message is the outbound wire envelope.
type Message struct {
	Type      string      `json:"type"`
	MatchID   string      `json:"matchId,omitempty"`
	RequestID string      `json:"requestId,omitempty"`
	Payload   interface{} `json:"payload"`
}

// AckPayload is what the originating connection receives for its own action.
type AckPayload struct {
	Action ActionName  `json:"action"`
	Result interface{} `json:"result,omitempty"`
}

type ErrorPayload struct {
	Action  ActionName `json:"action,omitempty"`
	Kind    string     `json:"kind"`
	Message string     `json:"message"`
}

// Sender delivers an encoded message to one live connection. Send must not
// block and must preserve the order of calls for the same connection.
type Sender interface {
	Send(connectionID string, data []byte) bool
}

// Relay forwards room events to other server instances.
type Relay interface {
	Publish(ctx context.Context, matchID, origin string, data []byte) error
}

// Broadcaster fans events out to a match's current room membership. The
// origin connection gets the ack, everyone else gets the event.
type Broadcaster struct {
	registry *RoomRegistry
	sender   Sender
	relay    Relay
}

func NewBroadcaster(registry *RoomRegistry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

func (b *Broadcaster) SetSender(sender Sender) {
	b.sender = sender
}

func (b *Broadcaster) SetRelay(relay Relay) {
	b.relay = relay
}

// Publish delivers event to every member of matchID except origin, and ack
// (when non-nil) to origin. It returns the number of members the event was
// handed to.
func (b *Broadcaster) Publish(matchID, origin string, event Message, ack *Message) int {
	event.MatchID = matchID
	data, ok := encode(event)
	if !ok {
		return 0
	}

	delivered := b.deliver(matchID, origin, data)

	if ack != nil && origin != "" {
		ack.MatchID = matchID
		b.SendTo(origin, *ack)
	}

	if b.relay != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := b.relay.Publish(ctx, matchID, origin, data); err != nil {
			log.Warn().Err(err).Str("match_id", matchID).Str("event", event.Type).Msg("failed to relay event")
		}
		cancel()
	}

	log.Debug().
		Str("match_id", matchID).
		Str("event", event.Type).
		Str("origin", origin).
		Int("recipients", delivered).
		Msg("event broadcasted")
	return delivered
}

// DeliverRemote hands an event published by another instance to the local
// members of matchID.
func (b *Broadcaster) DeliverRemote(matchID, origin string, data []byte) {
	n := b.deliver(matchID, origin, data)
	log.Debug().Str("match_id", matchID).Int("recipients", n).Msg("relayed event delivered")
}

// SendTo sends msg to a single connection.
func (b *Broadcaster) SendTo(connectionID string, msg Message) bool {
	if b.sender == nil || connectionID == "" {
		return false
	}
	data, ok := encode(msg)
	if !ok {
		return false
	}
	return b.sender.Send(connectionID, data)
}

func (b *Broadcaster) deliver(matchID, origin string, data []byte) int {
	if b.sender == nil {
		return 0
	}
	delivered := 0
	for _, member := range b.registry.Members(matchID) {
		if member.ConnectionID == origin {
			continue
		}
		if b.sender.Send(member.ConnectionID, data) {
			delivered++
		}
	}
	return delivered
}

func encode(msg Message) ([]byte, bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("type", msg.Type).Str("match_id", msg.MatchID).Msg("failed to marshal message")
		return nil, false
	}
	return data, true
}
