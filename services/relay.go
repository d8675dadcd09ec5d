package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const relayChannelPrefix = "trivia:match:"

var errRelayQueueFull = errors.New("relay queue full")

type relayEnvelope struct {
	Instance string          `json:"instance"`
	MatchID  string          `json:"matchId"`
	Origin   string          `json:"origin,omitempty"`
	Data     json.RawMessage `json:"data"`
}

// RedisRelay mirrors room events through Redis pub/sub so viewers attached
// to other instances see them too. Publishes are queued and sent by a single
// goroutine, keeping per-match order. A full queue drops the event.
type RedisRelay struct {
	client     *redis.Client
	instanceID string
	queue      chan relayEnvelope
}

func NewRedisRelay(client *redis.Client) *RedisRelay {
	return &RedisRelay{
		client:     client,
		instanceID: uuid.NewString(),
		queue:      make(chan relayEnvelope, 1024),
	}
}

func (r *RedisRelay) InstanceID() string {
	return r.instanceID
}

func (r *RedisRelay) Publish(ctx context.Context, matchID, origin string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env := relayEnvelope{Instance: r.instanceID, MatchID: matchID, Origin: origin, Data: data}
	select {
	case r.queue <- env:
		return nil
	default:
		return errRelayQueueFull
	}
}

// Run subscribes to every match channel and publishes queued events until
// ctx is cancelled. deliver is called for events from other instances.
func (r *RedisRelay) Run(ctx context.Context, deliver func(matchID, origin string, data []byte)) error {
	sub := r.client.PSubscribe(ctx, relayChannelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to relay channels: %w", err)
	}
	log.Info().Str("instance", r.instanceID).Msg("redis relay started")

	incoming := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("redis relay shutting down")
			return nil

		case env := <-r.queue:
			payload, err := json.Marshal(env)
			if err != nil {
				log.Error().Err(err).Str("match_id", env.MatchID).Msg("failed to marshal relay envelope")
				continue
			}
			if err := r.client.Publish(ctx, relayChannelPrefix+env.MatchID, payload).Err(); err != nil {
				log.Error().Err(err).Str("match_id", env.MatchID).Msg("failed to publish to redis")
			}

		case msg, ok := <-incoming:
			if !ok {
				return nil
			}
			var env relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed relay message")
				continue
			}
			if env.Instance == r.instanceID {
				continue
			}
			if env.MatchID == "" {
				env.MatchID = strings.TrimPrefix(msg.Channel, relayChannelPrefix)
			}
			deliver(env.MatchID, env.Origin, env.Data)
		}
	}
}
