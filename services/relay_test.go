package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRelay_PublishQueues(t *testing.T) {
	relay := NewRedisRelay(nil)

	require.NoError(t, relay.Publish(context.Background(), "match-1", "conn-a", []byte(`{"type":"card-flipped"}`)))

	env := <-relay.queue
	assert.Equal(t, relay.InstanceID(), env.Instance)
	assert.Equal(t, "match-1", env.MatchID)
	assert.Equal(t, "conn-a", env.Origin)
	assert.JSONEq(t, `{"type":"card-flipped"}`, string(env.Data))
}

func TestRedisRelay_PublishNeverBlocks(t *testing.T) {
	relay := NewRedisRelay(nil)
	for i := 0; i < cap(relay.queue); i++ {
		require.NoError(t, relay.Publish(context.Background(), "match-1", "", []byte(`{}`)))
	}

	assert.ErrorIs(t, relay.Publish(context.Background(), "match-1", "", []byte(`{}`)), errRelayQueueFull)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, relay.Publish(ctx, "match-1", "", []byte(`{}`)), context.Canceled)
}
