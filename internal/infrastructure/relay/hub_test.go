package relay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testEnvelope(conversationID, senderID int64, body string) Envelope {
	raw, _ := json.Marshal(map[string]string{"content": body})
	return Envelope{
		Type:           EnvelopeNewMessage,
		ConversationID: conversationID,
		SenderID:       senderID,
		Message:        raw,
		Timestamp:      time.Now().UTC(),
	}
}

func recv(t *testing.T, sub *Subscription) Envelope {
	t.Helper()
	select {
	case env, ok := <-sub.C():
		require.True(t, ok, "subscription closed unexpectedly")
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for envelope")
		return Envelope{}
	}
}

func assertNoEnvelope(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case env, ok := <-sub.C():
		if ok {
			t.Fatalf("unexpected envelope: %+v", env)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubDeliversToSubscribers(t *testing.T) {
	h := NewHub(zap.NewNop())
	defer h.Close()
	ctx := context.Background()

	recipient, err := h.Subscribe(ctx, 1, 20)
	require.NoError(t, err)

	require.NoError(t, h.Publish(ctx, testEnvelope(1, 10, "hi")))

	env := recv(t, recipient)
	assert.Equal(t, int64(1), env.ConversationID)
	assert.Equal(t, int64(10), env.SenderID)
}

func TestHubSuppressesSelfEcho(t *testing.T) {
	h := NewHub(zap.NewNop())
	defer h.Close()
	ctx := context.Background()

	sender, err := h.Subscribe(ctx, 1, 10)
	require.NoError(t, err)
	recipient, err := h.Subscribe(ctx, 1, 20)
	require.NoError(t, err)

	require.NoError(t, h.Publish(ctx, testEnvelope(1, 10, "hi")))

	recv(t, recipient)
	assertNoEnvelope(t, sender)
}

func TestHubScopesTopicsByConversation(t *testing.T) {
	h := NewHub(zap.NewNop())
	defer h.Close()
	ctx := context.Background()

	other, err := h.Subscribe(ctx, 2, 20)
	require.NoError(t, err)

	require.NoError(t, h.Publish(ctx, testEnvelope(1, 10, "hi")))
	assertNoEnvelope(t, other)
}

func TestHubLateSubscriberMissesEarlierPublishes(t *testing.T) {
	h := NewHub(zap.NewNop())
	defer h.Close()
	ctx := context.Background()

	require.NoError(t, h.Publish(ctx, testEnvelope(1, 10, "before attach")))

	late, err := h.Subscribe(ctx, 1, 20)
	require.NoError(t, err)
	assertNoEnvelope(t, late)
}

func TestHubCancelStopsDelivery(t *testing.T) {
	h := NewHub(zap.NewNop())
	defer h.Close()
	ctx := context.Background()

	sub, err := h.Subscribe(ctx, 1, 20)
	require.NoError(t, err)

	sub.Cancel()
	sub.Cancel() // idempotent

	_, ok := <-sub.C()
	assert.False(t, ok, "channel should be closed after cancel")

	// Publishing after cancel must not panic or block.
	require.NoError(t, h.Publish(ctx, testEnvelope(1, 10, "hi")))
}

func TestHubDropsWhenSubscriberBufferFull(t *testing.T) {
	h := NewHub(zap.NewNop())
	defer h.Close()
	ctx := context.Background()

	slow, err := h.Subscribe(ctx, 1, 20)
	require.NoError(t, err)

	for i := 0; i < subscriptionBuffer+10; i++ {
		require.NoError(t, h.Publish(ctx, testEnvelope(1, 10, "flood")))
	}

	// Exactly the buffered envelopes are readable; the overflow was dropped.
	for i := 0; i < subscriptionBuffer; i++ {
		recv(t, slow)
	}
	assertNoEnvelope(t, slow)
}

func TestHubCloseEndsSubscriptions(t *testing.T) {
	h := NewHub(zap.NewNop())
	ctx := context.Background()

	sub, err := h.Subscribe(ctx, 1, 20)
	require.NoError(t, err)

	h.Close()

	_, ok := <-sub.C()
	assert.False(t, ok)

	// Cancel after close is a no-op rather than a double close.
	sub.Cancel()

	// New subscriptions on a closed hub come back already closed.
	dead, err := h.Subscribe(ctx, 1, 30)
	require.NoError(t, err)
	_, ok = <-dead.C()
	assert.False(t, ok)
}

func TestHubPublishHonorsContext(t *testing.T) {
	h := NewHub(zap.NewNop())
	defer h.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, h.Publish(ctx, testEnvelope(1, 10, "hi")))
	_, err := h.Subscribe(ctx, 1, 20)
	assert.Error(t, err)
}
