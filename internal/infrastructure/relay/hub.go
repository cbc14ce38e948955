package relay

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// subscriptionBuffer bounds how many undelivered envelopes a subscriber may
// accumulate before further broadcasts are dropped for it. The relay is
// best-effort; a subscriber that falls behind catches up through backfill.
const subscriptionBuffer = 32

// Hub is the in-process broadcast broker: topics keyed by conversation id,
// fan-out to every attached subscription except the publisher's own.
// It is the single-node Relay implementation and the local delivery stage
// of the redis bridge.
type Hub struct {
	mu     sync.RWMutex
	topics map[int64]map[*Subscription]struct{}
	closed bool

	log *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		topics: make(map[int64]map[*Subscription]struct{}),
		log:    log,
	}
}

var _ Relay = (*Hub)(nil)

// Subscribe attaches a feed to the conversation topic. The feed starts
// receiving envelopes published after this call returns.
func (h *Hub) Subscribe(ctx context.Context, conversationID, subscriberID int64) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &Subscription{
		ch:             make(chan Envelope, subscriptionBuffer),
		conversationID: conversationID,
		subscriberID:   subscriberID,
	}
	sub.onCancel = h.detach

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub, nil
	}
	topic := h.topics[conversationID]
	if topic == nil {
		topic = make(map[*Subscription]struct{})
		h.topics[conversationID] = topic
	}
	topic[sub] = struct{}{}
	return sub, nil
}

// Publish fans env out to every subscription on the topic except the
// sender's own (self-echo suppression). Subscribers whose buffers are full
// are skipped; they recover through poll backfill.
func (h *Hub) Publish(ctx context.Context, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.topics[env.ConversationID] {
		if sub.subscriberID == env.SenderID {
			continue
		}
		select {
		case sub.ch <- env:
		default:
			h.log.Warn("subscriber buffer full, dropping broadcast",
				zap.Int64("conversation_id", env.ConversationID),
				zap.Int64("subscriber_id", sub.subscriberID))
		}
	}
	return nil
}

// Close cancels every subscription and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, topic := range h.topics {
		for sub := range topic {
			close(sub.ch)
		}
		delete(h.topics, id)
	}
}

func (h *Hub) detach(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	topic := h.topics[sub.conversationID]
	if topic == nil {
		return
	}
	if _, ok := topic[sub]; !ok {
		return
	}
	delete(topic, sub)
	if len(topic) == 0 {
		delete(h.topics, sub.conversationID)
	}
	close(sub.ch)
}
