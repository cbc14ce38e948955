package relay

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// EnvelopeNewMessage is the only envelope type currently on the wire.
const EnvelopeNewMessage = "NEW_MESSAGE"

// Envelope is the transient broadcast frame carrying a freshly stored
// message to live subscribers. It exists only on the wire; nothing is
// persisted and a subscriber that attaches after Publish never sees it.
type Envelope struct {
	Type           string          `json:"type"`
	ConversationID int64           `json:"conversation_id"`
	SenderID       int64           `json:"sender_id"`
	Message        json.RawMessage `json:"message"`
	Timestamp      time.Time       `json:"timestamp"`
}

// Relay publishes stored messages to per-conversation broadcast topics.
// Delivery is best-effort and at-most-once per live subscription; durability
// always comes from the message store, never from the relay.
type Relay interface {
	// Publish broadcasts env on the conversation's topic. An error means
	// the broadcast may not have gone out; the message itself is already
	// durable, so callers log and move on.
	Publish(ctx context.Context, env Envelope) error

	// Subscribe attaches a live feed for subscriberID on the conversation's
	// topic. The returned subscription never yields envelopes published by
	// subscriberID itself.
	Subscribe(ctx context.Context, conversationID, subscriberID int64) (*Subscription, error)

	Close()
}

// Subscription is one live feed. Envelopes arrive on C until Cancel is
// called or the relay shuts down, after which C is closed.
type Subscription struct {
	ch       chan Envelope
	once     sync.Once
	onCancel func(*Subscription)

	conversationID int64
	subscriberID   int64
}

// C is the receive side of the feed.
func (s *Subscription) C() <-chan Envelope { return s.ch }

// Cancel detaches the subscription and closes C. Safe to call more than
// once and safe to call concurrently with delivery.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		if s.onCancel != nil {
			s.onCancel(s)
		}
	})
}
