package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ChannelFor names the redis pub/sub channel for a conversation topic.
func ChannelFor(conversationID int64) string {
	return fmt.Sprintf("conversation-%d", conversationID)
}

// RedisBridge is the multi-node Relay: publishes go through redis pub/sub
// and come back on every node holding live subscribers, where the local Hub
// fans them out. One redis subscription is kept per conversation with live
// local feeds, reference-counted across subscribers.
type RedisBridge struct {
	client *redis.Client
	hub    *Hub
	log    *zap.Logger

	mu     sync.Mutex
	feeds  map[int64]*feed
	closed bool
}

type feed struct {
	pubsub *redis.PubSub
	refs   int
}

func NewRedisBridge(client *redis.Client, log *zap.Logger) *RedisBridge {
	return &RedisBridge{
		client: client,
		hub:    NewHub(log),
		log:    log,
		feeds:  make(map[int64]*feed),
	}
}

var _ Relay = (*RedisBridge)(nil)

// Publish sends env to the conversation topic via redis. Local subscribers
// receive it through the same pub/sub path as remote ones, so a broadcast
// is delivered exactly one way per subscriber.
func (b *RedisBridge) Publish(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("relay: marshal envelope: %w", err)
	}
	return b.client.Publish(ctx, ChannelFor(env.ConversationID), payload).Err()
}

// Subscribe attaches a local feed and makes sure this node listens on the
// conversation's redis channel.
func (b *RedisBridge) Subscribe(ctx context.Context, conversationID, subscriberID int64) (*Subscription, error) {
	if err := b.acquireFeed(ctx, conversationID); err != nil {
		return nil, err
	}

	sub, err := b.hub.Subscribe(ctx, conversationID, subscriberID)
	if err != nil {
		b.releaseFeed(conversationID)
		return nil, err
	}

	detach := sub.onCancel
	sub.onCancel = func(s *Subscription) {
		if detach != nil {
			detach(s)
		}
		b.releaseFeed(conversationID)
	}
	return sub, nil
}

// Close stops every redis feed and the local hub.
func (b *RedisBridge) Close() {
	b.mu.Lock()
	b.closed = true
	feeds := b.feeds
	b.feeds = make(map[int64]*feed)
	b.mu.Unlock()

	for _, f := range feeds {
		_ = f.pubsub.Close()
	}
	b.hub.Close()
}

func (b *RedisBridge) acquireFeed(ctx context.Context, conversationID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("relay: bridge closed")
	}
	if f, ok := b.feeds[conversationID]; ok {
		f.refs++
		return nil
	}

	pubsub := b.client.Subscribe(ctx, ChannelFor(conversationID))
	f := &feed{pubsub: pubsub, refs: 1}
	b.feeds[conversationID] = f
	go b.pump(conversationID, pubsub)
	return nil
}

func (b *RedisBridge) releaseFeed(conversationID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.feeds[conversationID]
	if !ok {
		return
	}
	f.refs--
	if f.refs > 0 {
		return
	}
	delete(b.feeds, conversationID)
	_ = f.pubsub.Close()
}

// pump moves envelopes from the redis channel into the local hub until the
// pubsub is closed.
func (b *RedisBridge) pump(conversationID int64, pubsub *redis.PubSub) {
	for msg := range pubsub.Channel() {
		var env Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			b.log.Warn("dropping malformed envelope",
				zap.Int64("conversation_id", conversationID), zap.Error(err))
			continue
		}
		_ = b.hub.Publish(context.Background(), env)
	}
}
