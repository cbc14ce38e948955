package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shorewatch/internal/infrastructure/relay"
	messaging "shorewatch/internal/pkg/messaging/domain"
)

// State is where the session currently gets its updates from.
type State int

const (
	StateConnecting State = iota // stream attach in flight, inside the grace window
	StateLive                    // envelopes arriving on the stream
	StateDegraded                // stream unavailable, polling the history endpoint
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateLive:
		return "live"
	case StateDegraded:
		return "degraded"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Feed is one live stream attachment. C is closed when the feed dies; Err
// then reports why.
type Feed interface {
	C() <-chan relay.Envelope
	Close()
}

// Stream attaches a live feed for a conversation.
type Stream interface {
	Connect(ctx context.Context, conversationID int64) (Feed, error)
}

// History reads stored messages after a cursor, ascending.
type History interface {
	MessagesAfter(ctx context.Context, conversationID, afterID int64, limit int) ([]messaging.Message, bool, error)
}

// Sender submits a message and returns the stored copy.
type Sender interface {
	Send(ctx context.Context, conversationID int64, content string, msgType messaging.MessageType) (*messaging.Message, error)
}

// Config tunes the reconciler's fallback behavior.
type Config struct {
	// Grace is how long a stream attach may take before the session degrades
	// to polling. The attach keeps running; a late success upgrades back.
	Grace time.Duration
	// PollInterval paces history catch-ups while degraded.
	PollInterval time.Duration
	// PageLimit caps one backfill or catch-up page.
	PageLimit int
}

func (c *Config) fill() {
	if c.Grace <= 0 {
		c.Grace = 3 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.PageLimit <= 0 {
		c.PageLimit = 50
	}
}

// Reconciler keeps one conversation's client view converged with the store.
// The store is the only source of truth: the stream is an accelerator, and
// whenever it is silent or broken the reconciler falls back to polling the
// history endpoint from its last stored cursor. Messages are never lost to a
// dropped stream, only delayed.
type Reconciler struct {
	conversationID int64
	selfID         int64
	stream         Stream
	history        History
	sender         Sender
	log            *zap.Logger
	cfg            Config

	// OnChange, when set before Run, is called after every timeline change
	// and state transition. Calls may come from the reconciler goroutine and
	// from Send callers; implementations synchronize their own state.
	OnChange func(state State, entries []Entry)

	mu    sync.Mutex
	tl    *Timeline
	state State

	cancel context.CancelFunc
	done   chan struct{}
	wake   chan struct{}
}

func NewReconciler(conversationID, selfID int64, stream Stream, history History, sender Sender, cfg Config, log *zap.Logger) *Reconciler {
	cfg.fill()
	return &Reconciler{
		conversationID: conversationID,
		selfID:         selfID,
		stream:         stream,
		history:        history,
		sender:         sender,
		log:            log,
		cfg:            cfg,
		tl:             NewTimeline(),
		state:          StateConnecting,
		wake:           make(chan struct{}, 1),
	}
}

// State reports the current delivery mode.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Entries snapshots the timeline in display order.
func (r *Reconciler) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tl.Entries()
}

// Run drives the session until ctx is canceled or Close is called. It blocks;
// callers run it in its own goroutine.
func (r *Reconciler) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	r.mu.Lock()
	if r.state == StateClosed {
		r.mu.Unlock()
		cancel()
		close(done)
		return
	}
	r.cancel = cancel
	r.done = done
	r.mu.Unlock()

	defer close(done)
	defer r.setState(StateClosed)

	// Initial backfill so the view renders before the stream settles.
	r.catchUp(ctx)

	for ctx.Err() == nil {
		feed, ok := r.connect(ctx)
		if !ok {
			// Degraded until the next attach succeeds.
			r.degradedPause(ctx)
			continue
		}

		// The stream only carries envelopes published after attach; fill the
		// gap between the last cursor and now.
		r.catchUp(ctx)
		r.setState(StateLive)
		r.consume(ctx, feed)
	}
}

// Close tears the session down and waits for Run to finish.
func (r *Reconciler) Close() {
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	r.state = StateClosed
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Send submits content optimistically: the timeline shows the message
// immediately, then swaps in the stored copy. On failure the placeholder is
// removed and the error returned so the caller can restore the input.
func (r *Reconciler) Send(ctx context.Context, content string, msgType messaging.MessageType) (*messaging.Message, error) {
	key := uuid.NewString()

	r.mu.Lock()
	r.tl.AppendPending(key, content, msgType, r.selfID, time.Now().UTC())
	r.mu.Unlock()
	r.notify()

	stored, err := r.sender.Send(ctx, r.conversationID, content, msgType)
	if err != nil {
		r.mu.Lock()
		r.tl.DropPending(key)
		r.mu.Unlock()
		r.notify()
		return nil, err
	}

	r.mu.Lock()
	r.tl.ResolvePending(key, *stored)
	r.mu.Unlock()
	r.notify()
	return stored, nil
}

// Poke forces an immediate catch-up pass while degraded.
func (r *Reconciler) Poke() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

type attachResult struct {
	feed Feed
	err  error
}

// connect attaches the stream, degrading to polling if the attach outlives
// the grace window. The attach itself is never abandoned early: a slow
// success still ends the degraded phase.
func (r *Reconciler) connect(ctx context.Context) (Feed, bool) {
	r.setState(StateConnecting)

	ch := make(chan attachResult, 1)
	go func() {
		feed, err := r.stream.Connect(ctx, r.conversationID)
		ch <- attachResult{feed: feed, err: err}
	}()

	select {
	case res := <-ch:
		return r.accept(ctx, res)
	case <-time.After(r.cfg.Grace):
	case <-ctx.Done():
		go closeLate(ch)
		return nil, false
	}

	// Grace expired; poll while the attach keeps trying.
	r.setState(StateDegraded)
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case res := <-ch:
			return r.accept(ctx, res)
		case <-ticker.C:
			r.catchUp(ctx)
		case <-r.wake:
			r.catchUp(ctx)
		case <-ctx.Done():
			go closeLate(ch)
			return nil, false
		}
	}
}

func (r *Reconciler) accept(ctx context.Context, res attachResult) (Feed, bool) {
	if res.err != nil {
		r.log.Warn("stream attach failed", zap.Error(res.err))
		return nil, false
	}
	if ctx.Err() != nil {
		res.feed.Close()
		return nil, false
	}
	return res.feed, true
}

// degradedPause spaces failed attach attempts apart, polling in between.
func (r *Reconciler) degradedPause(ctx context.Context) {
	r.setState(StateDegraded)
	select {
	case <-ctx.Done():
	case <-r.wake:
		r.catchUp(ctx)
	case <-time.After(r.cfg.PollInterval):
		r.catchUp(ctx)
	}
}

// consume pumps envelopes into the timeline until the feed closes.
func (r *Reconciler) consume(ctx context.Context, feed Feed) {
	defer feed.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-feed.C():
			if !ok {
				r.log.Info("stream feed closed, falling back")
				return
			}
			r.absorb(env)
		}
	}
}

func (r *Reconciler) absorb(env relay.Envelope) {
	if env.Type != relay.EnvelopeNewMessage || env.ConversationID != r.conversationID {
		return
	}
	var m messaging.Message
	if err := json.Unmarshal(env.Message, &m); err != nil {
		r.log.Warn("dropping malformed envelope", zap.Error(err))
		return
	}

	r.mu.Lock()
	added := r.tl.Merge([]messaging.Message{m})
	r.mu.Unlock()
	if added > 0 {
		r.notify()
	}
}

// catchUp pages history from the last stored cursor until the store has
// nothing newer.
func (r *Reconciler) catchUp(ctx context.Context) {
	for {
		r.mu.Lock()
		after := r.tl.LastStoredID()
		r.mu.Unlock()

		msgs, hasMore, err := r.history.MessagesAfter(ctx, r.conversationID, after, r.cfg.PageLimit)
		if err != nil {
			if ctx.Err() == nil {
				r.log.Warn("history catch-up failed", zap.Error(err))
			}
			return
		}

		r.mu.Lock()
		added := r.tl.Merge(msgs)
		r.mu.Unlock()
		if added > 0 {
			r.notify()
		}
		if !hasMore {
			return
		}
	}
}

func (r *Reconciler) setState(s State) {
	r.mu.Lock()
	if r.state == StateClosed && s != StateClosed {
		r.mu.Unlock()
		return
	}
	changed := r.state != s
	r.state = s
	r.mu.Unlock()
	if changed {
		r.notify()
	}
}

func (r *Reconciler) notify() {
	if r.OnChange == nil {
		return
	}
	r.mu.Lock()
	state := r.state
	entries := r.tl.Entries()
	r.mu.Unlock()
	r.OnChange(state, entries)
}

// closeLate drains an attach channel in the background so a feed that
// arrives after shutdown is still closed.
func closeLate(ch chan attachResult) {
	if res, ok := <-ch; ok && res.feed != nil {
		res.feed.Close()
	}
}
