package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	cacheport "shorewatch/internal/infrastructure/cache/port"
	queueport "shorewatch/internal/infrastructure/queue/port"
	"shorewatch/internal/infrastructure/relay"
	identity "shorewatch/internal/pkg/identity/domain"
	messaging "shorewatch/internal/pkg/messaging/domain"
	repository "shorewatch/internal/pkg/messaging/persistence/repository/port"
	"shorewatch/pkg/apperrors"
)

// fakeRepo is an in-memory MessagingRepository mirroring the adapter's
// error contract.
type fakeRepo struct {
	mu            sync.Mutex
	conversations map[int64]*messaging.Conversation
	participants  map[int64][]int64
	messages      []messaging.Message
	nextConvID    int64
	nextMsgID     int64

	failAppend      error
	failFind        error
	conflictCreates int // serve this many CONFLICTs before succeeding
	createCalls     int
	markReadCalls   int
	countCalls      int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		conversations: make(map[int64]*messaging.Conversation),
		participants:  make(map[int64][]int64),
		nextConvID:    1,
		nextMsgID:     1,
	}
}

var _ repository.MessagingRepository = (*fakeRepo)(nil)

func (r *fakeRepo) seedConversation(lo, hi int64) *messaging.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addConversation(lo, hi)
}

func (r *fakeRepo) addConversation(lo, hi int64) *messaging.Conversation {
	c := &messaging.Conversation{
		ID:        r.nextConvID,
		UUID:      uuid.New(),
		PeerLo:    lo,
		PeerHi:    hi,
		CreatedAt: time.Now().UTC(),
	}
	r.nextConvID++
	r.conversations[c.ID] = c
	r.participants[c.ID] = []int64{lo, hi}
	return c
}

func (r *fakeRepo) FindConversationByPair(_ context.Context, lo, hi int64) (*messaging.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFind != nil {
		return nil, r.failFind
	}
	for _, c := range r.conversations {
		if c.PeerLo == lo && c.PeerHi == hi {
			cp := *c
			return &cp, nil
		}
	}
	return nil, messaging.ErrConversationNotFound
}

func (r *fakeRepo) CreateConversationWithParticipants(_ context.Context, lo, hi int64) (*messaging.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if r.conflictCreates > 0 {
		r.conflictCreates--
		// Simulate losing the race: the winner's row appears.
		r.addConversation(lo, hi)
		return nil, apperrors.Conflict("conversation already exists for this pair")
	}
	c := r.addConversation(lo, hi)
	cp := *c
	return &cp, nil
}

func (r *fakeRepo) GetConversation(_ context.Context, id int64) (*messaging.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return nil, messaging.ErrConversationNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeRepo) IsParticipant(_ context.Context, conversationID, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.participants[conversationID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) AppendMessage(_ context.Context, m messaging.Message) (*messaging.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAppend != nil {
		return nil, r.failAppend
	}
	m.ID = r.nextMsgID
	m.UUID = uuid.New()
	m.CreatedAt = time.Now().UTC()
	r.nextMsgID++
	r.messages = append(r.messages, m)
	return &m, nil
}

func (r *fakeRepo) ListMessages(_ context.Context, conversationID, afterID int64, limit, offset int) ([]messaging.Message, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sel []messaging.Message
	for _, m := range r.messages {
		if m.ConversationID != conversationID {
			continue
		}
		if afterID > 0 && m.ID <= afterID {
			continue
		}
		sel = append(sel, m)
	}
	messaging.SortMessages(sel)
	if afterID == 0 && offset > 0 {
		if offset >= len(sel) {
			sel = nil
		} else {
			sel = sel[offset:]
		}
	}
	if len(sel) > limit {
		return sel[:limit], true, nil
	}
	return sel, false, nil
}

func (r *fakeRepo) MarkRead(_ context.Context, conversationID, readerID int64, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markReadCalls++
	var n int64
	for i := range r.messages {
		m := &r.messages[i]
		if m.ConversationID == conversationID && m.SenderID != readerID && m.ReadAt == nil {
			stamp := at
			m.ReadAt = &stamp
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) CountUnread(_ context.Context, conversationID, readerID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.countCalls++
	n := 0
	for _, m := range r.messages {
		if m.ConversationID == conversationID && m.SenderID != readerID && m.ReadAt == nil {
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) ListConversationsFor(_ context.Context, userID int64) ([]repository.ConversationSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.ConversationSummary
	for _, c := range r.conversations {
		if !c.Involves(userID) {
			continue
		}
		s := repository.ConversationSummary{Conversation: *c, PeerID: c.PeerOf(userID)}
		for i := range r.messages {
			m := r.messages[i]
			if m.ConversationID != c.ID {
				continue
			}
			if s.LastMessage == nil || s.LastMessage.Less(m) {
				cp := m
				s.LastMessage = &cp
			}
			if m.SenderID != userID && m.ReadAt == nil {
				s.Unread++
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// fakeDirectory answers existence probes from a fixed user set.
type fakeDirectory struct {
	users map[int64]identity.User
	err   error
}

func newFakeDirectory(ids ...int64) *fakeDirectory {
	d := &fakeDirectory{users: make(map[int64]identity.User)}
	for _, id := range ids {
		d.users[id] = identity.User{ID: id}
	}
	return d
}

func (d *fakeDirectory) GetByID(_ context.Context, id int64) (*identity.User, error) {
	if d.err != nil {
		return nil, d.err
	}
	u, ok := d.users[id]
	if !ok {
		return nil, apperrors.NotFound("user not found")
	}
	return &u, nil
}

func (d *fakeDirectory) Exists(_ context.Context, id int64) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	_, ok := d.users[id]
	return ok, nil
}

func (d *fakeDirectory) Search(_ context.Context, _ string, _ int64, _ int) ([]identity.User, error) {
	return nil, nil
}

// fakeRelay records publishes and can be told to fail.
type fakeRelay struct {
	mu        sync.Mutex
	published []relay.Envelope
	err       error
}

func (r *fakeRelay) Publish(_ context.Context, env relay.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.published = append(r.published, env)
	return nil
}

func (r *fakeRelay) Subscribe(context.Context, int64, int64) (*relay.Subscription, error) {
	return nil, apperrors.Internal("not implemented in fake")
}

func (r *fakeRelay) Close() {}

func (r *fakeRelay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.published)
}

// fakeQueue records enqueued tasks.
type fakeQueue struct {
	mu    sync.Mutex
	tasks []queueport.Task
	opts  []queueport.EnqueueOption
	err   error
}

func (q *fakeQueue) Enqueue(_ context.Context, t queueport.Task, opts ...queueport.EnqueueOption) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return "", q.err
	}
	q.tasks = append(q.tasks, t)
	if len(opts) > 0 {
		q.opts = append(q.opts, opts[0])
	}
	return uuid.NewString(), nil
}

func (q *fakeQueue) Close() error { return nil }

// fakeCache is a map-backed cache tracking deletions.
type fakeCache struct {
	mu      sync.Mutex
	values  map[string]string
	deleted []string
	getErr  error
	setErr  error
}

func newFakeCache() *fakeCache { return &fakeCache{values: make(map[string]string)} }

var _ cacheport.Cache = (*fakeCache)(nil)

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", c.getErr
	}
	v, ok := c.values[key]
	if !ok {
		return "", cacheport.ErrMiss
	}
	return v, nil
}

func (c *fakeCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.values[key] = value
	return nil
}

func (c *fakeCache) Del(_ context.Context, keys ...string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := c.values[k]; ok {
			delete(c.values, k)
			n++
		}
		c.deleted = append(c.deleted, k)
	}
	return n, nil
}

func (c *fakeCache) Ping(context.Context) error { return nil }
func (c *fakeCache) Close() error               { return nil }
