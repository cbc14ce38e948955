package session

import (
	"sort"
	"time"

	messaging "shorewatch/internal/pkg/messaging/domain"
)

// Entry is one timeline slot: either a stored message or an optimistic
// placeholder still waiting for the server's copy. PendingKey identifies a
// placeholder until the stored message replaces it.
type Entry struct {
	Message    messaging.Message
	Pending    bool
	PendingKey string
}

// Timeline is the client-side view of one conversation's history. It absorbs
// messages from any mix of sources (backfill pages, live envelopes, poll
// catch-ups) and keeps them deduplicated and in store order. Not safe for
// concurrent use; the Reconciler serializes access.
type Timeline struct {
	entries []Entry
	byID    map[int64]int
	byKey   map[string]int
}

func NewTimeline() *Timeline {
	return &Timeline{
		byID:  make(map[int64]int),
		byKey: make(map[string]int),
	}
}

// Merge folds stored messages into the timeline. Duplicates are replaced in
// place, so re-delivery from overlapping sources is harmless. Returns how
// many messages were actually new.
func (t *Timeline) Merge(msgs []messaging.Message) int {
	added := 0
	needSort := false
	for _, m := range msgs {
		if i, ok := t.byID[m.ID]; ok {
			t.entries[i].Message = m
			continue
		}
		tail := len(t.entries) == 0 || t.entries[len(t.entries)-1].Message.Less(m)
		t.entries = append(t.entries, Entry{Message: m})
		t.byID[m.ID] = len(t.entries) - 1
		added++
		if !tail {
			needSort = true
		}
	}
	if needSort {
		t.resort()
	}
	return added
}

// AppendPending adds an optimistic placeholder at the tail. SentAt orders the
// placeholder among stored messages until the server copy arrives.
func (t *Timeline) AppendPending(key string, content string, msgType messaging.MessageType, senderID int64, sentAt time.Time) {
	t.entries = append(t.entries, Entry{
		Message: messaging.Message{
			SenderID:    senderID,
			Content:     content,
			MessageType: msgType,
			CreatedAt:   sentAt,
		},
		Pending:    true,
		PendingKey: key,
	})
	t.byKey[key] = len(t.entries) - 1
}

// ResolvePending swaps the placeholder for the stored message. If the stored
// copy already arrived through another source the placeholder is dropped so
// the message never shows twice.
func (t *Timeline) ResolvePending(key string, stored messaging.Message) {
	i, ok := t.byKey[key]
	if !ok {
		t.Merge([]messaging.Message{stored})
		return
	}
	delete(t.byKey, key)

	if _, dup := t.byID[stored.ID]; dup {
		t.removeAt(i)
		return
	}
	t.entries[i] = Entry{Message: stored}
	t.byID[stored.ID] = i
	t.resort()
}

// DropPending removes a placeholder after a failed send.
func (t *Timeline) DropPending(key string) bool {
	i, ok := t.byKey[key]
	if !ok {
		return false
	}
	delete(t.byKey, key)
	t.removeAt(i)
	return true
}

// LastStoredID is the catch-up cursor: the highest stored message id seen.
func (t *Timeline) LastStoredID() int64 {
	var max int64
	for _, e := range t.entries {
		if !e.Pending && e.Message.ID > max {
			max = e.Message.ID
		}
	}
	return max
}

// Entries returns a copy of the timeline in display order.
func (t *Timeline) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Timeline) Len() int { return len(t.entries) }

func (t *Timeline) removeAt(i int) {
	t.entries = append(t.entries[:i], t.entries[i+1:]...)
	t.reindex()
}

func (t *Timeline) resort() {
	sort.SliceStable(t.entries, func(i, j int) bool {
		return t.entries[i].Message.Less(t.entries[j].Message)
	})
	t.reindex()
}

func (t *Timeline) reindex() {
	for i, e := range t.entries {
		if e.Pending {
			t.byKey[e.PendingKey] = i
		} else {
			t.byID[e.Message.ID] = i
		}
	}
}
