package messaging

import (
	"time"

	"github.com/google/uuid"

	"shorewatch/pkg/apperrors"
)

// Conversation is the unique channel pairing exactly two users. At most one
// conversation exists per unordered pair; the pair is stored canonicalized
// so the database can enforce that.
type Conversation struct {
	ID        int64     `json:"id"`
	UUID      uuid.UUID `json:"uuid"`
	PeerLo    int64     `json:"-"`
	PeerHi    int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Participant is the membership relation between a user and a conversation.
type Participant struct {
	ConversationID int64     `json:"conversation_id"`
	UserID         int64     `json:"user_id"`
	JoinedAt       time.Time `json:"joined_at"`
}

// PeerOf returns the other participant's id given one side of the pair.
func (c Conversation) PeerOf(userID int64) int64 {
	if c.PeerLo == userID {
		return c.PeerHi
	}
	return c.PeerLo
}

// Involves reports whether userID is one of the two participants.
func (c Conversation) Involves(userID int64) bool {
	return c.PeerLo == userID || c.PeerHi == userID
}

// CanonicalPair orders two distinct user ids as (lo, hi). Both directions of
// a pair map to the same key, which is what makes findOrCreate commutative.
func CanonicalPair(a, b int64) (lo, hi int64, err error) {
	if a <= 0 || b <= 0 {
		return 0, 0, apperrors.InvalidArg("user ids must be positive")
	}
	if a == b {
		return 0, 0, apperrors.InvalidArg("cannot open a conversation with yourself")
	}
	if a < b {
		return a, b, nil
	}
	return b, a, nil
}
