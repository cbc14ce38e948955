package messaging

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"shorewatch/pkg/apperrors"
)

// MessageType is the content kind of a message.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeLocation MessageType = "location"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeLocation:
		return true
	}
	return false
}

// Message is an immutable entry in a conversation's append log. ReadAt is
// the only field that may change after creation (unset -> timestamp, set by
// the recipient).
type Message struct {
	ID             int64       `json:"id"`
	UUID           uuid.UUID   `json:"uuid"`
	ConversationID int64       `json:"conversation_id"`
	SenderID       int64       `json:"sender_id"`
	Content        string      `json:"content"`
	MessageType    MessageType `json:"message_type"`
	CreatedAt      time.Time   `json:"created_at"`
	ReadAt         *time.Time  `json:"read_at,omitempty"`
}

// NewMessage validates sender input and shapes a message ready to persist.
// The store assigns ID, UUID and CreatedAt.
func NewMessage(conversationID, senderID int64, content string, msgType MessageType) (*Message, error) {
	if conversationID <= 0 || senderID <= 0 {
		return nil, apperrors.InvalidArg("conversation and sender ids are required")
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, apperrors.InvalidArg("message content must not be empty")
	}

	if msgType == "" {
		msgType = MessageTypeText
	}
	if !msgType.Valid() {
		return nil, apperrors.InvalidArg("unsupported message type")
	}

	return &Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        trimmed,
		MessageType:    msgType,
	}, nil
}

// Less orders messages by (CreatedAt, ID) ascending; ID breaks timestamp
// ties so the order is total.
func (m Message) Less(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}

// SortMessages sorts msgs into the store order in place.
func SortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Less(msgs[j]) })
}
