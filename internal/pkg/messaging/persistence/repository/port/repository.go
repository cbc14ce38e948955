package repository

import (
	"context"
	"time"

	messaging "shorewatch/internal/pkg/messaging/domain"
)

// ConversationSummary is one inbox row: the conversation, the peer, the most
// recent message and how many of the peer's messages are still unread.
type ConversationSummary struct {
	Conversation messaging.Conversation
	PeerID       int64
	LastMessage  *messaging.Message
	Unread       int
}

// MessagingRepository defines persistence for conversations, participants
// and the per-conversation message log.
//
// Errors follow the apperrors taxonomy: NOT_FOUND for missing rows,
// CONFLICT for a lost creation race, UNAVAILABLE for transport failures.
type MessagingRepository interface {
	// FindConversationByPair resolves the unique conversation for a
	// canonicalized pair. Misses are NOT_FOUND.
	FindConversationByPair(ctx context.Context, peerLo, peerHi int64) (*messaging.Conversation, error)

	// CreateConversationWithParticipants creates the conversation row and
	// both participant rows atomically. A unique-index violation on the
	// pair key is CONFLICT: the conversation already exists, re-query.
	CreateConversationWithParticipants(ctx context.Context, peerLo, peerHi int64) (*messaging.Conversation, error)

	GetConversation(ctx context.Context, conversationID int64) (*messaging.Conversation, error)

	IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error)

	// AppendMessage persists m and returns the stored copy with its
	// server-assigned id, uuid and timestamp. A ListMessages call made
	// after AppendMessage returns always includes the new message.
	AppendMessage(ctx context.Context, m messaging.Message) (*messaging.Message, error)

	// ListMessages returns messages in ascending (created_at, id) order.
	// afterID > 0 selects only messages with a larger id (cursor catch-up);
	// otherwise offset-based paging applies. The second return value
	// reports whether more history exists past this page.
	ListMessages(ctx context.Context, conversationID, afterID int64, limit, offset int) ([]messaging.Message, bool, error)

	// MarkRead stamps read_at on the peer's unread messages as seen by
	// readerID and returns how many rows changed.
	MarkRead(ctx context.Context, conversationID, readerID int64, at time.Time) (int64, error)

	// CountUnread counts messages in the conversation sent by the peer
	// that readerID has not read yet.
	CountUnread(ctx context.Context, conversationID, readerID int64) (int, error)

	// ListConversationsFor returns the caller's inbox, most recently
	// active conversation first.
	ListConversationsFor(ctx context.Context, userID int64) ([]ConversationSummary, error)
}
