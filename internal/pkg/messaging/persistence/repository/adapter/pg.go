package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	messaging "shorewatch/internal/pkg/messaging/domain"
	repository "shorewatch/internal/pkg/messaging/persistence/repository/port"
	"shorewatch/pkg/apperrors"
)

const uniqueViolation = "23505"

// PgMessagingRepository implements the messaging repository over a pgx pool.
type PgMessagingRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessagingRepository(pool *pgxpool.Pool) *PgMessagingRepository {
	return &PgMessagingRepository{pool: pool}
}

var _ repository.MessagingRepository = (*PgMessagingRepository)(nil)

func (r *PgMessagingRepository) FindConversationByPair(ctx context.Context, peerLo, peerHi int64) (*messaging.Conversation, error) {
	var c messaging.Conversation
	err := r.pool.QueryRow(ctx, `
		SELECT id, uuid, peer_lo, peer_hi, created_at
		FROM conversation
		WHERE peer_lo = $1 AND peer_hi = $2
	`, peerLo, peerHi).Scan(&c.ID, &c.UUID, &c.PeerLo, &c.PeerHi, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, messaging.ErrConversationNotFound
	}
	if err != nil {
		return nil, apperrors.Unavailable("conversation lookup failed", err)
	}
	return &c, nil
}

// CreateConversationWithParticipants inserts the conversation and both
// participant rows in one transaction; either everything lands or nothing
// does. Losing the creation race surfaces as CONFLICT via the pair key.
func (r *PgMessagingRepository) CreateConversationWithParticipants(ctx context.Context, peerLo, peerHi int64) (*messaging.Conversation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, apperrors.Unavailable("begin conversation create", err)
	}
	defer tx.Rollback(ctx)

	var c messaging.Conversation
	err = tx.QueryRow(ctx, `
		INSERT INTO conversation (peer_lo, peer_hi)
		VALUES ($1, $2)
		RETURNING id, uuid, peer_lo, peer_hi, created_at
	`, peerLo, peerHi).Scan(&c.ID, &c.UUID, &c.PeerLo, &c.PeerHi, &c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, apperrors.Conflict("conversation already exists for this pair")
		}
		return nil, apperrors.Unavailable("conversation insert failed", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO conversation_participant (conversation_id, user_id)
		VALUES ($1, $2), ($1, $3)
	`, c.ID, peerLo, peerHi)
	if err != nil {
		return nil, apperrors.Unavailable("participant insert failed", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperrors.Unavailable("commit conversation create", err)
	}
	return &c, nil
}

func (r *PgMessagingRepository) GetConversation(ctx context.Context, conversationID int64) (*messaging.Conversation, error) {
	var c messaging.Conversation
	err := r.pool.QueryRow(ctx, `
		SELECT id, uuid, peer_lo, peer_hi, created_at
		FROM conversation
		WHERE id = $1
	`, conversationID).Scan(&c.ID, &c.UUID, &c.PeerLo, &c.PeerHi, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, messaging.ErrConversationNotFound
	}
	if err != nil {
		return nil, apperrors.Unavailable("conversation lookup failed", err)
	}
	return &c, nil
}

func (r *PgMessagingRepository) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM conversation_participant
			WHERE conversation_id = $1 AND user_id = $2
		)
	`, conversationID, userID).Scan(&exists)
	if err != nil {
		return false, apperrors.Unavailable("participant check failed", err)
	}
	return exists, nil
}

func (r *PgMessagingRepository) AppendMessage(ctx context.Context, m messaging.Message) (*messaging.Message, error) {
	stored := m
	err := r.pool.QueryRow(ctx, `
		INSERT INTO message (conversation_id, sender_id, content, message_type)
		VALUES ($1, $2, $3, $4)
		RETURNING id, uuid, created_at
	`, m.ConversationID, m.SenderID, m.Content, string(m.MessageType)).
		Scan(&stored.ID, &stored.UUID, &stored.CreatedAt)
	if err != nil {
		return nil, apperrors.Unavailable("message insert failed", err)
	}
	return &stored, nil
}

func (r *PgMessagingRepository) ListMessages(ctx context.Context, conversationID, afterID int64, limit, offset int) ([]messaging.Message, bool, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	// One extra row decides has_more without a second count query.
	rows, err := r.pool.Query(ctx, `
		SELECT id, uuid, conversation_id, sender_id, content, message_type, created_at, read_at
		FROM message
		WHERE conversation_id = $1
		  AND ($2::bigint = 0 OR id > $2)
		ORDER BY created_at, id
		LIMIT $3 OFFSET $4
	`, conversationID, afterID, limit+1, offset)
	if err != nil {
		return nil, false, apperrors.Unavailable("message listing failed", err)
	}
	defer rows.Close()

	var msgs []messaging.Message
	for rows.Next() {
		var (
			m       messaging.Message
			msgType string
		)
		if err := rows.Scan(&m.ID, &m.UUID, &m.ConversationID, &m.SenderID,
			&m.Content, &msgType, &m.CreatedAt, &m.ReadAt); err != nil {
			return nil, false, apperrors.Unavailable("message scan failed", err)
		}
		m.MessageType = messaging.MessageType(msgType)
		msgs = append(msgs, m)
	}
	if rows.Err() != nil {
		return nil, false, apperrors.Unavailable("message listing failed", rows.Err())
	}

	hasMore := false
	if len(msgs) > limit {
		hasMore = true
		msgs = msgs[:limit]
	}
	return msgs, hasMore, nil
}

func (r *PgMessagingRepository) MarkRead(ctx context.Context, conversationID, readerID int64, at time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE message
		SET read_at = $3
		WHERE conversation_id = $1
		  AND sender_id <> $2
		  AND read_at IS NULL
	`, conversationID, readerID, at)
	if err != nil {
		return 0, apperrors.Unavailable("mark read failed", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgMessagingRepository) CountUnread(ctx context.Context, conversationID, readerID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM message
		WHERE conversation_id = $1
		  AND sender_id <> $2
		  AND read_at IS NULL
	`, conversationID, readerID).Scan(&n)
	if err != nil {
		return 0, apperrors.Unavailable("unread count failed", err)
	}
	return n, nil
}

func (r *PgMessagingRepository) ListConversationsFor(ctx context.Context, userID int64) ([]repository.ConversationSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.uuid, c.peer_lo, c.peer_hi, c.created_at,
		       m.id, m.uuid, m.sender_id, m.content, m.message_type, m.created_at, m.read_at,
		       (SELECT count(*) FROM message u
		        WHERE u.conversation_id = c.id AND u.sender_id <> $1 AND u.read_at IS NULL)
		FROM conversation c
		JOIN conversation_participant p ON p.conversation_id = c.id AND p.user_id = $1
		LEFT JOIN LATERAL (
			SELECT id, uuid, sender_id, content, message_type, created_at, read_at
			FROM message
			WHERE conversation_id = c.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) m ON true
		ORDER BY COALESCE(m.created_at, c.created_at) DESC
	`, userID)
	if err != nil {
		return nil, apperrors.Unavailable("conversation listing failed", err)
	}
	defer rows.Close()

	var out []repository.ConversationSummary
	for rows.Next() {
		var (
			s       repository.ConversationSummary
			lastID  *int64
			lastUID *uuid.UUID
			sender  *int64
			content *string
			mtype   *string
			created *time.Time
			readAt  *time.Time
		)
		if err := rows.Scan(&s.Conversation.ID, &s.Conversation.UUID,
			&s.Conversation.PeerLo, &s.Conversation.PeerHi, &s.Conversation.CreatedAt,
			&lastID, &lastUID, &sender, &content, &mtype, &created, &readAt,
			&s.Unread); err != nil {
			return nil, apperrors.Unavailable("conversation scan failed", err)
		}
		s.PeerID = s.Conversation.PeerOf(userID)
		if lastID != nil {
			s.LastMessage = &messaging.Message{
				ID:             *lastID,
				UUID:           *lastUID,
				ConversationID: s.Conversation.ID,
				SenderID:       *sender,
				Content:        *content,
				MessageType:    messaging.MessageType(*mtype),
				CreatedAt:      *created,
				ReadAt:         readAt,
			}
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, apperrors.Unavailable("conversation listing failed", rows.Err())
	}
	return out, nil
}
