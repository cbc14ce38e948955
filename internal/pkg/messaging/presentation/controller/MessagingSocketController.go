package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"shorewatch/internal/infrastructure/realtime"
	"shorewatch/internal/infrastructure/relay"
	"shorewatch/internal/pkg/identity/middleware"
	"shorewatch/internal/pkg/messaging/application/usecase"
	messaging "shorewatch/internal/pkg/messaging/domain"
	repository "shorewatch/internal/pkg/messaging/persistence/repository/port"
	"shorewatch/pkg/apperrors"
)

// MessagingSocketController handles the websocket endpoint for realtime
// message delivery. Clients join the conversations they are viewing; each
// join attaches a relay subscription pumped onto the socket until leave,
// close, or relay shutdown.
type MessagingSocketController struct {
	relay           relay.Relay
	repo            repository.MessagingRepository
	sendUC          *usecase.SendMessageUseCase
	unreadUC        *usecase.CountUnreadUseCase
	log             *zap.Logger
	inflightTimeout time.Duration
}

func NewMessagingSocketController(
	rl relay.Relay,
	repo repository.MessagingRepository,
	sendUC *usecase.SendMessageUseCase,
	unreadUC *usecase.CountUnreadUseCase,
	log *zap.Logger,
) *MessagingSocketController {
	return &MessagingSocketController{
		relay:           rl,
		repo:            repo,
		sendUC:          sendUC,
		unreadUC:        unreadUC,
		log:             log,
		inflightTimeout: 5 * time.Second,
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browser origin policy is enforced by the CORS layer; the token
		// check in the auth middleware gates the upgrade itself.
		return true
	},
}

type inboundFrame struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversation_id,omitempty"`
	Content        string `json:"content,omitempty"`
	MessageType    string `json:"message_type,omitempty"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type ackFrame struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversation_id,omitempty"`
	UnreadCount    *int   `json:"unread_count,omitempty"`
}

const defaultReadTimeout = 60 * time.Second

// session tracks one socket's live joins.
type session struct {
	conn *realtime.Connection

	mu   sync.Mutex
	subs map[int64]*relay.Subscription
}

func (s *session) track(conversationID int64, sub *relay.Subscription) (prev *relay.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev = s.subs[conversationID]
	s.subs[conversationID] = sub
	return prev
}

func (s *session) drop(conversationID int64) *relay.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := s.subs[conversationID]
	delete(s.subs, conversationID)
	return sub
}

func (s *session) drain() []*relay.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*relay.Subscription, 0, len(s.subs))
	for id, sub := range s.subs {
		out = append(out, sub)
		delete(s.subs, id)
	}
	return out
}

// Handle upgrades the connection and processes frames until the client
// disconnects. All joins are released on the way out.
func (ctl *MessagingSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			respondError(c, apperrors.Unauthenticated("authentication required"))
			return
		}

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response; just log and return.
			ctl.log.Debug("websocket upgrade failed", zap.Error(err))
			return
		}

		conn := realtime.NewConnection(userID, ws)
		conn.Start()
		sess := &session{conn: conn, subs: make(map[int64]*relay.Subscription)}
		defer func() {
			for _, sub := range sess.drain() {
				sub.Cancel()
			}
			conn.Close(websocket.CloseNormalClosure, "session closed")
		}()

		ws.SetReadLimit(1 << 20)
		_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		})

		ctl.sendFrame(conn, ackFrame{Type: "connected"})

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
					errors.Is(err, websocket.ErrCloseSent) {
					return
				}
				ctl.replyError(conn, "read_error", "connection read failed")
				return
			}

			var frame inboundFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				ctl.replyError(conn, "bad_request", "invalid payload")
				continue
			}

			switch frame.Type {
			case "join":
				ctl.handleJoin(c, sess, frame)
			case "leave":
				ctl.handleLeave(sess, frame)
			case "message":
				ctl.handleMessage(c, sess, frame)
			default:
				ctl.replyError(conn, "unsupported_type", "unknown frame type")
			}
		}
	}
}

func (ctl *MessagingSocketController) handleJoin(c *gin.Context, sess *session, frame inboundFrame) {
	conn := sess.conn
	if frame.ConversationID <= 0 {
		ctl.replyError(conn, "bad_request", "conversation_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	unread, err := ctl.unreadUC.Execute(ctx, frame.ConversationID, conn.UserID)
	if err != nil {
		ctl.handleUseCaseError(conn, err)
		return
	}

	sub, err := ctl.relay.Subscribe(ctx, frame.ConversationID, conn.UserID)
	if err != nil {
		ctl.handleUseCaseError(conn, err)
		return
	}
	if prev := sess.track(frame.ConversationID, sub); prev != nil {
		prev.Cancel()
	}
	go ctl.pump(conn, sub)

	ctl.sendFrame(conn, ackFrame{
		Type:           "joined",
		ConversationID: frame.ConversationID,
		UnreadCount:    &unread,
	})
}

func (ctl *MessagingSocketController) handleLeave(sess *session, frame inboundFrame) {
	conn := sess.conn
	if frame.ConversationID <= 0 {
		ctl.replyError(conn, "bad_request", "conversation_id is required")
		return
	}
	if sub := sess.drop(frame.ConversationID); sub != nil {
		sub.Cancel()
	}
	ctl.sendFrame(conn, ackFrame{Type: "left", ConversationID: frame.ConversationID})
}

// handleMessage sends into an already-open conversation. The recipient is the
// other side of the pair; first contact goes through the HTTP endpoint where
// the recipient is named explicitly.
func (ctl *MessagingSocketController) handleMessage(c *gin.Context, sess *session, frame inboundFrame) {
	conn := sess.conn
	if frame.ConversationID <= 0 {
		ctl.replyError(conn, "bad_request", "conversation_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	conv, err := ctl.repo.GetConversation(ctx, frame.ConversationID)
	if err != nil {
		ctl.handleUseCaseError(conn, err)
		return
	}
	if !conv.Involves(conn.UserID) {
		ctl.handleUseCaseError(conn, messaging.ErrNotParticipant)
		return
	}

	res, err := ctl.sendUC.Execute(ctx, usecase.SendMessageInput{
		SenderID:    conn.UserID,
		RecipientID: conv.PeerOf(conn.UserID),
		Content:     frame.Content,
		MessageType: messaging.MessageType(frame.MessageType),
	})
	if err != nil {
		ctl.handleUseCaseError(conn, err)
		return
	}

	// Broadcast excludes the sender, so echo the stored copy back directly;
	// this is the sender's confirmation with server-assigned id and time.
	ctl.sendStored(conn, res)
}

// pump copies relay envelopes onto the socket until the subscription or the
// connection ends. Envelope channels close on Cancel, so the goroutine never
// leaks.
func (ctl *MessagingSocketController) pump(conn *realtime.Connection, sub *relay.Subscription) {
	for {
		select {
		case <-conn.Done():
			sub.Cancel()
			return
		case env, ok := <-sub.C():
			if !ok {
				return
			}
			payload, err := json.Marshal(env)
			if err != nil {
				ctl.log.Error("encode relay envelope", zap.Error(err))
				continue
			}
			if err := conn.Send(payload); err != nil {
				sub.Cancel()
				return
			}
		}
	}
}

func (ctl *MessagingSocketController) sendStored(conn *realtime.Connection, res *usecase.SendMessageResult) {
	body, err := json.Marshal(res.Message)
	if err != nil {
		ctl.replyError(conn, "internal_error", "failed to encode message")
		return
	}
	env := relay.Envelope{
		Type:           relay.EnvelopeNewMessage,
		ConversationID: res.ConversationID,
		SenderID:       res.Message.SenderID,
		Message:        body,
		Timestamp:      time.Now().UTC(),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		ctl.replyError(conn, "internal_error", "failed to encode message")
		return
	}
	_ = conn.Send(payload)
}

func (ctl *MessagingSocketController) handleUseCaseError(conn *realtime.Connection, err error) {
	switch apperrors.CodeOf(err) {
	case apperrors.CodePermissionDenied:
		ctl.replyError(conn, "forbidden", "not a participant in this conversation")
	case apperrors.CodeNotFound:
		ctl.replyError(conn, "not_found", "conversation not found")
	case apperrors.CodeInvalidArgument:
		ctl.replyError(conn, "bad_request", err.Error())
	default:
		ctl.replyError(conn, "internal_error", "unexpected error")
	}
}

func (ctl *MessagingSocketController) sendFrame(conn *realtime.Connection, frame any) {
	if payload, err := json.Marshal(frame); err == nil {
		_ = conn.Send(payload)
	}
}

func (ctl *MessagingSocketController) replyError(conn *realtime.Connection, code string, message string) {
	ctl.sendFrame(conn, errorFrame{Type: "error", Code: code, Error: message})
}
