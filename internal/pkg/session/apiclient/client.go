package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"shorewatch/internal/infrastructure/relay"
	messaging "shorewatch/internal/pkg/messaging/domain"
	"shorewatch/internal/pkg/session"
	"shorewatch/pkg/apperrors"
)

// Client talks to the messaging API over HTTP and websocket. It implements
// the session Stream, History and Sender contracts so a Reconciler can run
// against a live server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

var (
	_ session.Stream  = (*Client)(nil)
	_ session.History = (*Client)(nil)
	_ session.Sender  = (*Client)(nil)
)

type errorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Unavailable("api request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		if eb.Code != "" {
			return apperrors.New(apperrors.Code(eb.Code), eb.Error)
		}
		return apperrors.Internal(fmt.Sprintf("api returned status %d", resp.StatusCode))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// OpenConversation resolves (or creates) the conversation with a peer.
func (c *Client) OpenConversation(ctx context.Context, recipientID int64) (conversationID, peerID int64, err error) {
	var res struct {
		ID     int64 `json:"id"`
		PeerID int64 `json:"peer_id"`
	}
	err = c.do(ctx, http.MethodPost, "/api/v1/conversations",
		map[string]any{"recipient_id": recipientID}, &res)
	return res.ID, res.PeerID, err
}

// MessagesAfter implements session.History over GET /messages.
func (c *Client) MessagesAfter(ctx context.Context, conversationID, afterID int64, limit int) ([]messaging.Message, bool, error) {
	q := url.Values{}
	q.Set("conversation_id", strconv.FormatInt(conversationID, 10))
	q.Set("after_id", strconv.FormatInt(afterID, 10))
	q.Set("limit", strconv.Itoa(limit))

	var res struct {
		Messages []messaging.Message `json:"messages"`
		HasMore  bool                `json:"has_more"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/messages?"+q.Encode(), nil, &res); err != nil {
		return nil, false, err
	}
	return res.Messages, res.HasMore, nil
}

// Send implements session.Sender over the websocket-independent HTTP path:
// the recipient is resolved from the conversation first.
func (c *Client) Send(ctx context.Context, conversationID int64, content string, msgType messaging.MessageType) (*messaging.Message, error) {
	peerID, err := c.peerOf(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	var res struct {
		Message        *messaging.Message `json:"message"`
		ConversationID int64              `json:"conversation_id"`
	}
	err = c.do(ctx, http.MethodPost, "/api/v1/messages", map[string]any{
		"recipient_id": peerID,
		"content":      content,
		"message_type": string(msgType),
	}, &res)
	if err != nil {
		return nil, err
	}
	return res.Message, nil
}

// MarkRead stamps the peer's messages in the conversation as read.
func (c *Client) MarkRead(ctx context.Context, conversationID int64) error {
	path := fmt.Sprintf("/api/v1/conversations/%d/read", conversationID)
	return c.do(ctx, http.MethodPost, path, map[string]any{}, nil)
}

func (c *Client) peerOf(ctx context.Context, conversationID int64) (int64, error) {
	var res struct {
		Conversations []struct {
			ID     int64 `json:"id"`
			PeerID int64 `json:"peer_id"`
		} `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/conversations", nil, &res); err != nil {
		return 0, err
	}
	for _, conv := range res.Conversations {
		if conv.ID == conversationID {
			return conv.PeerID, nil
		}
	}
	return 0, apperrors.NotFound("conversation not found")
}

// Connect implements session.Stream: it dials the websocket endpoint, joins
// the conversation and forwards NEW_MESSAGE envelopes.
func (c *Client) Connect(ctx context.Context, conversationID int64) (session.Feed, error) {
	wsURL, err := c.wsEndpoint()
	if err != nil {
		return nil, err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return nil, apperrors.Unavailable("websocket dial failed", err)
	}

	join, _ := json.Marshal(map[string]any{
		"type":            "join",
		"conversation_id": conversationID,
	})
	if err := conn.WriteMessage(websocket.TextMessage, join); err != nil {
		_ = conn.Close()
		return nil, apperrors.Unavailable("websocket join failed", err)
	}

	early, err := awaitJoined(ctx, conn, conversationID)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	f := &wsFeed{
		conn: conn,
		ch:   make(chan relay.Envelope, 32),
		done: make(chan struct{}),
	}
	for _, env := range early {
		f.ch <- env
	}
	go f.readLoop(conversationID)
	return f, nil
}

// serverFrame is the superset of what the server writes on the socket:
// control acks, error frames and message envelopes. Type discriminates.
type serverFrame struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversation_id"`
	Code           string `json:"code"`
	Error          string `json:"error"`
}

// awaitJoined consumes frames until the server acknowledges the join for
// this conversation. A successful dial is not a subscription: the server
// runs its membership check first and answers with an error frame when it
// fails, so the feed is only trustworthy once the ack has arrived. Message
// envelopes racing ahead of the ack are kept for replay.
func awaitJoined(ctx context.Context, conn *websocket.Conn, conversationID int64) ([]relay.Envelope, error) {
	acked := make(chan struct{})
	defer close(acked)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-acked:
		}
	}()

	var early []relay.Envelope
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, apperrors.Unavailable("websocket join not acknowledged", ctx.Err())
			}
			return nil, apperrors.Unavailable("websocket closed before join ack", err)
		}

		var frame serverFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		switch frame.Type {
		case "joined":
			if frame.ConversationID == conversationID {
				return early, nil
			}
		case "error":
			return nil, joinRejected(frame)
		case relay.EnvelopeNewMessage:
			var env relay.Envelope
			if json.Unmarshal(data, &env) == nil && env.ConversationID == conversationID {
				early = append(early, env)
			}
		}
	}
}

func joinRejected(frame serverFrame) error {
	msg := frame.Error
	if msg == "" {
		msg = "join rejected"
	}
	switch frame.Code {
	case "forbidden":
		return apperrors.Forbidden(msg)
	case "not_found":
		return apperrors.NotFound(msg)
	case "bad_request":
		return apperrors.InvalidArg(msg)
	}
	return apperrors.New(apperrors.CodeUnavailable, msg)
}

func (c *Client) wsEndpoint() (string, error) {
	u, err := url.Parse(c.baseURL + "/api/v1/ws")
	if err != nil {
		return "", apperrors.InvalidArg("invalid base url")
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	q.Set("access_token", c.token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// wsFeed adapts a websocket connection to the session Feed contract.
type wsFeed struct {
	conn *websocket.Conn
	ch   chan relay.Envelope
	done chan struct{}
	once sync.Once
}

func (f *wsFeed) C() <-chan relay.Envelope { return f.ch }

func (f *wsFeed) Close() {
	f.once.Do(func() {
		close(f.done)
		_ = f.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = f.conn.Close()
	})
}

func (f *wsFeed) readLoop(conversationID int64) {
	defer close(f.ch)
	for {
		_, data, err := f.conn.ReadMessage()
		if err != nil {
			return
		}

		var env relay.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		// Acks and errors share the socket; only message envelopes for the
		// joined conversation feed the timeline.
		if env.Type != relay.EnvelopeNewMessage || env.ConversationID != conversationID {
			continue
		}

		select {
		case f.ch <- env:
		case <-f.done:
			return
		}
	}
}
