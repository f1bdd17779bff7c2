package wsstypes

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lijuuu/CTFArenaService/internal/engine"
	"github.com/lijuuu/CTFArenaService/internal/jwt"
	"github.com/lijuuu/CTFArenaService/internal/logging"
	"github.com/lijuuu/CTFArenaService/internal/model"
	"github.com/lijuuu/CTFArenaService/internal/state"
)

// State holds what every WebSocket handler shares.
type State struct {
	Engine     *engine.Engine
	Hub        *state.Hub
	JwtManager *jwt.JWTManager
	Log        logging.Logger

	mu      sync.RWMutex
	clients map[string]*Client
}

func NewState(e *engine.Engine, hub *state.Hub, jm *jwt.JWTManager, log logging.Logger) *State {
	return &State{
		Engine:     e,
		Hub:        hub,
		JwtManager: jm,
		Log:        log,
		clients:    make(map[string]*Client),
	}
}

func (s *State) AddClient(c *Client) {
	s.mu.Lock()
	s.clients[c.ID] = c
	s.mu.Unlock()
}

func (s *State) RemoveClient(id string) {
	s.mu.Lock()
	delete(s.clients, id)
	s.mu.Unlock()
}

// Clients returns a copy of the connected clients.
func (s *State) Clients() []*Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	return out
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendBuffer     = 256
)

var (
	ErrSlowClient   = errors.New("client send buffer full")
	ErrClientClosed = errors.New("client closed")
)

// Client is one WebSocket connection. Outgoing messages are queued and
// written by a single writer goroutine; a client whose queue fills up is
// disconnected.
type Client struct {
	ID   string
	conn *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error

	mu       sync.RWMutex
	username string
}

func NewClient(id string, conn *websocket.Conn) *Client {
	return newClient(id, conn, sendBuffer)
}

func newClient(id string, conn *websocket.Conn, buffer int) *Client {
	c := &Client{
		ID:   id,
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
	go c.writePump()
	return c
}

// WriteJSON queues v for delivery without blocking.
func (c *Client) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		_ = c.Close()
		return ErrSlowClient
	}
}

// PrepareRead applies the read limit and the pong-extended read deadline.
func (c *Client) PrepareRead() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close is safe to call more than once; the read loop then fails and the
// connection is cleaned up there.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *Client) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Bind associates the connection with a joined user.
func (c *Client) Bind(username string) {
	c.mu.Lock()
	c.username = username
	c.mu.Unlock()
}

func (c *Client) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

type WsContext struct {
	Ctx       context.Context
	Client    *Client
	Payload   map[string]any
	Username  string
	Claims    *jwt.CustomClaims
	State     *State
	Log       logging.Logger
	RequestID string
}

type WsMessage struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// Envelope is every server to client message.
type Envelope struct {
	Type    string     `json:"type"`
	Status  string     `json:"status"`
	Message string     `json:"message,omitempty"`
	Payload any        `json:"payload,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type JoinArenaPayload struct {
	Username string `json:"username"`
}

type ClaimChallengePayload struct {
	ChallengeID int    `json:"challengeId"`
	Token       string `json:"token"`
}

type SubmitFlagPayload struct {
	ChallengeID int    `json:"challengeId"`
	Flag        string `json:"flag"`
	Token       string `json:"token"`
}

type GetLeaderboardPayload struct {
	Limit int `json:"limit,omitempty"`
}

const (
	PING_SERVER = "PING_SERVER"

	JOIN_ARENA      = "JOIN_ARENA"
	CLAIM_CHALLENGE = "CLAIM_CHALLENGE"
	SUBMIT_FLAG     = "SUBMIT_FLAG"
	GET_LEADERBOARD = "GET_LEADERBOARD"
	REFETCH_STATE   = "REFETCH_STATE"

	AUTH_ERROR    = "AUTH_ERROR"
	UNKNOWN_EVENT = "UNKNOWN_EVENT"

	CHALLENGES_SNAPSHOT  = string(model.EventChallengesSnapshot)
	LEADERBOARD_SNAPSHOT = string(model.EventLeaderboardSnapshot)
	USERS_SNAPSHOT       = string(model.EventUsersSnapshot)
	CHALLENGE_CLAIMED    = string(model.EventChallengeClaimed)
	FLAG_CAPTURED        = string(model.EventFlagCaptured)
	ARENA_RESET          = string(model.EventArenaReset)
)
