package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// JobEvent is the subset of a job's event-log row the hub needs to relay to
// subscribed WebSocket clients.
type JobEvent struct {
	ID   int64
	Type string
	Data json.RawMessage
}

// JobEventSource reads a job's event log since a given id. registry.WSBridgeSource
// adapts *registry.Registry to this interface; the hub only needs read access.
type JobEventSource interface {
	EventsSince(ctx context.Context, jobID string, lastID int64, max int) ([]JobEvent, error)
}

const (
	bridgePollInterval = 500 * time.Millisecond
	bridgeMaxLifetime  = 5 * time.Minute
	bridgeBatchSize    = 200
)

// ---------------------------------------------------------------------------
// Protocol constants
// ---------------------------------------------------------------------------

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer at this interval. Must be less than pongWait.
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer (16 KB).
	maxMessageSize = 16 * 1024

	// Maximum messages buffered per client; once full, broadcasts drop the
	// oldest queued message and the connection stays open.
	sendBufferSize = 1000

	// Maximum concurrent subscriptions a single client may hold.
	maxSubscriptions = 10
)

// ---------------------------------------------------------------------------
// Client-to-server message types
// ---------------------------------------------------------------------------

const (
	MsgTypeSubscribeJobProgress   = "subscribe_job_progress"
	MsgTypeUnsubscribeJobProgress = "unsubscribe_job_progress"
	MsgTypePing                   = "ping"
)

// ---------------------------------------------------------------------------
// Server-to-client message types
// ---------------------------------------------------------------------------

const (
	MsgTypeJobProgress = "job_progress"
	MsgTypeJobComplete = "job_complete"
	MsgTypeError       = "error"
	MsgTypePong        = "pong"
)

// ---------------------------------------------------------------------------
// Wire messages
// ---------------------------------------------------------------------------

// ClientMessage is the envelope for all client-to-server WebSocket messages.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage is the envelope for all server-to-client WebSocket messages.
type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// SubscribeJobProgressPayload is sent by the client to subscribe to job progress.
type SubscribeJobProgressPayload struct {
	JobID string `json:"job_id"`
}

// ErrorPayload is sent by the server when an error occurs.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ---------------------------------------------------------------------------
// Hub
// ---------------------------------------------------------------------------

// Hub is the optional push-based alternative to the SSE/NDJSON poll loop: it
// fans event-log appends out to WebSocket clients subscribed to a job's
// progress topic, keyed only by job id — there is no per-tenant partition.
type Hub struct {
	clients map[*Client]struct{}

	// Topic subscriptions: topic -> set of clients.
	topics map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan topicMessage

	source     JobEventSource
	bridges    map[string]context.CancelFunc
	bridgesMu  sync.Mutex

	mu     sync.RWMutex
	logger *slog.Logger
}

type topicMessage struct {
	topic   string
	message ServerMessage
}

// NewHub creates a Hub. source may be nil, in which case clients can still
// subscribe to topics but never receive job_progress pushes -- only direct
// Broadcast callers (tests, future in-process producers) reach them.
func NewHub(source JobEventSource) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		topics:     make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan topicMessage, 256),
		source:     source,
		bridges:    make(map[string]context.CancelFunc),
		logger:     slog.Default().With("component", "ws-hub"),
	}
}

// ensureBridge starts, at most once per job id, a goroutine that polls the
// job's event log and relays appends onto the hub as job_progress/job_complete
// broadcasts. It is the in-process equivalent of the SSE/NDJSON poll loop,
// scoped to whichever jobs a WebSocket client has actually subscribed to.
func (h *Hub) ensureBridge(jobID string) {
	if h.source == nil {
		return
	}
	h.bridgesMu.Lock()
	defer h.bridgesMu.Unlock()
	if _, ok := h.bridges[jobID]; ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), bridgeMaxLifetime)
	h.bridges[jobID] = cancel
	go h.runBridge(ctx, jobID)
}

func (h *Hub) runBridge(ctx context.Context, jobID string) {
	defer func() {
		h.bridgesMu.Lock()
		delete(h.bridges, jobID)
		h.bridgesMu.Unlock()
	}()

	ticker := time.NewTicker(bridgePollInterval)
	defer ticker.Stop()

	var lastID int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		events, err := h.source.EventsSince(ctx, jobID, lastID, bridgeBatchSize)
		if err != nil {
			h.logger.Error("bridge: events since failed", "job_id", jobID, "error", err)
			continue
		}

		for _, ev := range events {
			lastID = ev.ID
			var data interface{}
			_ = json.Unmarshal(ev.Data, &data)
			h.BroadcastJobProgress(jobID, ev.Type, data)
			if ev.Type == "answer.complete" || ev.Type == "complete" || ev.Type == "error" {
				return
			}
		}
	}
}

// Run starts the hub event loop. It must be called in a dedicated goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case tm := <-h.broadcast:
			h.broadcastToTopic(tm)
		}
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	h.logger.Info("client registered", "total_clients", len(h.clients))
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()

	c.subsMu.Lock()
	subs := c.subscriptions
	c.subscriptions = nil
	c.subsMu.Unlock()

	h.mu.Lock()
	for topic := range subs {
		if topicClients, ok := h.topics[topic]; ok {
			delete(topicClients, c)
			if len(topicClients) == 0 {
				delete(h.topics, topic)
			}
		}
	}
	total := len(h.clients)
	h.mu.Unlock()

	close(c.send)
	h.logger.Info("client unregistered", "total_clients", total)
}

func (h *Hub) broadcastToTopic(tm topicMessage) {
	h.mu.RLock()
	subscribers, ok := h.topics[tm.topic]
	if !ok || len(subscribers) == 0 {
		h.mu.RUnlock()
		return
	}
	targets := make([]*Client, 0, len(subscribers))
	for c := range subscribers {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	data, err := json.Marshal(tm.message)
	if err != nil {
		h.logger.Error("marshal broadcast message", "error", err, "topic", tm.topic)
		return
	}

	for _, c := range targets {
		select {
		case c.send <- data:
		default:
			select {
			case <-c.send:
				h.logger.Warn("dropped oldest message due to backpressure", "topic", tm.topic)
			default:
			}
			select {
			case c.send <- data:
			default:
				h.logger.Warn("message dropped, client too slow", "topic", tm.topic)
			}
		}
	}
}

// Broadcast sends a message to all clients subscribed to the given topic.
func (h *Hub) Broadcast(topic string, msg ServerMessage) {
	h.broadcast <- topicMessage{topic: topic, message: msg}
}

// BroadcastJobProgress fans an appended event out to job_progress subscribers.
func (h *Hub) BroadcastJobProgress(jobID string, eventType string, data interface{}) {
	h.Broadcast(jobProgressTopic(jobID), ServerMessage{
		Type: MsgTypeJobProgress,
		Payload: map[string]interface{}{
			"job_id": jobID,
			"type":   eventType,
			"data":   data,
		},
	})
	if eventType == "answer.complete" || eventType == "error" {
		h.Broadcast(jobCompleteTopic(jobID), ServerMessage{
			Type:    MsgTypeJobComplete,
			Payload: map[string]interface{}{"job_id": jobID, "type": eventType},
		})
	}
}

// subscribe adds a client to a topic. Returns an error if the client has
// reached the maximum number of concurrent subscriptions.
//
// Lock ordering: hub mutex is always acquired before client subsMu to
// prevent deadlocks with removeClient.
func (h *Hub) subscribe(c *Client, topic string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	if len(c.subscriptions) >= maxSubscriptions {
		return fmt.Errorf("maximum subscriptions (%d) reached", maxSubscriptions)
	}
	if c.subscriptions == nil {
		c.subscriptions = make(map[string]struct{})
	}
	c.subscriptions[topic] = struct{}{}

	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Client]struct{})
	}
	h.topics[topic][c] = struct{}{}

	h.logger.Debug("client subscribed", "topic", topic)
	return nil
}

// unsubscribe removes a client from a topic.
//
// Lock ordering: hub mutex is always acquired before client subsMu.
func (h *Hub) unsubscribe(c *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.subsMu.Lock()
	delete(c.subscriptions, topic)
	c.subsMu.Unlock()

	if topicClients, ok := h.topics[topic]; ok {
		delete(topicClients, c)
		if len(topicClients) == 0 {
			delete(h.topics, topic)
		}
	}

	h.logger.Debug("client unsubscribed", "topic", topic)
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Client represents a single WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	send chan []byte

	subscriptions map[string]struct{}
	subsMu        sync.Mutex

	logger *slog.Logger
}

// NewClient creates a new WebSocket client, registers it with the hub, and
// returns it. The caller must start ReadPump and WritePump in separate
// goroutines.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	c := &Client{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, sendBufferSize),
		subscriptions: make(map[string]struct{}),
		logger:        slog.Default().With("component", "ws-client"),
	}
	hub.register <- c
	return c
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("unexpected close", "error", err)
			}
			return
		}
		c.handleMessage(raw)
	}
}

// WritePump writes messages from the send channel to the WebSocket
// connection. It also sends periodic ping frames. It must run in its own
// goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("INVALID_MESSAGE", "failed to parse message")
		return
	}

	switch msg.Type {
	case MsgTypePing:
		c.sendJSON(ServerMessage{Type: MsgTypePong})

	case MsgTypeSubscribeJobProgress:
		c.handleSubscribeJobProgress(msg.Payload)

	case MsgTypeUnsubscribeJobProgress:
		c.handleUnsubscribeJobProgress(msg.Payload)

	default:
		c.sendError("UNKNOWN_TYPE", fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

func (c *Client) handleSubscribeJobProgress(payload json.RawMessage) {
	var p SubscribeJobProgressPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.JobID == "" {
		c.sendError("INVALID_PAYLOAD", "job_id is required for subscribe_job_progress")
		return
	}

	if err := c.hub.subscribe(c, jobProgressTopic(p.JobID)); err != nil {
		c.sendError("SUBSCRIBE_FAILED", err.Error())
		return
	}

	if err := c.hub.subscribe(c, jobCompleteTopic(p.JobID)); err != nil {
		c.logger.Warn("failed to subscribe to job complete", "error", err, "job_id", p.JobID)
	}

	c.hub.ensureBridge(p.JobID)
}

func (c *Client) handleUnsubscribeJobProgress(payload json.RawMessage) {
	var p SubscribeJobProgressPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.JobID == "" {
		c.sendError("INVALID_PAYLOAD", "job_id is required for unsubscribe_job_progress")
		return
	}

	c.hub.unsubscribe(c, jobProgressTopic(p.JobID))
	c.hub.unsubscribe(c, jobCompleteTopic(p.JobID))
}

// sendJSON marshals a ServerMessage and enqueues it for writing.
func (c *Client) sendJSON(msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("marshal server message", "error", err)
		return
	}

	select {
	case c.send <- data:
	default:
		c.logger.Warn("send buffer full, dropping message", "type", msg.Type)
	}
}

func (c *Client) sendError(code, message string) {
	c.sendJSON(ServerMessage{
		Type: MsgTypeError,
		Payload: ErrorPayload{
			Code:    code,
			Message: message,
		},
	})
}

// ---------------------------------------------------------------------------
// Topic naming helpers
// ---------------------------------------------------------------------------

func jobProgressTopic(jobID string) string {
	return fmt.Sprintf("job_progress.%s", jobID)
}

func jobCompleteTopic(jobID string) string {
	return fmt.Sprintf("job_complete.%s", jobID)
}
