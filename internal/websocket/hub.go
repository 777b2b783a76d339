package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/welldanyogia/webrana-diagnostics-backend/internal/models"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeSubscribe     MessageType = "subscribe"
	MessageTypeUnsubscribe   MessageType = "unsubscribe"
	MessageTypeSubscribed    MessageType = "subscribed"
	MessageTypeReportCreated MessageType = "report_created"
	MessageTypeError         MessageType = "error"
)

// Feed topics. Category topics carry reports of that category only.
const (
	TopicAll     = "all"
	TopicNormal  = string(models.CategoryNormal)
	TopicCritica = string(models.CategoryCritica)
)

// ValidTopic reports whether a client may subscribe to topic
func ValidTopic(topic string) bool {
	return topic == TopicAll || models.Category(topic).Valid()
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type   MessageType    `json:"type"`
	Topic  string         `json:"topic,omitempty"`
	Report *ReportPayload `json:"report,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// ReportPayload is the summary of a report pushed to subscribers
type ReportPayload struct {
	ID           uint   `json:"id"`
	Title        string `json:"title"`
	Category     string `json:"category"`
	SUIdentifier string `json:"su_identifier,omitempty"`
	UserName     string `json:"user_name"`
	Images       int    `json:"images"`
	Videos       int    `json:"videos"`
	CreatedAt    string `json:"created_at"`
}

// NewReportPayload summarizes a report for the live feed
func NewReportPayload(report *models.Report) *ReportPayload {
	return &ReportPayload{
		ID:           report.ID,
		Title:        report.Title,
		Category:     string(report.Category),
		SUIdentifier: report.SUIdentifier,
		UserName:     report.UserName,
		Images:       len(report.Images),
		Videos:       len(report.Videos),
		CreatedAt:    report.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Topic subscriptions: topic -> set of clients
	subscriptions map[string]map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest
	broadcast   chan *broadcastMessage
	done        chan struct{}
	stopOnce    sync.Once

	mu     sync.RWMutex
	logger *slog.Logger
}

type subscriptionRequest struct {
	client *Client
	topic  string
}

type broadcastMessage struct {
	topics  []string
	message []byte
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscribe:     make(chan *subscriptionRequest),
		unsubscribe:   make(chan *subscriptionRequest),
		broadcast:     make(chan *broadcastMessage, 256),
		done:          make(chan struct{}),
		logger:        logger,
	}
}

// Run starts the hub's main loop. It returns after Stop, closing every client.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()
			h.logger.Debug("client unregistered")

		case req := <-h.subscribe:
			h.mu.Lock()
			if h.clients[req.client] {
				if h.subscriptions[req.topic] == nil {
					h.subscriptions[req.topic] = make(map[*Client]bool)
				}
				h.subscriptions[req.topic][req.client] = true
			}
			h.mu.Unlock()
			h.logger.Debug("client subscribed", slog.String("topic", req.topic))

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if subscribers, ok := h.subscriptions[req.topic]; ok {
				delete(subscribers, req.client)
				if len(subscribers) == 0 {
					delete(h.subscriptions, req.topic)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", slog.String("topic", req.topic))

		case msg := <-h.broadcast:
			h.deliver(msg)

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				h.removeLocked(client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// deliver sends a message once to every client subscribed to any of its topics
func (h *Hub) deliver(msg *broadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*Client]bool)
	for _, topic := range msg.topics {
		for client := range h.subscriptions[topic] {
			if seen[client] {
				continue
			}
			seen[client] = true
			client.queue(msg.message)
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	client.close()
	for topic, subscribers := range h.subscriptions {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.subscriptions, topic)
		}
	}
}

// Stop ends Run and disconnects every client
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Subscribe subscribes a client to a topic
func (h *Hub) Subscribe(client *Client, topic string) {
	select {
	case h.subscribe <- &subscriptionRequest{client: client, topic: topic}:
	case <-h.done:
	}
}

// Unsubscribe unsubscribes a client from a topic
func (h *Hub) Unsubscribe(client *Client, topic string) {
	select {
	case h.unsubscribe <- &subscriptionRequest{client: client, topic: topic}:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriberCount returns the number of clients subscribed to topic
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[topic])
}

// BroadcastReportCreated pushes a new report to subscribers of its category
// and of the all topic. It never blocks the caller.
func (h *Hub) BroadcastReportCreated(report *models.Report) {
	topic := string(report.Category)
	msg := WSMessage{
		Type:   MessageTypeReportCreated,
		Topic:  topic,
		Report: NewReportPayload(report),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", slog.Any("error", err))
		return
	}

	select {
	case h.broadcast <- &broadcastMessage{topics: []string{topic, TopicAll}, message: data}:
	default:
		h.logger.Warn("live feed backlog full, dropping report event",
			slog.Uint64("report_id", uint64(report.ID)))
	}
}
