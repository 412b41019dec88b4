package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"fleetline/internal/domain"
)

// Client is one connected observer. Send is drained by the transport's
// write loop; a full buffer drops the message rather than blocking the
// fan-out.
type Client struct {
	ID       string
	Send     chan []byte
	channels map[string]struct{}
	mu       sync.RWMutex
}

func NewClient(id string, bufferSize int) *Client {
	return &Client{
		ID:       id,
		Send:     make(chan []byte, bufferSize),
		channels: make(map[string]struct{}),
	}
}

func (c *Client) HasChannel(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.channels[channel]
	return ok
}

func (c *Client) AddChannels(channels []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		c.channels[ch] = struct{}{}
	}
}

func (c *Client) RemoveChannels(channels []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		delete(c.channels, ch)
	}
}

func (c *Client) Channels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	channels := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		channels = append(channels, ch)
	}
	return channels
}

type envelope struct {
	channel string
	data    []byte
}

type eventMessage struct {
	Type    string               `json:"type"`
	Channel string               `json:"channel"`
	Payload domain.PositionEvent `json:"payload"`
}

// Hub fans events out to every current subscriber of a channel.
// Publishing is fire-and-forget: a full broadcast queue or a slow
// client loses events, it never blocks the publisher.
type Hub struct {
	mu             sync.RWMutex
	clients        map[*Client]struct{}
	channelClients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan envelope

	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:        make(map[*Client]struct{}),
		channelClients: make(map[string]map[*Client]struct{}),
		register:       make(chan *Client, 16),
		unregister:     make(chan *Client, 16),
		broadcast:      make(chan envelope, 256),
		logger:         logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.ID, "total", total)

		case client := <-h.unregister:
			h.removeClient(client)

		case env := <-h.broadcast:
			h.fanout(env)
		}
	}
}

// Subscribe attaches the client to the named channels.
func (h *Hub) Subscribe(client *Client, channels []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.AddChannels(channels)

	for _, channel := range channels {
		if h.channelClients[channel] == nil {
			h.channelClients[channel] = make(map[*Client]struct{})
		}
		h.channelClients[channel][client] = struct{}{}
	}
}

func (h *Hub) Unsubscribe(client *Client, channels []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.RemoveChannels(channels)

	for _, channel := range channels {
		if h.channelClients[channel] != nil {
			delete(h.channelClients[channel], client)
			if len(h.channelClients[channel]) == 0 {
				delete(h.channelClients, channel)
			}
		}
	}
}

// Publish enqueues a position event for every subscriber of channel.
func (h *Hub) Publish(channel string, event domain.PositionEvent) {
	data, err := json.Marshal(eventMessage{
		Type:    "event",
		Channel: channel,
		Payload: event,
	})
	if err != nil {
		return
	}

	select {
	case h.broadcast <- envelope{channel: channel, data: data}:
	default:
		h.logger.Warn("broadcast queue full, dropping event", "channel", channel)
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriberCount reports how many clients listen on one channel.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channelClients[channel])
}

func (h *Hub) fanout(env envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.channelClients[env.channel] {
		select {
		case client.Send <- env.data:
		default:
			h.logger.Debug("client send buffer full", "client_id", client.ID, "channel", env.channel)
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	for _, channel := range client.Channels() {
		if h.channelClients[channel] != nil {
			delete(h.channelClients[channel], client)
			if len(h.channelClients[channel]) == 0 {
				delete(h.channelClients, channel)
			}
		}
	}

	delete(h.clients, client)
	close(client.Send)
	h.logger.Debug("client unregistered", "client_id", client.ID, "total", len(h.clients))
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.Send)
	}
	h.clients = make(map[*Client]struct{})
	h.channelClients = make(map[string]map[*Client]struct{})
}
