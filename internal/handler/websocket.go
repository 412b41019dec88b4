package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"fleetline/internal/domain"
	"fleetline/internal/fleet"
	"fleetline/internal/hub"
)

// WSMetrics tracks the connected observer gauge. nil disables it.
type WSMetrics interface {
	ClientConnected()
	ClientDisconnected()
}

// WSHandler upgrades observers onto the live broadcast hub.
type WSHandler struct {
	hub     *hub.Hub
	state   *fleet.State
	metrics WSMetrics
	logger  *slog.Logger
}

func NewWSHandler(h *hub.Hub, state *fleet.State, m WSMetrics, logger *slog.Logger) *WSHandler {
	return &WSHandler{hub: h, state: state, metrics: m, logger: logger}
}

type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type SubscribePayload struct {
	Channels []string `json:"channels"`
}

type SnapshotMessage struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel"`
	Payload SnapshotPayload `json:"payload"`
}

type SnapshotPayload struct {
	Vehicles []domain.Vehicle `json:"vehicles"`
}

type PongMessage struct {
	Type string `json:"type"`
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := hub.NewClient(clientID, 256)

	h.hub.Register(client)
	if h.metrics != nil {
		h.metrics.ClientConnected()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writeLoop(ctx, conn, client)

	h.readLoop(ctx, conn, client)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	defer func() {
		h.hub.Unregister(client)
		if h.metrics != nil {
			h.metrics.ClientDisconnected()
		}
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				h.logger.Debug("websocket read error", "client_id", client.ID, "error", err)
			}
			return
		}

		if msgType != websocket.MessageText {
			continue
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("invalid message format", "client_id", client.ID, "error", err)
			continue
		}

		switch msg.Type {
		case "subscribe":
			var payload SubscribePayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				continue
			}
			channels := knownChannels(payload.Channels)
			if len(channels) > 0 {
				h.hub.Subscribe(client, channels)
				h.sendSnapshot(ctx, client, channels)
			}

		case "unsubscribe":
			var payload SubscribePayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				continue
			}
			if len(payload.Channels) > 0 {
				h.hub.Unsubscribe(client, payload.Channels)
			}

		case "ping":
			h.sendPong(client)
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// sendSnapshot pushes the current vehicle positions to a client that
// just joined the vehicle channel, so it does not start from a blank
// map. The passenger channel has no snapshot; it is event-only.
func (h *WSHandler) sendSnapshot(ctx context.Context, client *hub.Client, channels []string) {
	for _, channel := range channels {
		if channel != domain.ChannelVehicleLocation {
			continue
		}

		vehicles, err := h.state.Vehicles(ctx)
		if err != nil {
			h.logger.Debug("snapshot fetch failed", "client_id", client.ID, "error", err)
			return
		}

		msg := SnapshotMessage{
			Type:    "snapshot",
			Channel: channel,
			Payload: SnapshotPayload{Vehicles: vehicles},
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return
		}

		select {
		case client.Send <- data:
		default:
			h.logger.Debug("failed to send snapshot, buffer full", "client_id", client.ID)
		}
	}
}

func (h *WSHandler) sendPong(client *hub.Client) {
	msg := PongMessage{Type: "pong"}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	select {
	case client.Send <- data:
	default:
	}
}

// knownChannels drops channel names the service does not broadcast on.
func knownChannels(requested []string) []string {
	var result []string
	for _, ch := range requested {
		if ch == domain.ChannelVehicleLocation || ch == domain.ChannelPassengerLocation {
			result = append(result, ch)
		}
	}
	return result
}
