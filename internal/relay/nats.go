package relay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"fleetline/internal/domain"
)

// NATSRelay mirrors broadcast channels onto NATS subjects so observers
// outside this process can subscribe to the same event stream. Like
// the in-process hub, publishing is fire-and-forget.
type NATSRelay struct {
	nc            *nats.Conn
	subjectPrefix string
	logger        *slog.Logger
}

func NewNATSRelay(url, subjectPrefix string, logger *slog.Logger) (*NATSRelay, error) {
	log := logger.With("component", "nats_relay")

	nc, err := nats.Connect(url,
		nats.Name("fleetline"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			log.Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info("nats connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &NATSRelay{nc: nc, subjectPrefix: subjectPrefix, logger: log}, nil
}

// Publish sends the event to "<prefix>.<channel>.<entity-id>". Errors
// are logged and otherwise dropped; the triggering report already
// succeeded against the store.
func (r *NATSRelay) Publish(channel string, event domain.PositionEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	subject := fmt.Sprintf("%s.%s.%s", r.subjectPrefix, subjectToken(channel), subjectToken(event.ID))
	if err := r.nc.Publish(subject, data); err != nil {
		r.logger.Debug("nats publish failed", "subject", subject, "error", err)
	}
}

func (r *NATSRelay) Close() {
	if r.nc != nil {
		r.nc.Drain()
		r.nc.Close()
	}
}

// subjectToken strips characters NATS subjects cannot carry.
func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
