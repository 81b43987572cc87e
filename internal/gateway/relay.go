package gateway

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Relay mirrors room broadcasts to an external bus so services outside
// the process (lobby listings, spectator tooling) can observe matches
// without holding a WebSocket seat.
type Relay interface {
	Publish(roomID string, event EventType, frame []byte)
}

// NATSRelayConfig configures the NATS mirror.
type NATSRelayConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
}

// DefaultNATSRelayConfig returns the default mirror configuration.
func DefaultNATSRelayConfig() NATSRelayConfig {
	return NATSRelayConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "room.events",
		MaxReconnects: -1,
	}
}

// NATSRelay publishes each room broadcast frame to
// "<prefix>.<roomID>". Delivery is fire-and-forget; the session path
// never waits on the bus.
type NATSRelay struct {
	nc     *nats.Conn
	config NATSRelayConfig
}

// NewNATSRelay connects to NATS with reconnect handling.
func NewNATSRelay(config NATSRelayConfig) (*NATSRelay, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSRelay{nc: nc, config: config}, nil
}

// Publish mirrors one broadcast frame. Errors are logged and dropped;
// the session path never blocks on the bus.
func (r *NATSRelay) Publish(roomID string, event EventType, frame []byte) {
	subject := fmt.Sprintf("%s.%s", r.config.SubjectPrefix, roomID)
	if err := r.nc.Publish(subject, frame); err != nil {
		log.Error().
			Err(err).
			Str("subject", subject).
			Str("event", string(event)).
			Msg("failed to mirror broadcast")
	}
}

// Close drains the NATS connection.
func (r *NATSRelay) Close() {
	r.nc.Close()
}
