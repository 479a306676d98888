package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/accounts/pkg/slogx"
	"github.com/nats-io/nats.go"
)

const flushTimeout = 2 * time.Second

// NATSPublisher publishes msgpack events on a core NATS connection.
type NATSPublisher struct {
	nc *nats.Conn
}

// ConnectNATS dials url with reconnects enabled.
func ConnectNATS(url, name string, log *slog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", slog.Any("error", err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSPublisher{nc: nc}, nil
}

func NewNATSPublisher(nc *nats.Conn) *NATSPublisher {
	return &NATSPublisher{nc: nc}
}

// Publish sends the event and waits for the server to acknowledge the
// flush, so a returned nil means the event left this process.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, event any) error {
	payload, err := Encode(event)
	if err != nil {
		return err
	}

	if err := p.nc.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	timeout := flushTimeout
	if dl, ok := ctx.Deadline(); ok {
		if until := time.Until(dl); until < timeout {
			timeout = until
		}
	}
	if err := p.nc.FlushTimeout(timeout); err != nil {
		return fmt.Errorf("flush %s: %w", subject, err)
	}

	slogx.FromContext(ctx).Debug("event published", slog.String("subject", subject), slog.Int("bytes", len(payload)))
	return nil
}

func (p *NATSPublisher) Close() {
	_ = p.nc.Drain()
}
