package events

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

// LogPublisher writes events to the request logger instead of a bus. It is
// used when no NATS URL is configured, typically in development.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, subject string, event any) error {
	payload, err := Encode(event)
	if err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("event",
		slog.String("subject", subject),
		slog.Int("bytes", len(payload)),
	)
	return nil
}
