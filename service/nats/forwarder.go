package nats

import (
	"context"
	"log/slog"

	"github.com/brojonat/sendsol/service/session"
)

// Forward publishes every event received on events until the channel is
// closed or ctx is done. Publish failures are logged and skipped; the
// session itself never waits on NATS.
func Forward(ctx context.Context, events <-chan session.Event, publisher Publisher, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := publisher.PublishSessionEvent(ctx, FromSessionEvent(ev)); err != nil {
				logger.WarnContext(ctx, "failed to publish session event",
					"session_id", ev.Session.ID,
					"type", ev.Type,
					"error", err,
				)
			}
		}
	}
}
