package nats

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/brojonat/sendsol/service/session"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func connectedEvent() session.Event {
	return session.Event{
		Type: session.EventReceipt,
		At:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Session: session.Snapshot{
			ID:      "3f1c1f0e-8d0b-4a35-9d55-7f8f4a1f2b11",
			Network: "devnet",
			State:   session.StateConnected,
			Account: "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
			Balance: decimal.RequireFromString("1.5"),
			Draft:   session.TransferDraft{Recipient: "secret-draft", Amount: "1"},
			Notification: &session.Notification{
				Message: session.MsgTransferSucceeded,
				Kind:    session.NotificationSuccess,
			},
			Receipt: &session.Receipt{
				Signature:   "sig123",
				ExplorerURL: "https://explorer.solana.com/tx/sig123?cluster=devnet",
			},
		},
	}
}

func TestFromSessionEvent(t *testing.T) {
	event := FromSessionEvent(connectedEvent())

	assert.Equal(t, "3f1c1f0e-8d0b-4a35-9d55-7f8f4a1f2b11", event.SessionID)
	assert.Equal(t, "devnet", event.Network)
	assert.Equal(t, "receipt", event.Type)
	assert.Equal(t, "connected", event.State)
	assert.Equal(t, "1.5", event.Balance)
	assert.Equal(t, "success", event.NotificationKind)
	assert.Equal(t, session.MsgTransferSucceeded, event.NotificationMessage)
	assert.Equal(t, "sig123", event.Signature)
	assert.Equal(t, "https://explorer.solana.com/tx/sig123?cluster=devnet", event.ExplorerURL)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), event.OccurredAt)
	assert.False(t, event.PublishedAt.IsZero())
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "wallet.sessions.abc", Subject("abc"))
}

func TestForward(t *testing.T) {
	t.Run("publishes until channel closes", func(t *testing.T) {
		pub := NewMockPublisher()
		events := make(chan session.Event, 2)
		events <- connectedEvent()
		events <- connectedEvent()
		close(events)

		Forward(context.Background(), events, pub, testLogger())

		got := pub.Published("3f1c1f0e-8d0b-4a35-9d55-7f8f4a1f2b11")
		assert.Len(t, got, 2)
		assert.Equal(t, []string{"receipt", "receipt"}, pub.PublishedTypes())
	})

	t.Run("publish errors do not stop forwarding", func(t *testing.T) {
		pub := NewMockPublisher()
		pub.FailWith(errors.New("nats down"))
		events := make(chan session.Event, 2)
		events <- connectedEvent()
		events <- connectedEvent()
		close(events)

		Forward(context.Background(), events, pub, testLogger())
		assert.Empty(t, pub.Published(""))
	})

	t.Run("closed publisher rejects events", func(t *testing.T) {
		pub := NewMockPublisher()
		require.NoError(t, pub.Close())
		err := pub.PublishSessionEvent(context.Background(), FromSessionEvent(connectedEvent()))
		assert.ErrorIs(t, err, ErrPublisherClosed)
	})

	t.Run("stops on context cancel", func(t *testing.T) {
		pub := NewMockPublisher()
		events := make(chan session.Event)
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan struct{})
		go func() {
			Forward(ctx, events, pub, testLogger())
			close(done)
		}()

		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			require.Fail(t, "Forward did not return after cancel")
		}
	})
}
