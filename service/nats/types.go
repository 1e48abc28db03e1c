package nats

import (
	"time"

	"github.com/brojonat/sendsol/service/session"
)

// SessionEvent represents a wallet session change published to NATS.
// This is published to the subject "wallet.sessions.{session_id}" in JetStream.
type SessionEvent struct {
	// Session identifiers
	SessionID string `json:"session_id"`
	Network   string `json:"network"`

	// What changed
	Type string `json:"type"`

	// Session state after the change
	State   string `json:"state"`
	Account string `json:"account,omitempty"`
	Balance string `json:"balance"`
	Busy    bool   `json:"busy"`

	// Transient outcome, if any
	NotificationKind    string `json:"notification_kind,omitempty"`
	NotificationMessage string `json:"notification_message,omitempty"`
	Signature           string `json:"signature,omitempty"`
	ExplorerURL         string `json:"explorer_url,omitempty"`

	// Timing information
	OccurredAt  time.Time `json:"occurred_at"`
	PublishedAt time.Time `json:"published_at"`
}

// FromSessionEvent converts a controller event to a SessionEvent for publishing.
// The draft is deliberately left out; it is unvalidated user input.
func FromSessionEvent(ev session.Event) *SessionEvent {
	s := ev.Session
	event := &SessionEvent{
		SessionID:   s.ID,
		Network:     s.Network,
		Type:        string(ev.Type),
		State:       string(s.State),
		Account:     s.Account,
		Balance:     s.Balance.String(),
		Busy:        s.Busy,
		OccurredAt:  ev.At,
		PublishedAt: time.Now().UTC(),
	}

	if s.Notification != nil {
		event.NotificationKind = string(s.Notification.Kind)
		event.NotificationMessage = s.Notification.Message
	}
	if s.Receipt != nil {
		event.Signature = s.Receipt.Signature
		event.ExplorerURL = s.Receipt.ExplorerURL
	}

	return event
}
