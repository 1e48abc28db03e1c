package session

import (
	"time"

	"github.com/shopspring/decimal"
)

// State is the connection state of a session.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// NotificationKind is the flavor of a transient notification.
type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
)

// User-facing messages. Provider and ledger error detail never reaches these.
const (
	MsgConnected         = "Wallet connected successfully!"
	MsgConnectFailed     = "Failed to connect wallet."
	MsgInvalidDraft      = "Please enter a valid recipient address and amount."
	MsgTransferSucceeded = "Transaction successful!"
	MsgTransferFailed    = "Transaction failed. Please try again."
)

// TransferDraft is the raw form input for a transfer. Amount is parsed
// only when the transfer is submitted.
type TransferDraft struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// Notification is a transient message that expires on its own.
type Notification struct {
	Message   string           `json:"message"`
	Kind      NotificationKind `json:"kind"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// Receipt points at a submitted transaction.
type Receipt struct {
	Signature   string `json:"signature"`
	ExplorerURL string `json:"explorer_url"`
}

// Snapshot is an immutable copy of a session handed to observers.
type Snapshot struct {
	ID           string          `json:"id"`
	Network      string          `json:"network"`
	State        State           `json:"state"`
	Account      string          `json:"account,omitempty"`
	Balance      decimal.Decimal `json:"balance"`
	Busy         bool            `json:"busy"`
	Draft        TransferDraft   `json:"draft"`
	Notification *Notification   `json:"notification,omitempty"`
	Receipt      *Receipt        `json:"receipt,omitempty"`
}

// EventType names what changed in a session.
type EventType string

const (
	EventState        EventType = "state"
	EventBusy         EventType = "busy"
	EventBalance      EventType = "balance"
	EventDraft        EventType = "draft"
	EventNotification EventType = "notification"
	EventReceipt      EventType = "receipt"
)

// Event is emitted on every session mutation.
type Event struct {
	Type    EventType `json:"type"`
	Session Snapshot  `json:"session"`
	At      time.Time `json:"at"`
}
