// Package session implements the wallet session controller: connecting a
// wallet provider, tracking the connected account and its balance, and
// submitting SOL transfers with transient user notifications.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/brojonat/sendsol/service/metrics"
	"github.com/brojonat/sendsol/service/solana"
	"github.com/brojonat/sendsol/service/wallet"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrProviderMissing means no usable wallet provider is installed. The
	// user must install one; no notification is raised.
	ErrProviderMissing = errors.New("wallet provider not found: please install a Solana wallet provider")

	// ErrBusy is returned when a connect or transfer is already in flight.
	ErrBusy = errors.New("another wallet operation is in progress")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session closed")

	// ErrConnectFailed, ErrInvalidDraft and ErrTransferFailed report outcomes
	// that were also surfaced to the user as an error notification.
	ErrConnectFailed  = errors.New("wallet connection failed")
	ErrInvalidDraft   = errors.New("invalid transfer draft")
	ErrTransferFailed = errors.New("transfer failed")
)

// DefaultNotificationTTL is how long a notification stays visible.
const DefaultNotificationTTL = 30 * time.Second

// Ledger is the read/confirm side of the network the controller needs.
type Ledger interface {
	GetBalance(ctx context.Context, account solanago.PublicKey) (uint64, error)
	GetLatestBlockhash(ctx context.Context) (solanago.Hash, error)
	ConfirmTransaction(ctx context.Context, sig solanago.Signature) error
}

// Config tunes a Controller. The zero value is usable.
type Config struct {
	// ProviderIdentity is the protocol identity a provider must advertise.
	// Empty accepts any provider.
	ProviderIdentity string

	// Network labels the cluster in snapshots and metrics (e.g., "devnet").
	Network string

	// ExplorerTemplate renders receipt links; see solana.ExplorerURL.
	ExplorerTemplate string

	// NotificationTTL defaults to DefaultNotificationTTL.
	NotificationTTL time.Duration

	// SubscriberBuffer is the per-subscriber channel size. Defaults to 16.
	SubscriberBuffer int

	// Clock drives notification expiry. Defaults to the wall clock.
	Clock clock.Clock
}

// Controller owns one wallet session. All mutation goes through its
// methods; observers read Snapshots or Subscribe to Events.
type Controller struct {
	id       string
	provider wallet.Provider
	ledger   Ledger
	cfg      Config
	clock    clock.Clock
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu           sync.Mutex
	state        State
	account      *solanago.PublicKey
	balance      decimal.Decimal
	busy         bool
	draft        TransferDraft
	notification *Notification
	receipt      *Receipt
	expiry       *clock.Timer
	expirySeq    uint64
	closed       bool

	subs    map[int]chan Event
	nextSub int
}

// New creates a disconnected session whose draft recipient is pre-filled
// with a placeholder address. provider may be nil (nothing installed).
func New(provider wallet.Provider, ledger Ledger, cfg Config, m *metrics.Metrics, logger *slog.Logger) (*Controller, error) {
	if cfg.NotificationTTL <= 0 {
		cfg.NotificationTTL = DefaultNotificationTTL
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = 16
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	placeholder, err := wallet.PlaceholderRecipient()
	if err != nil {
		return nil, fmt.Errorf("failed to generate placeholder recipient: %w", err)
	}

	id := uuid.NewString()
	c := &Controller{
		id:       id,
		provider: provider,
		ledger:   ledger,
		cfg:      cfg,
		clock:    cfg.Clock,
		metrics:  m,
		logger:   logger.With("session_id", id),
		state:    StateDisconnected,
		balance:  decimal.Zero,
		draft:    TransferDraft{Recipient: placeholder},
		subs:     make(map[int]chan Event),
	}

	c.logger.Info("session created", "placeholder_recipient", placeholder)
	return c, nil
}

// ID returns the session identifier.
func (c *Controller) ID() string {
	return c.id
}

// Snapshot returns the current session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Connect asks the provider for an account. It returns ErrProviderMissing
// when no usable provider is installed, ErrBusy while another operation is
// in flight, and ErrConnectFailed when the provider failed or the user
// declined (the user sees a generic error notification).
func (c *Controller) Connect(ctx context.Context) error {
	changed, err := c.connect(ctx)
	if err != nil {
		return err
	}
	if changed {
		// Best effort, failures are logged only.
		_ = c.RefreshBalance(ctx)
	}
	return nil
}

func (c *Controller) connect(ctx context.Context) (bool, error) {
	start := time.Now()

	if !wallet.Ready(c.provider, c.cfg.ProviderIdentity) {
		c.logger.WarnContext(ctx, "no wallet provider available",
			"expected_identity", c.cfg.ProviderIdentity,
		)
		c.recordOperation("connect", "provider_missing", start)
		return false, ErrProviderMissing
	}

	c.mu.Lock()
	if err := c.beginLocked(); err != nil {
		c.mu.Unlock()
		return false, err
	}
	previous := c.state
	c.state = StateConnecting
	c.clearNotificationLocked()
	c.emitLocked(EventState)
	c.mu.Unlock()
	defer c.release()

	account, err := c.provider.Connect(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.logger.ErrorContext(ctx, "wallet connection failed", "error", err)
		c.state = previous
		c.emitLocked(EventState)
		c.notifyLocked(NotificationError, MsgConnectFailed)
		c.recordOperation("connect", outcome(err), start)
		return false, ErrConnectFailed
	}

	changed := c.account == nil || !c.account.Equals(account)
	c.account = &account
	c.state = StateConnected
	c.emitLocked(EventState)
	c.notifyLocked(NotificationSuccess, MsgConnected)
	c.logger.InfoContext(ctx, "wallet connected", "account", account.String())
	c.recordOperation("connect", "success", start)
	return changed, nil
}

// RefreshBalance re-reads the connected account's balance. It is a no-op
// when no account is connected. Errors are logged and returned but never
// shown to the user.
func (c *Controller) RefreshBalance(ctx context.Context) error {
	start := time.Now()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.account == nil {
		c.mu.Unlock()
		return nil
	}
	account := *c.account
	c.mu.Unlock()

	lamports, err := c.ledger.GetBalance(ctx, account)
	if err != nil {
		c.logger.WarnContext(ctx, "balance refresh failed",
			"account", account.String(),
			"error", err,
		)
		c.recordOperation("refresh_balance", "error", start)
		return fmt.Errorf("failed to refresh balance: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// The account may have changed while we were reading.
	if c.closed || c.account == nil || !c.account.Equals(account) {
		return nil
	}
	c.balance = solana.LamportsToSOL(lamports)
	c.emitLocked(EventBalance)
	c.recordOperation("refresh_balance", "success", start)
	return nil
}

// SetDraft replaces the transfer form input.
func (c *Controller) SetDraft(recipient, amount string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.draft = TransferDraft{Recipient: recipient, Amount: amount}
	c.emitLocked(EventDraft)
	return nil
}

// SubmitTransfer sends the current draft. Invalid input yields
// ErrInvalidDraft without touching the provider. A failure to sign, send or
// confirm yields ErrTransferFailed; once a signature exists the receipt is
// kept either way. A transaction confirmed as failed on chain is still
// reported as sent, and the balance is refreshed.
func (c *Controller) SubmitTransfer(ctx context.Context) error {
	start := time.Now()

	c.mu.Lock()
	if err := c.checkLocked(); err != nil {
		c.mu.Unlock()
		return err
	}

	draft := c.draft
	c.mu.Unlock()

	to, lamports, parseErr := parseDraft(draft)

	c.mu.Lock()
	if err := c.checkLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.state != StateConnected || c.account == nil {
		c.rejectDraftLocked(ctx, "not connected", start)
		c.mu.Unlock()
		return ErrInvalidDraft
	}
	if parseErr != nil {
		c.rejectDraftLocked(ctx, parseErr.Error(), start)
		c.mu.Unlock()
		return ErrInvalidDraft
	}
	from := *c.account

	c.setBusyLocked(true)
	c.receipt = nil
	c.emitLocked(EventReceipt)
	c.mu.Unlock()

	ok := c.submit(ctx, from, to, lamports, start)
	if ok {
		_ = c.RefreshBalance(ctx)
		return nil
	}
	return ErrTransferFailed
}

func (c *Controller) submit(ctx context.Context, from, to solanago.PublicKey, lamports uint64, start time.Time) bool {
	defer c.release()

	sig, err := c.signAndSend(ctx, from, to, lamports)
	if err != nil {
		c.logger.ErrorContext(ctx, "transfer failed",
			"to", to.String(),
			"lamports", lamports,
			"error", err,
		)
		c.mu.Lock()
		c.notifyLocked(NotificationError, MsgTransferFailed)
		c.mu.Unlock()
		c.recordOperation("transfer", outcome(err), start)
		return false
	}

	c.mu.Lock()
	c.receipt = &Receipt{
		Signature:   sig.String(),
		ExplorerURL: solana.ExplorerURL(c.cfg.ExplorerTemplate, sig),
	}
	c.emitLocked(EventReceipt)
	c.mu.Unlock()

	// A transaction the cluster reports as failed still counts as submitted.
	// Not getting an answer at all (RPC error, timeout) is a failure, but the
	// receipt stays so the user can look the signature up.
	if err := c.ledger.ConfirmTransaction(ctx, sig); err != nil {
		if !errors.Is(err, solana.ErrTransactionFailed) {
			c.logger.ErrorContext(ctx, "transaction confirmation failed",
				"signature", sig.String(),
				"error", err,
			)
			c.mu.Lock()
			c.notifyLocked(NotificationError, MsgTransferFailed)
			c.mu.Unlock()
			c.recordOperation("transfer", outcome(err), start)
			return false
		}
		c.logger.WarnContext(ctx, "transaction failed on chain",
			"signature", sig.String(),
			"error", err,
		)
	}

	c.mu.Lock()
	c.notifyLocked(NotificationSuccess, MsgTransferSucceeded)
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "transfer submitted",
		"from", from.String(),
		"to", to.String(),
		"lamports", lamports,
		"signature", sig.String(),
	)
	c.recordOperation("transfer", "success", start)
	if c.metrics != nil {
		c.metrics.RecordLamportsTransferred(c.cfg.Network, lamports)
	}
	return true
}

func (c *Controller) signAndSend(ctx context.Context, from, to solanago.PublicKey, lamports uint64) (solanago.Signature, error) {
	blockhash, err := c.ledger.GetLatestBlockhash(ctx)
	if err != nil {
		return solanago.Signature{}, err
	}

	tx, err := solana.BuildTransfer(from, to, lamports, blockhash)
	if err != nil {
		return solanago.Signature{}, err
	}

	return c.provider.SignAndSend(ctx, tx)
}

// Close cancels any pending notification expiry and ends all subscriptions.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stopExpiryLocked()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.logger.Info("session closed")
}

// parseDraft validates form input and converts it into a transfer.
func parseDraft(d TransferDraft) (solanago.PublicKey, uint64, error) {
	if strings.TrimSpace(d.Recipient) == "" || strings.TrimSpace(d.Amount) == "" {
		return solanago.PublicKey{}, 0, errors.New("recipient and amount are required")
	}
	to, err := solana.ParseAddress(d.Recipient)
	if err != nil {
		return solanago.PublicKey{}, 0, err
	}
	lamports, err := solana.ParseSOL(d.Amount)
	if err != nil {
		return solanago.PublicKey{}, 0, err
	}
	return to, lamports, nil
}

func (c *Controller) rejectDraftLocked(ctx context.Context, reason string, start time.Time) {
	c.logger.DebugContext(ctx, "transfer draft rejected", "reason", reason)
	c.notifyLocked(NotificationError, MsgInvalidDraft)
	c.recordOperation("transfer", "invalid", start)
}

func (c *Controller) checkLocked() error {
	if c.closed {
		return ErrClosed
	}
	if c.busy {
		return ErrBusy
	}
	return nil
}

// beginLocked takes the busy gate.
func (c *Controller) beginLocked() error {
	if err := c.checkLocked(); err != nil {
		return err
	}
	c.setBusyLocked(true)
	return nil
}

// release drops the busy gate. It runs on every exit path of an operation.
func (c *Controller) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setBusyLocked(false)
}

func (c *Controller) setBusyLocked(busy bool) {
	if c.busy == busy {
		return
	}
	c.busy = busy
	if c.metrics != nil {
		c.metrics.SetSessionBusy(c.id, busy)
	}
	c.emitLocked(EventBusy)
}

func (c *Controller) recordOperation(operation, result string, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordSessionOperation(operation, result, time.Since(start).Seconds())
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, wallet.ErrRejected):
		return "rejected"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		ID:      c.id,
		Network: c.cfg.Network,
		State:   c.state,
		Balance: c.balance,
		Busy:    c.busy,
		Draft:   c.draft,
	}
	if c.account != nil {
		s.Account = c.account.String()
	}
	if c.notification != nil {
		n := *c.notification
		s.Notification = &n
	}
	if c.receipt != nil {
		r := *c.receipt
		s.Receipt = &r
	}
	return s
}
