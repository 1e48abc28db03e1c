// Package wallet defines the wallet provider a session connects to and signs
// through, plus a local keypair implementation of it.
package wallet

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
)

// ErrRejected is returned when the user declines a connect or sign request.
var ErrRejected = errors.New("request rejected by user")

// Provider is the wallet capability a session talks to. It owns the keys:
// callers hand it unsigned transactions and get back signatures.
type Provider interface {
	// Identity names the provider protocol (e.g., "solana-keypair").
	Identity() string

	// Available reports whether the provider is installed and usable.
	Available() bool

	// Connect asks the user to expose an account. It blocks until the user
	// approves or rejects.
	Connect(ctx context.Context) (solana.PublicKey, error)

	// SignAndSend asks the user to sign tx and submits it to the network,
	// returning the transaction signature.
	SignAndSend(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// Ready reports whether p is present, available and speaks the expected
// protocol. An empty identity accepts any provider.
func Ready(p Provider, identity string) bool {
	if p == nil || !p.Available() {
		return false
	}
	return identity == "" || p.Identity() == identity
}

// PlaceholderRecipient returns a freshly generated, valid-looking address to
// pre-fill a transfer form. The private key is discarded immediately.
func PlaceholderRecipient() (string, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return "", err
	}
	return key.PublicKey().String(), nil
}
