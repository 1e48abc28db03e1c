package wallet

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brojonat/sendsol/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

// IdentityKeypair is the protocol identity advertised by KeypairProvider.
const IdentityKeypair = "solana-keypair"

// Sender submits signed transactions to the network.
type Sender interface {
	SendTransaction(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error)
}

// KeypairProvider is a wallet provider backed by a local solana-keygen
// keypair. Every connect and sign request goes through an Approver, the same
// way a browser extension pops up its own confirmation window.
type KeypairProvider struct {
	key      solanago.PrivateKey
	sender   Sender
	approver Approver
	logger   *slog.Logger
}

// NewKeypairProvider creates a provider around key. A nil approver approves everything.
func NewKeypairProvider(key solanago.PrivateKey, sender Sender, approver Approver, logger *slog.Logger) *KeypairProvider {
	if approver == nil {
		approver = AutoApprove
	}
	return &KeypairProvider{
		key:      key,
		sender:   sender,
		approver: approver,
		logger:   logger,
	}
}

// LoadKeypairProvider reads a solana-keygen JSON keypair file.
func LoadKeypairProvider(path string, sender Sender, approver Approver, logger *slog.Logger) (*KeypairProvider, error) {
	key, err := solanago.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair %s: %w", path, err)
	}
	return NewKeypairProvider(key, sender, approver, logger), nil
}

// Identity implements Provider.
func (p *KeypairProvider) Identity() string {
	return IdentityKeypair
}

// Available implements Provider.
func (p *KeypairProvider) Available() bool {
	return len(p.key) == 64 && p.sender != nil
}

// Connect implements Provider.
func (p *KeypairProvider) Connect(ctx context.Context) (solanago.PublicKey, error) {
	account := p.key.PublicKey()

	ok, err := p.approver.Approve(ctx, ApprovalRequest{Kind: RequestConnect, Account: account})
	if err != nil {
		return solanago.PublicKey{}, fmt.Errorf("connect approval failed: %w", err)
	}
	if !ok {
		p.logger.InfoContext(ctx, "connect request rejected", "account", account.String())
		return solanago.PublicKey{}, ErrRejected
	}

	p.logger.InfoContext(ctx, "account connected", "account", account.String())
	return account, nil
}

// SignAndSend implements Provider.
func (p *KeypairProvider) SignAndSend(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error) {
	account := p.key.PublicKey()

	transfers, err := solana.DecodeTransfers(tx)
	if err != nil {
		return solanago.Signature{}, fmt.Errorf("failed to decode transaction: %w", err)
	}

	ok, err := p.approver.Approve(ctx, ApprovalRequest{
		Kind:      RequestSign,
		Account:   account,
		Transfers: transfers,
	})
	if err != nil {
		return solanago.Signature{}, fmt.Errorf("sign approval failed: %w", err)
	}
	if !ok {
		p.logger.InfoContext(ctx, "sign request rejected", "account", account.String())
		return solanago.Signature{}, ErrRejected
	}

	if _, err := tx.Sign(func(key solanago.PublicKey) *solanago.PrivateKey {
		if key.Equals(account) {
			return &p.key
		}
		return nil
	}); err != nil {
		return solanago.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	return p.sender.SendTransaction(ctx, tx)
}
