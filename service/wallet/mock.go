package wallet

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// MockProvider is a mock implementation of Provider for testing.
type MockProvider struct {
	mu sync.RWMutex

	identity   string
	available  bool
	account    solana.PublicKey
	signature  solana.Signature
	connectErr error
	signErr    error

	connectHook func(ctx context.Context)
	signHook    func(ctx context.Context, tx *solana.Transaction)

	connectCalls int
	signed       []*solana.Transaction
}

// NewMockProvider creates an available mock provider that connects as account.
func NewMockProvider(account solana.PublicKey) *MockProvider {
	return &MockProvider{
		identity:  IdentityKeypair,
		available: true,
		account:   account,
	}
}

// Identity implements Provider.
func (m *MockProvider) Identity() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity
}

// Available implements Provider.
func (m *MockProvider) Available() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.available
}

// Connect returns the configured account or error.
func (m *MockProvider) Connect(ctx context.Context) (solana.PublicKey, error) {
	m.mu.Lock()
	m.connectCalls++
	hook := m.connectHook
	m.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.connectErr != nil {
		return solana.PublicKey{}, m.connectErr
	}
	return m.account, nil
}

// SignAndSend records tx and returns the configured signature or error.
func (m *MockProvider) SignAndSend(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	m.mu.RLock()
	hook := m.signHook
	m.mu.RUnlock()

	if hook != nil {
		hook(ctx, tx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.signed = append(m.signed, tx)
	if m.signErr != nil {
		return solana.Signature{}, m.signErr
	}
	return m.signature, nil
}

// SetIdentity overrides the advertised identity.
func (m *MockProvider) SetIdentity(identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity = identity
}

// SetAvailable toggles availability.
func (m *MockProvider) SetAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
}

// SetSignature configures the signature returned by SignAndSend.
func (m *MockProvider) SetSignature(sig solana.Signature) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signature = sig
}

// SetConnectError configures the mock to fail Connect.
func (m *MockProvider) SetConnectError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectErr = err
}

// SetSignError configures the mock to fail SignAndSend.
func (m *MockProvider) SetSignError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signErr = err
}

// SetConnectHook runs hook inside Connect before it returns, e.g. to block.
func (m *MockProvider) SetConnectHook(hook func(ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectHook = hook
}

// SetSignHook runs hook inside SignAndSend before it returns.
func (m *MockProvider) SetSignHook(hook func(ctx context.Context, tx *solana.Transaction)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signHook = hook
}

// ConnectCalls returns how many times Connect was invoked.
func (m *MockProvider) ConnectCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connectCalls
}

// Signed returns the transactions passed to SignAndSend.
func (m *MockProvider) Signed() []*solana.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*solana.Transaction, len(m.signed))
	copy(out, m.signed)
	return out
}
