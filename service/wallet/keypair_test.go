package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/brojonat/sendsol/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	sig  solanago.Signature
	err  error
	sent []*solanago.Transaction
}

func (m *mockSender) SendTransaction(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error) {
	m.sent = append(m.sent, tx)
	if m.err != nil {
		return solanago.Signature{}, m.err
	}
	return m.sig, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func recordingApprover(answer bool, got *[]ApprovalRequest) Approver {
	return ApproverFunc(func(ctx context.Context, req ApprovalRequest) (bool, error) {
		*got = append(*got, req)
		return answer, nil
	})
}

func TestKeypairProvider_Connect(t *testing.T) {
	key, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)

	t.Run("approved", func(t *testing.T) {
		var reqs []ApprovalRequest
		p := NewKeypairProvider(key, &mockSender{}, recordingApprover(true, &reqs), testLogger())

		assert.True(t, Ready(p, IdentityKeypair))

		account, err := p.Connect(context.Background())
		require.NoError(t, err)
		assert.True(t, account.Equals(key.PublicKey()))
		require.Len(t, reqs, 1)
		assert.Equal(t, RequestConnect, reqs[0].Kind)
	})

	t.Run("rejected", func(t *testing.T) {
		var reqs []ApprovalRequest
		p := NewKeypairProvider(key, &mockSender{}, recordingApprover(false, &reqs), testLogger())

		_, err := p.Connect(context.Background())
		assert.ErrorIs(t, err, ErrRejected)
	})

	t.Run("approver error", func(t *testing.T) {
		approver := ApproverFunc(func(context.Context, ApprovalRequest) (bool, error) {
			return false, errors.New("window closed")
		})
		p := NewKeypairProvider(key, &mockSender{}, approver, testLogger())

		_, err := p.Connect(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "window closed")
	})
}

func TestKeypairProvider_SignAndSend(t *testing.T) {
	key, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)
	to := solanago.NewWallet().PublicKey()
	sig := solanago.MustSignatureFromBase58("5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7")

	t.Run("signs and submits", func(t *testing.T) {
		var reqs []ApprovalRequest
		sender := &mockSender{sig: sig}
		p := NewKeypairProvider(key, sender, recordingApprover(true, &reqs), testLogger())

		tx, err := solana.BuildTransfer(key.PublicKey(), to, 1_000_000_000, solanago.Hash{})
		require.NoError(t, err)

		got, err := p.SignAndSend(context.Background(), tx)
		require.NoError(t, err)
		assert.Equal(t, sig, got)

		require.Len(t, sender.sent, 1)
		require.NoError(t, sender.sent[0].VerifySignatures())

		require.Len(t, reqs, 1)
		assert.Equal(t, RequestSign, reqs[0].Kind)
		require.Len(t, reqs[0].Transfers, 1)
		assert.Equal(t, uint64(1_000_000_000), reqs[0].Transfers[0].Lamports)
		assert.True(t, reqs[0].Transfers[0].To.Equals(to))
	})

	t.Run("rejected never submits", func(t *testing.T) {
		var reqs []ApprovalRequest
		sender := &mockSender{sig: sig}
		p := NewKeypairProvider(key, sender, recordingApprover(false, &reqs), testLogger())

		tx, err := solana.BuildTransfer(key.PublicKey(), to, 1, solanago.Hash{})
		require.NoError(t, err)

		_, err = p.SignAndSend(context.Background(), tx)
		assert.ErrorIs(t, err, ErrRejected)
		assert.Empty(t, sender.sent)
	})

	t.Run("foreign fee payer cannot be signed", func(t *testing.T) {
		sender := &mockSender{sig: sig}
		p := NewKeypairProvider(key, sender, nil, testLogger())

		other := solanago.NewWallet().PublicKey()
		tx, err := solana.BuildTransfer(other, to, 1, solanago.Hash{})
		require.NoError(t, err)

		_, err = p.SignAndSend(context.Background(), tx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to sign transaction")
		assert.Empty(t, sender.sent)
	})
}

func TestLoadKeypairProvider(t *testing.T) {
	key, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)

	values := make([]int, len(key))
	for i, b := range key {
		values[i] = int(b)
	}
	data, err := json.Marshal(values)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	p, err := LoadKeypairProvider(path, &mockSender{}, nil, testLogger())
	require.NoError(t, err)
	account, err := p.Connect(context.Background())
	require.NoError(t, err)
	assert.True(t, account.Equals(key.PublicKey()))

	_, err = LoadKeypairProvider(filepath.Join(t.TempDir(), "missing.json"), &mockSender{}, nil, testLogger())
	assert.Error(t, err)
}

func TestReady(t *testing.T) {
	mock := NewMockProvider(solanago.NewWallet().PublicKey())

	assert.False(t, Ready(nil, IdentityKeypair))
	assert.True(t, Ready(mock, IdentityKeypair))
	assert.True(t, Ready(mock, ""))

	mock.SetIdentity("other-wallet")
	assert.False(t, Ready(mock, IdentityKeypair))

	mock.SetIdentity(IdentityKeypair)
	mock.SetAvailable(false)
	assert.False(t, Ready(mock, IdentityKeypair))

	empty := NewKeypairProvider(nil, nil, nil, testLogger())
	assert.False(t, Ready(empty, IdentityKeypair))
}

func TestPlaceholderRecipient(t *testing.T) {
	a, err := PlaceholderRecipient()
	require.NoError(t, err)
	b, err := PlaceholderRecipient()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	_, err = solana.ParseAddress(a)
	assert.NoError(t, err)
}
