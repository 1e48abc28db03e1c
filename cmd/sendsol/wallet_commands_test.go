package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeygenCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "devnet.json")

	out, err := runApp(t, "--json", "wallet", "keygen", "--out", path)
	require.NoError(t, err)

	var result map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, path, result["path"])

	// The file loads the same way the keypair provider loads it.
	key, err := solanago.PrivateKeyFromSolanaKeygenFile(path)
	require.NoError(t, err)
	assert.Equal(t, result["address"], key.PublicKey().String())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	t.Run("refuses to overwrite", func(t *testing.T) {
		_, err := runApp(t, "wallet", "keygen", "--out", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")
	})

	t.Run("force overwrites", func(t *testing.T) {
		_, err := runApp(t, "wallet", "keygen", "--out", path, "--force")
		require.NoError(t, err)

		replaced, err := solanago.PrivateKeyFromSolanaKeygenFile(path)
		require.NoError(t, err)
		assert.NotEqual(t, key.PublicKey(), replaced.PublicKey())
	})
}

func TestAddressCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id.json")
	key := solanago.NewWallet().PrivateKey
	require.NoError(t, writeKeygenFile(path, key))

	t.Run("argument", func(t *testing.T) {
		out, err := runApp(t, "wallet", "address", path)
		require.NoError(t, err)
		assert.Equal(t, key.PublicKey().String(), strings.TrimSpace(out))
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("WALLET_KEYPAIR_PATH", path)
		out, err := runApp(t, "wallet", "address")
		require.NoError(t, err)
		assert.Equal(t, key.PublicKey().String(), strings.TrimSpace(out))
	})

	t.Run("missing", func(t *testing.T) {
		t.Setenv("WALLET_KEYPAIR_PATH", "")
		_, err := runApp(t, "wallet", "address")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "keypair path is required")
	})
}

func TestBalanceCommand_InvalidAddress(t *testing.T) {
	_, err := runApp(t, "wallet", "balance", "not-an-address")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid address")
}
