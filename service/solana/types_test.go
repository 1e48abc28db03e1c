package solana

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSOL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    uint64
		wantErr string
	}{
		{name: "whole SOL", input: "1", want: 1_000_000_000},
		{name: "fractional", input: "1.5", want: 1_500_000_000},
		{name: "one lamport", input: "0.000000001", want: 1},
		{name: "surrounding whitespace", input: " 0.25 ", want: 250_000_000},
		{name: "exponent notation", input: "2e-3", want: 2_000_000},
		{name: "empty", input: "", wantErr: "empty"},
		{name: "non-numeric", input: "abc", wantErr: "is not a number"},
		{name: "NaN literal", input: "NaN", wantErr: "is not a number"},
		{name: "zero", input: "0", wantErr: "greater than zero"},
		{name: "negative", input: "-1", wantErr: "greater than zero"},
		{name: "finer than a lamport", input: "0.0000000001", wantErr: "decimal places"},
		{name: "overflows u64", input: "18446744074", wantErr: "too large"},
		{name: "trailing zeros past a lamport", input: "1.000000000000", want: 1_000_000_000},
		{name: "positive exponent", input: "1.5e1", want: 15_000_000_000},
		{name: "huge exponent", input: "1e2000000000", wantErr: "too large"},
		{name: "huge negative exponent", input: "1e-2000000000", wantErr: "decimal places"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSOL(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidAmount)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSOL_ExponentReturnsPromptly(t *testing.T) {
	done := make(chan error, 1)
	go func() {
		_, err := ParseSOL("9e2000000000")
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrInvalidAmount)
	case <-time.After(time.Second):
		require.Fail(t, "ParseSOL did not return for a huge exponent")
	}
}

func TestLamportsToSOL(t *testing.T) {
	assert.Equal(t, "0", LamportsToSOL(0).String())
	assert.Equal(t, "0.000000001", LamportsToSOL(1).String())
	assert.Equal(t, "1.5", LamportsToSOL(1_500_000_000).String())
	assert.Equal(t, "18446744073.709551615", LamportsToSOL(^uint64(0)).String())
}

func TestParseAddress(t *testing.T) {
	pk := solana.NewWallet().PublicKey()

	got, err := ParseAddress("  " + pk.String() + "\n")
	require.NoError(t, err)
	assert.True(t, got.Equals(pk))

	_, err = ParseAddress("Bob")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = ParseAddress("")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestExplorerURL(t *testing.T) {
	sig := solana.MustSignatureFromBase58("5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7")

	assert.Equal(t,
		"https://explorer.solana.com/tx/"+sig.String()+"?cluster=devnet",
		ExplorerURL("", sig),
	)
	assert.Equal(t,
		"https://solscan.io/tx/"+sig.String()+"?cluster=devnet",
		ExplorerURL("https://solscan.io/tx/{signature}?cluster=devnet", sig),
	)
}
