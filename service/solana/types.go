package solana

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// LamportDecimals is the number of decimal places between SOL and lamports
// (1 SOL = 1e9 lamports).
const LamportDecimals = 9

// DefaultExplorerTemplate links a devnet transaction on the Solana explorer.
const DefaultExplorerTemplate = "https://explorer.solana.com/tx/{signature}?cluster=devnet"

var (
	// ErrInvalidAmount is returned when a SOL amount cannot be turned into lamports.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidAddress is returned when an address is not a base58 public key.
	ErrInvalidAddress = errors.New("invalid address")

	maxLamports = decimal.NewFromBigInt(new(big.Int).SetUint64(^uint64(0)), 0)
)

const (
	// maxSOLDigits is the integer digit count of the largest SOL amount that
	// fits in a uint64 of lamports (18446744073.709551615).
	maxSOLDigits = 11

	// maxFractionDigits caps the scale of accepted input. Trailing zeros
	// past the ninth decimal are fine; anything beyond this is not an amount.
	maxFractionDigits = 64
)

// LamportsToSOL converts the smallest unit to a display amount without
// losing precision.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -LamportDecimals)
}

// ParseSOL converts user input in SOL to lamports. The input must be a
// positive decimal number no finer than one lamport; "abc", "NaN", "0" and
// "0.0000000001" are all rejected.
func ParseSOL(input string) (uint64, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, input)
	}
	if !amount.IsPositive() {
		return 0, fmt.Errorf("%w: %s must be greater than zero", ErrInvalidAmount, amount)
	}

	// Bound the magnitude before Shift so exponent notation such as
	// "1e2000000000" cannot force a huge rescale.
	if intDigits := int64(amount.NumDigits()) + int64(amount.Exponent()); intDigits > maxSOLDigits {
		return 0, fmt.Errorf("%w: %s is too large", ErrInvalidAmount, input)
	}
	if amount.Exponent() < -maxFractionDigits {
		return 0, fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, input, LamportDecimals)
	}

	lamports := amount.Shift(LamportDecimals)
	if !lamports.Equal(lamports.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, amount, LamportDecimals)
	}
	if lamports.GreaterThan(maxLamports) {
		return 0, fmt.Errorf("%w: %s is too large", ErrInvalidAmount, amount)
	}

	return lamports.BigInt().Uint64(), nil
}

// ParseAddress parses a base58 public key, trimming surrounding whitespace.
func ParseAddress(input string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(input))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return pk, nil
}

// ExplorerURL renders an explorer link by substituting {signature} in tmpl.
// An empty template falls back to DefaultExplorerTemplate.
func ExplorerURL(tmpl string, sig solana.Signature) string {
	if tmpl == "" {
		tmpl = DefaultExplorerTemplate
	}
	return strings.ReplaceAll(tmpl, "{signature}", sig.String())
}
