package solana

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// SystemProgramTransferInstruction is the System Program's Transfer discriminator.
const SystemProgramTransferInstruction = uint32(2)

// Transfer is a native SOL transfer decoded from a transaction message.
type Transfer struct {
	From     solana.PublicKey
	To       solana.PublicKey
	Lamports uint64
}

// DecodeTransfers returns every System Program transfer in tx. Wallet
// providers use it to show the user what they are about to sign.
func DecodeTransfers(tx *solana.Transaction) ([]Transfer, error) {
	accountKeys := tx.Message.AccountKeys
	var transfers []Transfer
	for _, instruction := range tx.Message.Instructions {
		if int(instruction.ProgramIDIndex) >= len(accountKeys) {
			return nil, fmt.Errorf("program index %d out of range", instruction.ProgramIDIndex)
		}
		if !accountKeys[instruction.ProgramIDIndex].Equals(solana.SystemProgramID) {
			continue
		}

		transfer, err := parseSystemTransfer(instruction, accountKeys)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, transfer)
	}
	return transfers, nil
}

// parseSystemTransfer extracts amount, source and destination from a System Program Transfer instruction.
func parseSystemTransfer(instruction solana.CompiledInstruction, accountKeys []solana.PublicKey) (Transfer, error) {
	// System Transfer instruction format:
	// [0..4]  = instruction type (u32, should be 2 for Transfer)
	// [4..12] = lamports (u64)
	if len(instruction.Data) < 12 {
		return Transfer{}, fmt.Errorf("instruction data too short: %d bytes", len(instruction.Data))
	}

	instructionType := binary.LittleEndian.Uint32(instruction.Data[0:4])
	if instructionType != SystemProgramTransferInstruction {
		return Transfer{}, fmt.Errorf("not a transfer instruction: type %d", instructionType)
	}

	// Accounts: [0] = from, [1] = to
	if len(instruction.Accounts) < 2 {
		return Transfer{}, fmt.Errorf("transfer instruction has %d accounts, want 2", len(instruction.Accounts))
	}
	fromIdx, toIdx := int(instruction.Accounts[0]), int(instruction.Accounts[1])
	if fromIdx >= len(accountKeys) || toIdx >= len(accountKeys) {
		return Transfer{}, fmt.Errorf("transfer account index out of range")
	}

	return Transfer{
		From:     accountKeys[fromIdx],
		To:       accountKeys[toIdx],
		Lamports: binary.LittleEndian.Uint64(instruction.Data[4:12]),
	}, nil
}
