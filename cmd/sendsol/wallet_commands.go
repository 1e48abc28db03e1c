package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/brojonat/sendsol/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/urfave/cli/v2"
)

func keygenCommand() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "Generate a keypair file for the keypair wallet provider",
		Description: `Writes a new keypair in solana-keygen JSON format. Point
WALLET_KEYPAIR_PATH at the file to give the server (or the tui command) a
wallet provider. Fund it on devnet with "solana airdrop".

Example:
  sendsol wallet keygen --out ~/.config/sendsol/devnet.json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "out",
				Aliases:  []string{"o"},
				Usage:    "Output path for the keypair file",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing file",
			},
		},
		Action: func(c *cli.Context) error {
			path := c.String("out")
			if _, err := os.Stat(path); err == nil && !c.Bool("force") {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			key, err := solanago.NewRandomPrivateKey()
			if err != nil {
				return fmt.Errorf("failed to generate keypair: %w", err)
			}
			if err := writeKeygenFile(path, key); err != nil {
				return err
			}

			if c.Bool("json") {
				return json.NewEncoder(c.App.Writer).Encode(map[string]string{
					"address": key.PublicKey().String(),
					"path":    path,
				})
			}
			fmt.Fprintf(c.App.Writer, "✓ Keypair written\n")
			fmt.Fprintf(c.App.Writer, "  Address: %s\n", key.PublicKey())
			fmt.Fprintf(c.App.Writer, "  Path:    %s\n", path)
			return nil
		},
	}
}

// writeKeygenFile stores key as the JSON byte array solana-keygen uses.
func writeKeygenFile(path string, key solanago.PrivateKey) error {
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	if err != nil {
		return fmt.Errorf("failed to encode keypair: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write keypair: %w", err)
	}
	return nil
}

func addressCommand() *cli.Command {
	return &cli.Command{
		Name:      "address",
		Usage:     "Print the address of a keypair file",
		ArgsUsage: "KEYPAIR_PATH",
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				path = os.Getenv("WALLET_KEYPAIR_PATH")
			}
			if path == "" {
				return errors.New("keypair path is required (argument or WALLET_KEYPAIR_PATH)")
			}

			key, err := solanago.PrivateKeyFromSolanaKeygenFile(path)
			if err != nil {
				return fmt.Errorf("failed to load keypair: %w", err)
			}
			fmt.Fprintln(c.App.Writer, key.PublicKey().String())
			return nil
		},
	}
}

func balanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Usage:     "Read an account balance directly from the RPC endpoint",
		ArgsUsage: "ADDRESS",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "commitment",
				Usage: "Commitment level (processed, confirmed, finalized)",
				Value: string(rpc.CommitmentConfirmed),
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("address is required")
			}
			account, err := solana.ParseAddress(c.Args().First())
			if err != nil {
				return err
			}

			rpcURL := c.String("rpc-url")
			sc := solana.NewClient(solana.NewRPCClient(rpcURL), solana.ClientConfig{
				Endpoint:   rpcURL,
				Commitment: rpc.CommitmentType(c.String("commitment")),
			}, nil, cliLogger())

			lamports, err := sc.GetBalance(c.Context, account)
			if err != nil {
				return fmt.Errorf("failed to get balance: %w", err)
			}
			sol := solana.LamportsToSOL(lamports)

			if c.Bool("json") {
				return json.NewEncoder(c.App.Writer).Encode(map[string]interface{}{
					"address":  account.String(),
					"lamports": lamports,
					"sol":      sol.String(),
				})
			}
			fmt.Fprintf(c.App.Writer, "%s SOL\n", sol)
			return nil
		},
	}
}
