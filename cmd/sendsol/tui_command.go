package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/brojonat/sendsol/service/config"
	"github.com/brojonat/sendsol/service/session"
	"github.com/brojonat/sendsol/service/solana"
	"github.com/brojonat/sendsol/service/tui"
	"github.com/brojonat/sendsol/service/wallet"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/urfave/cli/v2"
)

func tuiCommand() *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Run a wallet session locally in a terminal UI",
		Description: `Runs the session controller in-process against the configured RPC
endpoint and shows it in a terminal UI. Configuration comes from the same
environment variables as the server (SOLANA_RPC_URL, SOLANA_NETWORK,
WALLET_KEYPAIR_PATH, ...). Wallet approvals are answered in the UI.

Example:
  WALLET_KEYPAIR_PATH=devnet.json sendsol tui`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "keypair",
				Usage: "Keypair file for the wallet provider (overrides WALLET_KEYPAIR_PATH)",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Write logs to this file (the terminal belongs to the UI)",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if path := c.String("keypair"); path != "" {
				cfg.WalletKeypairPath = path
			}

			logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
			if path := c.String("log-file"); path != "" {
				f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
				if err != nil {
					return fmt.Errorf("failed to open log file: %w", err)
				}
				defer f.Close()
				logger = slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
			}

			rpcURL, err := solana.SelectRandomEndpoint(solana.SplitEndpoints(cfg.SolanaRPCURL))
			if err != nil {
				return err
			}
			solanaClient := solana.NewClient(solana.NewRPCClient(rpcURL), solana.ClientConfig{
				Endpoint:            cfg.SolanaNetwork,
				Commitment:          rpc.CommitmentType(cfg.SolanaCommitment),
				ConfirmPollInterval: cfg.ConfirmPollInterval,
			}, nil, logger)

			var approver *tui.Approver
			var provider wallet.Provider
			if cfg.WalletKeypairPath != "" {
				var walletApprover wallet.Approver = wallet.AutoApprove
				if !cfg.WalletAutoApprove {
					approver = tui.NewApprover()
					walletApprover = approver
				}
				kp, err := wallet.LoadKeypairProvider(cfg.WalletKeypairPath, solanaClient, walletApprover, logger)
				if err != nil {
					return err
				}
				provider = kp
			}

			ctrl, err := session.New(provider, solanaClient, session.Config{
				ProviderIdentity: cfg.WalletProviderIdentity,
				Network:          cfg.SolanaNetwork,
				ExplorerTemplate: cfg.ExplorerURLTemplate,
				NotificationTTL:  cfg.NotificationTTL,
			}, nil, logger)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			model := tui.New(c.Context, ctrl, approver)
			defer model.Close()

			if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
				return fmt.Errorf("terminal UI failed: %w", err)
			}
			return nil
		},
	}
}
