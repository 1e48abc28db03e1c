package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/sendsol/client"
	"github.com/brojonat/sendsol/service/session"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

const separator = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

func sessionCommands() *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Drive the server's wallet session over HTTP",
		Subcommands: []*cli.Command{
			statusCommand(),
			connectCommand(),
			draftCommand(),
			sendCommand(),
			refreshCommand(),
			watchCommand(),
		},
	}
}

func newSessionClient(c *cli.Context) *client.Client {
	return client.NewClient(c.String("server-url"), nil, cliLogger())
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the current session",
		Action: func(c *cli.Context) error {
			snap, err := newSessionClient(c).Session(c.Context)
			if err != nil {
				return fmt.Errorf("failed to get session: %w", err)
			}
			return printSnapshot(c, snap)
		},
	}
}

func connectCommand() *cli.Command {
	return &cli.Command{
		Name:  "connect",
		Usage: "Connect the server's wallet provider",
		Description: `Asks the server's wallet provider to connect. The provider may prompt
for approval on the server side; a declined connection shows up as an
error notification on the session.`,
		Action: func(c *cli.Context) error {
			snap, err := newSessionClient(c).Connect(c.Context)
			if errors.Is(err, client.ErrProviderMissing) {
				return errors.New("no wallet provider on the server: please install a Solana wallet provider")
			}
			if err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}
			return printSnapshot(c, snap)
		},
	}
}

func draftCommand() *cli.Command {
	return &cli.Command{
		Name:      "draft",
		Usage:     "Set the transfer draft",
		ArgsUsage: "RECIPIENT AMOUNT_SOL",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("recipient and amount are required")
			}
			snap, err := newSessionClient(c).SetDraft(c.Context, c.Args().Get(0), c.Args().Get(1))
			if err != nil {
				return fmt.Errorf("failed to set draft: %w", err)
			}
			return printSnapshot(c, snap)
		},
	}
}

func sendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Send SOL from the connected wallet",
		ArgsUsage: "[RECIPIENT AMOUNT_SOL]",
		Description: `Submits a transfer. With no arguments the session's current draft is
sent. The command waits for the wallet to sign and the cluster to confirm.

Example:
  sendsol session send 9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin 0.5`,
		Action: func(c *cli.Context) error {
			var draft *session.TransferDraft
			switch c.NArg() {
			case 0:
			case 2:
				draft = &session.TransferDraft{Recipient: c.Args().Get(0), Amount: c.Args().Get(1)}
			default:
				return fmt.Errorf("expected RECIPIENT AMOUNT_SOL or no arguments")
			}

			snap, err := newSessionClient(c).Transfer(c.Context, draft)
			if err != nil {
				return fmt.Errorf("failed to send: %w", err)
			}
			if err := printSnapshot(c, snap); err != nil {
				return err
			}
			if snap.Receipt == nil {
				return errors.New("transfer was not submitted")
			}
			if n := snap.Notification; n != nil && n.Kind == session.NotificationError {
				return fmt.Errorf("transfer %s was sent but could not be confirmed", snap.Receipt.Signature)
			}
			return nil
		},
	}
}

func refreshCommand() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "Re-read the connected account's balance",
		Action: func(c *cli.Context) error {
			snap, err := newSessionClient(c).RefreshBalance(c.Context)
			if err != nil {
				return fmt.Errorf("failed to refresh balance: %w", err)
			}
			return printSnapshot(c, snap)
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Stream session events",
		Description: `Streams session events from the server. Each --jq filter is evaluated
against the event JSON; an event is printed only when every filter returns
a truthy value. With --once the command exits after the first match.

Example:
  sendsol session watch --once --jq '.session.receipt != null' --json`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "jq",
				Usage: "jq filter an event must satisfy (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Exit after the first matching event",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "Stop watching after this long (0 = until interrupted)",
			},
		},
		Action: func(c *cli.Context) error {
			filters, err := compileFilters(c.StringSlice("jq"))
			if err != nil {
				return err
			}
			jsonOutput := c.Bool("json")
			once := c.Bool("once")

			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()
			if timeout := c.Duration("timeout"); timeout > 0 {
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)
			go func() {
				select {
				case <-sigChan:
					cancel()
				case <-ctx.Done():
				}
			}()

			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "Watching session at %s... (Ctrl+C to stop)\n\n", c.String("server-url"))
			}

			errDone := errors.New("done")
			err = newSessionClient(c).Watch(ctx, func(ev session.Event) error {
				if !matchEvent(filters, ev) {
					return nil
				}
				if err := printEvent(c.App.Writer, ev, jsonOutput); err != nil {
					return err
				}
				if once {
					return errDone
				}
				return nil
			})

			switch {
			case errors.Is(err, errDone):
				return nil
			case errors.Is(err, client.ErrStreamClosed):
				if !jsonOutput {
					fmt.Fprintln(os.Stderr, "Session closed")
				}
				return nil
			case errors.Is(err, context.Canceled) && c.Context.Err() == nil:
				return nil
			case errors.Is(err, context.DeadlineExceeded) && !once:
				return nil
			}
			return err
		},
	}
}

// compileFilters parses and compiles jq filters.
func compileFilters(filters []string) ([]*gojq.Code, error) {
	compiled := make([]*gojq.Code, len(filters))
	for i, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		compiled[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
	}
	return compiled, nil
}

// matchEvent reports whether every filter returns a truthy value for ev.
func matchEvent(filters []*gojq.Code, ev session.Event) bool {
	if len(filters) == 0 {
		return true
	}

	// gojq works on plain JSON values, not structs.
	data, err := json.Marshal(ev)
	if err != nil {
		return false
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return false
	}

	for _, code := range filters {
		iter := code.Run(doc)
		v, ok := iter.Next()
		if !ok {
			return false
		}
		if _, isErr := v.(error); isErr {
			return false
		}
		if !isTruthy(v) {
			return false
		}
	}
	return true
}

// isTruthy checks if a jq result value is truthy.
// In jq, false and null are falsy, everything else is truthy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

func printSnapshot(c *cli.Context, snap *session.Snapshot) error {
	w := c.App.Writer
	if c.Bool("json") {
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	fmt.Fprintln(w, separator)
	fmt.Fprintf(w, "Session:    %s (%s)\n", snap.ID, snap.Network)
	fmt.Fprintf(w, "State:      %s\n", snap.State)
	if snap.Account != "" {
		fmt.Fprintf(w, "Account:    %s\n", snap.Account)
		fmt.Fprintf(w, "Balance:    %s SOL\n", snap.Balance)
	}
	if snap.Busy {
		fmt.Fprintf(w, "Busy:       yes\n")
	}
	fmt.Fprintf(w, "Draft:      %s SOL to %s\n", orDash(snap.Draft.Amount), orDash(snap.Draft.Recipient))
	if n := snap.Notification; n != nil {
		mark := "✓"
		if n.Kind == session.NotificationError {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s\n", mark, n.Message)
	}
	if r := snap.Receipt; r != nil {
		fmt.Fprintf(w, "Signature:  %s\n", r.Signature)
		fmt.Fprintf(w, "Explorer:   %s\n", r.ExplorerURL)
	}
	fmt.Fprintln(w, separator)
	return nil
}

func printEvent(w io.Writer, ev session.Event, jsonOutput bool) error {
	if jsonOutput {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	s := ev.Session
	fmt.Fprintf(w, "[%s] %-12s state=%s busy=%t", ev.At.Format(time.RFC3339), ev.Type, s.State, s.Busy)
	if s.Account != "" {
		fmt.Fprintf(w, " balance=%s", s.Balance)
	}
	if n := s.Notification; n != nil && ev.Type == session.EventNotification {
		fmt.Fprintf(w, " %s=%q", n.Kind, n.Message)
	}
	if r := s.Receipt; r != nil && ev.Type == session.EventReceipt {
		fmt.Fprintf(w, " explorer=%s", r.ExplorerURL)
	}
	fmt.Fprintln(w)
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
