package wallet

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/brojonat/sendsol/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

// RequestKind distinguishes connect prompts from signing prompts.
type RequestKind string

const (
	RequestConnect RequestKind = "connect"
	RequestSign    RequestKind = "sign"
)

// ApprovalRequest describes what the user is being asked to allow.
type ApprovalRequest struct {
	Kind      RequestKind
	Account   solanago.PublicKey
	Transfers []solana.Transfer
}

// Approver stands in for the provider's own confirmation UI.
type Approver interface {
	Approve(ctx context.Context, req ApprovalRequest) (bool, error)
}

// ApproverFunc adapts a function to Approver.
type ApproverFunc func(ctx context.Context, req ApprovalRequest) (bool, error)

// Approve calls f.
func (f ApproverFunc) Approve(ctx context.Context, req ApprovalRequest) (bool, error) {
	return f(ctx, req)
}

// AutoApprove approves every request. Useful for unattended devnet runs.
var AutoApprove Approver = ApproverFunc(func(context.Context, ApprovalRequest) (bool, error) {
	return true, nil
})

// PromptApprover asks on out and reads a y/n answer from in.
type PromptApprover struct {
	mu     sync.Mutex
	in     *bufio.Reader
	out    io.Writer
	answer chan promptResult
}

type promptResult struct {
	line string
	err  error
}

// NewPromptApprover creates an approver that prompts on out and reads from in.
func NewPromptApprover(in io.Reader, out io.Writer) *PromptApprover {
	return &PromptApprover{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// Approve prints the request and waits for an answer or ctx cancellation.
func (p *PromptApprover) Approve(ctx context.Context, req ApprovalRequest) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.out, req)
	fmt.Fprint(p.out, "Approve? [y/N]: ")

	// A read abandoned by a cancelled ctx is picked up by the next prompt.
	if p.answer == nil {
		p.answer = make(chan promptResult, 1)
		go func() {
			line, err := p.in.ReadString('\n')
			p.answer <- promptResult{line: line, err: err}
		}()
	}

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res := <-p.answer:
		p.answer = nil
		if res.err != nil && res.line == "" {
			return false, fmt.Errorf("failed to read approval: %w", res.err)
		}
		switch strings.ToLower(strings.TrimSpace(res.line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}

// String renders the request the way a wallet confirmation dialog would.
func (req ApprovalRequest) String() string {
	switch req.Kind {
	case RequestConnect:
		return fmt.Sprintf("Connect request for account %s", req.Account)
	case RequestSign:
		var b strings.Builder
		fmt.Fprintf(&b, "Signature request from account %s", req.Account)
		for _, t := range req.Transfers {
			fmt.Fprintf(&b, "\n  send %s SOL to %s", solana.LamportsToSOL(t.Lamports), t.To)
		}
		return b.String()
	default:
		return fmt.Sprintf("%s request for account %s", req.Kind, req.Account)
	}
}
