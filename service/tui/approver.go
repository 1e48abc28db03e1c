package tui

import (
	"context"

	"github.com/brojonat/sendsol/service/wallet"
)

// approvalPrompt is a pending wallet approval waiting on the user.
type approvalPrompt struct {
	req   wallet.ApprovalRequest
	reply chan bool
}

// Approver routes wallet approval requests into the terminal view, which
// owns stdin while it runs. It implements wallet.Approver.
type Approver struct {
	prompts chan approvalPrompt
}

// NewApprover creates an approver to hand to the wallet provider and to New.
func NewApprover() *Approver {
	return &Approver{prompts: make(chan approvalPrompt)}
}

// Approve blocks until the user answers in the view or ctx is done.
func (a *Approver) Approve(ctx context.Context, req wallet.ApprovalRequest) (bool, error) {
	p := approvalPrompt{req: req, reply: make(chan bool, 1)}

	select {
	case a.prompts <- p:
	case <-ctx.Done():
		return false, ctx.Err()
	}

	select {
	case ok := <-p.reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
