// Package tui is a terminal view over a wallet session. Like the HTML page
// it only renders snapshots and forwards user actions to the controller.
package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/brojonat/sendsol/service/session"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Controller is the part of the session controller the view drives.
type Controller interface {
	Snapshot() session.Snapshot
	Subscribe() (<-chan session.Event, func())
	Connect(ctx context.Context) error
	RefreshBalance(ctx context.Context) error
	SetDraft(recipient, amount string) error
	SubmitTransfer(ctx context.Context) error
}

const installMessage = "Please install a Solana wallet provider."

type focus int

const (
	focusRecipient focus = iota
	focusAmount
)

type keyMap struct {
	Submit  key.Binding
	Next    key.Binding
	Refresh key.Binding
	Approve key.Binding
	Reject  key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "connect / send"),
	),
	Next: key.NewBinding(
		key.WithKeys("tab", "shift+tab"),
		key.WithHelp("tab", "switch field"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("ctrl+r", "refresh balance"),
	),
	Approve: key.NewBinding(
		key.WithKeys("y", "Y"),
		key.WithHelp("y", "approve"),
	),
	Reject: key.NewBinding(
		key.WithKeys("n", "N", "esc"),
		key.WithHelp("n", "reject"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#9945FF"))
	networkStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(10)
	valueStyle   = lipgloss.NewStyle().Bold(true)
	buttonStyle  = lipgloss.NewStyle().Padding(0, 2).Background(lipgloss.Color("#14F195")).Foreground(lipgloss.Color("0"))
	busyStyle    = buttonStyle.Background(lipgloss.Color("240"))
	successStyle = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("#166534")).Background(lipgloss.Color("#DCFCE7"))
	errorStyle   = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("#991B1B")).Background(lipgloss.Color("#FEE2E2"))
	promptStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#9945FF")).Padding(0, 1)
	linkStyle    = lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("39"))
)

// Messages
type (
	eventMsg       session.Event
	streamEndedMsg struct{}
	approvalMsg    approvalPrompt
	opResultMsg    struct {
		op  string
		err error
	}
)

// Model is the Bubble Tea model for a wallet session.
type Model struct {
	ctx       context.Context
	ctrl      Controller
	events    <-chan session.Event
	cancel    func()
	approvals <-chan approvalPrompt

	snap      session.Snapshot
	recipient textinput.Model
	amount    textinput.Model
	focus     focus
	pending   *approvalPrompt
	status    string

	keys  keyMap
	help  help.Model
	width int
}

// New subscribes to ctrl and builds the view. approver may be nil when the
// provider does not ask for approvals through the terminal.
func New(ctx context.Context, ctrl Controller, approver *Approver) Model {
	events, cancel := ctrl.Subscribe()
	snap := ctrl.Snapshot()

	recipient := textinput.New()
	recipient.Placeholder = "recipient address"
	recipient.CharLimit = 64
	recipient.Width = 48
	recipient.SetValue(snap.Draft.Recipient)
	recipient.Focus()

	amount := textinput.New()
	amount.Placeholder = "0.0"
	amount.CharLimit = 32
	amount.Width = 20
	amount.SetValue(snap.Draft.Amount)

	m := Model{
		ctx:       ctx,
		ctrl:      ctrl,
		events:    events,
		cancel:    cancel,
		snap:      snap,
		recipient: recipient,
		amount:    amount,
		keys:      keys,
		help:      help.New(),
	}
	if approver != nil {
		m.approvals = approver.prompts
	}
	return m
}

// Close ends the model's subscription.
func (m Model) Close() {
	m.cancel()
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForEvent(m.events), waitForApproval(m.approvals))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case eventMsg:
		m.snap = msg.Session
		m.syncInputs()
		return m, waitForEvent(m.events)

	case streamEndedMsg:
		return m, tea.Quit

	case approvalMsg:
		p := approvalPrompt(msg)
		m.pending = &p
		return m, nil

	case opResultMsg:
		switch {
		case errors.Is(msg.err, session.ErrClosed):
			return m, tea.Quit
		case errors.Is(msg.err, session.ErrProviderMissing):
			m.status = installMessage
		case errors.Is(msg.err, session.ErrBusy):
		default:
			m.status = ""
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateInputs(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	if m.pending != nil {
		switch {
		case key.Matches(msg, m.keys.Approve):
			m.pending.reply <- true
		case key.Matches(msg, m.keys.Reject):
			m.pending.reply <- false
		default:
			return m, nil
		}
		m.pending = nil
		return m, waitForApproval(m.approvals)
	}

	connected := m.snap.State == session.StateConnected

	switch {
	case key.Matches(msg, m.keys.Submit):
		if m.snap.Busy {
			return m, nil
		}
		if !connected {
			return m, m.run("connect", m.ctrl.Connect)
		}
		return m, m.run("transfer", m.ctrl.SubmitTransfer)

	case key.Matches(msg, m.keys.Refresh):
		return m, m.run("refresh_balance", m.ctrl.RefreshBalance)

	case key.Matches(msg, m.keys.Next) && connected:
		if m.focus == focusRecipient {
			m.focus = focusAmount
			m.recipient.Blur()
			return m, m.amount.Focus()
		}
		m.focus = focusRecipient
		m.amount.Blur()
		return m, m.recipient.Focus()
	}

	if !connected {
		return m, nil
	}
	return m.updateInputs(msg)
}

// updateInputs forwards msg to the focused field and pushes any edit to the
// controller's draft.
func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	before := [2]string{m.recipient.Value(), m.amount.Value()}

	if m.focus == focusRecipient {
		m.recipient, cmd = m.recipient.Update(msg)
	} else {
		m.amount, cmd = m.amount.Update(msg)
	}

	after := [2]string{m.recipient.Value(), m.amount.Value()}
	if after != before {
		if err := m.ctrl.SetDraft(after[0], after[1]); err != nil {
			if errors.Is(err, session.ErrClosed) {
				return m, tea.Quit
			}
			m.status = "Could not update the transfer: " + err.Error()
		}
	}
	return m, cmd
}

// syncInputs picks up draft changes made outside this view, leaving the
// field being edited alone.
func (m *Model) syncInputs() {
	if m.focus != focusRecipient && m.recipient.Value() != m.snap.Draft.Recipient {
		m.recipient.SetValue(m.snap.Draft.Recipient)
	}
	if m.focus != focusAmount && m.amount.Value() != m.snap.Draft.Amount {
		m.amount.SetValue(m.snap.Draft.Amount)
	}
}

func (m Model) run(op string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opResultMsg{op: op, err: fn(ctx)}
	}
}

func waitForEvent(events <-chan session.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamEndedMsg{}
		}
		return eventMsg(ev)
	}
}

func waitForApproval(prompts <-chan approvalPrompt) tea.Cmd {
	if prompts == nil {
		return nil
	}
	return func() tea.Msg {
		return approvalMsg(<-prompts)
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Send SOL"))
	b.WriteString("  ")
	b.WriteString(networkStyle.Render(m.snap.Network))
	b.WriteString("\n\n")

	if n := m.snap.Notification; n != nil {
		style := successStyle
		if n.Kind == session.NotificationError {
			style = errorStyle
		}
		b.WriteString(style.Render(n.Message))
		b.WriteString("\n\n")
	}

	if m.pending != nil {
		b.WriteString(promptStyle.Render(m.pending.req.String() + "\n\nApprove? [y/n]"))
		b.WriteString("\n")
		return b.String()
	}

	if m.snap.State == session.StateConnected {
		m.viewConnected(&b)
	} else {
		m.viewDisconnected(&b)
	}

	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.Submit, m.keys.Next, m.keys.Refresh, m.keys.Quit}))
	b.WriteString("\n")
	return b.String()
}

func (m Model) viewDisconnected(b *strings.Builder) {
	b.WriteString("Connect your wallet to view your balance and send SOL.\n\n")
	if m.snap.Busy {
		b.WriteString(busyStyle.Render("Connecting..."))
	} else {
		b.WriteString(buttonStyle.Render("Connect Wallet"))
	}
	b.WriteString("\n")
	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.status))
		b.WriteString("\n")
	}
}

func (m Model) viewConnected(b *strings.Builder) {
	b.WriteString(labelStyle.Render("Account"))
	b.WriteString(valueStyle.Render(m.snap.Account))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Balance"))
	b.WriteString(valueStyle.Render(m.snap.Balance.String() + " SOL"))
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("To"))
	b.WriteString(m.recipient.View())
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Amount"))
	b.WriteString(m.amount.View())
	b.WriteString(" SOL\n\n")

	if m.snap.Busy {
		b.WriteString(busyStyle.Render("Sending..."))
	} else {
		b.WriteString(buttonStyle.Render("Send SOL"))
	}
	b.WriteString("\n")

	if r := m.snap.Receipt; r != nil {
		b.WriteString("\n")
		b.WriteString(linkStyle.Render(r.ExplorerURL))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.status))
		b.WriteString("\n")
	}
}
