package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/satwatch/internal/invoice"
)

type listState int

const (
	listStateBrowse listState = iota
	listStateDetail
)

type ListModel struct {
	svc *invoice.Service

	// disabledThreshold hides reorged dust below this amount in the
	// detail panel.
	disabledThreshold int64

	state    listState
	table    table.Model
	invoices []*invoice.Invoice

	detail        *invoice.Invoice
	detailState   *invoice.State
	detailHistory []*invoice.History

	loading bool
	err     error
	status  string
}

func NewListModel(svc *invoice.Service, disabledThreshold int64) ListModel {
	columns := []table.Column{
		{Title: "Created", Width: 17},
		{Title: "Status", Width: 17},
		{Title: "Amount (sats)", Width: 15},
		{Title: "Address", Width: 44},
		{Title: "Description", Width: 30},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return ListModel{
		svc:               svc,
		disabledThreshold: disabledThreshold,
		table:             t,
		loading:           true,
	}
}

func (m ListModel) Title() string { return "Invoices" }
func (m ListModel) ShortHelp() string {
	if m.state == listStateDetail {
		return "Esc: close | r: refresh"
	}
	return "Esc: back | Enter: details | r: refresh | x: delete"
}

func (m ListModel) Init() tea.Cmd {
	return m.loadInvoicesCmd()
}

func (m ListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadListMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.invoices = msg.invoices
		m.refreshTable()
		return m, nil

	case loadDetailMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
			m.state = listStateBrowse
			return m, nil
		}
		m.state = listStateDetail
		m.detail = msg.inv
		m.detailState = msg.state
		m.detailHistory = msg.history
		return m, nil

	case deleteMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Error deleting: %v", msg.err)
			return m, nil
		}
		m.status = "Invoice deleted"
		return m, m.loadInvoicesCmd()

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 10)
		return m, nil
	}

	switch m.state {
	case listStateBrowse:
		return m.updateBrowse(msg)
	case listStateDetail:
		return m.updateDetail(msg)
	}

	return m, nil
}

func (m ListModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			m.status = ""
			return m, m.loadInvoicesCmd()
		case "enter":
			if inv := m.selected(); inv != nil {
				return m, m.loadDetailCmd(inv)
			}
		case "x":
			if inv := m.selected(); inv != nil {
				return m, m.deleteCmd(inv)
			}
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m ListModel) updateDetail(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			m.state = listStateBrowse
			m.detail = nil
			return m, nil
		case "r":
			if m.detail != nil {
				return m, m.loadDetailCmd(m.detail)
			}
		}
	}

	return m, nil
}

func (m ListModel) selected() *invoice.Invoice {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.invoices) {
		return nil
	}

	return m.invoices[idx]
}

func (m ListModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading invoices...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(fmt.Sprintf("Error: %v", m.err))
	}

	if m.state == listStateDetail && m.detail != nil {
		return lipgloss.NewStyle().Padding(1).Render(m.detailView())
	}

	content := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	if m.status != "" {
		content = lipgloss.NewStyle().Faint(true).Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func (m ListModel) detailView() string {
	inv := m.detail
	state := m.detailState

	var b strings.Builder

	fmt.Fprintf(&b, "Invoice %s\n\n", inv.ID)
	fmt.Fprintf(&b, "Description:  %s\n", inv.Content)
	fmt.Fprintf(&b, "Address:      %s\n", inv.Address)
	fmt.Fprintf(&b, "Amount:       %s sats (%s)\n", FormatSats(inv.Amount), FormatBTC(inv.Amount))
	fmt.Fprintf(&b, "Status:       %s\n", statusStyle(inv.Status))
	fmt.Fprintf(&b, "Watched:      %t\n", inv.Watched)
	fmt.Fprintf(&b, "Created:      %s\n", FormatTime(inv.CreatedAt))

	if state != nil {
		fmt.Fprintf(&b, "\nConfirmed:    %s sats\n", FormatSats(state.FinalAmount))
		fmt.Fprintf(&b, "Pending:      %s sats\n", FormatSats(state.PendingAmount))

		// Reorged dust is noise; only surface disabled amounts worth
		// looking at.
		if state.DisabledAmount >= m.disabledThreshold {
			fmt.Fprintf(&b, "Disabled:     %s sats (reorged)\n", FormatSats(state.DisabledAmount))
		}

		fmt.Fprintf(&b, "Confirmations: %d\n", state.Confirmations)

		if len(state.Payments) > 0 {
			b.WriteString("\nPayments:\n")
			for _, p := range state.Payments {
				fmt.Fprintf(&b, "  %-10s %14s sats  %s\n", p.Status, FormatSats(p.Amount), p.TxID)
			}
		}
	}

	if len(m.detailHistory) > 0 {
		b.WriteString("\nHistory:\n")
		for _, h := range m.detailHistory {
			line := fmt.Sprintf("  %s  %-16s %s", FormatTime(h.CreatedAt), h.Action, h.Content)
			b.WriteString(line + "\n")
		}
	}

	b.WriteString("\n(Esc: close, r: refresh)")

	return lipgloss.NewStyle().
		Padding(1, 2).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Render(b.String())
}

func statusStyle(s invoice.Status) string {
	var color string

	switch s {
	case invoice.StatusPaid, invoice.StatusOverpaid:
		color = "42" // green
	case invoice.StatusPendingPaid, invoice.StatusPendingOverpaid, invoice.StatusPendingPartial:
		color = "214" // orange
	case invoice.StatusPartial:
		color = "208"
	default:
		color = "241" // grey
	}

	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(string(s))
}

func (m *ListModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.invoices))
	for _, inv := range m.invoices {
		rows = append(rows, table.Row{
			FormatTime(inv.CreatedAt),
			string(inv.Status),
			FormatSats(inv.Amount),
			inv.Address,
			inv.Content,
		})
	}
	m.table.SetRows(rows)
}

// Messages

type loadListMsg struct {
	invoices []*invoice.Invoice
	err      error
}

func (m ListModel) loadInvoicesCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		var invoices []*invoice.Invoice

		err := m.svc.Iterate(ctx, nil, func(inv *invoice.Invoice, _ *invoice.State) error {
			invoices = append(invoices, inv)
			return nil
		})

		return loadListMsg{invoices: invoices, err: err}
	}
}

type loadDetailMsg struct {
	inv     *invoice.Invoice
	state   *invoice.State
	history []*invoice.History
	err     error
}

func (m ListModel) loadDetailCmd(inv *invoice.Invoice) tea.Cmd {
	id := inv.ID

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		current, state, err := m.svc.Info(ctx, id)
		if err != nil {
			return loadDetailMsg{err: err}
		}

		history, err := m.svc.History(ctx, id, nil)
		if err != nil {
			return loadDetailMsg{err: err}
		}

		return loadDetailMsg{inv: current, state: state, history: history}
	}
}

type deleteMsg struct {
	err error
}

func (m ListModel) deleteCmd(inv *invoice.Invoice) tea.Cmd {
	id := inv.ID

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		return deleteMsg{err: m.svc.Delete(ctx, id)}
	}
}
