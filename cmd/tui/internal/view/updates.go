package view

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/satwatch/internal/invoice"
)

// UpdatesModel shows invoices that changed since the feed was last
// consumed. Each load stamps the consumption time, so the next load only
// reports newer changes.
type UpdatesModel struct {
	svc *invoice.Service

	updated []*invoice.Invoice
	loading bool
	err     error
}

func NewUpdatesModel(svc *invoice.Service) UpdatesModel {
	return UpdatesModel{svc: svc, loading: true}
}

func (m UpdatesModel) Title() string     { return "Recent Updates" }
func (m UpdatesModel) ShortHelp() string { return "Esc: back | r: check again" }

func (m UpdatesModel) Init() tea.Cmd {
	return m.loadUpdatesCmd()
}

func (m UpdatesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadUpdatesCmd()
		}

	case loadUpdatesMsg:
		m.loading = false
		m.updated = msg.invoices
		m.err = msg.err
	}

	return m, nil
}

func (m UpdatesModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Checking for updates...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(fmt.Sprintf("Error: %v", m.err))
	}

	if len(m.updated) == 0 {
		return lipgloss.NewStyle().Padding(2).Render(
			"No invoices changed since the last check.\n\n(r: check again, Esc: back)",
		)
	}

	var b strings.Builder

	fmt.Fprintf(&b, "%d invoice(s) changed\n\n", len(m.updated))

	for _, inv := range m.updated {
		fmt.Fprintf(&b, "  %s  %-16s %14s sats  %s\n",
			inv.ID, statusStyle(inv.Status), FormatSats(inv.Amount), inv.Content)
	}

	b.WriteString("\n(r: check again, Esc: back)")

	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

type loadUpdatesMsg struct {
	invoices []*invoice.Invoice
	err      error
}

func (m UpdatesModel) loadUpdatesCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		var invoices []*invoice.Invoice

		err := m.svc.Updates(ctx, func(inv *invoice.Invoice, _ *invoice.State) error {
			invoices = append(invoices, inv)
			return nil
		})

		return loadUpdatesMsg{invoices: invoices, err: err}
	}
}
