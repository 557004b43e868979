package view

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/satwatch/internal/invoice"
)

type createState int

const (
	createStateForm createState = iota
	createStateDone
)

type CreateModel struct {
	svc *invoice.Service

	state createState
	form  *huh.Form

	formAmount  string
	formContent string

	created *invoice.Invoice
	err     error
}

func NewCreateModel(svc *invoice.Service) CreateModel {
	m := CreateModel{svc: svc}
	m.form = m.newForm()

	return m
}

func (m CreateModel) newForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("amount").
				Title("Amount (satoshi)").
				Placeholder("100000").
				Value(&m.formAmount).
				Validate(func(s string) error {
					v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
					if err != nil {
						return fmt.Errorf("not a number")
					}
					if v <= 0 {
						return fmt.Errorf("must be positive")
					}
					return nil
				}),

			huh.NewInput().
				Key("content").
				Title("Description").
				Placeholder("order #42").
				Value(&m.formContent).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("description cannot be empty")
					}
					return nil
				}),
		),
	).WithWidth(50).WithShowHelp(false)
}

func (m CreateModel) Title() string { return "Create Invoice" }
func (m CreateModel) ShortHelp() string {
	if m.state == createStateDone {
		return "n: new invoice | Esc: back"
	}
	return "Navigate form | Esc: back"
}

func (m CreateModel) Init() tea.Cmd {
	return m.form.Init()
}

func (m CreateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc {
			return m, Back
		}

		if m.state == createStateDone && keyMsg.String() == "n" {
			m.state = createStateForm
			m.created = nil
			m.err = nil
			m.formAmount = ""
			m.formContent = ""
			m.form = m.newForm()

			return m, m.form.Init()
		}
	}

	if msg, ok := msg.(createdMsg); ok {
		m.state = createStateDone
		m.created = msg.inv
		m.err = msg.err

		return m, nil
	}

	if m.state != createStateForm {
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	return m, m.createCmd()
}

func (m CreateModel) View() string {
	if m.state == createStateDone {
		if m.err != nil {
			return lipgloss.NewStyle().Padding(2).Render(
				fmt.Sprintf("Error creating invoice: %v\n\n(n: try again, Esc: back)", m.err),
			)
		}

		panel := fmt.Sprintf(
			"Invoice created\n\nID:      %s\nAmount:  %s sats (%s)\nAddress: %s\n\nSend the exact amount to the address above.\n\n(n: new invoice, Esc: back)",
			m.created.ID,
			FormatSats(m.created.Amount),
			FormatBTC(m.created.Amount),
			m.created.Address,
		)

		return lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Render(panel)
	}

	return lipgloss.NewStyle().Padding(1, 2).Render(
		"Create Invoice\n\n" + m.form.View(),
	)
}

type createdMsg struct {
	inv *invoice.Invoice
	err error
}

func (m CreateModel) createCmd() tea.Cmd {
	// Read from the form by key; the model value the inputs were bound
	// to may be a stale copy by the time the form completes.
	amount, _ := strconv.ParseInt(strings.TrimSpace(m.form.GetString("amount")), 10, 64)
	content := strings.TrimSpace(m.form.GetString("content"))

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		inv, err := m.svc.Create(ctx, amount, content)

		return createdMsg{inv: inv, err: err}
	}
}
