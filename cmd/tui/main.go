package main

import (
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/satwatch/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/satwatch/internal/config"
	"github.com/MrJamesThe3rd/satwatch/internal/database"
	"github.com/MrJamesThe3rd/satwatch/internal/engine"
	"github.com/MrJamesThe3rd/satwatch/internal/events"
	"github.com/MrJamesThe3rd/satwatch/internal/invoice"
	invoiceStore "github.com/MrJamesThe3rd/satwatch/internal/invoice/store"
	"github.com/MrJamesThe3rd/satwatch/internal/ledger/bitcoind"
	"github.com/MrJamesThe3rd/satwatch/internal/scanner"
)

type model struct {
	svc *invoice.Service
	cfg *config.Config

	currentView View

	createView  view.CreateModel
	listView    view.ListModel
	updatesView view.UpdatesModel
}

type View int

const (
	ViewMenu    View = 0
	ViewCreate  View = 1
	ViewList    View = 2
	ViewUpdates View = 3
)

func initialModel() model {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	node, err := bitcoind.New(bitcoind.Config{
		Addr: cfg.BitcoindAddr(),
		User: cfg.Bitcoind.User,
		Pass: cfg.Bitcoind.Pass,
	})
	if err != nil {
		slog.Error("failed to connect to bitcoind", "error", err)
		os.Exit(1)
	}

	bus := events.New()
	repo := invoiceStore.New(db)
	eng := engine.New(repo, node, bus, engine.Config{
		RequiredConfirmations: cfg.Invoice.RequiredConfirmations,
		WatchConfirmations:    cfg.Invoice.WatchConfirmations,
	})
	scan := scanner.New(repo, node, eng)
	svc := invoice.NewService(repo, node, eng, scan, bus, invoice.Options{
		MinimumSatoshi: cfg.Invoice.MinimumSatoshi,
		PollInterval:   cfg.Scanner.PollInterval,
	})

	return model{
		svc:         svc,
		cfg:         cfg,
		currentView: ViewMenu,
		createView:  view.NewCreateModel(svc),
		listView:    view.NewListModel(svc, cfg.Invoice.DisabledAmountThreshold),
		updatesView: view.NewUpdatesModel(svc),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.currentView == ViewMenu {
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "1":
				m.currentView = ViewCreate
				m.createView = view.NewCreateModel(m.svc)

				return m, m.createView.Init()
			case "2":
				m.currentView = ViewList
				m.listView = view.NewListModel(m.svc, m.cfg.Invoice.DisabledAmountThreshold)

				return m, m.listView.Init()
			case "3":
				m.currentView = ViewUpdates
				m.updatesView = view.NewUpdatesModel(m.svc)

				return m, m.updatesView.Init()
			}
		}
	case view.BackMsg:
		m.currentView = ViewMenu
		return m, nil
	}

	switch m.currentView {
	case ViewCreate:
		var newModel tea.Model
		newModel, cmd = m.createView.Update(msg)
		m.createView = newModel.(view.CreateModel)
	case ViewList:
		var newModel tea.Model
		newModel, cmd = m.listView.Update(msg)
		m.listView = newModel.(view.ListModel)
	case ViewUpdates:
		var newModel tea.Model
		newModel, cmd = m.updatesView.Update(msg)
		m.updatesView = newModel.(view.UpdatesModel)
	}

	return m, cmd
}

func (m model) View() string {
	switch m.currentView {
	case ViewMenu:
		return lipgloss.NewStyle().Padding(2).Render(
			"Satwatch TUI\n\n" +
				"1. Create Invoice\n" +
				"2. Browse Invoices\n" +
				"3. Recent Updates\n\n" +
				"q. Quit",
		)
	case ViewCreate:
		return m.createView.View()
	case ViewList:
		return m.listView.View()
	case ViewUpdates:
		return m.updatesView.View()
	}

	return "Unknown View"
}

func main() {
	p := tea.NewProgram(initialModel())
	if _, err := p.Run(); err != nil {
		slog.Error("failed to run TUI", "error", err)
		os.Exit(1)
	}
}
