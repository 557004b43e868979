package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/satwatch/internal/config"
	"github.com/MrJamesThe3rd/satwatch/internal/database"
	"github.com/MrJamesThe3rd/satwatch/internal/engine"
	"github.com/MrJamesThe3rd/satwatch/internal/events"
	satwatchHttp "github.com/MrJamesThe3rd/satwatch/internal/http"
	invoiceHandler "github.com/MrJamesThe3rd/satwatch/internal/http/invoice"
	"github.com/MrJamesThe3rd/satwatch/internal/invoice"
	invoiceStore "github.com/MrJamesThe3rd/satwatch/internal/invoice/store"
	"github.com/MrJamesThe3rd/satwatch/internal/ledger/bitcoind"
	"github.com/MrJamesThe3rd/satwatch/internal/scanner"
)

func main() {
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
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		slog.Error("failed to run migrations", "error", err)
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
	defer node.Close()

	var (
		bus  = events.New()
		repo = invoiceStore.New(db)
		eng  = engine.New(repo, node, bus, engine.Config{
			RequiredConfirmations: cfg.Invoice.RequiredConfirmations,
			WatchConfirmations:    cfg.Invoice.WatchConfirmations,
		})
		scan           = scanner.New(repo, node, eng)
		invoiceService = invoice.NewService(repo, node, eng, scan, bus, invoice.Options{
			MinimumSatoshi: cfg.Invoice.MinimumSatoshi,
			PollInterval:   cfg.Scanner.PollInterval,
		})
	)

	go scanLoop(ctx, scan, cfg.Scanner.PollInterval)

	router := satwatchHttp.New(invoiceHandler.NewHandler(invoiceService, cfg.Server.Timeout))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("starting server", "addr", server.Addr, "app", cfg.App.Name)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// scanLoop polls the ledger until ctx is cancelled. Scan failures are
// logged and retried on the next tick; the checkpoint never advances
// past unprocessed activity.
func scanLoop(ctx context.Context, scan *scanner.Scanner, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		tip, affected, err := scan.Scan(ctx)
		if err != nil {
			slog.Warn("scan failed", "error", err)
			continue
		}

		if len(affected) > 0 {
			slog.Info("scan pass complete", "tip", tip, "affected", len(affected))
		}
	}
}
