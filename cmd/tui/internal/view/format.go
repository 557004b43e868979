package view

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const dbTimeout = 5 * time.Second

var printer = message.NewPrinter(language.English)

// FormatSats renders a satoshi amount with thousands separators.
func FormatSats(sats int64) string {
	return printer.Sprintf("%d", sats)
}

// FormatBTC renders a satoshi amount in BTC denomination.
func FormatBTC(sats int64) string {
	return btcutil.Amount(sats).String()
}

// FormatTime formats a time.Time into YYYY-MM-DD HH:MM.
func FormatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}

// DbCtx returns a context with a standard timeout for service calls.
func DbCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), dbTimeout)
}
