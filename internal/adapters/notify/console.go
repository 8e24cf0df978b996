package notify

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/eeguskiza/Poly-Oracle/internal/calibration"
	"github.com/eeguskiza/Poly-Oracle/internal/domain"
	"github.com/eeguskiza/Poly-Oracle/internal/ledger"
	"github.com/eeguskiza/Poly-Oracle/internal/loop"
)

// Console imprime informes en stdout. Es la única superficie de salida del
// binario aparte de los logs.
type Console struct {
	out io.Writer
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// PrintPortfolio imprime el bankroll y las posiciones abiertas.
func (c *Console) PrintPortfolio(snap ledger.Snapshot) {
	fmt.Fprintf(c.out, "\nBankroll: $%s | realized P&L: $%s | today: $%s | open positions: %d\n",
		snap.Bankroll.Balance.StringFixed(2),
		snap.Bankroll.RealizedPnL.StringFixed(2),
		snap.DailyPnL.StringFixed(2),
		len(snap.OpenPositions),
	)
	if len(snap.OpenPositions) == 0 {
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Market", "Side", "Stake", "Entry", "Shares", "Opened")
	for _, p := range snap.OpenPositions {
		table.Append(
			shorten(p.MarketID, 18),
			string(p.Side),
			fmt.Sprintf("$%.2f", p.Stake),
			fmt.Sprintf("%.3f", p.EntryPrice),
			fmt.Sprintf("%.2f", p.Shares()),
			p.OpenedAt.Format("01-02 15:04"),
		)
	}
	table.Render()
}

// PrintTrades imprime el histórico de trades, el más reciente primero.
func (c *Console) PrintTrades(trades []domain.Trade) {
	if len(trades) == 0 {
		fmt.Fprintln(c.out, "no trades recorded")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Executed", "Market", "Side", "Stake", "Price", "Mode", "Status")
	for _, t := range trades {
		table.Append(
			t.ExecutedAt.Format("2006-01-02 15:04"),
			shorten(t.MarketID, 18),
			string(t.Side),
			fmt.Sprintf("$%.2f", t.Stake),
			fmt.Sprintf("%.3f", t.Price),
			string(t.Mode),
			string(t.Status),
		)
	}
	table.Render()
}

// PrintCalibrationReport imprime el antes/después de la calibración y la
// curva de fiabilidad.
func (c *Console) PrintCalibrationReport(rep calibration.Report) {
	fmt.Fprintf(c.out, "\nForecasts: %d total, %d resolved | model v%d\n",
		rep.TotalForecasts, rep.ResolvedForecasts, rep.ModelVersion)
	fmt.Fprintf(c.out, "Brier raw: %.4f | calibrated: %.4f | improvement: %+.4f\n",
		rep.BrierRaw, rep.BrierCalibrated, rep.Improvement)

	if len(rep.Curve) == 0 {
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Bucket", "N", "Avg pred", "Empirical")
	for _, b := range rep.Curve {
		table.Append(
			fmt.Sprintf("%.1f–%.1f", b.Low, b.High),
			fmt.Sprintf("%d", b.Count),
			fmt.Sprintf("%.3f", b.AvgPred),
			fmt.Sprintf("%.3f", b.Empirical),
		)
	}
	table.Render()
}

// PrintBacktest imprime el resumen del replay.
func (c *Console) PrintBacktest(res loop.BacktestResult) {
	fmt.Fprintf(c.out, "\n=== BACKTEST (%s) — %s ===\n", res.Mode, time.Now().Format("2006-01-02 15:04"))
	fmt.Fprintf(c.out, "Forecasts replayed: %d | trades: %d (W:%d L:%d)\n",
		res.Forecasts, res.Trades, res.Wins, res.Losses)
	fmt.Fprintf(c.out, "Bankroll: $%.2f → $%.2f (P&L %+.2f)\n",
		res.InitialBankroll, res.FinalBankroll, res.TotalPnL)
	fmt.Fprintf(c.out, "Brier raw: %.4f | replayed: %.4f\n", res.BrierRaw, res.BrierReplayed)
}

func shorten(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
