package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hoopsight/bankguard/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implements ports.Notifier, printing the operator report.
type Console struct {
	out     io.Writer
	compact bool
}

// NewConsole writes the report to stdout.
func NewConsole(compact bool) *Console {
	return &Console{out: os.Stdout, compact: compact}
}

// NewConsoleWriter writes to w, for tests.
func NewConsoleWriter(w io.Writer, compact bool) *Console {
	return &Console{out: w, compact: compact}
}

// Report renders the bankroll header, the recent decision trail and the
// daily performance series.
func (c *Console) Report(_ context.Context, state domain.BankrollState, bets []domain.Bet, snaps []domain.PerformanceSnapshot) error {
	c.printBankroll(state)

	if c.compact {
		c.printCompact(bets)
		return nil
	}
	c.printBets(bets)
	c.printSnapshots(snaps)
	return nil
}

func (c *Console) printBankroll(state domain.BankrollState) {
	fmt.Fprintf(c.out, "\n[%s] bankroll %s — %.2f units (peak %.2f, drawdown %.1f%%)\n",
		time.Now().Format("15:04:05"), state.Status,
		state.CurrentUnits, state.PeakUnits, state.MaxDrawdownPct*100)
	fmt.Fprintf(c.out, "  kelly fraction %.2f | streak W%d/L%d | initial %.2f\n",
		state.KellyFraction, state.ConsecutiveWins, state.ConsecutiveLosses, state.InitialUnits)
}

// printCompact fits the recent decisions on one line each.
func (c *Console) printCompact(bets []domain.Bet) {
	for _, b := range bets {
		fmt.Fprintf(c.out, "  %s %-8s %-7s stake %8.2f ev %+.4f %s\n",
			b.GameID, b.Decision, b.Status, b.StakeUnits, b.EV, b.Reason)
	}
}

func (c *Console) printBets(bets []domain.Bet) {
	if len(bets) == 0 {
		fmt.Fprintln(c.out, "  no decisions recorded")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Game", "Mode", "Decision", "Prob", "Odds", "EV", "Stake", "Status", "PnL", "Reason")
	for _, b := range bets {
		table.Append(
			b.GameID,
			string(b.Mode),
			string(b.Decision),
			fmt.Sprintf("%.3f", b.Probability),
			fmt.Sprintf("%.2f", b.Odds),
			fmt.Sprintf("%+.4f", b.EV),
			fmt.Sprintf("%.2f", b.StakeUnits),
			string(b.Status),
			fmt.Sprintf("%+.2f", b.PnL),
			b.Reason,
		)
	}
	table.Render()
}

func (c *Console) printSnapshots(snaps []domain.PerformanceSnapshot) {
	if len(snaps) == 0 {
		return
	}

	fmt.Fprintln(c.out, "\n=== DAILY PERFORMANCE ===")
	table := tablewriter.NewWriter(c.out)
	table.Header("Date", "Bets", "Win%", "ROI%", "Profit", "Growth", "Exp. Profit", "Close", "DD%")
	for _, s := range snaps {
		table.Append(
			s.Date.Format("2006-01-02"),
			fmt.Sprintf("%d", s.TotalBets),
			fmt.Sprintf("%.1f", s.WinRate*100),
			fmt.Sprintf("%+.2f", s.ROIPercent),
			fmt.Sprintf("%+.2f", s.ProfitUnits),
			fmt.Sprintf("%.4f", s.BankrollGrowth),
			fmt.Sprintf("%+.2f", s.ExpectedProfitUnits),
			fmt.Sprintf("%.2f", s.ClosingBalance),
			fmt.Sprintf("%.1f", s.Drawdown*100),
		)
	}
	table.Render()
}
