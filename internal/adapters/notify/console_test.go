package notify_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/hoopsight/bankguard/internal/adapters/notify"
	"github.com/hoopsight/bankguard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_FullTables(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, false)

	state := domain.BankrollState{
		CurrentUnits: 96111.12, InitialUnits: 100000, PeakUnits: 100000,
		MaxDrawdownPct: 0.0389, KellyFraction: 0.25,
		Status: domain.StatusActive, ConsecutiveLosses: 1,
	}
	bets := []domain.Bet{{
		GameID: "game-1", Mode: domain.ModeShadow, Decision: domain.DecisionBet,
		Probability: 0.6, Odds: 1.9, EV: 0.14, StakeUnits: 3888.88,
		Status: domain.BetLost, PnL: -3888.88, CreatedAt: time.Now(),
	}}
	snaps := []domain.PerformanceSnapshot{{
		Date: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		TotalBets: 1, ProfitUnits: -3888.88, BankrollGrowth: 0.9611,
		ClosingBalance: 96111.12, Drawdown: 0.0389,
	}}

	err := c.Report(context.Background(), state, bets, snaps)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "ACTIVE")
	assert.Contains(t, out, "game-1")
	assert.Contains(t, out, "2026-03-14")
	assert.Contains(t, out, "DAILY PERFORMANCE")
}

func TestReport_CompactSkipsTables(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, true)

	err := c.Report(context.Background(), domain.BankrollState{Status: domain.StatusActive},
		[]domain.Bet{{GameID: "game-9", Decision: domain.DecisionPass}}, nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "game-9")
	assert.NotContains(t, buf.String(), "DAILY PERFORMANCE")
}
