package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hoopsight/bankguard/internal/adapters/storage"
	"github.com/hoopsight/bankguard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func makeBet(gameID string, mode domain.Mode, createdAt time.Time) domain.Bet {
	return domain.Bet{
		ID:                uuid.NewString(),
		GameID:            gameID,
		Mode:              mode,
		Decision:          domain.DecisionBet,
		Probability:       0.6,
		Odds:              1.9,
		EV:                domain.ExpectedValue(0.6, 1.9),
		StakeUnits:        50,
		KellyFractionUsed: 0.25,
		Status:            domain.BetPending,
		CreatedAt:         createdAt,
	}
}

func TestLedger_Init(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	err := store.Ledger.Init(ctx, 100000, 0.25)
	require.NoError(t, err)

	st, err := store.Ledger.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100000.0, st.CurrentUnits)
	assert.Equal(t, 100000.0, st.InitialUnits)
	assert.Equal(t, 100000.0, st.PeakUnits)
	assert.Equal(t, 0.25, st.KellyFraction)
	assert.Equal(t, domain.StatusActive, st.Status)

	// The opening balance is itself a ledger entry.
	txs, err := store.Ledger.Transactions(ctx,
		time.Now().UTC().Add(-time.Minute), time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, domain.TxReset, txs[0].Type)
	assert.Equal(t, 100000.0, txs[0].BalanceAfter)

	// Re-init of a populated store changes nothing.
	err = store.Ledger.Init(ctx, 5, 0.5)
	require.NoError(t, err)
	st, err = store.Ledger.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100000.0, st.CurrentUnits)
}

func TestLedger_AppendKeepsChainAndState(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.Ledger.Init(ctx, 1000, 0.25))

	st, err := store.Ledger.State(ctx)
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	next := st.Applied(45, now)
	tx, err := store.Ledger.Append(ctx, domain.Transaction{
		Timestamp:    now,
		Type:         domain.TxBetWin,
		Amount:       45,
		BalanceAfter: next.CurrentUnits,
	}, next)
	require.NoError(t, err)
	assert.Greater(t, tx.ID, int64(0))

	got, err := store.Ledger.State(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1045.0, got.CurrentUnits, 1e-9)
	assert.InDelta(t, 1045.0, got.PeakUnits, 1e-9)
}

func TestLedger_AppendRejectsBrokenChain(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.Ledger.Init(ctx, 1000, 0.25))

	st, err := store.Ledger.State(ctx)
	require.NoError(t, err)

	now := time.Now().UTC()
	next := st.Applied(-50, now)
	_, err = store.Ledger.Append(ctx, domain.Transaction{
		Timestamp:    now,
		Type:         domain.TxBetLoss,
		Amount:       -50,
		BalanceAfter: 900, // prior 1000 - 50 = 950
	}, next)
	require.ErrorIs(t, err, domain.ErrLedgerIntegrity)

	// Nothing was written.
	got, err := store.Ledger.State(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, got.CurrentUnits, 1e-9)
	txs, err := store.Ledger.Transactions(ctx,
		now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestLedger_ReplayMatchesState(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.Ledger.Init(ctx, 500, 0.25))

	base := time.Now().UTC().Truncate(time.Second)
	deltas := []float64{30, -50, 12.5, -7.25}
	types := []domain.TransactionType{
		domain.TxBetWin, domain.TxBetLoss, domain.TxBetWin, domain.TxBetLoss,
	}
	st, err := store.Ledger.State(ctx)
	require.NoError(t, err)
	for i, d := range deltas {
		ts := base.Add(time.Duration(i+1) * time.Second)
		st = st.Applied(d, ts)
		_, err := store.Ledger.Append(ctx, domain.Transaction{
			Timestamp:    ts,
			Type:         types[i],
			Amount:       d,
			BalanceAfter: st.CurrentUnits,
		}, st)
		require.NoError(t, err)
	}

	txs, err := store.Ledger.Transactions(ctx,
		base.Add(-time.Hour), base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, txs, 5)

	// Replaying the full ledger from zero lands on current_units.
	var replayed float64
	for _, tx := range txs {
		replayed += tx.Amount
		assert.InDelta(t, replayed, tx.BalanceAfter, 1e-6)
	}
	got, err := store.Ledger.State(ctx)
	require.NoError(t, err)
	assert.InDelta(t, got.CurrentUnits, replayed, 1e-6)
}

func TestLedger_BalanceAndPeakAsOf(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.Ledger.Init(ctx, 1000, 0.25))

	base := time.Now().UTC().Truncate(time.Second)
	st, err := store.Ledger.State(ctx)
	require.NoError(t, err)

	// +200 at base+1s, -600 at base+2s.
	for i, d := range []float64{200, -600} {
		ts := base.Add(time.Duration(i+1) * time.Second)
		st = st.Applied(d, ts)
		typ := domain.TxBetWin
		if d < 0 {
			typ = domain.TxBetLoss
		}
		_, err := store.Ledger.Append(ctx, domain.Transaction{
			Timestamp: ts, Type: typ, Amount: d, BalanceAfter: st.CurrentUnits,
		}, st)
		require.NoError(t, err)
	}

	balance, err := store.Ledger.BalanceAsOf(ctx, base.Add(2*time.Second))
	require.NoError(t, err)
	assert.InDelta(t, 1200.0, balance, 1e-9)

	balance, err = store.Ledger.BalanceAsOf(ctx, base.Add(10*time.Second))
	require.NoError(t, err)
	assert.InDelta(t, 600.0, balance, 1e-9)

	peak, err := store.Ledger.PeakAsOf(ctx, base.Add(10*time.Second))
	require.NoError(t, err)
	assert.InDelta(t, 1200.0, peak, 1e-9)
}

func TestLedger_SubSecondTimestampStaysInDayWindow(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.Ledger.Init(ctx, 1000, 0.25))

	// Booked half a second after UTC midnight.
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	ts := day.Add(500 * time.Millisecond)
	st, err := store.Ledger.State(ctx)
	require.NoError(t, err)
	st = st.Applied(45, ts)
	_, err = store.Ledger.Append(ctx, domain.Transaction{
		Timestamp: ts, Type: domain.TxBetWin, Amount: 45, BalanceAfter: st.CurrentUnits,
	}, st)
	require.NoError(t, err)

	got, err := store.Ledger.Transactions(ctx, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.TxBetWin, got[0].Type)
	assert.Equal(t, ts, got[0].Timestamp)

	prior, err := store.Ledger.Transactions(ctx, day.AddDate(0, 0, -1), day)
	require.NoError(t, err)
	assert.Empty(t, prior)
}

func TestBets_SettleIsCheckAndSet(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	bet := makeBet("game-1", domain.ModeShadow, now)
	require.NoError(t, store.Bets.Create(ctx, bet))

	err := store.Bets.Settle(ctx, domain.ModeShadow, bet.ID, domain.BetWon, 45, now.Add(time.Hour))
	require.NoError(t, err)

	// Second settlement of the same row loses the race.
	err = store.Bets.Settle(ctx, domain.ModeShadow, bet.ID, domain.BetLost, -50, now.Add(time.Hour))
	require.ErrorIs(t, err, domain.ErrAlreadyResolved)

	got, err := store.Bets.ByGame(ctx, domain.ModeShadow, "game-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.BetWon, got[0].Status)
	assert.InDelta(t, 45.0, got[0].PnL, 1e-9)
	require.NotNil(t, got[0].ResolvedAt)
}

func TestBets_ModesNeverCross(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	shadow := makeBet("game-7", domain.ModeShadow, now)
	live := makeBet("game-7", domain.ModeLive, now)
	require.NoError(t, store.Bets.Create(ctx, shadow))
	require.NoError(t, store.Bets.Create(ctx, live))

	got, err := store.Bets.PendingByGame(ctx, domain.ModeLive, "game-7")
	require.NoError(t, err)
	assert.Equal(t, live.ID, got.ID)

	require.NoError(t, store.Bets.Settle(ctx, domain.ModeLive, live.ID, domain.BetLost, -50, now.Add(time.Hour)))

	// The shadow row is still pending.
	got, err = store.Bets.PendingByGame(ctx, domain.ModeShadow, "game-7")
	require.NoError(t, err)
	assert.Equal(t, shadow.ID, got.ID)
	assert.Equal(t, domain.BetPending, got.Status)
}

func TestBets_PendingByGame_NotFound(t *testing.T) {
	store := newStore(t)

	_, err := store.Bets.PendingByGame(context.Background(), domain.ModeShadow, "missing")
	assert.ErrorIs(t, err, domain.ErrBetNotFound)
}

func TestBets_LastSettledNewestFirst(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, status := range []domain.BetStatus{domain.BetLost, domain.BetWon, domain.BetLost} {
		bet := makeBet(uuid.NewString(), domain.ModeShadow, base)
		require.NoError(t, store.Bets.Create(ctx, bet))
		require.NoError(t, store.Bets.Settle(ctx, domain.ModeShadow, bet.ID,
			status, 0, base.Add(time.Duration(i+1)*time.Second)))
	}
	// Pushed bets never count toward streaks.
	pushed := makeBet(uuid.NewString(), domain.ModeShadow, base)
	require.NoError(t, store.Bets.Create(ctx, pushed))
	require.NoError(t, store.Bets.Settle(ctx, domain.ModeShadow, pushed.ID,
		domain.BetPushed, 0, base.Add(10*time.Second)))

	got, err := store.Bets.LastSettled(ctx, domain.ModeShadow, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, domain.BetLost, got[0].Status)
	assert.Equal(t, domain.BetWon, got[1].Status)
	assert.Equal(t, domain.BetLost, got[2].Status)
}

func TestBets_ResolvedOnFiltersByDay(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	inDay := makeBet("g-in", domain.ModeShadow, day.Add(-time.Hour))
	nextDay := makeBet("g-out", domain.ModeShadow, day.Add(-time.Hour))
	require.NoError(t, store.Bets.Create(ctx, inDay))
	require.NoError(t, store.Bets.Create(ctx, nextDay))
	require.NoError(t, store.Bets.Settle(ctx, domain.ModeShadow, inDay.ID,
		domain.BetWon, 45, day.Add(20*time.Hour)))
	require.NoError(t, store.Bets.Settle(ctx, domain.ModeShadow, nextDay.ID,
		domain.BetLost, -50, day.Add(25*time.Hour)))

	// Resolved inside the first second of the day.
	midnight := makeBet("g-midnight", domain.ModeShadow, day.Add(-time.Hour))
	require.NoError(t, store.Bets.Create(ctx, midnight))
	require.NoError(t, store.Bets.Settle(ctx, domain.ModeShadow, midnight.ID,
		domain.BetWon, 45, day.Add(250*time.Millisecond)))

	got, err := store.Bets.ResolvedOn(ctx, domain.ModeShadow, day)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "g-midnight", got[0].GameID)
	assert.Equal(t, "g-in", got[1].GameID)
}

func TestAudit_AppendAndRecent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, et := range []domain.AuditEventType{domain.AuditBetTaken, domain.AuditRiskTrigger} {
		err := store.Audit.Append(ctx, domain.AuditEntry{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			EventType: et,
			GameID:    "game-1",
			Details:   "entry",
		})
		require.NoError(t, err)
	}

	got, err := store.Audit.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.AuditRiskTrigger, got[0].EventType)
	assert.Equal(t, domain.AuditBetTaken, got[1].EventType)
}

func TestSnapshots_UpsertOverwrites(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Snapshots.Upsert(ctx, domain.PerformanceSnapshot{
		Date: day, TotalBets: 3, ProfitUnits: 10, ClosingBalance: 1010,
	}))
	// Rerun of the same date replaces the row.
	require.NoError(t, store.Snapshots.Upsert(ctx, domain.PerformanceSnapshot{
		Date: day, TotalBets: 4, ProfitUnits: -5, ClosingBalance: 995,
	}))
	require.NoError(t, store.Snapshots.Upsert(ctx, domain.PerformanceSnapshot{
		Date: day.AddDate(0, 0, 1), TotalBets: 1, ClosingBalance: 1000,
	}))

	got, err := store.Snapshots.Range(ctx, day, day.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 4, got[0].TotalBets)
	assert.InDelta(t, -5.0, got[0].ProfitUnits, 1e-9)
	assert.Equal(t, day, got[0].Date)
	assert.Equal(t, 1, got[1].TotalBets)
}
