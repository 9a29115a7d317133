package scheduler_test

import (
	"context"
	"testing"

	"github.com/hoopsight/bankguard/internal/adapters/storage"
	"github.com/hoopsight/bankguard/internal/application/perf"
	"github.com/hoopsight/bankguard/internal/application/pipeline"
	"github.com/hoopsight/bankguard/internal/domain"
	"github.com/hoopsight/bankguard/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticOutcomes map[string]domain.Outcome

func (s staticOutcomes) Outcomes(_ context.Context, _ []string) (map[string]domain.Outcome, error) {
	return s, nil
}

func newFixture(t *testing.T, outcomes staticOutcomes) (*scheduler.Scheduler, *pipeline.Pipeline, *storage.Store) {
	t.Helper()
	store, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Ledger.Init(context.Background(), 100000, 0.25))

	p := pipeline.New(pipeline.DefaultConfig(), store.Ledger, store.Bets, store.Audit)
	agg := perf.New(perf.DefaultConfig(), store.Ledger, store.Bets, store.Snapshots)
	s := scheduler.New(context.Background(), scheduler.DefaultConfig(), p, agg, outcomes)
	return s, p, store
}

func TestRegister_RejectsBadSpec(t *testing.T) {
	s, _, _ := newFixture(t, nil)
	assert.NoError(t, s.Register())

	bad, _, _ := newFixtureWithSpec(t, "not a cron spec")
	assert.Error(t, bad.Register())
}

func newFixtureWithSpec(t *testing.T, spec string) (*scheduler.Scheduler, *pipeline.Pipeline, *storage.Store) {
	t.Helper()
	store, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Ledger.Init(context.Background(), 100000, 0.25))

	p := pipeline.New(pipeline.DefaultConfig(), store.Ledger, store.Bets, store.Audit)
	agg := perf.New(perf.DefaultConfig(), store.Ledger, store.Bets, store.Snapshots)
	cfg := scheduler.DefaultConfig()
	cfg.SweepSpec = spec
	return scheduler.New(context.Background(), cfg, p, agg, nil), p, store
}

func TestRunOnce_SweepsAndAggregates(t *testing.T) {
	s, p, store := newFixture(t, staticOutcomes{"game-1": domain.OutcomeWin})
	ctx := context.Background()

	_, err := p.Evaluate(ctx, domain.Candidate{
		GameID: "game-1", Probability: 0.6, Odds: 1.9, SeasonProgress: 0.5,
	})
	require.NoError(t, err)

	s.RunOnce()

	won, err := store.Bets.ByStatus(ctx, domain.ModeShadow, domain.BetWon, 10)
	require.NoError(t, err)
	assert.Len(t, won, 1)
}
