package domain

import "time"

// PerformanceSnapshot is the daily summary recomputed from the ledger.
// One row per date, upserted idempotently so backfills never double count.
type PerformanceSnapshot struct {
	Date                time.Time // truncated to day, UTC
	TotalBets           int
	WinRate             float64
	ROIPercent          float64
	ProfitUnits         float64
	BankrollGrowth      float64 // closing / opening balance for the date
	ExpectedProfitUnits float64 // sum of recorded ev * stake
	ClosingBalance      float64
	Drawdown            float64 // drawdown from peak at day close
}
