package domain

import "time"

// BankrollStatus is the operational state of the capital engine.
type BankrollStatus string

const (
	StatusActive   BankrollStatus = "ACTIVE"
	StatusPaused   BankrollStatus = "PAUSED"
	StatusBankrupt BankrollStatus = "BANKRUPT"
)

// BankrollState is the singleton capital record. There is exactly one logical
// writer at a time: the bet pipeline mutates it during resolution and operator
// actions, everything else reads snapshots.
type BankrollState struct {
	CurrentUnits      float64
	InitialUnits      float64
	PeakUnits         float64
	MaxDrawdownPct    float64 // (peak - current) / peak, recomputed on every mutation
	KellyFraction     float64 // mutable risk dial, default fraction for sizing
	Status            BankrollStatus
	ConsecutiveWins   int
	ConsecutiveLosses int
	LastUpdated       time.Time
}

// Applied returns the state after booking a signed capital delta.
// Peak is monotone non-decreasing and the drawdown identity
// (peak - current) / peak holds on the returned value.
func (s BankrollState) Applied(amount float64, now time.Time) BankrollState {
	next := s
	next.CurrentUnits = s.CurrentUnits + amount
	if next.CurrentUnits > next.PeakUnits {
		next.PeakUnits = next.CurrentUnits
	}
	next.MaxDrawdownPct = DrawdownPct(next.PeakUnits, next.CurrentUnits)
	next.LastUpdated = now
	return next
}

// DrawdownPct is the fractional decline of current capital from its peak.
func DrawdownPct(peak, current float64) float64 {
	if peak <= 0 {
		return 0
	}
	return (peak - current) / peak
}

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TxReset      TransactionType = "RESET"
	TxBetWin     TransactionType = "BET_WIN"
	TxBetLoss    TransactionType = "BET_LOSS"
	TxAdjustment TransactionType = "ADJUSTMENT"
)

// Transaction is one immutable ledger entry. BalanceAfter must equal the
// previous entry's BalanceAfter plus Amount; the ledger store rejects
// appends that break the chain.
type Transaction struct {
	ID            int64
	Timestamp     time.Time
	Type          TransactionType
	Amount        float64 // signed delta in units
	BalanceAfter  float64
	ExpectedValue float64 // EV of the bet that produced this entry, 0 otherwise
	Note          string
}
