package domain

import "time"

// AuditEventType classifies an audit log entry.
type AuditEventType string

const (
	AuditBetTaken    AuditEventType = "BET_TAKEN"
	AuditBetBlocked  AuditEventType = "BET_BLOCKED"
	AuditRiskTrigger AuditEventType = "RISK_TRIGGER"
	AuditStateChange AuditEventType = "STATE_CHANGE"
)

// AuditEntry is one immutable row of the behavior log. Every bankroll
// mutation and every risk veto produces exactly one entry.
type AuditEntry struct {
	ID        int64
	Timestamp time.Time
	EventType AuditEventType
	GameID    string
	Details   string
	OldState  string
	NewState  string
}
