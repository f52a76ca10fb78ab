package model

import "time"

// Sync entities.
const (
	EntitySellers        = "sellers"
	EntityModules        = "modulos"
	EntityPaymentMethods = "payment_methods"
	EntityReceivables    = "receivables"
)

// SyncOutcome describes how one entity sync ended.
type SyncOutcome string

const (
	OutcomeSynced  SyncOutcome = "synced"
	OutcomeSkipped SyncOutcome = "skipped" // fresh data or empty upstream result
	OutcomeFailed  SyncOutcome = "failed"
)

// SyncRun is one persisted line of the sync history.
type SyncRun struct {
	RunID      string      `json:"run_id" bson:"run_id"`
	Trigger    string      `json:"trigger" bson:"trigger"` // schedule or manual
	Entity     string      `json:"entity" bson:"entity"`
	Tenant     string      `json:"tenant" bson:"tenant"`
	Outcome    SyncOutcome `json:"outcome" bson:"outcome"`
	Count      int         `json:"count" bson:"count"`
	Issues     int         `json:"issues" bson:"issues"`
	ErrorKind  string      `json:"error_kind,omitempty" bson:"error_kind,omitempty"`
	Error      string      `json:"error,omitempty" bson:"error,omitempty"`
	StartedAt  time.Time   `json:"started_at" bson:"started_at"`
	FinishedAt time.Time   `json:"finished_at" bson:"finished_at"`
}

// Duration returns how long the entity sync took.
func (r *SyncRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
