package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBalancesIntegrity verifies that the previous day's balances are
	// consistent per ledger.
	TaskBalancesIntegrity = "balances:integrity"
	// TaskBalancesWarmup pre-builds and caches the configured daily reports.
	TaskBalancesWarmup = "balances:warmup"
)

// IntegrityScanPayload selects the date to verify. An empty date means the
// previous calendar day.
type IntegrityScanPayload struct {
	Date string `json:"date,omitempty"`
}

// NewIntegrityScanTask constructs an Asynq task for the integrity scan.
func NewIntegrityScanTask(payload IntegrityScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBalancesIntegrity, data), nil
}

// WarmupPayload selects the report types to pre-build. Empty means the
// configured defaults.
type WarmupPayload struct {
	Reports []string `json:"reports,omitempty"`
}

// NewWarmupTask constructs an Asynq task for the report warmup.
func NewWarmupTask(payload WarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBalancesWarmup, data), nil
}
