// Package jobs holds the Asynq task definitions and the worker that runs the
// six automation sweeps on their schedules.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskLeadFollowUps is the hourly stale-lead follow-up sweep.
	TaskLeadFollowUps = "automation:lead_followups"
	// TaskCallbackFollowUps is the hourly call-back follow-up sweep.
	TaskCallbackFollowUps = "automation:callback_followups"
	// TaskLeadHygiene is the daily composite lead hygiene sweep.
	TaskLeadHygiene = "automation:lead_hygiene"
	// TaskPaymentReminders is the daily invoice reminder sweep.
	TaskPaymentReminders = "automation:payment_reminders"
	// TaskContractSweep is the daily AMC expiry and renewal sweep.
	TaskContractSweep = "automation:contract_sweep"
	// TaskOverdueSweep is the daily overdue invoice sweep.
	TaskOverdueSweep = "automation:overdue_sweep"
)

// SweepPayload carries run metadata for an automation sweep.
type SweepPayload struct {
	TriggeredBy string `json:"triggered_by"`
}

// NewSweepTask constructs an Asynq task for the given sweep type.
func NewSweepTask(taskType string, payload SweepPayload) (*asynq.Task, error) {
	if payload.TriggeredBy == "" {
		payload.TriggeredBy = "scheduler"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}
