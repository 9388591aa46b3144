// Package queue defines the asynq task that carries a paystub job from the
// API to the worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/mytipspro/checkmychecks/internal/paystub"
)

const (
	// ProcessPaystubTask is scheduled each time a processing run is requested.
	ProcessPaystubTask = "paystub:process"
)

// ProcessPayload is serialized into the task so the worker knows which
// object to fetch, where to send the report, and what the user asserted
// about long shifts.
type ProcessPayload struct {
	JobID        string                   `json:"job_id"`
	SourceHandle string                   `json:"source_handle"`
	FileName     string                   `json:"file_name"`
	Recipient    string                   `json:"recipient"`
	ManualShift  paystub.ManualShiftInput `json:"manual_shift_input"`
}

// EnqueueProcess enqueues a paystub processing job. Jobs are single-shot:
// the handler persists its own terminal outcome, so asynq retries only cover
// infrastructure hiccups before the pipeline records anything.
func EnqueueProcess(ctx context.Context, client *asynq.Client, payload ProcessPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(ProcessPaystubTask, data)
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(1)); err != nil {
		return fmt.Errorf("enqueue process task: %w", err)
	}
	return nil
}
