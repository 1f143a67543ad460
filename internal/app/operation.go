package app

import (
	"strings"
	"time"
)

// Operation tracks one CLI command for the log. Its ID tags every log line
// the command writes.
type Operation struct {
	ID         string
	Command    string
	Parameters string
	Status     string // "running", "success" or "error"
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewOperation starts tracking command at now.
func NewOperation(command string, parameters []string, now time.Time) *Operation {
	return &Operation{
		ID:         now.UTC().Format("20060102T150405Z"),
		Command:    command,
		Parameters: strings.Join(parameters, " "),
		Status:     "running",
		StartedAt:  now,
	}
}

// Finish records the outcome of the command.
func (op *Operation) Finish(err error, now time.Time) {
	op.FinishedAt = now
	if err != nil {
		op.Status = "error"
		return
	}
	op.Status = "success"
}

// Finished returns true once Finish was called.
func (op *Operation) Finished() bool {
	return !op.FinishedAt.IsZero()
}

// Duration returns how long the command ran, or 0 while it is running.
func (op *Operation) Duration() time.Duration {
	if !op.Finished() {
		return 0
	}
	return op.FinishedAt.Sub(op.StartedAt)
}
