package core

import (
	"context"
	"time"
)

// ModelAttempt records one model-provider attempt made while serving a task.
type ModelAttempt struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// ExecutionRecord is the append-only audit/replay entry written once per
// completed (or failed) task by the execution & observation layer. Records
// are never mutated after the fact.
type ExecutionRecord struct {
	TraceID       string         `json:"trace_id"`
	IntentID      string         `json:"intent_id"`
	TaskCount     int            `json:"task_count"`
	Success       bool           `json:"success"`
	LatencyMS     int64          `json:"latency_ms"`
	TaskResults   []NodeResult   `json:"task_results,omitempty"`
	AgentIDs      []string       `json:"agent_ids,omitempty"`
	ModelAttempts []ModelAttempt `json:"model_attempts,omitempty"`
	Status        TaskStatus     `json:"status"`
	ReasonCode    string         `json:"reason_code,omitempty"`
	At            time.Time      `json:"at"`
}

// RecordSink persists execution records. Append-only: no update or delete
// operation is exposed to the core.
type RecordSink interface {
	Append(ctx context.Context, rec ExecutionRecord) error
}
