package core

import "time"

// TaskStatus is the externally visible lifecycle state of a task. The caller
// always receives one of the terminal statuses plus the best available
// partial result; tasks are never silently dropped.
type TaskStatus string

const (
	// StatusPending means the task is accepted but not yet executing.
	StatusPending TaskStatus = "PENDING"
	// StatusRunning means DAG nodes are being dispatched.
	StatusRunning TaskStatus = "RUNNING"
	// StatusCompleted means every node finished successfully.
	StatusCompleted TaskStatus = "COMPLETED"
	// StatusPartial means the task finished with at least one failed node;
	// outputs of successful nodes are preserved and flagged.
	StatusPartial TaskStatus = "PARTIAL"
	// StatusFailed means the task produced no usable result.
	StatusFailed TaskStatus = "FAILED"
	// StatusCancelled means the task was cancelled at a suspension point.
	StatusCancelled TaskStatus = "CANCELLED"
)

// Terminal reports whether the status admits no further transitions.
func (s TaskStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusPartial, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

var taskTransitions = map[TaskStatus][]TaskStatus{
	StatusPending: {StatusRunning, StatusCancelled, StatusFailed},
	StatusRunning: {StatusCompleted, StatusPartial, StatusFailed, StatusCancelled},
}

// CanTransition reports whether s -> next is a legal lifecycle move.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	for _, allowed := range taskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// NodeStatus is the lifecycle state of one DAG node.
type NodeStatus string

const (
	// NodePending means dependencies are not yet satisfied or the node is
	// waiting for dispatch.
	NodePending NodeStatus = "PENDING"
	// NodeRunning means an agent invocation is in flight.
	NodeRunning NodeStatus = "RUNNING"
	// NodeCompleted means the node produced an output.
	NodeCompleted NodeStatus = "COMPLETED"
	// NodeFailed means the node failed after delegation and retries.
	NodeFailed NodeStatus = "FAILED"
	// NodeAborted means the node never started because the task was
	// cancelled or an upstream dependency failed.
	NodeAborted NodeStatus = "ABORTED"
)

// Terminal reports whether the node status is final.
func (s NodeStatus) Terminal() bool {
	return s == NodeCompleted || s == NodeFailed || s == NodeAborted
}

// NodeResult captures the terminal outcome of one DAG node.
type NodeResult struct {
	NodeID  string     `json:"node_id"`
	Status  NodeStatus `json:"status"`
	AgentID string     `json:"agent_id,omitempty"`
	Output  string     `json:"output,omitempty"`
	Reason  string     `json:"reason,omitempty"`
}

// TaskRecord is the persisted representation of one task in the task store,
// keyed by task ID. Version increases monotonically; writes go through
// optimistic concurrency (see TaskStore).
type TaskRecord struct {
	TaskID   string           `json:"task_id"`
	Version  int64            `json:"version"`
	Status   TaskStatus       `json:"status"`
	DAG      TaskDAG          `json:"dag"`
	Strategy WorkflowStrategy `json:"strategy"`
	// HybridState is present only for hybrid-mode tasks.
	HybridState   *HybridState  `json:"hybrid_state,omitempty"`
	SwitchHistory []SwitchEvent `json:"switch_history,omitempty"`
	NodeResults   []NodeResult  `json:"node_results,omitempty"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
