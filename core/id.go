package core

import "github.com/google/uuid"

// NewID returns a new random identifier suitable for tasks, DAG nodes,
// invocations and trace correlation.
func NewID() string { return uuid.NewString() }
