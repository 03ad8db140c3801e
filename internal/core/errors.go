package core

import (
	"errors"
	"fmt"
)

var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrDuplicateEdge = errors.New("dependency already exists")
	ErrCycle         = errors.New("dependency would create a cycle")

	// ErrStructural marks an indent, outdent or move whose preconditions do
	// not hold. The engine itself signals these with nil or empty patches;
	// the service layer wraps them in this error for callers that want one.
	ErrStructural = errors.New("structural change not allowed")
)

// GraphError reports a rejected dependency edge mutation.
type GraphError struct {
	Kind         error
	TaskID       string
	DependencyID string
	Msg          string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func graphErrorf(kind error, taskID, depID, format string, args ...any) error {
	return &GraphError{
		Kind:         kind,
		TaskID:       taskID,
		DependencyID: depID,
		Msg:          fmt.Sprintf(format, args...),
	}
}
