// Package ingestion tracks statements whose parsing is still running in the
// external pipeline. Each upload gets a Task that resolves once the pipeline
// reports the extracted transactions back.
package ingestion

import (
	"context"
	"sync"

	"fraudreview/internal/models"
)

// Task is a future for a statement's ingestion. It is safe for concurrent
// waiters and resolves at most once.
type Task struct {
	statementID string
	done        chan struct{}
	once        sync.Once
	result      models.Statement
}

func newTask(statementID string) *Task {
	return &Task{
		statementID: statementID,
		done:        make(chan struct{}),
	}
}

// StatementID returns the statement the task belongs to.
func (t *Task) StatementID() string {
	return t.statementID
}

// Done returns a channel that is closed when the task resolves.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task resolves or ctx is done.
func (t *Task) Wait(ctx context.Context) (models.Statement, error) {
	select {
	case <-t.done:
		return t.result, nil
	case <-ctx.Done():
		return models.Statement{}, ctx.Err()
	}
}

// resolve stores the completed statement and wakes all waiters. Later calls
// are ignored.
func (t *Task) resolve(stmt models.Statement) bool {
	resolved := false
	t.once.Do(func() {
		t.result = stmt
		close(t.done)
		resolved = true
	})
	return resolved
}
