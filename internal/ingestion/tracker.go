package ingestion

import (
	"sync"

	"fraudreview/internal/logger"
	"fraudreview/internal/models"
)

// Tracker holds the in-flight ingestion tasks keyed by statement ID.
type Tracker struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{tasks: make(map[string]*Task)}
}

// Track returns the task for statementID, creating it if needed.
func (tr *Tracker) Track(statementID string) *Task {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if task, ok := tr.tasks[statementID]; ok {
		return task
	}
	task := newTask(statementID)
	tr.tasks[statementID] = task
	return task
}

// Lookup returns the in-flight task for statementID, if any.
func (tr *Tracker) Lookup(statementID string) (*Task, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	task, ok := tr.tasks[statementID]
	return task, ok
}

// Resolve completes the task for stmt and stops tracking it. Waiters that
// already hold the task still receive the statement. Resolving an untracked
// statement is a no-op.
func (tr *Tracker) Resolve(stmt models.Statement) {
	tr.mu.Lock()
	task, ok := tr.tasks[stmt.ID]
	delete(tr.tasks, stmt.ID)
	tr.mu.Unlock()

	if !ok {
		logger.Named("ingestion").Debugw("resolved untracked statement", "statement_id", stmt.ID)
		return
	}
	task.resolve(stmt)
}

// Pending returns the number of tasks still waiting on the pipeline.
func (tr *Tracker) Pending() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.tasks)
}
