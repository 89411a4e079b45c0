package store

// Store defines the interface for run persistence operations.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return ErrNotFound if the run doesn't exist (for Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveRun atomically saves a run. An existing run with the same ID is
	// overwritten.
	SaveRun(run *Run) error

	// LoadRun retrieves the run with the given ID.
	// Returns ErrNotFound if no such run exists.
	LoadRun(runID string) (*Run, error)

	// ListRuns returns metadata for all stored runs, newest first.
	ListRuns() ([]RunInfo, error)

	// DeleteRun removes the run and all associated artifacts
	// (run.json, trace.jsonl, rendered images).
	// Returns ErrNotFound if no such run exists.
	DeleteRun(runID string) error
}

// ErrNotFound is returned when a requested run does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing run error.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	if e.RunID != "" {
		return "run not found: " + e.RunID
	}
	return "run not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
