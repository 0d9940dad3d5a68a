package schedule

import "fmt"

// Structural errors are returned synchronously while a graph is being built.
// Cycles, constraint violations and date overflows are never Go errors: they
// are first-class report data emitted by the detector and the engine, because
// detecting and explaining them is this package's job.

// DuplicateTaskError reports a task code inserted twice.
type DuplicateTaskError struct {
	Code string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("duplicate task %q", e.Code)
}

// UnknownTaskReferenceError reports a dependency endpoint that does not
// reference an existing task.
type UnknownTaskReferenceError struct {
	From    string
	To      string
	Missing string
}

func (e *UnknownTaskReferenceError) Error() string {
	return fmt.Sprintf("dependency %s -> %s references unknown task %q", e.From, e.To, e.Missing)
}

// SelfDependencyError reports an edge whose endpoints are the same task.
type SelfDependencyError struct {
	Code string
}

func (e *SelfDependencyError) Error() string {
	return fmt.Sprintf("task %q cannot depend on itself", e.Code)
}
