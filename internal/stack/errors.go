package stack

import "fmt"

// RepositoryError reports a failed working-copy operation. It is fatal for
// the current run: the working copy is left in an undefined partial state
// and must be re-initialized before reuse.
type RepositoryError struct {
	Op     string
	Target string
	Err    error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Op, e.Target, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}
