package index

import "fmt"

// InvariantError reports a §3 invariant violated at apply/rollback time.
// Per spec.md §7, an invariant violation at C6 apply is a bug or corrupted
// store: the caller must abort the process (exit code 1) rather than
// attempt recovery.
type InvariantError struct {
	Invariant string
	Detail    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("index: invariant %q violated: %s", e.Invariant, e.Detail)
}

// ErrWriterBusy is returned by Apply/RollbackTo when another call is
// already in flight (spec.md §4.6: "concurrent writes from different
// threads are rejected by the writer's own mutual-exclusion").
var ErrWriterBusy = fmt.Errorf("index: writer is busy with a concurrent apply/rollback")

// ErrBlockNotMonotonic is returned when Apply is called with a block
// number that does not strictly exceed the current head (spec.md §4.6:
// "block_number is strictly monotonic on apply").
var ErrBlockNotMonotonic = fmt.Errorf("index: block number is not strictly greater than the current head")
