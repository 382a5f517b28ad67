package pipeline

import "errors"

// ErrCancelled is returned from a run that observed a cancellation
// request at a progress checkpoint. Callers classify run outcomes
// with errors.Is, never by matching error text.
var ErrCancelled = errors.New("job cancelled")
