package engine

import "errors"

// ErrMalformedResponse is returned when the inference output cannot be
// decoded or fails schema validation. The cycle counts as failed; the
// scheduler retries on its next tick.
var ErrMalformedResponse = errors.New("engine: malformed inference response")
