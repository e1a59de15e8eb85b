package hook

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Outcome records one handler invocation inside a dispatch.
type Outcome struct {
	HandlerID ulid.ULID
	Owner     string
	Name      string
	Duration  time.Duration
	Err       error // nil on success
}

// Result aggregates a single dispatch: the final payload and the
// per-handler outcomes in invocation order.
type Result struct {
	ID       ulid.ULID
	Hook     string
	Kind     Kind
	Payload  any
	Outcomes []Outcome
}

// OK reports whether every invoked handler succeeded.
func (r *Result) OK() bool {
	for _, o := range r.Outcomes {
		if o.Err != nil {
			return false
		}
	}
	return true
}

// Failures returns the outcomes of handlers that returned an error.
func (r *Result) Failures() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}
