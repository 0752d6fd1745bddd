package harness

// TraceEvent is one processed step.
type TraceEvent struct {
	Seq     int64
	Kind    string
	Bid     string
	Caller  string
	Outcome string

	// Receipt is set for claims that settled.
	Receipt *TraceReceipt
}

// TraceReceipt is the settlement recorded in the trace.
type TraceReceipt struct {
	Winner bool
	Shares uint64
	Cost   string
	Refund string
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step and assertion matched.
	Pass bool

	// Trace lists processed steps in order.
	Trace []TraceEvent

	// Errors describes each mismatch.
	Errors []string
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
