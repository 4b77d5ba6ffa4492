package harness

import "github.com/roach88/sieve/internal/filter"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all assertions hold.
	Pass bool `json:"pass"`

	// Trace is the recorded adapter calls, one per line. Empty when the
	// filter was rejected.
	Trace string `json:"trace"`

	// Rejection is the validation error, if the filter was rejected.
	Rejection *filter.ValidationError `json:"rejection,omitempty"`

	// SQL and Args are the rendered statement.
	SQL  string `json:"sql,omitempty"`
	Args []any  `json:"args,omitempty"`

	// Executed is set when the statement ran; IDs then holds the primary
	// keys returned.
	Executed bool  `json:"executed"`
	IDs      []any `json:"ids,omitempty"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Accepted reports whether the filter compiled.
func (r *Result) Accepted() bool {
	return r.Rejection == nil
}
