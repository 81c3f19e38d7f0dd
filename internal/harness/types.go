package harness

import "github.com/roach88/docql/internal/value"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every assertion held and the store
	// agreed with the reference evaluator.
	Pass bool `json:"pass"`

	// SQL and Params are the compiled SELECT, as written to golden files.
	SQL    string        `json:"sql,omitempty"`
	Params []value.Value `json:"-"`

	// IDs is the first page returned by the store.
	IDs []string `json:"ids"`

	// Count is the number of matching documents, ignoring options.
	Count int64 `json:"count"`

	// Pages is the store's cursor walk. Empty unless the query is sorted
	// and limited.
	Pages [][]string `json:"pages,omitempty"`

	// Err is the translation error of a rejected query.
	Err error `json:"-"`

	// Errors contains assertion and disagreement messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
