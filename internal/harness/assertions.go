package harness

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/docql/internal/querysql"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	SQL      string // Compiled SELECT, empty for rejected queries
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.SQL != "" {
		fmt.Fprintf(&buf, "  SQL: %s\n", e.SQL)
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns
// the failure messages. A rejected query fails every assertion other
// than error.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for _, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func evaluateAssertion(result *Result, a Assertion) error {
	if a.Type == AssertError {
		return assertError(result, a)
	}
	if result.Err != nil {
		return &AssertionError{
			Type:     a.Type,
			Expected: "query to compile",
			Actual:   result.Err.Error(),
		}
	}

	switch a.Type {
	case AssertIDs:
		return assertIDs(result, a)
	case AssertContains:
		return assertContains(result, a)
	case AssertExcludes:
		return assertExcludes(result, a)
	case AssertCount:
		return assertCount(result, a)
	case AssertPages:
		return assertPages(result, a)
	case AssertSQLContains:
		return assertSQLContains(result, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// assertIDs checks the first page, order included.
func assertIDs(result *Result, a Assertion) error {
	// nil and empty both mean "no documents".
	if len(a.IDs) == 0 && len(result.IDs) == 0 {
		return nil
	}
	if slices.Equal(result.IDs, a.IDs) {
		return nil
	}
	return &AssertionError{
		Type:     AssertIDs,
		Expected: fmt.Sprintf("%v", a.IDs),
		Actual:   fmt.Sprintf("%v", result.IDs),
		SQL:      result.SQL,
	}
}

// assertContains checks that every listed id is on the first page.
func assertContains(result *Result, a Assertion) error {
	var missing []string
	for _, id := range a.IDs {
		if !slices.Contains(result.IDs, id) {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertContains,
		Expected: fmt.Sprintf("page containing %v", a.IDs),
		Actual:   fmt.Sprintf("%v (missing %v)", result.IDs, missing),
		SQL:      result.SQL,
	}
}

// assertExcludes checks that no listed id is on the first page.
func assertExcludes(result *Result, a Assertion) error {
	var present []string
	for _, id := range a.IDs {
		if slices.Contains(result.IDs, id) {
			present = append(present, id)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertExcludes,
		Expected: fmt.Sprintf("page without %v", a.IDs),
		Actual:   fmt.Sprintf("%v (found %v)", result.IDs, present),
		SQL:      result.SQL,
	}
}

func assertCount(result *Result, a Assertion) error {
	if result.Count == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertCount,
		Expected: fmt.Sprintf("%d", *a.Count),
		Actual:   fmt.Sprintf("%d", result.Count),
		SQL:      result.SQL,
	}
}

func assertPages(result *Result, a Assertion) error {
	if equalPages(result.Pages, a.Pages) {
		return nil
	}
	return &AssertionError{
		Type:     AssertPages,
		Expected: fmt.Sprintf("%v", a.Pages),
		Actual:   fmt.Sprintf("%v", result.Pages),
		SQL:      result.SQL,
	}
}

func assertSQLContains(result *Result, a Assertion) error {
	if strings.Contains(result.SQL, a.Text) {
		return nil
	}
	return &AssertionError{
		Type:     AssertSQLContains,
		Expected: fmt.Sprintf("SQL containing %q", a.Text),
		Actual:   result.SQL,
	}
}

// assertError checks the translation error kind.
func assertError(result *Result, a Assertion) error {
	var te *querysql.TranslateError
	if errors.As(result.Err, &te) && string(te.Kind) == a.Kind {
		return nil
	}
	actual := "query compiled"
	if result.Err != nil {
		actual = result.Err.Error()
	}
	return &AssertionError{
		Type:     AssertError,
		Expected: fmt.Sprintf("%s error", a.Kind),
		Actual:   actual,
		SQL:      result.SQL,
	}
}
