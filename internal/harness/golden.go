package harness

import (
	"context"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/docql/internal/value"
)

// Snapshot renders the compiled statement of a result: the SQL on one
// line, the parameters as a JSON array on the next.
func Snapshot(result *Result) ([]byte, error) {
	if result.Err != nil {
		return nil, fmt.Errorf("query was rejected: %w", result.Err)
	}
	params, err := value.MarshalPlain(result.Params)
	if err != nil {
		return nil, err
	}
	return []byte(result.SQL + "\n" + string(params) + "\n"), nil
}

// RunWithGolden executes a scenario and compares its compiled statement
// against testdata/golden/{name}.golden, where name is the scenario's
// golden name or, failing that, its name.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can check Pass. Test failure (via goldie)
// occurs if the statement doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.goldenName(), result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's statement against a golden
// file, without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snap, err := Snapshot(result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snap)
	return nil
}
