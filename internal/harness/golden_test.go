package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docql/internal/value"
)

// To regenerate the golden files, run:
//
//	go test ./internal/harness -run TestRunWithGolden -update
func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"users_recent_active", "nor_missing_field"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestSnapshot(t *testing.T) {
	snap, err := Snapshot(&Result{
		SQL:    `SELECT id, body FROM "docs" WHERE _n = ? ORDER BY id ASC`,
		Params: []value.Value{value.Integer(3)},
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, body FROM \"docs\" WHERE _n = ? ORDER BY id ASC\n[3]\n", string(snap))
}

func TestSnapshot_RejectedQuery(t *testing.T) {
	_, err := Snapshot(&Result{Err: assert.AnError})
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}
