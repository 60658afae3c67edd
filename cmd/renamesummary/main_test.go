package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	input := strings.Join([]string{
		`{"session_id":"s1","timestamp":"2026-01-02T10:00:00Z","event":"table_renamed","source":"/data","table":"tenders","extra_json":{"from":"tenders","to":"Tenders"}}`,
		`{"session_id":"s1","timestamp":"2026-01-02T10:05:00Z","event":"table_renamed","source":"/data","table":"tenders","extra_json":{"from":"Tenders","to":"Tender notices"}}`,
		`not json`,
		``,
		`{"session_id":"s2","timestamp":"2026-01-03T09:00:00Z","event":"table_renamed","source":"/data","table":"awards","extra_json":{"from":"awards","to":"Awards"}}`,
		`{"session_id":"s2","timestamp":"2026-01-03T09:01:00Z","event":"export_requested","source":"/data"}`,
	}, "\n")

	report, err := summarize(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Sessions)
	assert.Equal(t, 1, report.Exports)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Tables, 2)

	assert.Equal(t, "awards", report.Tables[0].Table)
	tenders := report.Tables[1]
	assert.Equal(t, 2, tenders.Renames)
	assert.Equal(t, "tenders", tenders.FirstName)
	assert.Equal(t, "Tender notices", tenders.LastName)
}
