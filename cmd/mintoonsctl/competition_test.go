package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mintoons/internal/models"
)

func TestParseResults(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		ext      string
		wantLen  int
		wantRank int
		wantErr  bool
	}{
		{
			name:     "json document",
			data:     `{"results": [{"submissionId": 4, "rank": 1, "score": 97, "status": "winner"}]}`,
			ext:      ".json",
			wantLen:  1,
			wantRank: 1,
		},
		{
			name:     "json list",
			data:     `[{"submissionId": 4, "rank": 2}, {"submissionId": 5, "score": 40}]`,
			ext:      ".json",
			wantLen:  2,
			wantRank: 2,
		},
		{
			name:     "yaml document",
			data:     "results:\n  - submissionId: 4\n    rank: 3\n    status: winner\n",
			ext:      ".YAML",
			wantLen:  1,
			wantRank: 3,
		},
		{
			name:    "empty list",
			data:    `[]`,
			ext:     ".json",
			wantErr: true,
		},
		{
			name:    "garbage",
			data:    `not json`,
			ext:     ".json",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := parseResults([]byte(tt.data), tt.ext)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, results, tt.wantLen)
			assert.EqualValues(t, 4, results[0].SubmissionID)
			require.NotNil(t, results[0].Rank)
			assert.Equal(t, tt.wantRank, *results[0].Rank)
		})
	}
}

func TestParseResultsKeepsStatus(t *testing.T) {
	results, err := parseResults([]byte("- submissionId: 9\n  status: winner\n"), ".yml")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.SubmissionStatus("winner"), results[0].Status)
	assert.Nil(t, results[0].Rank)
}
