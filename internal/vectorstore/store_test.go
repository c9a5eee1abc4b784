package vectorstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestValidateCollectionName(t *testing.T) {
	valid := []string{"knowledge_consolidator", "a", "col_123"}
	for _, name := range valid {
		assert.NoError(t, ValidateCollectionName(name), name)
	}

	invalid := []string{"", "Uppercase", "has space", "has-dash", "../etc", "über"}
	for _, name := range invalid {
		assert.ErrorIs(t, ValidateCollectionName(name), ErrInvalidCollectionName, name)
	}
}

func TestIsTransientError(t *testing.T) {
	assert.False(t, IsTransientError(nil))
	assert.False(t, IsTransientError(errors.New("plain error")))

	transient := []grpccodes.Code{
		grpccodes.Unavailable,
		grpccodes.DeadlineExceeded,
		grpccodes.Aborted,
		grpccodes.ResourceExhausted,
	}
	for _, code := range transient {
		assert.True(t, IsTransientError(status.Error(code, "x")), code.String())
	}

	permanent := []grpccodes.Code{
		grpccodes.InvalidArgument,
		grpccodes.NotFound,
		grpccodes.PermissionDenied,
		grpccodes.Unauthenticated,
	}
	for _, code := range permanent {
		assert.False(t, IsTransientError(status.Error(code, "x")), code.String())
	}
}

func TestExternalRecords(t *testing.T) {
	results := []SearchResult{
		{
			ID:    "doc-1",
			Score: 0.91,
			Metadata: map[string]interface{}{
				"sourceFile":     "report-final.md",
				"relevanceScore": 32.5,
				"categories":     []string{"ai/ml"},
			},
		},
		{
			ID:    "doc-2",
			Score: 0.42,
			Metadata: map[string]interface{}{
				"file": "notes.md",
			},
		},
	}

	records := ExternalRecords(results)
	if assert.Len(t, records, 2) {
		assert.Equal(t, "doc-1", records[0].ExternalID)
		assert.Equal(t, 32.5, records[0].RawScore)
		assert.Equal(t, "report-final.md", records[0].Payload["sourceFile"])

		// No relevance field: similarity stands in.
		assert.Equal(t, "doc-2", records[1].ExternalID)
		assert.InDelta(t, 0.42, records[1].RawScore, 1e-6)
	}
}

func TestExternalRecordsScoreFieldPriority(t *testing.T) {
	records := ExternalRecords([]SearchResult{{
		ID:    "doc-3",
		Score: 0.5,
		Metadata: map[string]interface{}{
			"relevanceScore": int64(40),
			"score":          1.0,
		},
	}})
	assert.Equal(t, 40.0, records[0].RawScore)
}

func TestExternalRecordsEmpty(t *testing.T) {
	assert.Empty(t, ExternalRecords(nil))
}
