package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() Result {
	return Result{
		JobID:  "job-1",
		Status: JobSucceeded,
		Blocks: []Block{
			{ID: "p1", Type: BlockPage, Page: 1},
			{ID: "l1", Type: BlockLine, Text: "Rechnungsnummer: RE-1", Confidence: 99},
			{ID: "l2", Type: BlockLine, Text: "  ", Confidence: 50},
			{ID: "l3", Type: BlockLine, Text: "Total 10,00", Confidence: 95},
			{ID: "w1", Type: BlockWord, Text: "Invoice"},
			{ID: "w2", Type: BlockWord, Text: "No."},
			{ID: "w3", Type: BlockWord, Text: "RE-1"},
			{ID: "k1", Type: BlockKeyValueSet, EntityTypes: []string{EntityKey}, Children: []string{"w1", "w2"}, Values: []string{"v1"}},
			{ID: "v1", Type: BlockKeyValueSet, EntityTypes: []string{EntityValue}, Children: []string{"w3"}},
		},
	}
}

func TestResultLinesSkipsBlank(t *testing.T) {
	assert.Equal(t, []string{"Rechnungsnummer: RE-1", "Total 10,00"}, sampleResult().Lines())
}

func TestResultKeyValues(t *testing.T) {
	assert.Equal(t, []KeyValue{{Key: "Invoice No.", Value: "RE-1"}}, sampleResult().KeyValues())
}

func TestResultConfidence(t *testing.T) {
	c := sampleResult().Confidence()
	require.NotNil(t, c)
	assert.InDelta(t, (99.0+50+95)/3/100, *c, 1e-9)

	assert.Nil(t, Result{}.Confidence())
}
