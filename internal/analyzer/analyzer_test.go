package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costquest/backend/internal/llm"
)

type fakeCompleter struct {
	reply string
}

func (f *fakeCompleter) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{Content: f.reply}, nil
}

func TestAnalyzePlanBareArray(t *testing.T) {
	a := NewAnalyzer(&fakeCompleter{reply: `[
		{"element_type": "wall", "material_category": "concrete", "dimensions": "3m x 5m x 0.2m", "coordinates": null},
		{"element_type": "column", "material_category": "concrete", "dimensions": "0.3m x 0.3m x 3m", "coordinates": {"x": 1, "y": 2}}
	]`})

	elements, confidence, err := a.AnalyzePlan(context.Background(), "https://files/plan.pdf")
	require.NoError(t, err)
	require.Len(t, elements, 2)
	assert.Equal(t, "wall", elements[0].ElementType)
	assert.Equal(t, DefaultConfidence, confidence)
}

func TestAnalyzePlanWrappedObject(t *testing.T) {
	a := NewAnalyzer(&fakeCompleter{reply: "```json\n" + `{
		"elements": [{"element_type": "beam", "material_category": "concrete", "dimensions": "6m"}],
		"confidence": 0.82
	}` + "\n```"})

	elements, confidence, err := a.AnalyzePlan(context.Background(), "https://files/plan.pdf")
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, "beam", elements[0].ElementType)
	assert.Equal(t, 0.82, confidence)
}

func TestAnalyzePlanWrappedWithoutConfidence(t *testing.T) {
	a := NewAnalyzer(&fakeCompleter{reply: `{"elements": [{"element_type": "slab"}]}`})

	elements, confidence, err := a.AnalyzePlan(context.Background(), "https://files/plan.pdf")
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, DefaultConfidence, confidence)
}

func TestAnalyzePlanClampsConfidence(t *testing.T) {
	a := NewAnalyzer(&fakeCompleter{reply: `{"elements": [], "confidence": 1.7}`})

	_, confidence, err := a.AnalyzePlan(context.Background(), "https://files/plan.pdf")
	require.NoError(t, err)
	assert.Equal(t, 1.0, confidence)
}

func TestAnalyzePlanMalformed(t *testing.T) {
	a := NewAnalyzer(&fakeCompleter{reply: `The drawing is too blurry to read.`})

	_, _, err := a.AnalyzePlan(context.Background(), "https://files/plan.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrBadUpstreamJSON)
}
