package boq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costquest/backend/internal/llm"
	"github.com/costquest/backend/internal/storage/models"
)

type fakeCompleter struct {
	reply string
	calls int
}

func (f *fakeCompleter) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.calls++
	return &llm.CompletionResponse{Content: f.reply}, nil
}

func TestGenerateDropsInvalidCategories(t *testing.T) {
	completer := &fakeCompleter{reply: `[
		{"item_number": 1, "description": "Excavation", "quantity": 12.5, "unit": "m3", "cost_category": "EARTHWORK", "unit_price": null, "amount": null},
		{"item_number": 2, "description": "Paint", "quantity": 4, "unit": "liters", "cost_category": "PAINTING WORK", "unit_price": null, "amount": null},
		{"item_number": 3, "description": "CHB 6 inch", "quantity": 350, "unit": "pcs", "cost_category": "MASONRY WORK", "unit_price": null, "amount": null}
	]`}

	gen := NewGenerator(completer)
	lines, err := gen.Generate(context.Background(), nil, ChallengeContext{ID: "ch-1"})
	require.NoError(t, err)

	require.Len(t, lines, 2)
	assert.Equal(t, "Excavation", lines[0].Description)
	assert.Equal(t, "CHB 6 inch", lines[1].Description)
}

func TestGenerateResequencesPerCategory(t *testing.T) {
	// The model numbered everything 7; numbering restarts at 1 per category.
	completer := &fakeCompleter{reply: `[
		{"item_number": 7, "description": "Excavation", "quantity": 10, "unit": "m3", "cost_category": "EARTHWORK"},
		{"item_number": 7, "description": "Cement", "quantity": 50, "unit": "bags", "cost_category": "CONCRETE WORK"},
		{"item_number": 7, "description": "Backfill", "quantity": 8, "unit": "m3", "cost_category": "EARTHWORK"},
		{"item_number": 7, "description": "Gravel", "quantity": 3, "unit": "m3", "cost_category": "CONCRETE WORK"}
	]`}

	gen := NewGenerator(completer)
	lines, err := gen.Generate(context.Background(), nil, ChallengeContext{ID: "ch-1"})
	require.NoError(t, err)
	require.Len(t, lines, 4)

	assert.Equal(t, 1, lines[0].ItemNumber) // Excavation
	assert.Equal(t, 1, lines[1].ItemNumber) // Cement
	assert.Equal(t, 2, lines[2].ItemNumber) // Backfill
	assert.Equal(t, 2, lines[3].ItemNumber) // Gravel
}

func TestGenerateCoercesQuantities(t *testing.T) {
	completer := &fakeCompleter{reply: `[
		{"description": "A", "quantity": "2.5", "unit": "m3", "cost_category": "EARTHWORK"},
		{"description": "B", "quantity": "approx. ten", "unit": "m3", "cost_category": "EARTHWORK"},
		{"description": "C", "quantity": -4, "unit": "m3", "cost_category": "EARTHWORK"},
		{"description": "D", "quantity": null, "unit": "m3", "cost_category": "EARTHWORK"}
	]`}

	gen := NewGenerator(completer)
	lines, err := gen.Generate(context.Background(), nil, ChallengeContext{ID: "ch-1"})
	require.NoError(t, err)
	require.Len(t, lines, 4)

	assert.Equal(t, 2.5, lines[0].Quantity)
	assert.Equal(t, 0.0, lines[1].Quantity)
	assert.Equal(t, 0.0, lines[2].Quantity)
	assert.Equal(t, 0.0, lines[3].Quantity)
}

func TestGenerateCanonicalizesUnits(t *testing.T) {
	completer := &fakeCompleter{reply: `[
		{"description": "Cement", "quantity": 50, "unit": "bags", "cost_category": "CONCRETE WORK"},
		{"description": "Plywood", "quantity": 20, "unit": "Sheets", "cost_category": "FORMWORK & SCAFFOLDING"},
		{"description": "Rebar", "quantity": 400, "unit": "kgs", "cost_category": "STEELWORK"},
		{"description": "Custom", "quantity": 1, "unit": "lot", "cost_category": "EARTHWORK"}
	]`}

	gen := NewGenerator(completer)
	lines, err := gen.Generate(context.Background(), nil, ChallengeContext{ID: "ch-1"})
	require.NoError(t, err)

	assert.Equal(t, "bag", lines[0].Unit)
	assert.Equal(t, "sheet", lines[1].Unit)
	assert.Equal(t, "kg", lines[2].Unit)
	// Unknown units pass through untouched.
	assert.Equal(t, "lot", lines[3].Unit)
}

func TestGenerateIgnoresModelPrices(t *testing.T) {
	// Even if the model disobeys and prices rows, the generated lines carry
	// no price fields at all.
	completer := &fakeCompleter{reply: `[
		{"description": "Cement", "quantity": 50, "unit": "bags", "cost_category": "CONCRETE WORK", "unit_price": 250, "amount": 12500}
	]`}

	gen := NewGenerator(completer)
	lines, err := gen.Generate(context.Background(), nil, ChallengeContext{ID: "ch-1"})
	require.NoError(t, err)
	require.Len(t, lines, 1)

	// Line has no UnitPrice/Amount fields; pricing happens downstream.
	assert.Equal(t, Line{
		ItemNumber:   1,
		Description:  "Cement",
		Quantity:     50,
		Unit:         "bag",
		CostCategory: CategoryConcrete,
	}, lines[0])
}

func TestGenerateMalformedReply(t *testing.T) {
	completer := &fakeCompleter{reply: `Sorry, I can't produce a bill of quantities for that.`}

	gen := NewGenerator(completer)
	_, err := gen.Generate(context.Background(), nil, ChallengeContext{ID: "ch-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrBadUpstreamJSON)
}

func TestGenerateElementsInPrompt(t *testing.T) {
	completer := &fakeCompleter{reply: `[]`}
	gen := NewGenerator(completer)

	elements := []models.StructuralElement{
		{ElementType: "wall", MaterialCategory: "concrete", Dimensions: "3m x 5m x 0.2m"},
	}
	lines, err := gen.Generate(context.Background(), elements, ChallengeContext{ID: "ch-1"})
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.Equal(t, 1, completer.calls)
}
