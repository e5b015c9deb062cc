package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costquest/backend/internal/analyzer"
	"github.com/costquest/backend/internal/boq"
	"github.com/costquest/backend/internal/llm"
	"github.com/costquest/backend/internal/pricing"
	"github.com/costquest/backend/internal/storage/models"
	"github.com/costquest/backend/internal/storage/sqlite"
)

// scriptedCompleter replays one reply per call: first the analyzer's, then
// the generator's.
type scriptedCompleter struct {
	replies []string
	call    int
}

func (s *scriptedCompleter) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	reply := s.replies[s.call]
	s.call++
	return &llm.CompletionResponse{Content: reply}, nil
}

type fixedMarket struct {
	price string
	calls int
}

func (f *fixedMarket) FetchListings(_ context.Context, q pricing.Query) ([]pricing.Listing, error) {
	f.calls++
	return []pricing.Listing{{Material: q.Material, Price: f.price}}, nil
}

const analyzerReply = `{
	"elements": [
		{"element_type": "wall", "material_category": "concrete", "dimensions": "3m x 5m"},
		{"element_type": "footing", "material_category": "concrete", "dimensions": "1m x 1m x 0.5m"}
	],
	"confidence": 0.9
}`

const generatorReply = `[
	{"description": "Excavation for footings", "quantity": 2, "unit": "m3", "cost_category": "EARTHWORK"},
	{"description": "Portland cement 40kg", "quantity": 3, "unit": "bags", "cost_category": "CONCRETE WORK"}
]`

func newTestPipeline(t *testing.T, completer llm.Completer, market pricing.MarketSource) (*Pipeline, *sqlite.Client) {
	t.Helper()

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())

	require.NoError(t, db.InsertChallenge(&models.Challenge{
		ID:           "ch-1",
		Name:         "Bungalow",
		SiteLocation: "Cebu, Philippines",
		FileURL:      "https://files/plan.pdf",
		CreatedAt:    time.Now(),
	}))

	agg := pricing.NewAggregator(market, nil, nil, nil, pricing.Config{
		ExcludedTerms:    []string{"steel beam"},
		ExcludedPrefixes: []string{"water"},
		DefaultLocation:  "Cebu, Philippines",
	})

	p := New(db, analyzer.NewAnalyzer(completer), boq.NewGenerator(completer), agg, Config{
		LaborRatio:       0.40,
		ContingencyRatio: 0.05,
	})

	return p, db
}

func TestRunFullPipeline(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{analyzerReply, generatorReply}}
	market := &fixedMarket{price: "₱100"}
	p, db := newTestPipeline(t, completer, market)

	result, err := p.Run(context.Background(), "ch-1", "")
	require.NoError(t, err)

	assert.Equal(t, 0.9, result.Confidence)
	assert.Len(t, result.Elements, 2)
	require.Len(t, result.Lines, 2)

	// qty 2 @100 and qty 3 @100.
	assert.Equal(t, 200.0, result.Lines[0].Amount)
	assert.Equal(t, 300.0, result.Lines[1].Amount)

	summary := result.Summary
	require.NotNil(t, summary)
	assert.Equal(t, 200.0, summary.EarthworkAmount)
	assert.Equal(t, 300.0, summary.ConcreteAmount)
	assert.Equal(t, 500.0, summary.TotalMaterialCost)
	assert.Equal(t, 200.0, summary.LaborCost)
	assert.Equal(t, 35.0, summary.ContingenciesAmount)
	assert.Equal(t, 735.0, summary.GrandTotalCost)

	// Everything the run produced is on disk.
	persisted, err := db.ListBoQLinesByChallenge("ch-1")
	require.NoError(t, err)
	assert.Len(t, persisted, 2)

	analysis, err := db.LatestAnalysis("ch-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", analysis.Status)
	assert.Equal(t, 0.9, analysis.OverallConfidence)

	saved, err := db.GetEstimateSummary("ch-1")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, 735.0, saved.GrandTotalCost)
}

func TestRunUnknownChallengeIsFatal(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{analyzerReply, generatorReply}}
	p, _ := newTestPipeline(t, completer, &fixedMarket{price: "₱100"})

	_, err := p.Run(context.Background(), "missing", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlite.ErrChallengeNotFound)
	// The pipeline never reached the reasoning service.
	assert.Equal(t, 0, completer.call)
}

func TestRunUnpricedLinesKeepZeroAmount(t *testing.T) {
	reply := `[
		{"description": "Water for compaction", "quantity": 500, "unit": "liters", "cost_category": "EARTHWORK"}
	]`
	completer := &scriptedCompleter{replies: []string{analyzerReply, reply}}
	market := &fixedMarket{price: "₱100"}
	p, _ := newTestPipeline(t, completer, market)

	result, err := p.Run(context.Background(), "ch-1", "")
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)

	// Gated description: no market call, nil unit price, zero amount.
	assert.Equal(t, 0, market.calls)
	assert.Nil(t, result.Lines[0].UnitPrice)
	assert.Equal(t, 0.0, result.Lines[0].Amount)
	assert.Equal(t, 0.0, result.Summary.GrandTotalCost)
}

func TestRunMarkedFailedOnGeneratorError(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{analyzerReply, "not json at all"}}
	p, db := newTestPipeline(t, completer, &fixedMarket{price: "₱100"})

	_, err := p.Run(context.Background(), "ch-1", "")
	require.Error(t, err)

	analysis, dbErr := db.LatestAnalysis("ch-1")
	require.NoError(t, dbErr)
	assert.Equal(t, "failed", analysis.Status)
}

func TestSaveCuratedReconciles(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{analyzerReply, generatorReply}}
	p, db := newTestPipeline(t, completer, &fixedMarket{price: "₱100"})

	result, err := p.Run(context.Background(), "ch-1", "")
	require.NoError(t, err)
	require.Len(t, result.Lines, 2)

	kept := result.Lines[0]
	kept.Quantity = 10
	kept.Amount = 1000

	added := models.BoQLine{
		ItemNumber:   1,
		Description:  "Gravel bedding",
		Quantity:     1,
		Unit:         "m3",
		CostCategory: "CONCRETE WORK",
		Amount:       1500,
	}

	// Keep the first line (edited), drop the second, add a new one.
	summary, err := p.SaveCurated("ch-1", "", []models.BoQLine{kept, added})
	require.NoError(t, err)

	persisted, err := db.ListBoQLinesByChallenge("ch-1")
	require.NoError(t, err)
	require.Len(t, persisted, 2)

	byID := make(map[string]models.BoQLine)
	for _, l := range persisted {
		byID[l.ID] = l
	}
	require.Contains(t, byID, kept.ID)
	assert.Equal(t, 10.0, byID[kept.ID].Quantity)
	assert.NotContains(t, byID, result.Lines[1].ID)

	// Summary rebuilt from surviving lines: 1000 + 1500 material.
	assert.Equal(t, 2500.0, summary.TotalMaterialCost)
	assert.Equal(t, 1000.0, summary.LaborCost)
	assert.Equal(t, 175.0, summary.ContingenciesAmount)
	assert.Equal(t, 3675.0, summary.GrandTotalCost)
}

func TestSaveCuratedNoRunsIsAnError(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{analyzerReply, generatorReply}}
	p, _ := newTestPipeline(t, completer, &fixedMarket{price: "₱100"})

	_, err := p.SaveCurated("ch-1", "", []models.BoQLine{{Description: "x", CostCategory: "EARTHWORK"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlite.ErrNoAnalysis)
}
