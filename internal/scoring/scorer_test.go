package scoring

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costquest/backend/internal/llm"
	"github.com/costquest/backend/internal/storage/models"
	"github.com/costquest/backend/internal/storage/sqlite"
)

type fakeCompleter struct {
	reply string
}

func (f *fakeCompleter) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{Content: f.reply}, nil
}

func newTestDB(t *testing.T) *sqlite.Client {
	t.Helper()

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())

	require.NoError(t, db.InsertChallenge(&models.Challenge{
		ID:        "ch-1",
		Name:      "Bungalow",
		CreatedAt: time.Now(),
	}))

	id, err := db.UpsertCostEstimate(&models.CostEstimate{
		ID:             "est-1",
		StudentID:      "s-1",
		ChallengeID:    "ch-1",
		Status:         "submitted",
		SubtotalAmount: 250,
		TotalAmount:    275,
	})
	require.NoError(t, err)
	require.NoError(t, db.ReplaceEstimateItems(id, []models.CostEstimateItem{
		{CostCategory: "CONCRETE WORK", MaterialName: "Cement", Quantity: 50, Unit: "bag", UnitPrice: 5, Amount: 250},
	}))

	return db
}

func TestScorePersistsAccuracy(t *testing.T) {
	db := newTestDB(t)
	s := NewScorer(db, &fakeCompleter{reply: "```json\n" + `{
		"final_accuracy": 87.5,
		"feedback": "Good coverage of concrete work."
	}` + "\n```"})

	result, err := s.Score(context.Background(), "s-1", "ch-1")
	require.NoError(t, err)
	assert.Equal(t, 87.5, result.Accuracy)

	record, err := db.GetAccuracy("s-1", "ch-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 87.5, record.Accuracy)
	assert.Contains(t, record.Details, "final_accuracy")
}

func TestScoreCoercesStringAccuracy(t *testing.T) {
	db := newTestDB(t)
	s := NewScorer(db, &fakeCompleter{reply: `{"final_accuracy": "72.5"}`})

	result, err := s.Score(context.Background(), "s-1", "ch-1")
	require.NoError(t, err)
	assert.Equal(t, 72.5, result.Accuracy)
}

func TestScoreMissingAccuracyDefaultsToZero(t *testing.T) {
	db := newTestDB(t)
	s := NewScorer(db, &fakeCompleter{reply: `{"feedback": "no score today"}`})

	result, err := s.Score(context.Background(), "s-1", "ch-1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.Accuracy)
}

func TestScoreUpsertsOnRescore(t *testing.T) {
	db := newTestDB(t)

	_, err := NewScorer(db, &fakeCompleter{reply: `{"final_accuracy": 60}`}).
		Score(context.Background(), "s-1", "ch-1")
	require.NoError(t, err)

	_, err = NewScorer(db, &fakeCompleter{reply: `{"final_accuracy": 80}`}).
		Score(context.Background(), "s-1", "ch-1")
	require.NoError(t, err)

	record, err := db.GetAccuracy("s-1", "ch-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 80.0, record.Accuracy)
}

func TestScoreWithoutEstimate(t *testing.T) {
	db := newTestDB(t)
	s := NewScorer(db, &fakeCompleter{reply: `{"final_accuracy": 50}`})

	_, err := s.Score(context.Background(), "s-2", "ch-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlite.ErrEstimateNotFound)
}

func TestScoreMalformedReply(t *testing.T) {
	db := newTestDB(t)
	s := NewScorer(db, &fakeCompleter{reply: `the student did fine I suppose`})

	_, err := s.Score(context.Background(), "s-1", "ch-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrBadUpstreamJSON)
}
