package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costquest/backend/internal/storage/models"
	"github.com/costquest/backend/internal/storage/sqlite"
)

func newTestLedger(t *testing.T) (*Ledger, *sqlite.Client) {
	t.Helper()

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())

	require.NoError(t, db.InsertChallenge(&models.Challenge{
		ID:        "ch-1",
		Name:      "Two-storey residence",
		CreatedAt: time.Now(),
	}))

	return New(db), db
}

func sampleItems() []Item {
	return []Item{
		{CostCategory: "CONCRETE WORK", MaterialName: "Portland cement 40kg", Quantity: 50, Unit: "bag", UnitPrice: 5, Amount: 999},
	}
}

func TestSaveEstimationComputesTotals(t *testing.T) {
	l, _ := newTestLedger(t)

	// Client-sent Amount (999) is ignored; totals derive from qty * price.
	estimate, err := l.SaveEstimation("s-1", "ch-1", sampleItems(), 0.10, false)
	require.NoError(t, err)

	assert.Equal(t, 250.0, estimate.SubtotalAmount)
	assert.Equal(t, 25.0, estimate.ContingencyAmount)
	assert.Equal(t, 275.0, estimate.TotalAmount)
	assert.Equal(t, "draft", estimate.Status)
	assert.Nil(t, estimate.SubmittedAt)
}

func TestSaveEstimationSubmit(t *testing.T) {
	l, _ := newTestLedger(t)

	estimate, err := l.SaveEstimation("s-1", "ch-1", sampleItems(), 0.10, true)
	require.NoError(t, err)

	assert.Equal(t, "submitted", estimate.Status)
	require.NotNil(t, estimate.SubmittedAt)
}

func TestSaveEstimationUpsertsAndReplacesItems(t *testing.T) {
	l, db := newTestLedger(t)

	first, err := l.SaveEstimation("s-1", "ch-1", []Item{
		{CostCategory: "CONCRETE WORK", MaterialName: "Cement", Quantity: 50, Unit: "bag", UnitPrice: 250},
		{CostCategory: "EARTHWORK", MaterialName: "Gravel", Quantity: 3, Unit: "m3", UnitPrice: 1200},
	}, 0.10, false)
	require.NoError(t, err)

	second, err := l.SaveEstimation("s-1", "ch-1", []Item{
		{CostCategory: "CONCRETE WORK", MaterialName: "Cement", Quantity: 60, Unit: "bag", UnitPrice: 250},
	}, 0.10, true)
	require.NoError(t, err)

	// Same (student, challenge) keeps one header row with a stable id.
	assert.Equal(t, first.ID, second.ID)

	saved, items, err := db.GetEstimateWithItems("s-1", "ch-1")
	require.NoError(t, err)
	assert.Equal(t, "submitted", saved.Status)
	assert.Equal(t, 15000.0, saved.SubtotalAmount)

	// The item set was replaced wholesale, not merged.
	require.Len(t, items, 1)
	assert.Equal(t, 60.0, items[0].Quantity)
}

func TestSaveEstimationUnknownChallenge(t *testing.T) {
	l, _ := newTestLedger(t)

	_, err := l.SaveEstimation("s-1", "missing", sampleItems(), 0.10, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlite.ErrChallengeNotFound)
}

func TestGetEstimationNotFound(t *testing.T) {
	l, _ := newTestLedger(t)

	_, _, err := l.GetEstimation("s-1", "ch-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlite.ErrEstimateNotFound)
}

func TestGetEstimationRoundTrip(t *testing.T) {
	l, _ := newTestLedger(t)

	_, err := l.SaveEstimation("s-1", "ch-1", sampleItems(), 0.05, false)
	require.NoError(t, err)

	estimate, items, err := l.GetEstimation("s-1", "ch-1")
	require.NoError(t, err)
	assert.Equal(t, 0.05, estimate.ContingencyPercentage)
	require.Len(t, items, 1)
	assert.Equal(t, "Portland cement 40kg", items[0].MaterialName)
	assert.Equal(t, 250.0, items[0].Amount)
}
