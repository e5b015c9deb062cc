package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costquest/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	c, err := NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	require.NoError(t, c.InitSchema())
	return c
}

func TestChallengeRoundTrip(t *testing.T) {
	c := newTestClient(t)

	in := &models.Challenge{
		ID:           "ch-1",
		Name:         "Bungalow",
		Objectives:   "Estimate the full structure",
		SiteLocation: "Cebu, Philippines",
		FileURL:      "https://files/plan.pdf",
		CreatedAt:    time.Now(),
	}
	require.NoError(t, c.InsertChallenge(in))

	out, err := c.GetChallenge("ch-1")
	require.NoError(t, err)
	assert.Equal(t, in.Name, out.Name)
	assert.Equal(t, in.SiteLocation, out.SiteLocation)

	_, err = c.GetChallenge("missing")
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestUpsertEstimateSummaryReplaces(t *testing.T) {
	c := newTestClient(t)

	require.NoError(t, c.UpsertEstimateSummary(&models.EstimateSummary{
		ID:             "sum-1",
		ChallengeID:    "ch-1",
		AnalysisID:     "an-1",
		GrandTotalCost: 1000,
		CreatedAt:      time.Now(),
	}))
	require.NoError(t, c.UpsertEstimateSummary(&models.EstimateSummary{
		ID:             "sum-2",
		ChallengeID:    "ch-1",
		AnalysisID:     "an-2",
		GrandTotalCost: 2000,
		CreatedAt:      time.Now(),
	}))

	s, err := c.GetEstimateSummary("ch-1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "an-2", s.AnalysisID)
	assert.Equal(t, 2000.0, s.GrandTotalCost)

	// Absent summary is nil, not an error.
	s, err = c.GetEstimateSummary("other")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestMaterialsPriceBook(t *testing.T) {
	c := newTestClient(t)

	teacherRow := &models.MaterialPrice{
		Material: "Portland cement 40kg", Unit: "bag", Price: "₱250", TeacherID: "t-1",
	}
	require.NoError(t, c.InsertMaterialPrice(teacherRow))
	require.NotZero(t, teacherRow.ID)

	// Aggregator-logged row: no teacher attached.
	require.NoError(t, c.InsertMaterialPrice(&models.MaterialPrice{
		Material: "Gravel", Unit: "m3", Price: "₱1,200",
	}))

	all, err := c.ListAllTeacherMaterials()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Portland cement 40kg", all[0].Material)

	mine, err := c.ListTeacherMaterials("t-1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	teacherRow.Price = "₱265"
	require.NoError(t, c.UpdateMaterialPrice(teacherRow.ID, teacherRow))

	mine, err = c.ListTeacherMaterials("t-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "₱265", mine[0].Price)

	require.NoError(t, c.DeleteMaterialPrice(teacherRow.ID))
	mine, err = c.ListTeacherMaterials("t-1")
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestAnalysisLifecycle(t *testing.T) {
	c := newTestClient(t)

	_, err := c.LatestAnalysis("ch-1")
	assert.ErrorIs(t, err, ErrNoAnalysis)

	require.NoError(t, c.InsertAnalysis(&models.Analysis{
		ID: "an-1", ChallengeID: "ch-1", Status: "running", CreatedAt: time.Now().Add(-time.Minute),
	}))
	require.NoError(t, c.InsertAnalysis(&models.Analysis{
		ID: "an-2", ChallengeID: "ch-1", Status: "running", CreatedAt: time.Now(),
	}))

	require.NoError(t, c.UpdateAnalysisConfidence("an-2", 0.8))
	require.NoError(t, c.UpdateAnalysisStatus("an-2", "completed"))

	latest, err := c.LatestAnalysis("ch-1")
	require.NoError(t, err)
	assert.Equal(t, "an-2", latest.ID)
	assert.Equal(t, 0.8, latest.OverallConfidence)
	assert.Equal(t, "completed", latest.Status)
}
