package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/costquest/backend/internal/storage/models"
	"github.com/costquest/backend/internal/storage/sqlite"
	"github.com/costquest/backend/pkg/logger"
)

// Ledger owns the student-side estimate lifecycle: save a draft, save a
// submission, fetch back. One estimate per (student, challenge); saves
// replace the item set wholesale and serialize per pair so concurrent saves
// can't interleave header and items.
type Ledger struct {
	db    *sqlite.Client
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(db *sqlite.Client) *Ledger {
	return &Ledger{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}
}

// Item is one estimate row as submitted by the student. Unlike AI lines,
// student unit prices are their own claims and are stored as given.
type Item struct {
	CostCategory string  `json:"cost_category"`
	MaterialName string  `json:"material_name"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
	UnitPrice    float64 `json:"unit_price"`
	Amount       float64 `json:"amount"`
}

// SaveEstimation upserts the student's estimate for a challenge. Totals are
// recomputed server-side from the items; client-sent totals are ignored.
// submit=true marks the estimate submitted and stamps the submission time;
// submit=false keeps (or returns it to) draft.
func (l *Ledger) SaveEstimation(studentID, challengeID string, items []Item, contingencyPct float64, submit bool) (*models.CostEstimate, error) {
	lock := l.pairLock(studentID, challengeID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := l.db.GetChallenge(challengeID); err != nil {
		return nil, err
	}

	subtotal := 0.0
	rows := make([]models.CostEstimateItem, 0, len(items))
	for _, it := range items {
		amount := round2(it.Quantity * it.UnitPrice)
		subtotal += amount
		rows = append(rows, models.CostEstimateItem{
			CostCategory: it.CostCategory,
			MaterialName: it.MaterialName,
			Quantity:     it.Quantity,
			Unit:         it.Unit,
			UnitPrice:    it.UnitPrice,
			Amount:       amount,
		})
	}
	subtotal = round2(subtotal)
	contingency := round2(subtotal * contingencyPct)
	total := round2(subtotal + contingency)

	estimate := &models.CostEstimate{
		ID:                    uuid.New().String(),
		StudentID:             studentID,
		ChallengeID:           challengeID,
		Status:                "draft",
		SubtotalAmount:        subtotal,
		ContingencyPercentage: contingencyPct,
		ContingencyAmount:     contingency,
		TotalAmount:           total,
	}
	if submit {
		now := time.Now()
		estimate.Status = "submitted"
		estimate.SubmittedAt = &now
	}

	estimateID, err := l.db.UpsertCostEstimate(estimate)
	if err != nil {
		return nil, err
	}
	estimate.ID = estimateID

	if err := l.db.ReplaceEstimateItems(estimateID, rows); err != nil {
		return nil, err
	}

	logger.Info("Student estimate saved",
		zap.String("student_id", studentID),
		zap.String("challenge_id", challengeID),
		zap.String("status", estimate.Status),
		zap.Int("items", len(rows)),
		zap.Float64("total", total),
	)

	return estimate, nil
}

// GetEstimation returns the student's saved estimate with its items.
func (l *Ledger) GetEstimation(studentID, challengeID string) (*models.CostEstimate, []models.CostEstimateItem, error) {
	return l.db.GetEstimateWithItems(studentID, challengeID)
}

func (l *Ledger) pairLock(studentID, challengeID string) *sync.Mutex {
	key := studentID + "|" + challengeID

	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[key] = lock
	}
	return lock
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
