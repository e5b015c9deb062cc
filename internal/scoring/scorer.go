package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/costquest/backend/internal/llm"
	"github.com/costquest/backend/internal/metrics"
	"github.com/costquest/backend/internal/storage/models"
	"github.com/costquest/backend/internal/storage/sqlite"
	"github.com/costquest/backend/pkg/logger"
)

// Scorer grades a student's submitted estimate against the AI reference for
// the same challenge. The comparison itself is delegated to the reasoning
// service; the scorer only assembles both sides, coerces the score, and
// persists it.
type Scorer struct {
	db        *sqlite.Client
	completer llm.Completer
}

func NewScorer(db *sqlite.Client, completer llm.Completer) *Scorer {
	return &Scorer{db: db, completer: completer}
}

// Result is the stored outcome of one scoring run. Details carries the
// service's full breakdown verbatim for the frontend to render.
type Result struct {
	Accuracy float64         `json:"accuracy"`
	Details  json.RawMessage `json:"details"`
}

type scoreReply struct {
	FinalAccuracy interface{} `json:"final_accuracy"`
}

// Score compares the student's estimate for a challenge with the AI
// reference and upserts the accuracy record for that (student, challenge)
// pair. An unparseable or missing final_accuracy stores as 0, not an error.
func (s *Scorer) Score(ctx context.Context, studentID, challengeID string) (*Result, error) {
	estimate, items, err := s.db.GetEstimateWithItems(studentID, challengeID)
	if err != nil {
		return nil, err
	}

	aiLines, err := s.db.ListBoQLinesByChallenge(challengeID)
	if err != nil {
		return nil, err
	}
	aiSummary, err := s.db.GetEstimateSummary(challengeID)
	if err != nil {
		return nil, err
	}

	prompt, err := buildScoringPrompt(estimate, items, aiLines, aiSummary)
	if err != nil {
		return nil, err
	}

	resp, err := s.completer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: scorerSystemPrompt,
		UserPrompt:   prompt,
		Temperature:  0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to score estimate: %w", err)
	}

	details := llm.StripCodeFence(resp.Content)

	var reply scoreReply
	if err := llm.ExtractJSONObject(details, &reply); err != nil {
		return nil, err
	}
	accuracy := coerceAccuracy(reply.FinalAccuracy)

	if err := s.db.UpsertAccuracy(&models.AccuracyRecord{
		ID:          uuid.New().String(),
		StudentID:   studentID,
		ChallengeID: challengeID,
		Accuracy:    accuracy,
		Details:     details,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}); err != nil {
		return nil, err
	}

	metrics.AccuracyScores.Observe(accuracy)
	logger.Info("Estimate scored",
		zap.String("student_id", studentID),
		zap.String("challenge_id", challengeID),
		zap.Float64("accuracy", accuracy),
	)

	return &Result{Accuracy: accuracy, Details: json.RawMessage(details)}, nil
}

// coerceAccuracy accepts number or numeric string; anything else scores 0.
func coerceAccuracy(v interface{}) float64 {
	switch a := v.(type) {
	case float64:
		return a
	case string:
		var f float64
		if _, err := fmt.Sscanf(a, "%f", &f); err == nil {
			return f
		}
		return 0
	case json.Number:
		f, err := a.Float64()
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

const scorerSystemPrompt = `You are a construction estimating instructor grading a student's cost estimate against a reference estimate.`

func buildScoringPrompt(estimate *models.CostEstimate, items []models.CostEstimateItem,
	aiLines []models.BoQLine, aiSummary *models.EstimateSummary) (string, error) {

	studentJSON, err := json.MarshalIndent(map[string]interface{}{
		"subtotal_amount":        estimate.SubtotalAmount,
		"contingency_percentage": estimate.ContingencyPercentage,
		"contingency_amount":     estimate.ContingencyAmount,
		"total_amount":           estimate.TotalAmount,
		"items":                  itemsForPrompt(items),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode student estimate: %w", err)
	}

	referenceJSON, err := json.MarshalIndent(map[string]interface{}{
		"summary": aiSummary,
		"lines":   linesForPrompt(aiLines),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode reference estimate: %w", err)
	}

	return fmt.Sprintf(`Compare the student's estimate with the reference estimate.

### Student estimate
%s

### Reference estimate
%s

Grade on:
- item coverage (did the student include the materials the reference has),
- quantity accuracy per matched item,
- unit price reasonableness,
- total cost deviation.

Return a raw JSON object ONLY:
{
  "final_accuracy": <number 0-100>,
  "category_scores": {"<category>": <number 0-100>, ...},
  "missing_items": ["<description>", ...],
  "quantity_issues": ["<description>", ...],
  "feedback": "<2-4 sentences of constructive feedback for the student>"
}`, studentJSON, referenceJSON), nil
}

func itemsForPrompt(items []models.CostEstimateItem) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(items))
	for _, it := range items {
		out = append(out, map[string]interface{}{
			"cost_category": it.CostCategory,
			"material_name": it.MaterialName,
			"quantity":      it.Quantity,
			"unit":          it.Unit,
			"unit_price":    it.UnitPrice,
			"amount":        it.Amount,
		})
	}
	return out
}

func linesForPrompt(lines []models.BoQLine) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(lines))
	for _, l := range lines {
		row := map[string]interface{}{
			"cost_category": l.CostCategory,
			"description":   l.Description,
			"quantity":      l.Quantity,
			"unit":          l.Unit,
			"amount":        l.Amount,
		}
		if l.UnitPrice != nil {
			row["unit_price"] = *l.UnitPrice
		}
		out = append(out, row)
	}
	return out
}
