package suggest

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/costquest/backend/internal/llm"
	"github.com/costquest/backend/internal/storage/models"
	"github.com/costquest/backend/internal/storage/sqlite"
	"github.com/costquest/backend/pkg/logger"
)

// Suggester generates study hints for a student working a challenge:
// directional nudges toward what the reference estimate covers, without
// revealing its numbers.
type Suggester struct {
	db        *sqlite.Client
	completer llm.Completer
}

func NewSuggester(db *sqlite.Client, completer llm.Completer) *Suggester {
	return &Suggester{db: db, completer: completer}
}

// Suggest returns plain-text guidance for the student's current draft. The
// reply is prose, not JSON; it is passed through as-is.
func (s *Suggester) Suggest(ctx context.Context, studentID, challengeID string) (string, error) {
	challenge, err := s.db.GetChallenge(challengeID)
	if err != nil {
		return "", err
	}

	aiLines, err := s.db.ListBoQLinesByChallenge(challengeID)
	if err != nil {
		return "", err
	}

	// Drafts are optional here; a student may ask for hints before saving.
	var items []models.CostEstimateItem
	if _, draftItems, err := s.db.GetEstimateWithItems(studentID, challengeID); err == nil {
		items = draftItems
	}

	prompt, err := buildSuggestPrompt(challenge, aiLines, items)
	if err != nil {
		return "", err
	}

	resp, err := s.completer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: suggesterSystemPrompt,
		UserPrompt:   prompt,
		Temperature:  0.5,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate suggestions: %w", err)
	}

	logger.Info("Suggestions generated",
		zap.String("student_id", studentID),
		zap.String("challenge_id", challengeID),
	)

	return llm.StripCodeFence(resp.Content), nil
}

const suggesterSystemPrompt = `You are a construction estimating tutor. You give hints that guide students toward a complete estimate without revealing reference quantities or prices.`

func buildSuggestPrompt(challenge *models.Challenge, aiLines []models.BoQLine, items []models.CostEstimateItem) (string, error) {
	coveredCategories := make(map[string]bool)
	referenceCategories := make(map[string]bool)
	for _, it := range items {
		coveredCategories[it.CostCategory] = true
	}
	for _, l := range aiLines {
		referenceCategories[l.CostCategory] = true
	}

	draftJSON, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode draft: %w", err)
	}

	var missing []string
	for cat := range referenceCategories {
		if !coveredCategories[cat] {
			missing = append(missing, cat)
		}
	}

	return fmt.Sprintf(`Challenge: %s
Objectives: %s
Instructions: %s

The student's current draft items (may be empty):
%s

Work categories the reference estimate covers but the draft does not touch: %v

Give 3-5 short hints in plain text (no JSON, no markdown headers):
- point out work categories the student may have missed,
- flag quantities that look implausible for this kind of structure,
- suggest what to double-check on the plan.
Never state reference quantities, unit prices, or totals.`,
		challenge.Name, challenge.Objectives, challenge.Instructions, string(draftJSON), missing), nil
}
