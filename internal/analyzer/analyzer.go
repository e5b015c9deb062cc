package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/costquest/backend/internal/llm"
	"github.com/costquest/backend/internal/metrics"
	"github.com/costquest/backend/pkg/logger"
)

// DefaultConfidence is reported when the reasoning service answered but did
// not score itself. It marks "the analyzer doesn't know", as opposed to an
// error meaning "the analyzer is unavailable".
const DefaultConfidence = 0.5

// Element is one structural component read off a plan drawing. Dimensions
// keep whatever format the drawing used.
type Element struct {
	ElementType      string          `json:"element_type"`
	MaterialCategory string          `json:"material_category"`
	Dimensions       string          `json:"dimensions"`
	Coordinates      json.RawMessage `json:"coordinates"`
}

// Analyzer extracts structural elements from an uploaded plan in a single
// reasoning-service call. No retries or partial results: a malformed reply
// is the caller's problem.
type Analyzer struct {
	completer llm.Completer
}

func NewAnalyzer(completer llm.Completer) *Analyzer {
	return &Analyzer{completer: completer}
}

// reply is the tagged-variant decode of the two shapes the service emits: a
// bare element array, or an object wrapping the array with a confidence.
// Resolved once here; callers never see the difference.
type reply struct {
	Elements   []Element `json:"elements"`
	Confidence *float64  `json:"confidence"`
}

func (a *Analyzer) AnalyzePlan(ctx context.Context, planFileURL string) ([]Element, float64, error) {
	resp, err := a.completer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: analyzerSystemPrompt,
		UserPrompt:   buildAnalyzerPrompt(planFileURL),
		Temperature:  0.2,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to analyze plan: %w", err)
	}

	elements, confidence, err := decodeReply(resp.Content)
	if err != nil {
		return nil, 0, err
	}

	metrics.AnalysisConfidence.Observe(confidence)
	logger.Info("Plan analyzed",
		zap.String("plan_file_url", planFileURL),
		zap.Int("elements", len(elements)),
		zap.Float64("confidence", confidence),
	)

	return elements, confidence, nil
}

func decodeReply(raw string) ([]Element, float64, error) {
	cleaned := llm.StripCodeFence(raw)

	// The wrapped object also contains an array span, so shape is decided by
	// the leading token, not by which decode happens to succeed.
	if strings.HasPrefix(cleaned, "{") {
		var wrapped reply
		if err := llm.ExtractJSONObject(cleaned, &wrapped); err != nil {
			return nil, 0, err
		}
		confidence := DefaultConfidence
		if wrapped.Confidence != nil {
			confidence = clamp01(*wrapped.Confidence)
		}
		return wrapped.Elements, confidence, nil
	}

	var elements []Element
	if err := llm.ExtractJSONArray(cleaned, &elements); err != nil {
		return nil, 0, err
	}
	return elements, DefaultConfidence, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

const analyzerSystemPrompt = `You are an assistant that analyzes architectural floor plan or elevation drawings and extracts structural elements.`

func buildAnalyzerPrompt(planFileURL string) string {
	return fmt.Sprintf(`Input: %s

Task:
1. Extract all structural elements (walls, slabs, beams, columns, doors, windows, roof, etc.).
2. For each element, provide:
   - element_type (string, e.g., wall, slab, beam, column)
   - material_category (string, e.g., concrete, wood, steel, glass)
   - dimensions (string, keep original format if available, e.g., "3m x 5m x 0.2m")
   - coordinates (JSON with approximate x,y values if extractable; otherwise null)

Output strictly as a JSON array.`, planFileURL)
}
