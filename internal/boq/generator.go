package boq

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/costquest/backend/internal/llm"
	"github.com/costquest/backend/internal/metrics"
	"github.com/costquest/backend/internal/storage/models"
	"github.com/costquest/backend/pkg/logger"
)

// ChallengeContext is the textual context the generator feeds alongside the
// extracted elements.
type ChallengeContext struct {
	ID           string
	Name         string
	Objectives   string
	Instructions string
	SiteLocation string
	PlanFileURLs []string
}

// Line is an un-priced BoQ row candidate. The generator never fills
// UnitPrice or Amount; pricing is a separate stage.
type Line struct {
	ItemNumber   int
	Description  string
	Quantity     float64
	Unit         string
	CostCategory string
	Assumptions  string
}

// Generator turns extracted structural elements into a categorized bill of
// quantities via the reasoning service.
type Generator struct {
	completer llm.Completer
}

func NewGenerator(completer llm.Completer) *Generator {
	return &Generator{completer: completer}
}

// rawLine mirrors the reply schema loosely. Quantity and item_number arrive
// as numbers or strings depending on the model's mood, so they decode into
// interface{} and coerce afterwards.
type rawLine struct {
	ItemNumber   interface{} `json:"item_number"`
	Description  string      `json:"description"`
	Quantity     interface{} `json:"quantity"`
	Unit         string      `json:"unit"`
	CostCategory string      `json:"cost_category"`
	UnitPrice    interface{} `json:"unit_price"`
	Amount       interface{} `json:"amount"`
	Assumptions  string      `json:"assumptions"`
}

// Generate produces the ordered, categorized, un-priced line set for a
// challenge. Rows with an unknown category are dropped silently; quantities
// that fail to parse become 0. Item numbers restart at 1 inside each
// category, in the order the reply listed the rows.
func (g *Generator) Generate(ctx context.Context, elements []models.StructuralElement, cc ChallengeContext) ([]Line, error) {
	elementsJSON, err := json.MarshalIndent(elementsForPrompt(elements), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode elements: %w", err)
	}

	resp, err := g.completer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: generatorSystemPrompt,
		UserPrompt:   buildGeneratorPrompt(cc, string(elementsJSON)),
		Temperature:  0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate BoQ: %w", err)
	}

	var raw []rawLine
	if err := llm.ExtractJSONArray(resp.Content, &raw); err != nil {
		return nil, err
	}

	lines := make([]Line, 0, len(raw))
	dropped := 0
	for _, row := range raw {
		if !ValidCategory(row.CostCategory) {
			dropped++
			continue
		}

		lines = append(lines, Line{
			Description:  row.Description,
			Quantity:     coerceQuantity(row.Quantity),
			Unit:         CanonicalUnit(row.Unit),
			CostCategory: row.CostCategory,
			Assumptions:  row.Assumptions,
		})
	}

	resequence(lines)

	if dropped > 0 {
		metrics.BoQLinesDropped.Add(float64(dropped))
		logger.Warn("Dropped BoQ rows with invalid category",
			zap.String("challenge_id", cc.ID),
			zap.Int("dropped", dropped),
		)
	}
	metrics.BoQLinesGenerated.Observe(float64(len(lines)))

	logger.Info("BoQ generated",
		zap.String("challenge_id", cc.ID),
		zap.Int("lines", len(lines)),
	)

	return lines, nil
}

// resequence renumbers lines 1..N per category, keeping the reply order
// inside each group.
func resequence(lines []Line) {
	counters := make(map[string]int)
	for i := range lines {
		counters[lines[i].CostCategory]++
		lines[i].ItemNumber = counters[lines[i].CostCategory]
	}
}

// coerceQuantity accepts whatever the model produced for quantity and
// returns a non-negative float64, 0 on anything unparseable.
func coerceQuantity(v interface{}) float64 {
	switch q := v.(type) {
	case float64:
		if q < 0 {
			return 0
		}
		return q
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(q), 64)
		if err != nil || f < 0 {
			return 0
		}
		return f
	case json.Number:
		f, err := q.Float64()
		if err != nil || f < 0 {
			return 0
		}
		return f
	default:
		return 0
	}
}

func elementsForPrompt(elements []models.StructuralElement) []map[string]string {
	out := make([]map[string]string, 0, len(elements))
	for _, e := range elements {
		out = append(out, map[string]string{
			"element_type":      e.ElementType,
			"material_category": e.MaterialCategory,
			"dimensions":        e.Dimensions,
		})
	}
	return out
}

const generatorSystemPrompt = `You are a senior structural cost estimator for low- to mid-rise buildings in the Philippines (metric units).
You produce categorized Bills of Quantities with realistic materials and quantities.
You NEVER include unit prices or amounts; a separate service fetches live prices.`

func buildGeneratorPrompt(cc ChallengeContext, elementsJSON string) string {
	return fmt.Sprintf(`Produce a categorized Bill of Quantities for this challenge.

### Challenge context
- Challenge ID: %s
- Name/Title: %s
- Objective/Notes: %s
- Instructions: %s
- Files: %s
- Site location (affects practices/vendors): %s

### Extracted structural elements (JSON)
%s

### Categories (use EXACT names):
- EARTHWORK
- FORMWORK & SCAFFOLDING
- MASONRY WORK
- CONCRETE WORK
- STEELWORK
- CARPENTRY WORK
- ROOFING WORK

### Estimating rules (PH, metric):
1) EARTHWORK: excavation V = L x W x D (m3) from footings; backfill ~0.8-0.9 x excavation; include borrowed fill and compaction water. Units: m3, truckloads, liters.
2) FORMWORK & SCAFFOLDING: contact area of concrete elements in m2; translate to plywood sheets (1.22m x 2.44m), lumber lengths, nails, tie wire; scaffolding by wall heights/floor areas. Units: m2, pcs, m, kg, sets.
3) MASONRY WORK: wall area in m2 to CHB count by block size (commonly 6"); mortar at 1:3, plastering if specified; reinforcement per standard details. Units: m2, pcs, bags (40kg cement), m3 (sand), kg.
4) CONCRETE WORK: member volumes in m3; express mix (e.g. 1:2:4) as cement bags, sand m3, gravel m3. Rebar belongs under STEELWORK, not here.
5) STEELWORK: reinforcing steel by diameter and length/weight; structural sections by section and length; include tie wire. Units: kg preferred.
6) CARPENTRY WORK: framing lumber, blocking, headers, sheathing as indicated. Units: m, pcs, m2.
7) ROOFING WORK: roof area = plan area / cos(slope) or typical slope assumption; GI sheets, purlins, screws, flashing, ridge rolls. Units: m2, pcs, m, sets.

General:
- Metric units and PH product forms: 40kg cement bags, 6m rebar lengths, CHB 6".
- Include reasonable waste: 5-10%% for formwork and finishes, 3-5%% for steel.
- State conservative assumptions in an "assumptions" field where ambiguous.
- DO NOT invent unit prices. Set "unit_price" = null and "amount" = null on every row.

### Output format (STRICT)
Return a raw JSON array ONLY. Each item MUST match:
{
  "item_number": <integer, sequence restarts at 1 inside each cost_category>,
  "description": "<string>",
  "quantity": <number>,
  "unit": "<string>",
  "cost_category": "<one of the exact categories above>",
  "unit_price": null,
  "amount": null,
  "assumptions": "<string or null>"
}`,
		cc.ID, cc.Name, cc.Objectives, cc.Instructions,
		strings.Join(cc.PlanFileURLs, ", "), cc.SiteLocation, elementsJSON)
}
