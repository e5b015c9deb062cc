package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/costquest/backend/internal/analyzer"
	"github.com/costquest/backend/internal/boq"
	"github.com/costquest/backend/internal/metrics"
	"github.com/costquest/backend/internal/pricing"
	"github.com/costquest/backend/internal/storage/models"
	"github.com/costquest/backend/internal/storage/sqlite"
	"github.com/costquest/backend/pkg/logger"
)

// Config carries the summary derivation ratios. Labor is a flat fraction of
// material cost; contingencies a fraction of material plus labor.
type Config struct {
	LaborRatio       float64
	ContingencyRatio float64
}

// Pipeline runs the full AI estimation flow for one challenge: plan
// analysis, BoQ generation, per-line pricing, and summary aggregation.
// Stages run strictly in sequence; each consumes the previous stage's
// persisted output.
type Pipeline struct {
	db        *sqlite.Client
	analyzer  *analyzer.Analyzer
	generator *boq.Generator
	pricer    *pricing.Aggregator
	cfg       Config
}

func New(db *sqlite.Client, an *analyzer.Analyzer, gen *boq.Generator, pricer *pricing.Aggregator, cfg Config) *Pipeline {
	return &Pipeline{
		db:        db,
		analyzer:  an,
		generator: gen,
		pricer:    pricer,
		cfg:       cfg,
	}
}

// CategorySubtotal is one category's material total in report order.
type CategorySubtotal struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// RunResult is everything one pipeline run produced.
type RunResult struct {
	AnalysisID string                     `json:"analysis_id"`
	Confidence float64                    `json:"confidence"`
	Elements   []models.StructuralElement `json:"elements"`
	Lines      []models.BoQLine           `json:"lines"`
	Subtotals  []CategorySubtotal         `json:"subtotals"`
	Summary    *models.EstimateSummary    `json:"summary"`
}

// Run executes the pipeline for a challenge. A missing challenge is the only
// fatal precondition; downstream stage failures abort the run and leave the
// analysis row in failed status.
func (p *Pipeline) Run(ctx context.Context, challengeID, planFileURL string) (*RunResult, error) {
	challenge, err := p.db.GetChallenge(challengeID)
	if err != nil {
		metrics.PipelineRunsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	if planFileURL == "" {
		planFileURL = challenge.FileURL
	}

	analysisID := uuid.New().String()
	if err := p.db.InsertAnalysis(&models.Analysis{
		ID:                analysisID,
		ChallengeID:       challengeID,
		OverallConfidence: 0,
		Status:            "running",
		CreatedAt:         time.Now(),
	}); err != nil {
		metrics.PipelineRunsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	result, err := p.run(ctx, challenge, analysisID, planFileURL)
	if err != nil {
		p.markStatus(analysisID, "failed")
		metrics.PipelineRunsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	p.markStatus(analysisID, "completed")
	metrics.PipelineRunsTotal.WithLabelValues("completed").Inc()

	logger.Info("Estimation pipeline completed",
		zap.String("challenge_id", challengeID),
		zap.String("analysis_id", analysisID),
		zap.Int("lines", len(result.Lines)),
		zap.Float64("grand_total", result.Summary.GrandTotalCost),
	)

	return result, nil
}

func (p *Pipeline) run(ctx context.Context, challenge *models.Challenge, analysisID, planFileURL string) (*RunResult, error) {
	// Stage 1: plan analysis.
	stageStart := time.Now()
	rawElements, confidence, err := p.analyzer.AnalyzePlan(ctx, planFileURL)
	if err != nil {
		return nil, fmt.Errorf("plan analysis failed: %w", err)
	}
	metrics.PipelineStageDuration.WithLabelValues("analyze").Observe(time.Since(stageStart).Seconds())

	if err := p.db.UpdateAnalysisConfidence(analysisID, confidence); err != nil {
		return nil, err
	}

	elements := make([]models.StructuralElement, 0, len(rawElements))
	for _, e := range rawElements {
		el := models.StructuralElement{
			ID:               uuid.New().String(),
			AnalysisID:       analysisID,
			ElementType:      e.ElementType,
			MaterialCategory: e.MaterialCategory,
			Dimensions:       e.Dimensions,
			Coordinates:      string(e.Coordinates),
			CreatedAt:        time.Now(),
		}
		if err := p.db.InsertElement(&el); err != nil {
			return nil, err
		}
		elements = append(elements, el)
	}

	// Stage 2: BoQ generation.
	stageStart = time.Now()
	genLines, err := p.generator.Generate(ctx, elements, boq.ChallengeContext{
		ID:           challenge.ID,
		Name:         challenge.Name,
		Objectives:   challenge.Objectives,
		Instructions: challenge.Instructions,
		SiteLocation: challenge.SiteLocation,
		PlanFileURLs: []string{planFileURL},
	})
	if err != nil {
		return nil, fmt.Errorf("boq generation failed: %w", err)
	}
	metrics.PipelineStageDuration.WithLabelValues("generate").Observe(time.Since(stageStart).Seconds())

	// Stage 3: pricing. Each priced line persists immediately so a partial
	// failure leaves everything priced so far on disk.
	stageStart = time.Now()
	run := p.pricer.NewRun()
	subtotals := make(map[string]float64)

	lines := make([]models.BoQLine, 0, len(genLines))
	for _, gl := range genLines {
		price, _ := run.GetUnitPrice(ctx, gl.Description, gl.Unit, "", challenge.SiteLocation)

		line := models.BoQLine{
			ID:           uuid.New().String(),
			AnalysisID:   analysisID,
			ItemNumber:   gl.ItemNumber,
			Description:  gl.Description,
			Quantity:     gl.Quantity,
			Unit:         gl.Unit,
			CostCategory: gl.CostCategory,
			Amount:       0,
			Assumptions:  gl.Assumptions,
			CreatedAt:    time.Now(),
		}
		if price > 0 {
			unitPrice := price
			line.UnitPrice = &unitPrice
			line.Amount = round2(price * gl.Quantity)
		}

		if err := p.db.InsertBoQLine(&line); err != nil {
			return nil, err
		}

		subtotals[line.CostCategory] += line.Amount
		lines = append(lines, line)
	}
	metrics.PipelineStageDuration.WithLabelValues("price").Observe(time.Since(stageStart).Seconds())

	// Stage 4: summary.
	summary := p.buildSummary(challenge.ID, analysisID, subtotals)
	if err := p.db.UpsertEstimateSummary(summary); err != nil {
		return nil, err
	}

	return &RunResult{
		AnalysisID: analysisID,
		Confidence: confidence,
		Elements:   elements,
		Lines:      lines,
		Subtotals:  orderedSubtotals(subtotals),
		Summary:    summary,
	}, nil
}

// SaveCurated applies a teacher-edited line set for a challenge and rebuilds
// the summary from the surviving lines. When analysisID is empty the latest
// run is used; a challenge with no runs is an error, not an implicit run.
func (p *Pipeline) SaveCurated(challengeID, analysisID string, lines []models.BoQLine) (*models.EstimateSummary, error) {
	if _, err := p.db.GetChallenge(challengeID); err != nil {
		return nil, err
	}

	if analysisID == "" {
		latest, err := p.db.LatestAnalysis(challengeID)
		if err != nil {
			return nil, err
		}
		analysisID = latest.ID
	}

	if err := p.db.ReconcileBoQLines(challengeID, analysisID, lines); err != nil {
		return nil, err
	}

	persisted, err := p.db.ListBoQLinesByChallenge(challengeID)
	if err != nil {
		return nil, err
	}

	subtotals := make(map[string]float64)
	for _, l := range persisted {
		subtotals[l.CostCategory] += l.Amount
	}

	summary := p.buildSummary(challengeID, analysisID, subtotals)
	if err := p.db.UpsertEstimateSummary(summary); err != nil {
		return nil, err
	}

	logger.Info("Curated estimate saved",
		zap.String("challenge_id", challengeID),
		zap.Int("lines", len(persisted)),
		zap.Float64("grand_total", summary.GrandTotalCost),
	)

	return summary, nil
}

func (p *Pipeline) buildSummary(challengeID, analysisID string, subtotals map[string]float64) *models.EstimateSummary {
	material := 0.0
	for _, amount := range subtotals {
		material += amount
	}
	material = round2(material)
	labor := round2(material * p.cfg.LaborRatio)
	contingencies := round2((material + labor) * p.cfg.ContingencyRatio)

	return &models.EstimateSummary{
		ID:                  uuid.New().String(),
		ChallengeID:         challengeID,
		AnalysisID:          analysisID,
		EarthworkAmount:     round2(subtotals[boq.CategoryEarthwork]),
		FormworkAmount:      round2(subtotals[boq.CategoryFormwork]),
		MasonryAmount:       round2(subtotals[boq.CategoryMasonry]),
		ConcreteAmount:      round2(subtotals[boq.CategoryConcrete]),
		SteelworkAmount:     round2(subtotals[boq.CategorySteelwork]),
		CarpentryAmount:     round2(subtotals[boq.CategoryCarpentry]),
		RoofingAmount:       round2(subtotals[boq.CategoryRoofing]),
		TotalMaterialCost:   material,
		LaborCost:           labor,
		ContingenciesAmount: contingencies,
		GrandTotalCost:      round2(material + labor + contingencies),
		CreatedAt:           time.Now(),
	}
}

func (p *Pipeline) markStatus(analysisID, status string) {
	if err := p.db.UpdateAnalysisStatus(analysisID, status); err != nil {
		logger.Warn("Failed to update analysis status",
			zap.String("analysis_id", analysisID),
			zap.String("status", status),
			zap.Error(err),
		)
	}
}

// orderedSubtotals returns the seven category subtotals sorted by category
// name so the result ordering is stable regardless of reply order.
func orderedSubtotals(subtotals map[string]float64) []CategorySubtotal {
	out := make([]CategorySubtotal, 0, len(boq.CategoryOrder))
	for _, cat := range boq.CategoryOrder {
		out = append(out, CategorySubtotal{Category: cat, Amount: round2(subtotals[cat])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
