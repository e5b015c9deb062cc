package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/costquest/backend/internal/llm"
	"github.com/costquest/backend/internal/pipeline"
	"github.com/costquest/backend/internal/storage/models"
	"github.com/costquest/backend/internal/storage/sqlite"
	"github.com/costquest/backend/pkg/logger"
)

// EstimationHandler exposes the AI estimation pipeline: run it for a
// challenge, fetch its output, and save teacher-curated edits.
type EstimationHandler struct {
	pipeline *pipeline.Pipeline
	db       *sqlite.Client
}

func NewEstimationHandler(p *pipeline.Pipeline, db *sqlite.Client) *EstimationHandler {
	return &EstimationHandler{
		pipeline: p,
		db:       db,
	}
}

func (h *EstimationHandler) RunEstimation(c *fiber.Ctx) error {
	var req struct {
		ChallengeID string `json:"challenge_id"`
		PlanFileURL string `json:"plan_file_url"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.ChallengeID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "challenge_id is required",
		})
	}

	result, err := h.pipeline.Run(c.Context(), req.ChallengeID, req.PlanFileURL)
	if err != nil {
		if errors.Is(err, sqlite.ErrChallengeNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Challenge not found",
			})
		}
		logger.Error("Estimation pipeline failed",
			zap.String("challenge_id", req.ChallengeID), zap.Error(err))
		if errors.Is(err, llm.ErrBadUpstreamJSON) {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "Estimation service returned a malformed response",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to run estimation",
		})
	}

	return c.JSON(fiber.Map{
		"analysis_id": result.AnalysisID,
		"confidence":  result.Confidence,
		"elements":    result.Elements,
		"lines":       result.Lines,
		"subtotals":   result.Subtotals,
		"summary":     result.Summary,
	})
}

// GetAIEstimate returns the persisted AI lines and summary for a challenge,
// across curation edits.
func (h *EstimationHandler) GetAIEstimate(c *fiber.Ctx) error {
	challengeID := c.Params("challengeId")
	if challengeID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "challengeId is required",
		})
	}

	if _, err := h.db.GetChallenge(challengeID); err != nil {
		if errors.Is(err, sqlite.ErrChallengeNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Challenge not found",
			})
		}
		logger.Error("Failed to load challenge", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load challenge",
		})
	}

	lines, err := h.db.ListBoQLinesByChallenge(challengeID)
	if err != nil {
		logger.Error("Failed to list BoQ lines", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load estimate",
		})
	}

	summary, err := h.db.GetEstimateSummary(challengeID)
	if err != nil {
		logger.Error("Failed to load estimate summary", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load estimate",
		})
	}

	return c.JSON(fiber.Map{
		"lines":   lines,
		"summary": summary,
	})
}

func (h *EstimationHandler) GetSummary(c *fiber.Ctx) error {
	challengeID := c.Params("challengeId")
	if challengeID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "challengeId is required",
		})
	}

	summary, err := h.db.GetEstimateSummary(challengeID)
	if err != nil {
		logger.Error("Failed to load estimate summary", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load summary",
		})
	}
	if summary == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No summary for this challenge",
		})
	}

	return c.JSON(summary)
}

type curatedLine struct {
	ID           string   `json:"id"`
	ItemNumber   int      `json:"item_number"`
	Description  string   `json:"description"`
	Quantity     float64  `json:"quantity"`
	Unit         string   `json:"unit"`
	CostCategory string   `json:"cost_category"`
	UnitPrice    *float64 `json:"unit_price"`
	Amount       float64  `json:"amount"`
	Assumptions  string   `json:"assumptions"`
}

// SaveCurated replaces the challenge's AI line set with the teacher-edited
// one and rebuilds the summary.
func (h *EstimationHandler) SaveCurated(c *fiber.Ctx) error {
	challengeID := c.Params("challengeId")

	var req struct {
		AnalysisID string        `json:"analysis_id"`
		Lines      []curatedLine `json:"lines"`
	}
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	lines := make([]models.BoQLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, models.BoQLine{
			ID:           l.ID,
			ItemNumber:   l.ItemNumber,
			Description:  l.Description,
			Quantity:     l.Quantity,
			Unit:         l.Unit,
			CostCategory: l.CostCategory,
			UnitPrice:    l.UnitPrice,
			Amount:       l.Amount,
			Assumptions:  l.Assumptions,
		})
	}

	summary, err := h.pipeline.SaveCurated(challengeID, req.AnalysisID, lines)
	if err != nil {
		if errors.Is(err, sqlite.ErrChallengeNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Challenge not found",
			})
		}
		if errors.Is(err, sqlite.ErrNoAnalysis) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "No estimation run exists for this challenge",
			})
		}
		logger.Error("Failed to save curated estimate",
			zap.String("challenge_id", challengeID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save curated estimate",
		})
	}

	return c.JSON(fiber.Map{
		"summary": summary,
	})
}
