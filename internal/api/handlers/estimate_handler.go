package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/costquest/backend/internal/ledger"
	"github.com/costquest/backend/internal/storage/sqlite"
	"github.com/costquest/backend/internal/suggest"
	"github.com/costquest/backend/pkg/logger"
)

// EstimateHandler exposes the student-side estimate lifecycle plus hints.
type EstimateHandler struct {
	ledger                *ledger.Ledger
	suggester             *suggest.Suggester
	defaultContingencyPct float64
}

func NewEstimateHandler(l *ledger.Ledger, s *suggest.Suggester, defaultContingencyPct float64) *EstimateHandler {
	return &EstimateHandler{
		ledger:                l,
		suggester:             s,
		defaultContingencyPct: defaultContingencyPct,
	}
}

func (h *EstimateHandler) SaveEstimation(c *fiber.Ctx) error {
	var req struct {
		StudentID             string        `json:"student_id"`
		ChallengeID           string        `json:"challenge_id"`
		ContingencyPercentage *float64      `json:"contingency_percentage"`
		Submit                bool          `json:"submit"`
		Items                 []ledger.Item `json:"items"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.StudentID == "" || req.ChallengeID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "student_id and challenge_id are required",
		})
	}

	contingencyPct := h.defaultContingencyPct
	if req.ContingencyPercentage != nil {
		contingencyPct = *req.ContingencyPercentage
	}

	estimate, err := h.ledger.SaveEstimation(req.StudentID, req.ChallengeID, req.Items, contingencyPct, req.Submit)
	if err != nil {
		if errors.Is(err, sqlite.ErrChallengeNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Challenge not found",
			})
		}
		logger.Error("Failed to save student estimate",
			zap.String("student_id", req.StudentID),
			zap.String("challenge_id", req.ChallengeID),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save estimate",
		})
	}

	return c.JSON(fiber.Map{
		"estimate_id":            estimate.ID,
		"status":                 estimate.Status,
		"subtotal_amount":        estimate.SubtotalAmount,
		"contingency_percentage": estimate.ContingencyPercentage,
		"contingency_amount":     estimate.ContingencyAmount,
		"total_amount":           estimate.TotalAmount,
		"submitted_at":           estimate.SubmittedAt,
	})
}

func (h *EstimateHandler) GetEstimation(c *fiber.Ctx) error {
	studentID := c.Params("studentId")
	challengeID := c.Params("challengeId")
	if studentID == "" || challengeID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "studentId and challengeId are required",
		})
	}

	estimate, items, err := h.ledger.GetEstimation(studentID, challengeID)
	if err != nil {
		if errors.Is(err, sqlite.ErrEstimateNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "No estimate found",
			})
		}
		logger.Error("Failed to load student estimate", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load estimate",
		})
	}

	return c.JSON(fiber.Map{
		"estimate": estimate,
		"items":    items,
	})
}

func (h *EstimateHandler) GetSuggestions(c *fiber.Ctx) error {
	var req struct {
		StudentID   string `json:"student_id"`
		ChallengeID string `json:"challenge_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.StudentID == "" || req.ChallengeID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "student_id and challenge_id are required",
		})
	}

	suggestions, err := h.suggester.Suggest(c.Context(), req.StudentID, req.ChallengeID)
	if err != nil {
		if errors.Is(err, sqlite.ErrChallengeNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Challenge not found",
			})
		}
		logger.Error("Failed to generate suggestions", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate suggestions",
		})
	}

	return c.JSON(fiber.Map{
		"suggestions": suggestions,
	})
}
