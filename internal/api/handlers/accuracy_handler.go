package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/costquest/backend/internal/llm"
	"github.com/costquest/backend/internal/scoring"
	"github.com/costquest/backend/internal/storage/sqlite"
	"github.com/costquest/backend/pkg/logger"
)

type AccuracyHandler struct {
	scorer *scoring.Scorer
	db     *sqlite.Client
}

func NewAccuracyHandler(scorer *scoring.Scorer, db *sqlite.Client) *AccuracyHandler {
	return &AccuracyHandler{
		scorer: scorer,
		db:     db,
	}
}

// ComputeAccuracy grades a student's estimate against the AI reference and
// stores the score.
func (h *AccuracyHandler) ComputeAccuracy(c *fiber.Ctx) error {
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

	result, err := h.scorer.Score(c.Context(), req.StudentID, req.ChallengeID)
	if err != nil {
		if errors.Is(err, sqlite.ErrEstimateNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "No estimate found for this student and challenge",
			})
		}
		logger.Error("Failed to compute accuracy",
			zap.String("student_id", req.StudentID),
			zap.String("challenge_id", req.ChallengeID),
			zap.Error(err))
		if errors.Is(err, llm.ErrBadUpstreamJSON) {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "Scoring service returned a malformed response",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute accuracy",
		})
	}

	return c.JSON(fiber.Map{
		"accuracy": result.Accuracy,
		"details":  result.Details,
	})
}

func (h *AccuracyHandler) GetAccuracy(c *fiber.Ctx) error {
	studentID := c.Params("studentId")
	challengeID := c.Params("challengeId")
	if studentID == "" || challengeID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "studentId and challengeId are required",
		})
	}

	record, err := h.db.GetAccuracy(studentID, challengeID)
	if err != nil {
		logger.Error("Failed to load accuracy record", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load accuracy",
		})
	}
	if record == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No accuracy record found",
		})
	}

	return c.JSON(fiber.Map{
		"accuracy":   record.Accuracy,
		"details":    record.Details,
		"updated_at": record.UpdatedAt,
	})
}
