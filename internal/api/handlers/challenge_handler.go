package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/costquest/backend/internal/storage/models"
	"github.com/costquest/backend/internal/storage/sqlite"
	"github.com/costquest/backend/pkg/logger"
)

type ChallengeHandler struct {
	db *sqlite.Client
}

func NewChallengeHandler(db *sqlite.Client) *ChallengeHandler {
	return &ChallengeHandler{db: db}
}

func (h *ChallengeHandler) CreateChallenge(c *fiber.Ctx) error {
	var req struct {
		Name         string `json:"name"`
		Objectives   string `json:"objectives"`
		Instructions string `json:"instructions"`
		SiteLocation string `json:"site_location"`
		FileURL      string `json:"file_url"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name is required",
		})
	}

	challenge := &models.Challenge{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Objectives:   req.Objectives,
		Instructions: req.Instructions,
		SiteLocation: req.SiteLocation,
		FileURL:      req.FileURL,
		CreatedAt:    time.Now(),
	}

	if err := h.db.InsertChallenge(challenge); err != nil {
		logger.Error("Failed to create challenge", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create challenge",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(challenge)
}

func (h *ChallengeHandler) GetChallenge(c *fiber.Ctx) error {
	id := c.Params("challengeId")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "challengeId is required",
		})
	}

	challenge, err := h.db.GetChallenge(id)
	if err != nil {
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

	return c.JSON(challenge)
}
