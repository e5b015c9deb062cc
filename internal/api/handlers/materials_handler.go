package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/costquest/backend/internal/storage/models"
	"github.com/costquest/backend/internal/storage/sqlite"
	"github.com/costquest/backend/pkg/logger"
)

// MaterialsHandler manages the teacher price book. Entries with a teacher id
// are curated references; the pricing aggregator logs its own rows alongside
// with teacher_id empty.
type MaterialsHandler struct {
	db *sqlite.Client
}

func NewMaterialsHandler(db *sqlite.Client) *MaterialsHandler {
	return &MaterialsHandler{db: db}
}

type materialRequest struct {
	Material string `json:"material"`
	Brand    string `json:"brand"`
	Size     string `json:"size"`
	Unit     string `json:"unit"`
	Price    string `json:"price"`
	Vendor   string `json:"vendor"`
	Location string `json:"location"`
}

func (h *MaterialsHandler) CreateMaterial(c *fiber.Ctx) error {
	var req materialRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	teacherID := c.Query("teacher_id")
	if teacherID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "teacher_id is required",
		})
	}
	if req.Material == "" || req.Price == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "material and price are required",
		})
	}

	material := &models.MaterialPrice{
		Material:  req.Material,
		Brand:     req.Brand,
		Size:      req.Size,
		Unit:      req.Unit,
		Price:     req.Price,
		Vendor:    req.Vendor,
		Location:  req.Location,
		TeacherID: teacherID,
	}

	if err := h.db.InsertMaterialPrice(material); err != nil {
		logger.Error("Failed to create material price", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create material",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(material)
}

func (h *MaterialsHandler) ListMaterials(c *fiber.Ctx) error {
	teacherID := c.Query("teacher_id")

	var (
		materials []models.MaterialPrice
		err       error
	)
	if teacherID != "" {
		materials, err = h.db.ListTeacherMaterials(teacherID)
	} else {
		materials, err = h.db.ListAllTeacherMaterials()
	}
	if err != nil {
		logger.Error("Failed to list materials", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list materials",
		})
	}

	return c.JSON(fiber.Map{
		"materials": materials,
	})
}

func (h *MaterialsHandler) UpdateMaterial(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("materialId"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid material id",
		})
	}

	var req materialRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	material := &models.MaterialPrice{
		Material: req.Material,
		Brand:    req.Brand,
		Size:     req.Size,
		Unit:     req.Unit,
		Price:    req.Price,
		Vendor:   req.Vendor,
		Location: req.Location,
	}

	if err := h.db.UpdateMaterialPrice(id, material); err != nil {
		logger.Error("Failed to update material price", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update material",
		})
	}

	return c.JSON(fiber.Map{
		"status": "updated",
	})
}

func (h *MaterialsHandler) DeleteMaterial(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("materialId"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid material id",
		})
	}

	if err := h.db.DeleteMaterialPrice(id); err != nil {
		logger.Error("Failed to delete material price", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete material",
		})
	}

	return c.JSON(fiber.Map{
		"status": "deleted",
	})
}
