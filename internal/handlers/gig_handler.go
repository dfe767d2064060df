package handlers

import (
	"encoding/json"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/gigspace-id/gigspace_be/internal/models"
)

type GigHandler struct {
	DB *gorm.DB
}

func NewGigHandler(db *gorm.DB) *GigHandler {
	return &GigHandler{DB: db}
}

type GigReq struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Budget      int64    `json:"budget"`
	Tags        []string `json:"tags"`
}

// ListGigs returns open gigs, newest first. Supports ?search= over
// title/description and ?tag= over the tags array.
func (h *GigHandler) ListGigs(c *fiber.Ctx) error {
	q := h.DB.
		Preload("Owner").
		Where("status = ?", models.GigStatusOpen)

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	if tag := strings.TrimSpace(c.Query("tag")); tag != "" {
		// tags is jsonb; containment check against a one-element array
		b, _ := json.Marshal([]string{tag})
		q = q.Where("tags @> ?", datatypes.JSON(b))
	}

	var gigs []models.Gig
	if err := q.Order("created_at DESC").Find(&gigs).Error; err != nil {
		log.Println("Error fetching gigs:", err)
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": "Failed to fetch gigs",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"count":   len(gigs),
		"data":    gigs,
	})
}

// GetGig returns a single gig with owner and hired freelancer.
func (h *GigHandler) GetGig(c *fiber.Ctx) error {
	gigUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Invalid gig ID",
		})
	}

	var gig models.Gig
	if err := h.DB.
		Preload("Owner").
		Preload("HiredFreelancer").
		First(&gig, "id = ?", gigUUID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{
			"success": false,
			"message": "Gig not found",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    gig,
	})
}

// GetMyGigs returns the caller's own gigs.
func (h *GigHandler) GetMyGigs(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var gigs []models.Gig
	if err := h.DB.
		Preload("HiredFreelancer").
		Where("owner_id = ?", userUUID).
		Order("created_at DESC").
		Find(&gigs).Error; err != nil {
		log.Println("Error fetching own gigs:", err)
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": "Failed to fetch gigs",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"count":   len(gigs),
		"data":    gigs,
	})
}

// CreateGig creates a new open gig owned by the caller.
func (h *GigHandler) CreateGig(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var req GigReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)

	if req.Title == "" || req.Description == "" {
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Please provide all required fields",
		})
	}
	if req.Budget < 0 {
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Budget must be a positive number",
		})
	}

	gig := models.Gig{
		Title:       req.Title,
		Description: req.Description,
		Budget:      req.Budget,
		Status:      models.GigStatusOpen,
		OwnerID:     userUUID,
	}

	if len(req.Tags) > 0 {
		tagsJSON, err := json.Marshal(req.Tags)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{
				"success": false,
				"message": "Invalid tags",
			})
		}
		gig.Tags = datatypes.JSON(tagsJSON)
	}

	if err := h.DB.Create(&gig).Error; err != nil {
		log.Println("Error creating gig:", err)
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create gig",
		})
	}

	h.DB.Preload("Owner").First(&gig, "id = ?", gig.ID)

	return c.Status(201).JSON(fiber.Map{
		"success": true,
		"data":    gig,
	})
}

// UpdateGig edits title/description/budget/tags. Owner only, and only
// while the gig is still open; an assigned gig is immutable.
func (h *GigHandler) UpdateGig(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	gigUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Invalid gig ID",
		})
	}

	var gig models.Gig
	if err := h.DB.First(&gig, "id = ?", gigUUID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{
			"success": false,
			"message": "Gig not found",
		})
	}

	if gig.OwnerID != userUUID {
		return c.Status(403).JSON(fiber.Map{
			"success": false,
			"message": "Not authorized to update this gig",
		})
	}

	if gig.Status == models.GigStatusAssigned {
		return c.Status(409).JSON(fiber.Map{
			"success": false,
			"message": "Cannot update an assigned gig",
		})
	}

	var req GigReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)

	if req.Title == "" || req.Description == "" {
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Please provide all required fields",
		})
	}
	if req.Budget < 0 {
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Budget must be a positive number",
		})
	}

	gig.Title = req.Title
	gig.Description = req.Description
	gig.Budget = req.Budget
	if req.Tags != nil {
		tagsJSON, _ := json.Marshal(req.Tags)
		gig.Tags = datatypes.JSON(tagsJSON)
	}

	if err := h.DB.Save(&gig).Error; err != nil {
		log.Println("Error updating gig:", err)
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": "Failed to update gig",
		})
	}

	h.DB.Preload("Owner").First(&gig, "id = ?", gig.ID)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    gig,
	})
}

// DeleteGig removes an open gig and its bids. Assigned gigs stay.
func (h *GigHandler) DeleteGig(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	gigUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Invalid gig ID",
		})
	}

	var gig models.Gig
	if err := h.DB.First(&gig, "id = ?", gigUUID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{
			"success": false,
			"message": "Gig not found",
		})
	}

	if gig.OwnerID != userUUID {
		return c.Status(403).JSON(fiber.Map{
			"success": false,
			"message": "Not authorized to delete this gig",
		})
	}

	if gig.Status == models.GigStatusAssigned {
		return c.Status(409).JSON(fiber.Map{
			"success": false,
			"message": "Cannot delete an assigned gig",
		})
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("gig_id = ?", gig.ID).Delete(&models.Bid{}).Error; err != nil {
			return err
		}
		return tx.Delete(&gig).Error
	})
	if err != nil {
		log.Println("Error deleting gig:", err)
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": "Failed to delete gig",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Gig deleted successfully",
	})
}
