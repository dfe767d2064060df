package handlers

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/gigspace-id/gigspace_be/internal/models"
	"github.com/gigspace-id/gigspace_be/internal/realtime"
	"github.com/gigspace-id/gigspace_be/internal/services/bidding"
)

type BidHandler struct {
	DB      *gorm.DB
	Hub     *realtime.Hub
	RDB     *redis.Client
	Bidding *bidding.Service
}

func NewBidHandler(db *gorm.DB, hub *realtime.Hub, rdb *redis.Client) *BidHandler {
	return &BidHandler{DB: db, Hub: hub, RDB: rdb, Bidding: bidding.NewService(db)}
}

type CreateBidRequest struct {
	GigID   string `json:"gig_id"`
	Message string `json:"message"`
	Price   *int64 `json:"price"`
}

type UserMini struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type GigMini struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Budget int64  `json:"budget"`
	Status string `json:"status"`
}

// BidResponse is the bid DTO, populated with the freelancer's name/email
// and the gig's title/budget.
type BidResponse struct {
	ID           string    `json:"id"`
	GigID        string    `json:"gig_id"`
	FreelancerID string    `json:"freelancer_id"`
	Message      string    `json:"message"`
	Price        int64     `json:"price"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`

	Freelancer *UserMini `json:"freelancer,omitempty"`
	Gig        *GigMini  `json:"gig,omitempty"`
}

func toBidResponse(bid *models.Bid) BidResponse {
	resp := BidResponse{
		ID:           bid.ID.String(),
		GigID:        bid.GigID.String(),
		FreelancerID: bid.FreelancerID.String(),
		Message:      bid.Message,
		Price:        bid.Price,
		Status:       string(bid.Status),
		CreatedAt:    bid.CreatedAt,
	}

	if bid.Freelancer != nil {
		resp.Freelancer = &UserMini{
			ID:    bid.Freelancer.ID.String(),
			Name:  bid.Freelancer.Name,
			Email: bid.Freelancer.Email,
		}
	}

	if bid.Gig != nil {
		resp.Gig = &GigMini{
			ID:     bid.Gig.ID.String(),
			Title:  bid.Gig.Title,
			Budget: bid.Gig.Budget,
			Status: string(bid.Gig.Status),
		}
	}

	return resp
}

// notify pushes an event to one user's live connections and mirrors it to
// the redis notifications channel. Fire-and-forget on both paths.
func (h *BidHandler) notify(userID uuid.UUID, event fiber.Map) {
	h.Hub.SendToUser(userID, event)

	payload, err := json.Marshal(event)
	if err != nil {
		log.Println("Error marshaling notification:", err)
		return
	}
	if err := h.RDB.Publish(context.Background(), "notifications:"+userID.String(), payload).Err(); err != nil {
		log.Println("Error publishing notification to redis:", err)
	}
}

// CreateBid submits a bid on a gig and tells the gig owner about it.
func (h *BidHandler) CreateBid(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var req CreateBidRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	req.Message = strings.TrimSpace(req.Message)

	if req.GigID == "" || req.Message == "" || req.Price == nil {
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Please provide all required fields",
		})
	}

	gigUUID, err := uuid.Parse(req.GigID)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Invalid gig ID",
		})
	}

	bid, err := h.Bidding.SubmitBid(userUUID, gigUUID, req.Message, *req.Price)
	if err != nil {
		if e, ok := err.(*fiber.Error); ok {
			return c.Status(e.Code).JSON(fiber.Map{"success": false, "message": e.Message})
		}
		log.Println("Error creating bid:", err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to create bid"})
	}

	var populated models.Bid
	h.DB.Preload("Freelancer").Preload("Gig").First(&populated, "id = ?", bid.ID)

	if populated.Gig != nil && populated.Freelancer != nil {
		h.notify(populated.Gig.OwnerID, fiber.Map{
			"type":             "new-bid",
			"bid_id":           populated.ID.String(),
			"gig_id":           populated.GigID.String(),
			"freelancer_name":  populated.Freelancer.Name,
			"freelancer_email": populated.Freelancer.Email,
			"message":          populated.Message,
			"price":            populated.Price,
			"timestamp":        time.Now(),
		})
	}

	return c.Status(201).JSON(fiber.Map{
		"success": true,
		"data":    toBidResponse(&populated),
	})
}

// GetBidsForGig returns all bids on a gig. Gig owner only.
func (h *BidHandler) GetBidsForGig(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	gigUUID, err := uuid.Parse(c.Params("gigId"))
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
			"message": "Not authorized to view bids for this gig",
		})
	}

	var bids []models.Bid
	if err := h.DB.
		Preload("Freelancer").
		Where("gig_id = ?", gigUUID).
		Order("created_at DESC").
		Find(&bids).Error; err != nil {
		log.Println("Error fetching bids:", err)
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": "Failed to fetch bids",
		})
	}

	out := make([]BidResponse, 0, len(bids))
	for _, bid := range bids {
		out = append(out, toBidResponse(&bid))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"count":   len(out),
		"data":    out,
	})
}

// GetMyBids returns the caller's own bids with their gigs.
func (h *BidHandler) GetMyBids(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var bids []models.Bid
	if err := h.DB.
		Preload("Gig").
		Where("freelancer_id = ?", userUUID).
		Order("created_at DESC").
		Find(&bids).Error; err != nil {
		log.Println("Error fetching own bids:", err)
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"message": "Failed to fetch bids",
		})
	}

	out := make([]BidResponse, 0, len(bids))
	for _, bid := range bids {
		out = append(out, toBidResponse(&bid))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"count":   len(out),
		"data":    out,
	})
}

// HireBid runs the hire transaction and, after it commits, tells the
// winning freelancer over their live channel.
func (h *BidHandler) HireBid(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	bidUUID, err := uuid.Parse(c.Params("bidId"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"message": "Invalid bid ID",
		})
	}

	hired, err := h.Bidding.Hire(userUUID, bidUUID)
	if err != nil {
		if e, ok := err.(*fiber.Error); ok {
			return c.Status(e.Code).JSON(fiber.Map{"success": false, "message": e.Message})
		}
		log.Println("Error hiring bid:", err)
		return c.Status(500).JSON(fiber.Map{"success": false, "message": "Failed to hire freelancer"})
	}

	var populated models.Bid
	h.DB.Preload("Freelancer").Preload("Gig").First(&populated, "id = ?", hired.ID)

	if populated.Gig != nil {
		h.notify(populated.FreelancerID, fiber.Map{
			"type":    "hired",
			"message": "You have been hired for \"" + populated.Gig.Title + "\"!",
			"gig": fiber.Map{
				"id":     populated.Gig.ID.String(),
				"title":  populated.Gig.Title,
				"budget": populated.Gig.Budget,
			},
			"bid": fiber.Map{
				"id":    populated.ID.String(),
				"price": populated.Price,
			},
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Freelancer hired successfully",
		"data":    toBidResponse(&populated),
	})
}
