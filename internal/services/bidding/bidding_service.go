package bidding

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gigspace-id/gigspace_be/internal/models"
)

// The error kinds the bid/gig state machine can produce. Handlers map the
// code straight onto the HTTP response.
var (
	ErrGigNotFound  = fiber.NewError(fiber.StatusNotFound, "Gig not found")
	ErrBidNotFound  = fiber.NewError(fiber.StatusNotFound, "Bid not found")
	ErrGigAssigned  = fiber.NewError(fiber.StatusConflict, "This gig has already been assigned")
	ErrDuplicateBid = fiber.NewError(fiber.StatusConflict, "You have already submitted a bid for this gig")
	ErrOwnGigBid    = fiber.NewError(fiber.StatusForbidden, "You cannot bid on your own gig")
	ErrNotGigOwner  = fiber.NewError(fiber.StatusForbidden, "Not authorized to hire for this gig")
	ErrInvalidPrice = fiber.NewError(fiber.StatusBadRequest, "Price must be a positive number")
)

// Service owns the gig/bid state machine: bid submission and the hire
// transaction. It never talks to the notification layer; callers emit
// events after a method returns, so nothing fires for a rolled-back write.
type Service struct {
	DB *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// SubmitBid creates a pending bid by actor on the given gig.
//
// Precondition order: gig exists, gig still open, actor is not the owner,
// no earlier bid by the same freelancer. The duplicate pre-check only
// exists for the friendly error; the compound unique index on
// (gig_id, freelancer_id) is what actually closes the race between two
// near-simultaneous submissions, and a constraint violation at create
// time is translated to the same duplicate-bid conflict.
func (s *Service) SubmitBid(actorID, gigID uuid.UUID, message string, price int64) (*models.Bid, error) {
	if price < 0 {
		return nil, ErrInvalidPrice
	}

	var gig models.Gig
	if err := s.DB.First(&gig, "id = ?", gigID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGigNotFound
		}
		return nil, err
	}

	if gig.Status == models.GigStatusAssigned {
		return nil, ErrGigAssigned
	}

	if gig.OwnerID == actorID {
		return nil, ErrOwnGigBid
	}

	var existing models.Bid
	err := s.DB.Where("gig_id = ? AND freelancer_id = ?", gigID, actorID).First(&existing).Error
	if err == nil {
		return nil, ErrDuplicateBid
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	bid := models.Bid{
		GigID:        gigID,
		FreelancerID: actorID,
		Message:      message,
		Price:        price,
		Status:       models.BidStatusPending,
	}

	if err := s.DB.Create(&bid).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateBid
		}
		return nil, err
	}

	return &bid, nil
}

// Hire assigns the gig to the bid's freelancer. One transaction covers the
// whole transition: gig open -> assigned, the chosen bid pending -> hired,
// every other pending bid on the gig -> rejected. Anything fails, the whole
// thing rolls back.
func (s *Service) Hire(actorID, bidID uuid.UUID) (*models.Bid, error) {
	var hired models.Bid

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var bid models.Bid
		if err := tx.First(&bid, "id = ?", bidID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBidNotFound
			}
			return err
		}

		var gig models.Gig
		if err := tx.First(&gig, "id = ?", bid.GigID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGigNotFound
			}
			return err
		}

		if gig.OwnerID != actorID {
			return ErrNotGigOwner
		}

		if gig.Status == models.GigStatusAssigned {
			return ErrGigAssigned
		}

		// Conditional flip keyed on the pre-transition status. Two hire
		// attempts racing on the same gig both pass the read above; the
		// WHERE status = 'open' guard makes sure only one of them flips
		// the row, and the loser sees RowsAffected == 0.
		res := tx.Model(&models.Gig{}).
			Where("id = ? AND status = ?", gig.ID, models.GigStatusOpen).
			Updates(map[string]interface{}{
				"status":              models.GigStatusAssigned,
				"hired_freelancer_id": bid.FreelancerID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrGigAssigned
		}

		if err := tx.Model(&models.Bid{}).
			Where("id = ?", bid.ID).
			Update("status", models.BidStatusHired).Error; err != nil {
			return err
		}

		// Already-rejected (or, defensively, hired) siblings stay untouched.
		if err := tx.Model(&models.Bid{}).
			Where("gig_id = ? AND id != ? AND status = ?", gig.ID, bid.ID, models.BidStatusPending).
			Update("status", models.BidStatusRejected).Error; err != nil {
			return err
		}

		hired = bid
		hired.Status = models.BidStatusHired
		return nil
	})

	if err != nil {
		return nil, err
	}

	return &hired, nil
}
