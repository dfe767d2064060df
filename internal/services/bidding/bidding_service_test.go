package bidding

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gigspace-id/gigspace_be/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	// sqlite has a single writer; pinning the pool to one connection keeps
	// the in-memory database alive and makes the race tests deterministic
	// instead of SQLITE_BUSY-flaky.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.User{}, &models.Gig{}, &models.Bid{}); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

func createUser(t *testing.T, db *gorm.DB, name string) models.User {
	u := models.User{
		Name:     name,
		Email:    name + "@example.com",
		Password: "hashed",
		IsActive: true,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", name, err)
	}
	return u
}

func createGig(t *testing.T, db *gorm.DB, owner models.User, budget int64) models.Gig {
	g := models.Gig{
		Title:       "Design a logo",
		Description: "Need a logo for a new coffee brand",
		Budget:      budget,
		Status:      models.GigStatusOpen,
		OwnerID:     owner.ID,
	}
	if err := db.Create(&g).Error; err != nil {
		t.Fatalf("failed to create gig: %v", err)
	}
	return g
}

func TestSubmitBid(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	owner := createUser(t, db, "owner")
	freelancer := createUser(t, db, "freelancer")
	gig := createGig(t, db, owner, 500)

	bid, err := svc.SubmitBid(freelancer.ID, gig.ID, "I can do this", 400)
	if err != nil {
		t.Fatalf("SubmitBid failed: %v", err)
	}

	if bid.Status != models.BidStatusPending {
		t.Errorf("expected status pending, got %s", bid.Status)
	}
	if bid.GigID != gig.ID || bid.FreelancerID != freelancer.ID {
		t.Errorf("bid references wrong gig/freelancer")
	}

	var stored models.Bid
	if err := db.First(&stored, "id = ?", bid.ID).Error; err != nil {
		t.Fatalf("bid not persisted: %v", err)
	}
	if stored.Price != 400 {
		t.Errorf("expected price 400, got %d", stored.Price)
	}
}

func TestSubmitBidGigNotFound(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	freelancer := createUser(t, db, "freelancer")

	_, err := svc.SubmitBid(freelancer.ID, uuid.New(), "hello", 100)
	if !errors.Is(err, ErrGigNotFound) {
		t.Fatalf("expected ErrGigNotFound, got %v", err)
	}
}

func TestSubmitBidOnOwnGig(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	owner := createUser(t, db, "owner")
	gig := createGig(t, db, owner, 500)

	_, err := svc.SubmitBid(owner.ID, gig.ID, "bidding on myself", 100)
	if !errors.Is(err, ErrOwnGigBid) {
		t.Fatalf("expected ErrOwnGigBid, got %v", err)
	}

	var count int64
	db.Model(&models.Bid{}).Where("gig_id = ?", gig.ID).Count(&count)
	if count != 0 {
		t.Errorf("expected no bids persisted, got %d", count)
	}
}

func TestSubmitBidOnAssignedGig(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	owner := createUser(t, db, "owner")
	f1 := createUser(t, db, "f1")
	f2 := createUser(t, db, "f2")
	gig := createGig(t, db, owner, 500)

	bid, err := svc.SubmitBid(f1.ID, gig.ID, "pick me", 400)
	if err != nil {
		t.Fatalf("SubmitBid failed: %v", err)
	}
	if _, err := svc.Hire(owner.ID, bid.ID); err != nil {
		t.Fatalf("Hire failed: %v", err)
	}

	_, err = svc.SubmitBid(f2.ID, gig.ID, "too late", 300)
	if !errors.Is(err, ErrGigAssigned) {
		t.Fatalf("expected ErrGigAssigned, got %v", err)
	}
}

func TestSubmitBidNegativePrice(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	owner := createUser(t, db, "owner")
	freelancer := createUser(t, db, "freelancer")
	gig := createGig(t, db, owner, 500)

	_, err := svc.SubmitBid(freelancer.ID, gig.ID, "cheap", -1)
	if !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
}

func TestSubmitBidDuplicate(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	owner := createUser(t, db, "owner")
	freelancer := createUser(t, db, "freelancer")
	gig := createGig(t, db, owner, 500)

	if _, err := svc.SubmitBid(freelancer.ID, gig.ID, "first", 400); err != nil {
		t.Fatalf("first SubmitBid failed: %v", err)
	}

	_, err := svc.SubmitBid(freelancer.ID, gig.ID, "second", 350)
	if !errors.Is(err, ErrDuplicateBid) {
		t.Fatalf("expected ErrDuplicateBid, got %v", err)
	}

	var count int64
	db.Model(&models.Bid{}).Where("gig_id = ? AND freelancer_id = ?", gig.ID, freelancer.ID).Count(&count)
	if count != 1 {
		t.Errorf("expected exactly one bid, got %d", count)
	}
}

func TestSubmitBidDuplicateRace(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	owner := createUser(t, db, "owner")
	freelancer := createUser(t, db, "freelancer")
	gig := createGig(t, db, owner, 500)

	var wg sync.WaitGroup
	errs := make([]error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.SubmitBid(freelancer.ID, gig.ID, "racing", 400)
		}(i)
	}
	wg.Wait()

	var okCount, dupCount int
	for _, err := range errs {
		switch {
		case err == nil:
			okCount++
		case errors.Is(err, ErrDuplicateBid):
			dupCount++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if okCount != 1 || dupCount != 1 {
		t.Fatalf("expected 1 success and 1 duplicate conflict, got %d/%d", okCount, dupCount)
	}

	var count int64
	db.Model(&models.Bid{}).Where("gig_id = ? AND freelancer_id = ?", gig.ID, freelancer.ID).Count(&count)
	if count != 1 {
		t.Errorf("expected exactly one persisted bid, got %d", count)
	}
}

// The §8-style end to end scenario: two pending bids, owner hires the
// first, the second flips to rejected and the gig to assigned.
func TestHire(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	owner := createUser(t, db, "owner")
	f1 := createUser(t, db, "f1")
	f2 := createUser(t, db, "f2")
	gig := createGig(t, db, owner, 500)

	b1, err := svc.SubmitBid(f1.ID, gig.ID, "I can do it for 400", 400)
	if err != nil {
		t.Fatalf("SubmitBid b1 failed: %v", err)
	}
	b2, err := svc.SubmitBid(f2.ID, gig.ID, "I can do it for 450", 450)
	if err != nil {
		t.Fatalf("SubmitBid b2 failed: %v", err)
	}

	hired, err := svc.Hire(owner.ID, b1.ID)
	if err != nil {
		t.Fatalf("Hire failed: %v", err)
	}
	if hired.Status != models.BidStatusHired {
		t.Errorf("expected returned bid hired, got %s", hired.Status)
	}

	var storedGig models.Gig
	if err := db.First(&storedGig, "id = ?", gig.ID).Error; err != nil {
		t.Fatalf("failed to reload gig: %v", err)
	}
	if storedGig.Status != models.GigStatusAssigned {
		t.Errorf("expected gig assigned, got %s", storedGig.Status)
	}
	if storedGig.HiredFreelancerID == nil || *storedGig.HiredFreelancerID != f1.ID {
		t.Errorf("expected hired freelancer %s, got %v", f1.ID, storedGig.HiredFreelancerID)
	}

	var storedB1, storedB2 models.Bid
	db.First(&storedB1, "id = ?", b1.ID)
	db.First(&storedB2, "id = ?", b2.ID)
	if storedB1.Status != models.BidStatusHired {
		t.Errorf("expected b1 hired, got %s", storedB1.Status)
	}
	if storedB2.Status != models.BidStatusRejected {
		t.Errorf("expected b2 rejected, got %s", storedB2.Status)
	}

	// hire attempt on the losing bid
	_, err = svc.Hire(owner.ID, b2.ID)
	if !errors.Is(err, ErrGigAssigned) {
		t.Fatalf("expected ErrGigAssigned on second hire, got %v", err)
	}
}

func TestHireBidNotFound(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	owner := createUser(t, db, "owner")

	_, err := svc.Hire(owner.ID, uuid.New())
	if !errors.Is(err, ErrBidNotFound) {
		t.Fatalf("expected ErrBidNotFound, got %v", err)
	}
}

func TestHireNotOwner(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	owner := createUser(t, db, "owner")
	freelancer := createUser(t, db, "freelancer")
	stranger := createUser(t, db, "stranger")
	gig := createGig(t, db, owner, 500)

	bid, err := svc.SubmitBid(freelancer.ID, gig.ID, "pick me", 400)
	if err != nil {
		t.Fatalf("SubmitBid failed: %v", err)
	}

	_, err = svc.Hire(stranger.ID, bid.ID)
	if !errors.Is(err, ErrNotGigOwner) {
		t.Fatalf("expected ErrNotGigOwner, got %v", err)
	}

	// no side effects
	var storedGig models.Gig
	db.First(&storedGig, "id = ?", gig.ID)
	if storedGig.Status != models.GigStatusOpen {
		t.Errorf("expected gig still open, got %s", storedGig.Status)
	}
	var storedBid models.Bid
	db.First(&storedBid, "id = ?", bid.ID)
	if storedBid.Status != models.BidStatusPending {
		t.Errorf("expected bid still pending, got %s", storedBid.Status)
	}
}

func TestHireLeavesRejectedBidsUntouched(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	owner := createUser(t, db, "owner")
	f1 := createUser(t, db, "f1")
	f2 := createUser(t, db, "f2")
	gig := createGig(t, db, owner, 500)

	winner, err := svc.SubmitBid(f1.ID, gig.ID, "winner", 400)
	if err != nil {
		t.Fatalf("SubmitBid failed: %v", err)
	}

	// a bid that is already rejected before the hire runs
	preRejected := models.Bid{
		GigID:        gig.ID,
		FreelancerID: f2.ID,
		Message:      "was rejected earlier",
		Price:        999,
		Status:       models.BidStatusRejected,
	}
	if err := db.Create(&preRejected).Error; err != nil {
		t.Fatalf("failed to seed rejected bid: %v", err)
	}

	if _, err := svc.Hire(owner.ID, winner.ID); err != nil {
		t.Fatalf("Hire failed: %v", err)
	}

	var stored models.Bid
	db.First(&stored, "id = ?", preRejected.ID)
	if stored.Status != models.BidStatusRejected {
		t.Errorf("expected rejected bid untouched, got %s", stored.Status)
	}
	if !stored.UpdatedAt.Equal(preRejected.UpdatedAt) {
		t.Errorf("rejected bid was rewritten by the hire transaction")
	}
}

func TestHireConcurrent(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	owner := createUser(t, db, "owner")
	f1 := createUser(t, db, "f1")
	f2 := createUser(t, db, "f2")
	gig := createGig(t, db, owner, 500)

	b1, err := svc.SubmitBid(f1.ID, gig.ID, "bid one", 400)
	if err != nil {
		t.Fatalf("SubmitBid b1 failed: %v", err)
	}
	b2, err := svc.SubmitBid(f2.ID, gig.ID, "bid two", 450)
	if err != nil {
		t.Fatalf("SubmitBid b2 failed: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]*models.Bid, 2)
	errs := make([]error, 2)

	for i, bidID := range []uuid.UUID{b1.ID, b2.ID} {
		wg.Add(1)
		go func(i int, bidID uuid.UUID) {
			defer wg.Done()
			results[i], errs[i] = svc.Hire(owner.ID, bidID)
		}(i, bidID)
	}
	wg.Wait()

	var winner *models.Bid
	var okCount, conflictCount int
	for i := range errs {
		switch {
		case errs[i] == nil:
			okCount++
			winner = results[i]
		case errors.Is(errs[i], ErrGigAssigned):
			conflictCount++
		default:
			t.Fatalf("unexpected error: %v", errs[i])
		}
	}
	if okCount != 1 || conflictCount != 1 {
		t.Fatalf("expected 1 winner and 1 conflict, got %d/%d", okCount, conflictCount)
	}

	// final state must be consistent with exactly the winning bid
	var storedGig models.Gig
	db.First(&storedGig, "id = ?", gig.ID)
	if storedGig.Status != models.GigStatusAssigned {
		t.Fatalf("expected gig assigned, got %s", storedGig.Status)
	}
	if storedGig.HiredFreelancerID == nil || *storedGig.HiredFreelancerID != winner.FreelancerID {
		t.Errorf("gig assigned to %v, winner was %s", storedGig.HiredFreelancerID, winner.FreelancerID)
	}

	var hiredCount int64
	db.Model(&models.Bid{}).Where("gig_id = ? AND status = ?", gig.ID, models.BidStatusHired).Count(&hiredCount)
	if hiredCount != 1 {
		t.Errorf("expected exactly one hired bid, got %d", hiredCount)
	}

	var rejectedCount int64
	db.Model(&models.Bid{}).Where("gig_id = ? AND status = ?", gig.ID, models.BidStatusRejected).Count(&rejectedCount)
	if rejectedCount != 1 {
		t.Errorf("expected exactly one rejected bid, got %d", rejectedCount)
	}
}
