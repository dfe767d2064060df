// internal/models/gig.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type GigStatus string

const (
	GigStatusOpen     GigStatus = "open"     // Menerima bid
	GigStatusAssigned GigStatus = "assigned" // Freelancer sudah dipilih
)

type Gig struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text;not null" json:"description"`
	Budget      int64          `gorm:"not null" json:"budget"`
	Tags        datatypes.JSON `json:"tags,omitempty"` // array of free-form tags, e.g. ["logo","design"]

	Status  GigStatus `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`
	OwnerID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`

	// Set exactly once, by the hire transaction. Non-nil iff Status == assigned.
	HiredFreelancerID *uuid.UUID `gorm:"type:uuid" json:"hired_freelancer_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Owner           *User `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	HiredFreelancer *User `gorm:"foreignKey:HiredFreelancerID" json:"hired_freelancer,omitempty"`
	Bids            []Bid `gorm:"foreignKey:GigID" json:"bids,omitempty"`
}

func (g *Gig) BeforeCreate(tx *gorm.DB) (err error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return
}
