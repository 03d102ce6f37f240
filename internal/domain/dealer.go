package domain

import (
	"time"

	"github.com/google/uuid"
)

// Dealer is an account record keyed by dealer code.
type Dealer struct {
	ID           uuid.UUID `json:"id"`
	DealerCode   string    `json:"dealerCode"`
	Name         string    `json:"name"`
	Region       string    `json:"region"`
	ContactEmail string    `json:"contactEmail,omitempty"`
	DiscountTier string    `json:"discountTier,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
