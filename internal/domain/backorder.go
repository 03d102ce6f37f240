package domain

import (
	"time"

	"github.com/google/uuid"
)

// BackorderSnapshot is one versioned backorder state for a part. The
// snapshot history is retained in full; at most one row per product is
// active at any time.
type BackorderSnapshot struct {
	ID        uuid.UUID  `json:"id"`
	ProductID uuid.UUID  `json:"productId"`
	Quantity  int        `json:"quantity"`
	ETA       *time.Time `json:"eta,omitempty"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"createdAt"`
}
