package domain

import (
	"time"

	"github.com/google/uuid"
)

// SupersessionMapping records that one part number has been replaced by
// another. Mappings are versioned with an active flag and are archived,
// never deleted, when a reconciliation import omits them.
type SupersessionMapping struct {
	ID            uuid.UUID `json:"id"`
	OldPartNumber string    `json:"oldPartNumber"`
	NewPartNumber string    `json:"newPartNumber"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"createdAt"`
}

// MappingKey is the normalized identity of a supersession pair, used for
// set reconciliation between file state and stored state.
type MappingKey struct {
	Old string
	New string
}
