package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product is a catalog part. Descriptive fields are mutated in place on
// re-import; derived business attributes (prices, stock) are versioned
// separately as snapshots.
type Product struct {
	ID          uuid.UUID `json:"id"`
	PartNumber  string    `json:"partNumber"`
	Description string    `json:"description"`
	Brand       string    `json:"brand"`
	WeightKg    *float64  `json:"weightKg,omitempty"`
	LengthCm    *float64  `json:"lengthCm,omitempty"`
	WidthCm     *float64  `json:"widthCm,omitempty"`
	HeightCm    *float64  `json:"heightCm,omitempty"`
	ImageFile   string    `json:"imageFile,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PriceSnapshot is one versioned price state for a product. At most one
// snapshot per product is active at any time.
type PriceSnapshot struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"productId"`
	DealerPrice float64   `json:"dealerPrice"`
	RetailPrice float64   `json:"retailPrice"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
}

// StockSnapshot is one versioned stock level for a product.
type StockSnapshot struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProductSearchView is the denormalized read model streamed into the
// search index: the product plus its latest active derived attributes.
type ProductSearchView struct {
	Product
	DealerPrice      *float64 `json:"dealerPrice,omitempty"`
	RetailPrice      *float64 `json:"retailPrice,omitempty"`
	StockQuantity    *int     `json:"stockQuantity,omitempty"`
	SupersededBy     *string  `json:"supersededBy,omitempty"`
	BackorderedUnits *int     `json:"backorderedUnits,omitempty"`
}
