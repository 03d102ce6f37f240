package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the canonical fulfillment state of a dealer order.
type OrderStatus string

const (
	OrderStatusReceived    OrderStatus = "RECEIVED"
	OrderStatusProcessing  OrderStatus = "PROCESSING"
	OrderStatusShipped     OrderStatus = "SHIPPED"
	OrderStatusBackordered OrderStatus = "BACKORDERED"
	OrderStatusCancelled   OrderStatus = "CANCELLED"
	OrderStatusDelivered   OrderStatus = "DELIVERED"
)

// orderStatusLabels maps the free-text labels that appear in fulfillment
// feeds onto canonical statuses. Lookup is case-insensitive.
var orderStatusLabels = map[string]OrderStatus{
	"received":     OrderStatusReceived,
	"new":          OrderStatusReceived,
	"processing":   OrderStatusProcessing,
	"in process":   OrderStatusProcessing,
	"shipped":      OrderStatusShipped,
	"in transit":   OrderStatusShipped,
	"backordered":  OrderStatusBackordered,
	"back ordered": OrderStatusBackordered,
	"cancelled":    OrderStatusCancelled,
	"canceled":     OrderStatusCancelled,
	"delivered":    OrderStatusDelivered,
	"complete":     OrderStatusDelivered,
}

// ParseOrderStatus resolves free-form status text to a canonical status.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if status, ok := orderStatusLabels[key]; ok {
		return status, nil
	}
	return "", fmt.Errorf("unrecognized order status %q", raw)
}

// Order is a dealer order whose fulfillment status is updated by
// ORDER_STATUS feeds. Order creation itself is owned elsewhere.
type Order struct {
	ID              uuid.UUID   `json:"id"`
	OrderNumber     string      `json:"orderNumber"`
	DealerCode      string      `json:"dealerCode"`
	Status          OrderStatus `json:"status"`
	StatusUpdatedAt *time.Time  `json:"statusUpdatedAt,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
}
