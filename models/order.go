package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"         // placed, awaiting confirmation
	OrderStatusConfirmed OrderStatus = "order_confirmed" // confirmed by the store
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusInTransit OrderStatus = "in_transit"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is created once at checkout and mutated only by admin status
// transitions afterwards. Never deleted, only cancellable.
type Order struct {
	ID              string
	DisplayID       string
	UserID          string
	TotalAmount     decimal.Decimal
	Status          OrderStatus
	ShippingAddress string
	CreatedAt       time.Time
	ConfirmedAt     *time.Time
	ShippedAt       *time.Time
	InTransitAt     *time.Time
	DeliveredAt     *time.Time
}

// OrderLine captures quantity and price at the moment of sale, independent
// of later product price changes. Immutable after creation.
type OrderLine struct {
	OrderID   string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

type OrderRow struct {
	ID              string          `json:"id,omitempty"`
	DisplayID       string          `json:"display_id"`
	UserID          string          `json:"user_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          string          `json:"status"`
	ShippingAddress string          `json:"shipping_address"`
	CreatedAt       time.Time       `json:"created_at,omitempty"`
	ConfirmedAt     *time.Time      `json:"confirmed_at,omitempty"`
	ShippedAt       *time.Time      `json:"shipped_at,omitempty"`
	InTransitAt     *time.Time      `json:"in_transit_at,omitempty"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
}

type OrderLineRow struct {
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// ValidOrderStatus reports whether s is one of the known statuses.
func ValidOrderStatus(s string) bool {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped,
		OrderStatusInTransit, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (r OrderRow) Domain() (Order, error) {
	if r.ID == "" {
		return Order{}, FieldError{Row: "orders", Field: "id", Value: r.ID}
	}
	if !ValidOrderStatus(r.Status) {
		return Order{}, FieldError{Row: "orders", Field: "status", Value: r.Status}
	}
	if r.TotalAmount.IsNegative() {
		return Order{}, FieldError{Row: "orders", Field: "total_amount", Value: r.TotalAmount}
	}
	return Order{
		ID:              r.ID,
		DisplayID:       r.DisplayID,
		UserID:          r.UserID,
		TotalAmount:     r.TotalAmount,
		Status:          OrderStatus(r.Status),
		ShippingAddress: r.ShippingAddress,
		CreatedAt:       r.CreatedAt,
		ConfirmedAt:     r.ConfirmedAt,
		ShippedAt:       r.ShippedAt,
		InTransitAt:     r.InTransitAt,
		DeliveredAt:     r.DeliveredAt,
	}, nil
}

func (r OrderLineRow) Domain() (OrderLine, error) {
	if r.ProductID == "" {
		return OrderLine{}, FieldError{Row: "order_items", Field: "product_id", Value: r.ProductID}
	}
	if r.Quantity < 1 {
		return OrderLine{}, FieldError{Row: "order_items", Field: "quantity", Value: r.Quantity}
	}
	return OrderLine{
		OrderID:   r.OrderID,
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
		UnitPrice: r.UnitPrice,
	}, nil
}
