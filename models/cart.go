package models

import (
	"github.com/shopspring/decimal"
)

// CartLine is one product+variant entry in a cart. Guest lines carry a
// client-generated id; authenticated lines carry the server row id. Merge
// identity is (ProductID, Variant), never the line id.
type CartLine struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Variant   string          `json:"variant"`
	Origin    string          `json:"origin"`
}

// LineKey identifies a cart line for merge purposes.
type LineKey struct {
	ProductID string
	Variant   string
}

func (l CartLine) Key() LineKey {
	return LineKey{ProductID: l.ProductID, Variant: l.Variant}
}

func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartLineRow is the remote cart_items row shape.
type CartLineRow struct {
	ID        string          `json:"id,omitempty"`
	UserID    string          `json:"user_id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Variant   string          `json:"variant"`
	Origin    string          `json:"origin"`
}

func (r CartLineRow) Domain() (CartLine, error) {
	if r.ID == "" {
		return CartLine{}, FieldError{Row: "cart_items", Field: "id", Value: r.ID}
	}
	if r.ProductID == "" {
		return CartLine{}, FieldError{Row: "cart_items", Field: "product_id", Value: r.ProductID}
	}
	if r.Quantity < 1 {
		return CartLine{}, FieldError{Row: "cart_items", Field: "quantity", Value: r.Quantity}
	}
	if r.UnitPrice.IsNegative() {
		return CartLine{}, FieldError{Row: "cart_items", Field: "unit_price", Value: r.UnitPrice}
	}
	return CartLine{
		ID:        r.ID,
		ProductID: r.ProductID,
		Name:      r.Name,
		Image:     r.Image,
		UnitPrice: r.UnitPrice,
		Quantity:  r.Quantity,
		Variant:   r.Variant,
		Origin:    r.Origin,
	}, nil
}
