package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID           string
	Name         string
	Description  string
	SalePrice    decimal.Decimal
	RegularPrice decimal.Decimal
	Image        string
	Stock        int
	CategoryID   string
	CreatedAt    time.Time
}

type Category struct {
	ID    string
	Name  string
	Image string
}

type ProductRow struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	SalePrice    decimal.Decimal `json:"sale_price"`
	RegularPrice decimal.Decimal `json:"regular_price"`
	Image        string          `json:"image"`
	Stock        int             `json:"stock"`
	CategoryID   string          `json:"category_id"`
	CreatedAt    time.Time       `json:"created_at"`
}

type CategoryRow struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

func (r ProductRow) Domain() (Product, error) {
	if r.ID == "" {
		return Product{}, FieldError{Row: "products", Field: "id", Value: r.ID}
	}
	if r.Name == "" {
		return Product{}, FieldError{Row: "products", Field: "name", Value: r.Name}
	}
	if r.SalePrice.IsNegative() {
		return Product{}, FieldError{Row: "products", Field: "sale_price", Value: r.SalePrice}
	}
	return Product{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		SalePrice:    r.SalePrice,
		RegularPrice: r.RegularPrice,
		Image:        r.Image,
		Stock:        r.Stock,
		CategoryID:   r.CategoryID,
		CreatedAt:    r.CreatedAt,
	}, nil
}

func (r CategoryRow) Domain() (Category, error) {
	if r.ID == "" {
		return Category{}, FieldError{Row: "categories", Field: "id", Value: r.ID}
	}
	return Category{ID: r.ID, Name: r.Name, Image: r.Image}, nil
}
