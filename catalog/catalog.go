// Package catalog loads the public storefront lists: products, categories,
// search suggestions. These reads carry no row-level restriction, so they
// never wait for session readiness — they race ahead on first paint and
// accept being repeated once the session resolves.
package catalog

import (
	"context"
	"io"
	"path"

	"github.com/shopspring/decimal"

	"github.com/junaidrashid-git/storefront-core/client"
	"github.com/junaidrashid-git/storefront-core/fetch"
	"github.com/junaidrashid-git/storefront-core/models"
)

// ImageBucket holds all product images.
const ImageBucket = "product-images"

// Filter mirrors the storefront's product listing controls.
type Filter struct {
	Search     string
	CategoryID string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	SortBy     string // defaults to created_at
	Ascending  bool
	Limit      int
}

// Products lists catalog products through the standard fetch lifecycle,
// ungated.
func Products(ctx context.Context, c *client.Client, f Filter) ([]models.Product, error) {
	return fetch.Run(ctx, fetch.Options{}, func(ctx context.Context) ([]models.Product, error) {
		q := c.From("products").Select("*")
		if f.Search != "" {
			q = q.Ilike("name", "*"+f.Search+"*")
		}
		if f.CategoryID != "" {
			q = q.Eq("category_id", f.CategoryID)
		}
		if f.MinPrice != nil {
			q = q.Gte("sale_price", *f.MinPrice)
		}
		if f.MaxPrice != nil {
			q = q.Lte("sale_price", *f.MaxPrice)
		}
		sortBy := f.SortBy
		if sortBy == "" {
			sortBy = "created_at"
		}
		q = q.Order(sortBy, f.Ascending)
		if f.Limit > 0 {
			q = q.Limit(f.Limit)
		}

		var rows []models.ProductRow
		if err := q.Get(ctx, &rows); err != nil {
			return nil, err
		}
		products := make([]models.Product, 0, len(rows))
		for _, row := range rows {
			p, err := row.Domain()
			if err != nil {
				return nil, err
			}
			products = append(products, p)
		}
		return products, nil
	})
}

// Categories lists all categories, ungated.
func Categories(ctx context.Context, c *client.Client) ([]models.Category, error) {
	return fetch.Run(ctx, fetch.Options{}, func(ctx context.Context) ([]models.Category, error) {
		var rows []models.CategoryRow
		err := c.From("categories").Select("*").Order("name", true).Get(ctx, &rows)
		if err != nil {
			return nil, err
		}
		cats := make([]models.Category, 0, len(rows))
		for _, row := range rows {
			cat, err := row.Domain()
			if err != nil {
				return nil, err
			}
			cats = append(cats, cat)
		}
		return cats, nil
	})
}

// Suggestions returns product names matching a typed prefix, for the search
// box. Ungated, small, and safe to repeat.
func Suggestions(ctx context.Context, c *client.Client, prefix string, limit int) ([]string, error) {
	if prefix == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 8
	}
	return fetch.Run(ctx, fetch.Options{}, func(ctx context.Context) ([]string, error) {
		var rows []struct {
			Name string `json:"name"`
		}
		err := c.From("products").
			Select("name").
			Ilike("name", prefix+"*").
			Order("name", true).
			Limit(limit).
			Get(ctx, &rows)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(rows))
		for _, row := range rows {
			names = append(names, row.Name)
		}
		return names, nil
	})
}

// UploadImage stores a product image and returns its public URL.
func UploadImage(ctx context.Context, c *client.Client, name string, r io.Reader, contentType string) (string, error) {
	objectPath := path.Join("products", name)
	if err := c.Storage.Upload(ctx, ImageBucket, objectPath, r, contentType); err != nil {
		return "", err
	}
	return c.Storage.PublicURL(ImageBucket, objectPath), nil
}

// ImageURL resolves a stored image reference to its public URL.
func ImageURL(c *client.Client, imageRef string) string {
	if imageRef == "" {
		return ""
	}
	return c.Storage.PublicURL(ImageBucket, imageRef)
}
