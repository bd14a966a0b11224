package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/junaidrashid-git/storefront-core/client"
	"github.com/junaidrashid-git/storefront-core/errs"
	"github.com/junaidrashid-git/storefront-core/models"
)

// remoteStore holds the authenticated cart: rows in cart_items keyed by the
// owner. Writes go to the backend first; the engine re-reads the full cart
// afterwards rather than patching memory optimistically.
type remoteStore struct {
	c      *client.Client
	userID string
}

func (r *remoteStore) load(ctx context.Context) ([]models.CartLine, error) {
	var rows []models.CartLineRow
	err := r.c.From("cart_items").
		Select("*").
		Eq("user_id", r.userID).
		Order("created_at", true).
		Get(ctx, &rows)
	if err != nil {
		return nil, err
	}
	lines := make([]models.CartLine, 0, len(rows))
	for _, row := range rows {
		line, err := row.Domain()
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// add merges by (product, variant): an existing row gets its quantity
// bumped, otherwise a new row is inserted. The product reference is checked
// against the catalog first; a dangling reference aborts the add with no
// partial write.
func (r *remoteStore) add(ctx context.Context, line models.CartLine) error {
	var product struct {
		ID string `json:"id"`
	}
	err := r.c.From("products").Select("id").Eq("id", line.ProductID).Single().Get(ctx, &product)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return fmt.Errorf("product %s: %w", line.ProductID, errs.ErrNotFound)
		}
		return err
	}

	var existing []models.CartLineRow
	err = r.c.From("cart_items").
		Select("id,quantity").
		Eq("user_id", r.userID).
		Eq("product_id", line.ProductID).
		Eq("variant", line.Variant).
		Get(ctx, &existing)
	if err != nil {
		return err
	}

	if len(existing) > 0 {
		return r.c.From("cart_items").
			Eq("id", existing[0].ID).
			Update(ctx, map[string]any{"quantity": existing[0].Quantity + line.Quantity})
	}

	row := models.CartLineRow{
		UserID:    r.userID,
		ProductID: line.ProductID,
		Name:      line.Name,
		Image:     line.Image,
		UnitPrice: line.UnitPrice,
		Quantity:  line.Quantity,
		Variant:   line.Variant,
		Origin:    line.Origin,
	}
	return r.c.From("cart_items").Insert(ctx, []models.CartLineRow{row}, nil)
}

func (r *remoteStore) setQuantity(ctx context.Context, lineID string, qty int) error {
	return r.c.From("cart_items").
		Eq("id", lineID).
		Eq("user_id", r.userID).
		Update(ctx, map[string]any{"quantity": qty})
}

func (r *remoteStore) remove(ctx context.Context, lineID string) error {
	return r.c.From("cart_items").
		Eq("id", lineID).
		Eq("user_id", r.userID).
		Delete(ctx)
}

func (r *remoteStore) clear(ctx context.Context) error {
	return r.c.From("cart_items").
		Eq("user_id", r.userID).
		Delete(ctx)
}
