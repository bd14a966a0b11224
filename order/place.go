// Package order covers checkout submission, the status machine, and the
// customer-facing tracking reads.
package order

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/junaidrashid-git/storefront-core/cart"
	"github.com/junaidrashid-git/storefront-core/client"
	"github.com/junaidrashid-git/storefront-core/errs"
	"github.com/junaidrashid-git/storefront-core/logging"
	"github.com/junaidrashid-git/storefront-core/models"
)

const compensateTimeout = 10 * time.Second

var (
	freeShippingFloor = decimal.NewFromInt(999)
	shippingFlat      = decimal.NewFromInt(80)
	taxRate           = decimal.NewFromFloat(0.05)
)

type CheckoutInput struct {
	// ShippingAddress is stored as free text on the order, not a reference
	// to a saved address.
	ShippingAddress string `validate:"required,min=10"`
}

type Totals struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals applies the store's pricing: free shipping from 999 up,
// flat 80 below, tax rounded to the nearest whole amount.
func ComputeTotals(sub decimal.Decimal) Totals {
	shipping := shippingFlat
	if sub.GreaterThanOrEqual(freeShippingFloor) {
		shipping = decimal.Zero
	}
	tax := sub.Mul(taxRate).Round(0)
	return Totals{
		Subtotal: sub,
		Shipping: shipping,
		Tax:      tax,
		Total:    sub.Add(shipping).Add(tax),
	}
}

// DisplayID returns the human-facing order id. Random, not
// timestamp-derived, so concurrent checkouts cannot collide on the clock;
// the orders table carries a uniqueness constraint as the backstop.
func DisplayID() string {
	id := uuid.New()
	return "ORD-" + strings.ToUpper(hex.EncodeToString(id[:4]))
}

// Placer runs the one-shot checkout submission.
type Placer struct {
	c        *client.Client
	cart     *cart.Engine
	log      *slog.Logger
	validate *validator.Validate
}

func NewPlacer(c *client.Client, cartEngine *cart.Engine, log *slog.Logger) *Placer {
	if log == nil {
		log = logging.Discard()
	}
	return &Placer{
		c:        c,
		cart:     cartEngine,
		log:      log,
		validate: validator.New(),
	}
}

// Place writes the order row, then one line per cart line capturing the
// stable product id and the price at purchase, then clears the cart. The
// sequence is not atomic: if line insertion fails partway, the dangling
// order row is compensated with a best-effort delete and the caller gets
// errs.ErrPartialOrder — the order was NOT confirmed.
func (p *Placer) Place(ctx context.Context, userID string, in CheckoutInput) (models.Order, error) {
	if err := p.validate.Struct(in); err != nil {
		return models.Order{}, errs.Validation(err)
	}
	lines := p.cart.Lines()
	if len(lines) == 0 {
		return models.Order{}, errs.Validation(fmt.Errorf("cart is empty"))
	}

	// Totals come from the same snapshot the lines are written from, so a
	// concurrent cart mutation cannot make the recorded total disagree with
	// the persisted lines.
	sub := decimal.Zero
	for _, line := range lines {
		sub = sub.Add(line.LineTotal())
	}
	totals := ComputeTotals(sub)

	row := models.OrderRow{
		DisplayID:       DisplayID(),
		UserID:          userID,
		TotalAmount:     totals.Total,
		Status:          string(models.OrderStatusPending),
		ShippingAddress: in.ShippingAddress,
	}
	var created models.OrderRow
	if err := p.c.From("orders").Single().Insert(ctx, []models.OrderRow{row}, &created); err != nil {
		return models.Order{}, err
	}
	o, err := created.Domain()
	if err != nil {
		return models.Order{}, err
	}

	for _, line := range lines {
		lr := models.OrderLineRow{
			OrderID:   o.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		}
		if err := p.c.From("order_items").Insert(ctx, []models.OrderLineRow{lr}, nil); err != nil {
			p.compensate(o.ID)
			return models.Order{}, fmt.Errorf("%w: order %s, line for product %s: %w",
				errs.ErrPartialOrder, o.DisplayID, line.ProductID, err)
		}
	}

	if err := p.cart.Clear(ctx); err != nil {
		// The order stands; only the cart refresh is owed. Surfaced so the
		// caller does not treat the submission as fully settled.
		return o, fmt.Errorf("order %s placed but cart not cleared: %w", o.DisplayID, err)
	}
	return o, nil
}

// compensate removes a dangling order and any lines that did land. Runs on
// a fresh context: the placement context may already be dead.
func (p *Placer) compensate(orderID string) {
	ctx, cancel := context.WithTimeout(context.Background(), compensateTimeout)
	defer cancel()
	if err := p.c.From("order_items").Eq("order_id", orderID).Delete(ctx); err != nil {
		p.log.Error("orphaned order lines left behind", "order_id", orderID, "err", err)
		return
	}
	if err := p.c.From("orders").Eq("id", orderID).Delete(ctx); err != nil {
		p.log.Error("orphaned order row left behind", "order_id", orderID, "err", err)
	}
}
