// Package cart keeps one logical cart across the guest-to-authenticated
// transition. Exactly one backend is authoritative at any instant: the
// local store while signed out, the remote cart_items rows while signed in.
package cart

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/junaidrashid-git/storefront-core/client"
	"github.com/junaidrashid-git/storefront-core/errs"
	"github.com/junaidrashid-git/storefront-core/logging"
	"github.com/junaidrashid-git/storefront-core/models"
)

const authMutationTimeout = 15 * time.Second

// AddInput carries everything a product view knows when the user hits
// "add to cart". The stable product id travels with the line from here on;
// nothing downstream resolves products by display name.
type AddInput struct {
	ProductID string `validate:"required"`
	Name      string `validate:"required"`
	Image     string
	UnitPrice decimal.Decimal
	Quantity  int `validate:"min=1"`
	Variant   string
	Origin    string
}

type Engine struct {
	c        *client.Client
	guest    *GuestStore
	log      *slog.Logger
	validate *validator.Validate

	// mu serializes every mutation for this owner. Two rapid adds of the
	// same (product, variant) would otherwise race the existing-line lookup
	// and leave duplicate rows.
	mu     sync.Mutex
	remote *remoteStore
	lines  []models.CartLine
}

// NewEngine starts in guest mode, restoring whatever the local store holds.
func NewEngine(c *client.Client, guest *GuestStore, log *slog.Logger) (*Engine, error) {
	if log == nil {
		log = logging.Discard()
	}
	lines, err := guest.Load()
	if err != nil {
		return nil, err
	}
	return &Engine{
		c:        c,
		guest:    guest,
		log:      log,
		validate: validator.New(),
		lines:    lines,
	}, nil
}

// AttachAuth wires the engine to auth state changes: sign-in runs the
// guest-to-remote transition, sign-out re-initializes an empty guest cart.
// Returns an unsubscribe func.
func (e *Engine) AttachAuth(a *client.AuthClient) func() {
	return a.OnAuthStateChange(func(ev client.AuthEvent) {
		switch ev.Type {
		case client.EventSignedIn:
			ctx, cancel := context.WithTimeout(context.Background(), authMutationTimeout)
			defer cancel()
			if err := e.BindUser(ctx, ev.Session.User.ID); err != nil {
				e.log.Error("cart transition on sign-in failed", "err", err)
			}
		case client.EventSignedOut:
			if err := e.Unbind(); err != nil {
				e.log.Error("cart reset on sign-out failed", "err", err)
			}
		}
	})
}

// Lines returns a copy of the current cart.
func (e *Engine) Lines() []models.CartLine {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.CartLine, len(e.lines))
	copy(out, e.lines)
	return out
}

// ItemCount is the sum of quantities. Derived, never persisted.
func (e *Engine) ItemCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, l := range e.lines {
		n += l.Quantity
	}
	return n
}

// Subtotal is Σ(unit price × quantity). Derived, never persisted.
func (e *Engine) Subtotal() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return subtotal(e.lines)
}

func subtotal(lines []models.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal())
	}
	return total
}

// AddLine puts a product in the cart, merging with an existing line of the
// same (product, variant) instead of duplicating it.
func (e *Engine) AddLine(ctx context.Context, in AddInput) error {
	if err := e.validate.Struct(in); err != nil {
		return errs.Validation(err)
	}
	if in.UnitPrice.IsNegative() {
		return errs.Validation(models.FieldError{Row: "cart_items", Field: "unit_price", Value: in.UnitPrice})
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.remote != nil {
		line := models.CartLine{
			ProductID: in.ProductID,
			Name:      in.Name,
			Image:     in.Image,
			UnitPrice: in.UnitPrice,
			Quantity:  in.Quantity,
			Variant:   in.Variant,
			Origin:    in.Origin,
		}
		if err := e.remote.add(ctx, line); err != nil {
			return err
		}
		return e.reloadRemote(ctx)
	}

	next := make([]models.CartLine, len(e.lines))
	copy(next, e.lines)
	key := models.LineKey{ProductID: in.ProductID, Variant: in.Variant}
	merged := false
	for i := range next {
		if next[i].Key() == key {
			next[i].Quantity += in.Quantity
			merged = true
			break
		}
	}
	if !merged {
		next = append(next, models.CartLine{
			ID:        uuid.NewString(),
			ProductID: in.ProductID,
			Name:      in.Name,
			Image:     in.Image,
			UnitPrice: in.UnitPrice,
			Quantity:  in.Quantity,
			Variant:   in.Variant,
			Origin:    in.Origin,
		})
	}
	return e.commitGuest(next)
}

// SetQuantity changes one line's quantity. Quantities below 1 are a no-op;
// removal goes through RemoveLine, never through a zero quantity.
func (e *Engine) SetQuantity(ctx context.Context, lineID string, qty int) error {
	if qty < 1 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.remote != nil {
		if err := e.remote.setQuantity(ctx, lineID, qty); err != nil {
			return err
		}
		return e.reloadRemote(ctx)
	}

	next := make([]models.CartLine, len(e.lines))
	copy(next, e.lines)
	for i := range next {
		if next[i].ID == lineID {
			next[i].Quantity = qty
			break
		}
	}
	return e.commitGuest(next)
}

// RemoveLine drops one line. The line stays visible if the backend call
// fails.
func (e *Engine) RemoveLine(ctx context.Context, lineID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.remote != nil {
		if err := e.remote.remove(ctx, lineID); err != nil {
			return err
		}
		return e.reloadRemote(ctx)
	}

	next := make([]models.CartLine, 0, len(e.lines))
	for _, l := range e.lines {
		if l.ID != lineID {
			next = append(next, l)
		}
	}
	return e.commitGuest(next)
}

// Clear empties the cart. Order placement calls this after a successful
// submission.
func (e *Engine) Clear(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.remote != nil {
		if err := e.remote.clear(ctx); err != nil {
			return err
		}
		return e.reloadRemote(ctx)
	}
	return e.commitGuest(nil)
}

// BindUser runs the one-directional guest-to-authenticated transition.
// Local lines are merged into the remote cart by (product, variant) with
// quantities added, then the local store is reset and the remote cart
// becomes authoritative. On failure the engine stays in guest mode so the
// transition can be retried.
func (e *Engine) BindUser(ctx context.Context, userID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	remote := &remoteStore{c: e.c, userID: userID}
	for _, l := range e.lines {
		if err := remote.add(ctx, l); err != nil {
			return err
		}
	}

	lines, err := remote.load(ctx)
	if err != nil {
		return err
	}
	if err := e.guest.Reset(); err != nil {
		e.log.Warn("guest cart reset failed after merge", "err", err)
	}
	e.remote = remote
	e.lines = lines
	return nil
}

// Unbind handles sign-out: the remote cart stays on the server for the next
// sign-in, and a fresh empty guest cart starts locally.
func (e *Engine) Unbind() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.remote = nil
	e.lines = nil
	return e.guest.Reset()
}

// reloadRemote refreshes memory from the authoritative remote rows. Callers
// hold e.mu and have already completed their write.
func (e *Engine) reloadRemote(ctx context.Context) error {
	lines, err := e.remote.load(ctx)
	if err != nil {
		return err
	}
	e.lines = lines
	return nil
}

// commitGuest persists the full cart, then swaps it into memory. A failed
// write leaves memory unchanged.
func (e *Engine) commitGuest(next []models.CartLine) error {
	if err := e.guest.Save(next); err != nil {
		return err
	}
	e.lines = next
	return nil
}
