package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/junaidrashid-git/storefront-core/client"
	"github.com/junaidrashid-git/storefront-core/models"
)

var ErrBadTransition = errors.New("illegal order status transition")

// nowFunc is swapped in tests to pin persisted timestamps.
var nowFunc = time.Now

// transitions is the forward-only status machine. The two cancellation
// edges are the only way off the forward path; delivered and cancelled are
// terminal. No transition skips a state.
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:   {models.OrderStatusConfirmed, models.OrderStatusCancelled},
	models.OrderStatusConfirmed: {models.OrderStatusShipped, models.OrderStatusCancelled},
	models.OrderStatusShipped:   {models.OrderStatusInTransit},
	models.OrderStatusInTransit: {models.OrderStatusDelivered},
	models.OrderStatusDelivered: nil,
	models.OrderStatusCancelled: nil,
}

func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Apply moves o to the next status, stamping the matching timestamp for
// forward transitions.
func Apply(o *models.Order, to models.OrderStatus, now time.Time) error {
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, o.Status, to)
	}
	o.Status = to
	switch to {
	case models.OrderStatusConfirmed:
		o.ConfirmedAt = &now
	case models.OrderStatusShipped:
		o.ShippedAt = &now
	case models.OrderStatusInTransit:
		o.InTransitAt = &now
	case models.OrderStatusDelivered:
		o.DeliveredAt = &now
	}
	return nil
}

// statusPatch is the remote update for one transition.
func statusPatch(to models.OrderStatus, now time.Time) map[string]any {
	patch := map[string]any{"status": string(to)}
	switch to {
	case models.OrderStatusConfirmed:
		patch["confirmed_at"] = now
	case models.OrderStatusShipped:
		patch["shipped_at"] = now
	case models.OrderStatusInTransit:
		patch["in_transit_at"] = now
	case models.OrderStatusDelivered:
		patch["delivered_at"] = now
	}
	return patch
}

// Advance applies one admin-driven transition to a persisted order. The
// machine is enforced here even though the backend also constrains writes.
func Advance(ctx context.Context, c *client.Client, orderID string, to models.OrderStatus) (models.Order, error) {
	var row models.OrderRow
	err := c.From("orders").Select("*").Eq("id", orderID).Single().Get(ctx, &row)
	if err != nil {
		return models.Order{}, err
	}
	o, err := row.Domain()
	if err != nil {
		return models.Order{}, err
	}

	now := nowFunc().UTC()
	if err := Apply(&o, to, now); err != nil {
		return models.Order{}, err
	}
	if err := c.From("orders").Eq("id", orderID).Update(ctx, statusPatch(to, now)); err != nil {
		return models.Order{}, err
	}
	return o, nil
}
