package order

import (
	"context"
	"encoding/json"

	"github.com/junaidrashid-git/storefront-core/client"
	"github.com/junaidrashid-git/storefront-core/fetch"
	"github.com/junaidrashid-git/storefront-core/models"
)

// ListMine loads the caller's order history. This is a role-scoped read, so
// it gates on session readiness and goes through the standard fetch
// lifecycle.
func ListMine(ctx context.Context, c *client.Client, gate fetch.Gate, userID string) ([]models.Order, error) {
	return fetch.Run(ctx, fetch.Options{Gate: gate}, func(ctx context.Context) ([]models.Order, error) {
		var rows []models.OrderRow
		err := c.From("orders").
			Select("*").
			Eq("user_id", userID).
			Order("created_at", false).
			Get(ctx, &rows)
		if err != nil {
			return nil, err
		}
		orders := make([]models.Order, 0, len(rows))
		for _, row := range rows {
			o, err := row.Domain()
			if err != nil {
				return nil, err
			}
			orders = append(orders, o)
		}
		return orders, nil
	})
}

// ListLines loads the immutable lines of one order.
func ListLines(ctx context.Context, c *client.Client, gate fetch.Gate, orderID string) ([]models.OrderLine, error) {
	return fetch.Run(ctx, fetch.Options{Gate: gate}, func(ctx context.Context) ([]models.OrderLine, error) {
		var rows []models.OrderLineRow
		err := c.From("order_items").
			Select("*").
			Eq("order_id", orderID).
			Get(ctx, &rows)
		if err != nil {
			return nil, err
		}
		lines := make([]models.OrderLine, 0, len(rows))
		for _, row := range rows {
			l, err := row.Domain()
			if err != nil {
				return nil, err
			}
			lines = append(lines, l)
		}
		return lines, nil
	})
}

// SubscribeStatus delivers backend-pushed status changes for the user's
// orders to the tracking view. Malformed events are dropped.
func SubscribeStatus(c *client.Client, userID string, fn func(models.Order)) (func(), error) {
	return c.Realtime.Subscribe("orders:"+userID, func(ev client.RealtimeEvent) {
		var row models.OrderRow
		if err := json.Unmarshal(ev.Payload, &row); err != nil {
			return
		}
		o, err := row.Domain()
		if err != nil {
			return
		}
		fn(o)
	})
}
