package order_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/junaidrashid-git/storefront-core/client"
	"github.com/junaidrashid-git/storefront-core/client/clienttest"
	"github.com/junaidrashid-git/storefront-core/models"
	"github.com/junaidrashid-git/storefront-core/order"
)

func TestSubscribeStatusDeliversOrderUpdates(t *testing.T) {
	srv := clienttest.New(t)
	c := client.New(srv.Config(t.TempDir()), nil)

	ch := make(chan models.Order, 4)
	unsub, err := order.SubscribeStatus(c, "user-maya", func(o models.Order) { ch <- o })
	require.NoError(t, err)
	defer unsub()

	require.Eventually(t, func() bool { return srv.Subscribed("orders:user-maya") },
		2*time.Second, 10*time.Millisecond)

	srv.Push("orders:user-maya", "UPDATE", map[string]any{
		"id": "o1", "display_id": "ORD-9F3A21BC", "user_id": "user-maya",
		"total_amount": "553", "status": "shipped",
		"shipping_address": "12 Harbor Lane, Dockside",
	})

	select {
	case o := <-ch:
		require.Equal(t, "ORD-9F3A21BC", o.DisplayID)
		require.Equal(t, models.OrderStatusShipped, o.Status)
		require.True(t, o.TotalAmount.Equal(decimal.NewFromInt(553)))
	case <-time.After(3 * time.Second):
		t.Fatal("no status update delivered")
	}

	// Malformed pushes are dropped, not surfaced.
	srv.Push("orders:user-maya", "UPDATE", map[string]any{"id": "o2", "status": "teleported"})
	select {
	case o := <-ch:
		t.Fatalf("malformed update delivered: %+v", o)
	case <-time.After(100 * time.Millisecond):
	}
}
