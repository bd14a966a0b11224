package catalog_test

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/junaidrashid-git/storefront-core/catalog"
	"github.com/junaidrashid-git/storefront-core/client"
	"github.com/junaidrashid-git/storefront-core/client/clienttest"
)

func fixture(t *testing.T) (*client.Client, *clienttest.Server) {
	t.Helper()
	srv := clienttest.New(t)
	c := client.New(srv.Config(t.TempDir()), nil)
	srv.Seed("products",
		map[string]any{"id": "p1", "name": "Walnut Serving Board", "sale_price": "120", "category_id": "boards"},
		map[string]any{"id": "p2", "name": "Walnut Coaster Set", "sale_price": "45", "category_id": "coasters"},
		map[string]any{"id": "p3", "name": "Oak Serving Board", "sale_price": "90", "category_id": "boards"},
	)
	return c, srv
}

func TestProductsSearchFilter(t *testing.T) {
	c, _ := fixture(t)

	got, err := catalog.Products(context.Background(), c, catalog.Filter{Search: "walnut"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, p := range got {
		require.Contains(t, strings.ToLower(p.Name), "walnut")
	}
}

func TestProductsCategoryAndPriceFilters(t *testing.T) {
	c, _ := fixture(t)
	min := decimal.NewFromInt(100)

	got, err := catalog.Products(context.Background(), c, catalog.Filter{
		CategoryID: "boards",
		MinPrice:   &min,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "p1", got[0].ID)
}

func TestProductsRetryOnTransientFailure(t *testing.T) {
	c, srv := fixture(t)
	srv.FailNext("GET", "/rest/v1/products", 1)

	got, err := catalog.Products(context.Background(), c, catalog.Filter{})
	require.NoError(t, err, "a single transient failure is absorbed by the retry")
	require.Len(t, got, 3)
	require.Equal(t, 2, srv.CountRequests("GET /rest/v1/products"))
}

func TestCategories(t *testing.T) {
	c, srv := fixture(t)
	srv.Seed("categories",
		map[string]any{"id": "boards", "name": "Serving Boards"},
		map[string]any{"id": "coasters", "name": "Coasters"},
	)

	got, err := catalog.Categories(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestSuggestions(t *testing.T) {
	c, _ := fixture(t)

	got, err := catalog.Suggestions(context.Background(), c, "Walnut", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)

	got, err = catalog.Suggestions(context.Background(), c, "", 5)
	require.NoError(t, err)
	require.Empty(t, got, "empty prefix short-circuits without a backend call")
}

func TestUploadImage(t *testing.T) {
	c, _ := fixture(t)

	u, err := catalog.UploadImage(context.Background(), c, "board.jpg",
		strings.NewReader("jpeg-bytes"), "image/jpeg")
	require.NoError(t, err)
	require.Contains(t, u, "/storage/v1/object/public/product-images/products/board.jpg")
	require.Equal(t, u, catalog.ImageURL(c, "products/board.jpg"))
}
