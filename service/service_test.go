package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/client"
	"storefront/client/clienttest"
	models "storefront/model"
	"storefront/store"
)

var (
	laptop   = models.Product{ID: 1, Name: "ThinkPad", Brand: "Lenovo", Category: "Laptop", Price: 1000, StockQuantity: 4, ProductAvailable: true, ImageName: "tp.png"}
	soldOut  = models.Product{ID: 2, Name: "XM5", Brand: "Sony", Category: "Headphone", Price: 300, StockQuantity: 0, ProductAvailable: false}
	teddyToy = models.Product{ID: 3, Name: "Teddy", Brand: "Toyco", Category: "Toys", Price: 20, StockQuantity: 9, ProductAvailable: true}
)

func newTestService(t *testing.T, products ...models.Product) (*clienttest.Backend, *State, *Service) {
	t.Helper()
	b := clienttest.NewBackend(products...)
	t.Cleanup(b.Close)

	c := client.New(b.URL(), nil)
	st, err := NewState(context.Background(), c, store.NewMemoryStore(), StateOptions{})
	require.NoError(t, err)
	return b, st, NewService(c, st, NewImageResolver(c, 2, nil), nil)
}

func TestHomeCatalogError(t *testing.T) {
	b, _, svc := newTestService(t, laptop)
	b.ListStatus = http.StatusBadGateway

	require.Error(t, svc.Refresh(context.Background()))
	home := svc.Home(context.Background(), "")
	assert.NotEmpty(t, home.Error)
	assert.Equal(t, ConnectHint, home.Hint)
	assert.Empty(t, home.Products)
}

func TestHomeListsAndFilters(t *testing.T) {
	b, st, svc := newTestService(t, laptop, soldOut, teddyToy)
	b.SetImage(1, models.Image{ContentType: "image/png", Data: []byte("png")})
	ctx := context.Background()
	require.NoError(t, svc.Refresh(ctx))
	_, _ = st.AddToCart(ctx, laptop)

	home := svc.Home(ctx, "")
	require.Len(t, home.Products, 3)
	assert.Equal(t, []string{"Laptop", "Headphone", "Toys"}, home.Available)

	first := home.Products[0]
	assert.Equal(t, ImageFromBackend, first.Image.Source)
	assert.Equal(t, "/api/products/1/image", first.Image.URL)
	assert.Equal(t, 12, first.Discount)
	assert.Equal(t, 1, first.InCart)

	second := home.Products[1]
	assert.Equal(t, ImageFallback, second.Image.Source)
	assert.Equal(t, CategoryImage("Headphone"), second.Image.URL)
	assert.NotEmpty(t, second.Image.Reason)

	toys := svc.Home(ctx, "Toys")
	require.Len(t, toys.Products, 1)
	assert.Equal(t, int64(3), toys.Products[0].ID)
	assert.Equal(t, 3, toys.Categories[0].Count)
}

func TestSearchDegradesOnBackendFailure(t *testing.T) {
	b, _, svc := newTestService(t, laptop, teddyToy)
	ctx := context.Background()

	res := svc.Search(ctx, "teddy")
	assert.False(t, res.Degraded)
	require.Len(t, res.Results, 1)

	assert.Empty(t, svc.Search(ctx, "   ").Results)

	b.SearchStatus = http.StatusInternalServerError
	res = svc.Search(ctx, "teddy")
	assert.True(t, res.Degraded)
	assert.NotEmpty(t, res.Reason)
	assert.NotNil(t, res.Results)
	assert.Empty(t, res.Results)
}

func TestAddToCartRejectsUnavailable(t *testing.T) {
	_, st, svc := newTestService(t, laptop, soldOut)
	ctx := context.Background()

	_, err := svc.AddToCart(ctx, 2)
	assert.ErrorIs(t, err, ErrUnavailable)

	// not in the catalog yet, so the backend is asked
	e, err := svc.AddToCart(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Quantity)

	_, err = svc.AddToCart(ctx, 99)
	assert.ErrorIs(t, err, client.ErrNotFound)
	assert.Len(t, st.Cart(), 1)
}

func TestDeleteProductCleansCartAndWishlist(t *testing.T) {
	b, st, svc := newTestService(t, laptop, teddyToy)
	ctx := context.Background()
	require.NoError(t, svc.Refresh(ctx))
	_, _ = svc.AddToCart(ctx, 1)
	require.NoError(t, svc.AddToWishlist(ctx, 1))

	require.NoError(t, svc.DeleteProduct(ctx, 1))
	assert.Equal(t, []int64{1}, b.Deleted)
	assert.Empty(t, st.Cart())
	assert.False(t, st.IsInWishlist(1))
	_, ok := st.CatalogProduct(1)
	assert.False(t, ok)
}

func TestGetCartHidesProductsMissingFromCatalog(t *testing.T) {
	_, st, svc := newTestService(t, laptop, teddyToy)
	ctx := context.Background()
	_, _ = st.AddToCart(ctx, laptop)
	_, _ = st.AddToCart(ctx, teddyToy)
	_, _ = st.AddToCart(ctx, teddyToy)
	// deleted from the backend after it was added
	_, _ = st.AddToCart(ctx, models.Product{ID: 77, Price: 5})

	// an empty catalog hides nothing
	assert.Len(t, svc.GetCart(ctx).Lines, 3)

	require.NoError(t, svc.Refresh(ctx))

	cart := svc.GetCart(ctx)
	assert.Equal(t, 1, cart.Hidden)
	require.Len(t, cart.Lines, 2)
	assert.Equal(t, "40.00", cart.Lines[1].LineTotal)
	assert.Equal(t, "1040.00", cart.Summary.Subtotal)
	assert.Len(t, st.Cart(), 3)
}

func TestWishlistToggleAndMoveToCart(t *testing.T) {
	_, st, svc := newTestService(t, laptop, soldOut)
	ctx := context.Background()
	require.NoError(t, svc.Refresh(ctx))

	in, err := svc.ToggleWishlist(ctx, 1)
	require.NoError(t, err)
	assert.True(t, in)
	in, err = svc.ToggleWishlist(ctx, 1)
	require.NoError(t, err)
	assert.False(t, in)

	require.NoError(t, svc.AddToWishlist(ctx, 1))
	require.NoError(t, svc.AddToWishlist(ctx, 2))
	assert.Len(t, svc.GetWishlist(ctx).Items, 2)

	e, err := svc.MoveToCart(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Quantity)
	assert.True(t, st.IsInWishlist(1))

	_, err = svc.MoveToCart(ctx, 2)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = svc.MoveToCart(ctx, 3)
	assert.ErrorIs(t, err, ErrNotInWishlist)
}

func TestProductImageFallsBackToCategory(t *testing.T) {
	b, _, svc := newTestService(t, laptop, teddyToy)
	b.SetImage(1, models.Image{ContentType: "image/jpeg", Data: []byte("jpg")})
	ctx := context.Background()
	require.NoError(t, svc.Refresh(ctx))

	img := svc.ProductImage(ctx, 1)
	require.NotNil(t, img.Image)
	assert.Equal(t, "image/jpeg", img.Image.ContentType)

	img = svc.ProductImage(ctx, 3)
	assert.Nil(t, img.Image)
	assert.Equal(t, CategoryImage("Toys"), img.FallbackURL)
}

func TestProductDetail(t *testing.T) {
	_, _, svc := newTestService(t, laptop, soldOut)
	ctx := context.Background()

	d, err := svc.ProductDetail(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Out of Stock", d.StockLabel)
	assert.Equal(t, ImageFallback, d.Image.Source)

	d, err = svc.ProductDetail(ctx, 1)
	require.NoError(t, err)
	assert.Contains(t, d.StockLabel, "4 units")

	_, err = svc.ProductDetail(ctx, 50)
	assert.ErrorIs(t, err, client.ErrNotFound)
}

func TestServiceCheckoutRefreshesCatalog(t *testing.T) {
	_, st, svc := newTestService(t, laptop)
	ctx := context.Background()
	require.NoError(t, svc.Refresh(ctx))
	_, _ = svc.AddToCart(ctx, 1)

	res, err := svc.Checkout(ctx)
	require.NoError(t, err)
	assert.True(t, res.Completed)

	p, ok := st.CatalogProduct(1)
	require.True(t, ok)
	assert.Equal(t, 3, p.StockQuantity)
}
