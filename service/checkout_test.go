package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/client"
	"storefront/client/clienttest"
	models "storefront/model"
	"storefront/store"
)

func checkoutFixture(t *testing.T, products ...models.Product) (*clienttest.Backend, *State, *Checkout) {
	t.Helper()
	b := clienttest.NewBackend(products...)
	t.Cleanup(b.Close)

	c := client.New(b.URL(), nil)
	st, err := NewState(context.Background(), c, store.NewMemoryStore(), StateOptions{})
	require.NoError(t, err)
	images := NewImageResolver(c, 4, nil)
	return b, st, NewCheckout(c, images, st, nil)
}

func TestCheckoutSuccessDecrementsStockWithOwnImages(t *testing.T) {
	laptop := models.Product{ID: 1, Name: "Laptop", StockQuantity: 5, ProductAvailable: true, ImageName: "laptop.png"}
	phone := models.Product{ID: 2, Name: "Phone", StockQuantity: 2, ProductAvailable: true, ImageName: "phone.png"}
	b, st, co := checkoutFixture(t, laptop, phone)
	b.SetImage(1, models.Image{ContentType: "image/png", Data: []byte("laptop-bytes")})
	b.SetImage(2, models.Image{ContentType: "image/png", Data: []byte("phone-bytes")})

	ctx := context.Background()
	_, _ = st.AddToCart(ctx, laptop)
	_, _ = st.AddToCart(ctx, laptop)
	_, _ = st.AddToCart(ctx, phone)

	res, err := co.Submit(ctx)
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.True(t, res.CartCleared)
	assert.NotEmpty(t, res.ID)
	assert.Empty(t, st.Cart())

	got1, _ := b.Product(1)
	got2, _ := b.Product(2)
	assert.Equal(t, 3, got1.StockQuantity)
	assert.Equal(t, 1, got2.StockQuantity)

	calls := b.UpdateCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, []byte("laptop-bytes"), calls[0].ImageData)
	assert.Equal(t, "laptop.png", calls[0].ImageName)
	assert.Equal(t, []byte("phone-bytes"), calls[1].ImageData)
	assert.Equal(t, "phone.png", calls[1].ImageName)

	for _, l := range res.Lines {
		assert.Equal(t, models.LineStatusApplied, l.Status)
		assert.True(t, l.ImageAttached)
	}
	assert.Equal(t, 5, res.Lines[0].PreviousStock)
	assert.Equal(t, 3, res.Lines[0].NewStock)
}

func TestCheckoutOmitsImageWhenProductHasNone(t *testing.T) {
	p := models.Product{ID: 3, Name: "Toy", StockQuantity: 4, ProductAvailable: true}
	b, st, co := checkoutFixture(t, p)
	_, _ = st.AddToCart(context.Background(), p)

	res, err := co.Submit(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Lines[0].ImageAttached)

	calls := b.UpdateCalls()
	require.Len(t, calls, 1)
	assert.False(t, calls[0].HasImage)
}

func TestCheckoutPartialFailureCompensates(t *testing.T) {
	a := models.Product{ID: 1, Name: "A", StockQuantity: 5, ProductAvailable: true}
	bp := models.Product{ID: 2, Name: "B", StockQuantity: 5, ProductAvailable: true}
	c := models.Product{ID: 3, Name: "C", StockQuantity: 5, ProductAvailable: true}
	b, st, co := checkoutFixture(t, a, bp, c)
	b.UpdateStatus[2] = http.StatusInternalServerError

	ctx := context.Background()
	for _, p := range []models.Product{a, bp, c} {
		_, _ = st.AddToCart(ctx, p)
	}

	res, err := co.Submit(ctx)
	require.Error(t, err)
	assert.False(t, res.Completed)
	assert.False(t, res.CartCleared)
	assert.Len(t, st.Cart(), 3, "cart must survive a failed checkout")

	assert.Equal(t, models.LineStatusCompensated, res.Lines[0].Status)
	assert.Equal(t, models.LineStatusFailed, res.Lines[1].Status)
	assert.NotEmpty(t, res.Lines[1].Error)
	assert.Equal(t, models.LineStatusSkipped, res.Lines[2].Status)

	restored, _ := b.Product(1)
	assert.Equal(t, 5, restored.StockQuantity)
	untouched, _ := b.Product(3)
	assert.Equal(t, 5, untouched.StockQuantity)

	// apply A, rejected B, compensate A
	calls := b.UpdateCalls()
	require.Len(t, calls, 3)
	assert.Equal(t, int64(1), calls[2].ProductID)
	assert.Equal(t, 5, calls[2].Product.StockQuantity)
}

func TestCheckoutInsufficientStock(t *testing.T) {
	p := models.Product{ID: 1, Name: "Scarce", StockQuantity: 1, ProductAvailable: true}
	b, st, co := checkoutFixture(t, p)
	ctx := context.Background()
	_, _ = st.AddToCart(ctx, p)
	_, _ = st.AddToCart(ctx, p)

	res, err := co.Submit(ctx)
	assert.True(t, errors.Is(err, ErrInsufficientStock), "got %v", err)
	assert.Equal(t, models.LineStatusFailed, res.Lines[0].Status)
	assert.Empty(t, b.UpdateCalls())
	assert.Len(t, st.Cart(), 1)
}

func TestCheckoutMissingProduct(t *testing.T) {
	b, st, co := checkoutFixture(t)
	_, _ = st.AddToCart(context.Background(), models.Product{ID: 404, Name: "Gone"})

	_, err := co.Submit(context.Background())
	assert.ErrorIs(t, err, client.ErrNotFound)
	assert.Empty(t, b.UpdateCalls())
}

func TestCheckoutEmptyCart(t *testing.T) {
	_, _, co := checkoutFixture(t)
	_, err := co.Submit(context.Background())
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckoutSkipsEntriesMissingFromCatalog(t *testing.T) {
	laptop := models.Product{ID: 1, Name: "Laptop", Price: 1000, StockQuantity: 5, ProductAvailable: true}
	b, st, co := checkoutFixture(t, laptop)

	ctx := context.Background()
	_, _ = st.AddToCart(ctx, laptop)
	// deleted from the backend after it was added
	_, _ = st.AddToCart(ctx, models.Product{ID: 77, Name: "Gone", Price: 5, StockQuantity: 3})
	require.NoError(t, st.Refresh(ctx))

	live, _ := st.SplitCart()
	want := Summarize(live).Total

	for attempt := 0; attempt < 2; attempt++ {
		if attempt == 1 {
			_, _ = st.AddToCart(ctx, laptop)
			_, _ = st.AddToCart(ctx, models.Product{ID: 77, Name: "Gone", Price: 5, StockQuantity: 3})
		}
		res, err := co.Submit(ctx)
		require.NoError(t, err, "attempt %d", attempt)
		assert.True(t, res.Completed)
		assert.Equal(t, want, res.Total)
		assert.Equal(t, "1180.00", res.Total)

		require.Len(t, res.Lines, 2)
		assert.Equal(t, models.LineStatusApplied, res.Lines[0].Status)
		assert.Equal(t, int64(77), res.Lines[1].ProductID)
		assert.Equal(t, models.LineStatusSkipped, res.Lines[1].Status)
		assert.Equal(t, "not in catalog", res.Lines[1].Error)
		assert.Empty(t, st.Cart())
	}

	// only the laptop was ever written, once per run
	calls := b.UpdateCalls()
	require.Len(t, calls, 2)
	for _, c := range calls {
		assert.Equal(t, int64(1), c.ProductID)
	}
	got, _ := b.Product(1)
	assert.Equal(t, 3, got.StockQuantity)
}

func TestCheckoutOnlyStaleEntriesIsEmpty(t *testing.T) {
	laptop := models.Product{ID: 1, Name: "Laptop", StockQuantity: 5, ProductAvailable: true}
	b, st, co := checkoutFixture(t, laptop)
	ctx := context.Background()
	_, _ = st.AddToCart(ctx, models.Product{ID: 77, Name: "Gone"})
	require.NoError(t, st.Refresh(ctx))

	_, err := co.Submit(ctx)
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, b.UpdateCalls())
	assert.Len(t, st.Cart(), 1)
}

// updateHook runs fn before the first stock write goes out.
type updateHook struct {
	CheckoutBackend
	once sync.Once
	fn   func()
}

func (u *updateHook) UpdateProduct(ctx context.Context, p models.Product, img *models.Image) error {
	u.once.Do(u.fn)
	return u.CheckoutBackend.UpdateProduct(ctx, p, img)
}

func TestCheckoutKeepsEntriesAddedWhileRunning(t *testing.T) {
	laptop := models.Product{ID: 1, Name: "Laptop", Price: 1000, StockQuantity: 5, ProductAvailable: true}
	teddy := models.Product{ID: 3, Name: "Teddy", Price: 20, StockQuantity: 9, ProductAvailable: true}
	b := clienttest.NewBackend(laptop, teddy)
	t.Cleanup(b.Close)

	ctx := context.Background()
	c := client.New(b.URL(), nil)
	st, err := NewState(ctx, c, store.NewMemoryStore(), StateOptions{})
	require.NoError(t, err)

	hook := &updateHook{CheckoutBackend: c, fn: func() {
		_, _ = st.AddToCart(ctx, teddy)
		_, _ = st.AddToCart(ctx, laptop)
	}}
	co := NewCheckout(hook, NewImageResolver(c, 2, nil), st, nil)

	_, _ = st.AddToCart(ctx, laptop)
	res, err := co.Submit(ctx)
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	assert.True(t, res.CartCleared)

	cart := st.Cart()
	require.Len(t, cart, 2)
	assert.Equal(t, int64(1), cart[0].ID)
	assert.Equal(t, 1, cart[0].Quantity)
	assert.Equal(t, int64(3), cart[1].ID)
	assert.Equal(t, 1, cart[1].Quantity)

	got, _ := b.Product(1)
	assert.Equal(t, 4, got.StockQuantity)
}
