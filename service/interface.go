package service

import (
	"context"

	models "storefront/model"
)

type ServiceInterface interface {
	Home(ctx context.Context, category string) HomeDTO
	Refresh(ctx context.Context) error

	ProductDetail(ctx context.Context, id int64) (ProductDetailDTO, error)
	DeleteProduct(ctx context.Context, id int64) error
	ProductImage(ctx context.Context, id int64) ImageDTO
	Search(ctx context.Context, keyword string) SearchDTO

	GetCart(ctx context.Context) CartDTO
	AddToCart(ctx context.Context, productID int64) (models.CartEntry, error)
	RemoveFromCart(ctx context.Context, productID int64) error
	ClearCart(ctx context.Context) error
	IncreaseQuantity(ctx context.Context, productID int64) (models.CartEntry, error)
	DecreaseQuantity(ctx context.Context, productID int64) (models.CartEntry, error)
	SetQuantity(ctx context.Context, productID int64, qty int) (models.CartEntry, error)

	GetWishlist(ctx context.Context) WishlistDTO
	AddToWishlist(ctx context.Context, productID int64) error
	RemoveFromWishlist(ctx context.Context, productID int64) error
	ToggleWishlist(ctx context.Context, productID int64) (bool, error)
	MoveToCart(ctx context.Context, productID int64) (models.CartEntry, error)

	Checkout(ctx context.Context) (models.CheckoutResult, error)
}
