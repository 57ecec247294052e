package models

// CartEntry is a product snapshot taken at first add, plus the purchase quantity.
type CartEntry struct {
	Product
	Quantity int `json:"quantity"`
}

// WishlistEntry is a product snapshot with no quantity.
type WishlistEntry struct {
	Product
}
