package service

import (
	"math"
	"strings"

	models "storefront/model"
)

// discounts is indexed by product id so a product always shows the same badge.
var discounts = [...]int{10, 12, 15, 18, 20, 22, 25, 28, 30}

func Discount(id int64) int {
	i := id % int64(len(discounts))
	if i < 0 {
		i += int64(len(discounts))
	}
	return discounts[i]
}

// OldPrice is the pre-discount price shown struck through next to price.
func OldPrice(id int64, price float64) float64 {
	return math.Round(price / (1 - float64(Discount(id))/100))
}

const defaultCategoryImage = "https://images.unsplash.com/photo-1472851294608-062f824d29cc?w=200&q=80"

var categoryImages = map[string]string{
	"laptop":       "https://images.unsplash.com/photo-1496181133206-80ce9b88a853?w=200&q=80",
	"headphone":    "https://images.unsplash.com/photo-1505740420928-5e560c06d30e?w=200&q=80",
	"mobile":       "https://images.unsplash.com/photo-1511707171634-5f897ff02aa9?w=200&q=80",
	"electronics":  "https://images.unsplash.com/photo-1550009158-9ebf69173e03?w=200&q=80",
	"toys":         "https://images.unsplash.com/photo-1558060370-d644479cb6f7?w=200&q=80",
	"fashion":      "https://images.unsplash.com/photo-1441984904996-e0b6ba687e04?w=200&q=80",
	"cars":         "https://images.unsplash.com/photo-1552519507-da3b142c6e3d?w=200&q=80",
	"smarttv":      "https://images.unsplash.com/photo-1593359677879-a4bb92f4834c?w=200&q=80",
	"speaker":      "https://images.unsplash.com/photo-1608043152269-423dbba4e7e1?w=200&q=80",
	"tablets":      "https://images.unsplash.com/photo-1544244015-0df4b3ffc6b0?w=200&q=80",
	"airpods":      "https://images.unsplash.com/photo-1606220945770-b5b6c2c55bf1?w=200&q=80",
	"smartwatches": "https://images.unsplash.com/photo-1523475496153-3e8b0a73d8f9?w=200&q=80",
}

// CategoryImage returns the static placeholder for category (case-insensitive).
func CategoryImage(category string) string {
	if img, ok := categoryImages[strings.ToLower(strings.TrimSpace(category))]; ok {
		return img
	}
	return defaultCategoryImage
}

// FixedCategories are always listed on the home page, even with no products.
var FixedCategories = []string{"Laptop", "Headphone", "Mobile", "Electronics", "Toys", "Fashion"}

type CategoryCount struct {
	Name  string `json:"name"`
	Image string `json:"image"`
	Count int    `json:"count"`
}

// CountCategories returns the "All" bucket followed by FixedCategories.
func CountCategories(products []models.Product) []CategoryCount {
	out := make([]CategoryCount, 0, len(FixedCategories)+1)
	out = append(out, CategoryCount{Name: "All", Image: defaultCategoryImage, Count: len(products)})
	for _, name := range FixedCategories {
		n := 0
		for _, p := range products {
			if strings.EqualFold(p.Category, name) {
				n++
			}
		}
		out = append(out, CategoryCount{Name: name, Image: CategoryImage(name), Count: n})
	}
	return out
}

// Categories lists the distinct non-empty categories in catalog order.
func Categories(products []models.Product) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, p := range products {
		if p.Category == "" || seen[p.Category] {
			continue
		}
		seen[p.Category] = true
		out = append(out, p.Category)
	}
	return out
}

func FilterByCategory(products []models.Product, category string) []models.Product {
	if category == "" {
		return products
	}
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}
