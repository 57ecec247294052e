package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	models "storefront/model"
)

func TestDiscountTable(t *testing.T) {
	tests := []struct {
		id   int64
		want int
	}{
		{0, 10}, {1, 12}, {8, 30}, {9, 10}, {13, 20}, {-1, 30},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Discount(tt.id), "id %d", tt.id)
	}
}

func TestOldPrice(t *testing.T) {
	// id 4 -> 20% off, so 800 was 1000
	assert.Equal(t, 1000.0, OldPrice(4, 800))
	// id 0 -> 10% off, 99 / 0.9 = 110
	assert.Equal(t, 110.0, OldPrice(0, 99))
}

func TestCategoryImage(t *testing.T) {
	assert.Equal(t, categoryImages["laptop"], CategoryImage("Laptop"))
	assert.Equal(t, categoryImages["smarttv"], CategoryImage(" SmartTV "))
	assert.Equal(t, defaultCategoryImage, CategoryImage("Groceries"))
	assert.Equal(t, defaultCategoryImage, CategoryImage(""))
}

func TestCountCategoriesAndFilter(t *testing.T) {
	products := []models.Product{
		{ID: 1, Category: "Laptop"},
		{ID: 2, Category: "laptop"},
		{ID: 3, Category: "Toys"},
		{ID: 4, Category: "Garden"},
		{ID: 5},
	}

	counts := CountCategories(products)
	assert.Len(t, counts, len(FixedCategories)+1)
	assert.Equal(t, CategoryCount{Name: "All", Image: defaultCategoryImage, Count: 5}, counts[0])
	assert.Equal(t, "Laptop", counts[1].Name)
	assert.Equal(t, 2, counts[1].Count)

	assert.Equal(t, []string{"Laptop", "laptop", "Toys", "Garden"}, Categories(products))

	filtered := FilterByCategory(products, "Laptop")
	assert.Len(t, filtered, 1)
	assert.Len(t, FilterByCategory(products, ""), 5)
}

func TestSummarize(t *testing.T) {
	entries := []models.CartEntry{
		{Product: models.Product{ID: 1, Price: 100}, Quantity: 2},
		{Product: models.Product{ID: 2, Price: 19.99}, Quantity: 1},
	}
	got := Summarize(entries)
	assert.Equal(t, CartSummary{
		Items:    2,
		Units:    3,
		Subtotal: "219.99",
		Shipping: "Free",
		Tax:      "39.60",
		Total:    "259.59",
	}, got)
	assert.Equal(t, "200.00", LineTotal(entries[0]))

	empty := Summarize(nil)
	assert.Equal(t, "0.00", empty.Total)
}
