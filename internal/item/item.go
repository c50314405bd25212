package item

import "strconv"

// LowStockThreshold is the quantity below which an item is flagged as low stock.
const LowStockThreshold = 10

// Item represents a single inventory record.
// This is also the persisted record shape; field order in JSON is not significant.
type Item struct {
	// ID uniquely identifies the item and never changes after creation
	ID int64 `json:"id"`

	// Name is the display name
	Name string `json:"name"`

	// Category groups items for filtering; categories are not predefined
	Category string `json:"category"`

	// Quantity is the validated stock count, always > 0
	Quantity int `json:"quantity"`
}

// Draft is pending user input staged before validation.
// All fields are kept as raw strings, exactly as typed.
type Draft struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Quantity string `json:"quantity"`
}

// IsEmpty reports whether every field of the draft is blank.
func (d Draft) IsEmpty() bool {
	return d == Draft{}
}

// ToDraft returns a draft holding the item's current values.
func (it Item) ToDraft() Draft {
	return Draft{
		Name:     it.Name,
		Category: it.Category,
		Quantity: strconv.Itoa(it.Quantity),
	}
}

// IsLowStock reports whether quantity is below LowStockThreshold.
func IsLowStock(quantity int) bool {
	return quantity < LowStockThreshold
}

// LowStock reports whether the item is below LowStockThreshold.
func (it Item) LowStock() bool {
	return IsLowStock(it.Quantity)
}
