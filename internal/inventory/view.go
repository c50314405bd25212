package inventory

import "github.com/hpungsan/stockpile/internal/item"

// AllCategories is the filter value that shows every item.
const AllCategories = "All"

// Row is an item as displayed, with its low-stock flag.
type Row struct {
	item.Item
	LowStock bool `json:"low_stock"`
}

// View is a read-only snapshot derived from the collection.
// It is rebuilt on demand and never persisted.
type View struct {
	// Items is the filtered collection, in collection order
	Items []Row `json:"items"`

	// Categories is every distinct category across the full collection, first-seen order
	Categories []string `json:"categories"`

	// Filter is the active category filter or AllCategories
	Filter string `json:"filter"`

	// Total is the size of the full collection, ignoring the filter
	Total int `json:"total"`
}

// buildView derives the filtered rows and category list from items.
func buildView(items []item.Item, filter string) View {
	rows := make([]Row, 0, len(items))
	for _, it := range items {
		if filter != AllCategories && it.Category != filter {
			continue
		}
		rows = append(rows, Row{Item: it, LowStock: it.LowStock()})
	}
	return View{
		Items:      rows,
		Categories: Categories(items),
		Filter:     filter,
		Total:      len(items),
	}
}

// Categories returns the distinct categories of items in first-seen order.
func Categories(items []item.Item) []string {
	seen := make(map[string]bool)
	cats := make([]string, 0)
	for _, it := range items {
		if !seen[it.Category] {
			seen[it.Category] = true
			cats = append(cats, it.Category)
		}
	}
	return cats
}

// LowStockCount returns how many rows in the view are flagged low stock.
func (v View) LowStockCount() int {
	n := 0
	for _, r := range v.Items {
		if r.LowStock {
			n++
		}
	}
	return n
}
