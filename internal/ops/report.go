package ops

import (
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/stockpile/internal/inventory"
	"github.com/hpungsan/stockpile/internal/item"
)

// CategorySummary aggregates one category.
type CategorySummary struct {
	Category string `json:"category"`
	Items    int    `json:"items"`
	Units    int    `json:"units"`
	LowStock int    `json:"low_stock"`
}

// Summarize aggregates items per category in first-seen category order.
func Summarize(items []item.Item) []CategorySummary {
	cats := inventory.Categories(items)
	idx := make(map[string]int, len(cats))
	out := make([]CategorySummary, len(cats))
	for i, c := range cats {
		idx[c] = i
		out[i].Category = c
	}
	for _, it := range items {
		s := &out[idx[it.Category]]
		s.Items++
		s.Units += it.Quantity
		if it.LowStock() {
			s.LowStock++
		}
	}
	return out
}

// Report renders a Markdown stock report for the full collection.
func Report(items []item.Item, generatedAt time.Time) string {
	var b strings.Builder

	units := 0
	var low []item.Item
	for _, it := range items {
		units += it.Quantity
		if it.LowStock() {
			low = append(low, it)
		}
	}

	b.WriteString("# Inventory report\n\n")
	fmt.Fprintf(&b, "Generated %s.\n\n", generatedAt.UTC().Format("2006-01-02 15:04 UTC"))

	if len(items) == 0 {
		b.WriteString("No items available in the inventory.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "- **Items:** %d\n", len(items))
	fmt.Fprintf(&b, "- **Units:** %d\n", units)
	fmt.Fprintf(&b, "- **Low stock (< %d):** %d\n\n", item.LowStockThreshold, len(low))

	b.WriteString("## By category\n\n")
	b.WriteString("| Category | Items | Units | Low stock |\n")
	b.WriteString("|---|---:|---:|---:|\n")
	for _, s := range Summarize(items) {
		fmt.Fprintf(&b, "| %s | %d | %d | %d |\n", escapeCell(s.Category), s.Items, s.Units, s.LowStock)
	}

	if len(low) > 0 {
		b.WriteString("\n## Low stock\n\n")
		for _, it := range low {
			fmt.Fprintf(&b, "- %s (%s): %d\n", escapeInline(it.Name), escapeInline(it.Category), it.Quantity)
		}
	}

	return b.String()
}

// escapeCell keeps user text from breaking a Markdown table row.
func escapeCell(s string) string {
	return strings.ReplaceAll(escapeInline(s), "|", `\|`)
}

// escapeInline neutralizes Markdown emphasis and link syntax in user text.
func escapeInline(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		"*", `\*`,
		"_", `\_`,
		"`", "\\`",
		"[", `\[`,
		"]", `\]`,
		"<", "&lt;",
		">", "&gt;",
	)
	return r.Replace(s)
}
