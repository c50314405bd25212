package inventory

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/hpungsan/stockpile/internal/item"
)

// record mirrors item.Item with pointer fields so missing or null
// fields can be told apart from zero values.
type record struct {
	ID       *int64  `json:"id"`
	Name     *string `json:"name"`
	Category *string `json:"category"`
	Quantity *int    `json:"quantity"`
}

// Encode serializes the collection as a JSON array in collection order.
func Encode(items []item.Item) (string, error) {
	if items == nil {
		items = []item.Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Decode parses a persisted collection.
// The value must be a JSON array of records carrying id, name, category
// and quantity with the expected types. Ids must be positive and unique, name and
// category non-empty, quantity positive. Unknown fields are ignored.
func Decode(raw string) ([]item.Item, error) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("stored value is not a JSON array")
	}

	var records []record
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, err
	}

	items := make([]item.Item, 0, len(records))
	seen := make(map[int64]bool, len(records))
	for i, r := range records {
		if r.ID == nil || r.Name == nil || r.Category == nil || r.Quantity == nil {
			return nil, fmt.Errorf("record %d: missing field", i)
		}
		if *r.ID <= 0 {
			return nil, fmt.Errorf("record %d: id must be positive, got %d", i, *r.ID)
		}
		if seen[*r.ID] {
			return nil, fmt.Errorf("record %d: duplicate id %d", i, *r.ID)
		}
		if *r.Name == "" || *r.Category == "" {
			return nil, fmt.Errorf("record %d: empty name or category", i)
		}
		if *r.Quantity <= 0 {
			return nil, fmt.Errorf("record %d: quantity must be positive, got %d", i, *r.Quantity)
		}
		seen[*r.ID] = true
		items = append(items, item.Item{
			ID:       *r.ID,
			Name:     *r.Name,
			Category: *r.Category,
			Quantity: *r.Quantity,
		})
	}
	return items, nil
}
