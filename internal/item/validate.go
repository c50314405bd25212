package item

import (
	"math"
	"strconv"
	"strings"

	"github.com/hpungsan/stockpile/internal/errors"
)

// maxQuantity keeps parsed quantities inside int range on 32-bit platforms.
const maxQuantity = math.MaxInt32

// Fields are the validated values of a Draft.
type Fields struct {
	Name     string
	Category string
	Quantity int
}

// Validate checks a draft and converts it to typed fields.
// Rules are applied in order and the first failure wins:
//  1. name, category and quantity must all be non-blank
//  2. quantity must parse as a number greater than zero
//
// Quantities must be whole numbers; "2.5" fails rule 2 like "-3" does.
func Validate(d Draft) (Fields, error) {
	name := Clean(d.Name)
	category := Clean(d.Category)
	quantityRaw := strings.TrimSpace(d.Quantity)

	if name == "" || category == "" || quantityRaw == "" {
		return Fields{}, errors.NewInvalidRequest(errors.MsgFieldsRequired)
	}

	quantity, ok := ParseQuantity(quantityRaw)
	if !ok {
		return Fields{}, errors.NewInvalidRequest(errors.MsgQuantityPositive)
	}

	return Fields{
		Name:     name,
		Category: category,
		Quantity: quantity,
	}, nil
}

// ParseQuantity parses a positive whole quantity.
// Accepts integer ("12") and integral decimal ("12.0", "1e1") spellings.
func ParseQuantity(s string) (int, bool) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n <= 0 || n > maxQuantity {
			return 0, false
		}
		return int(n), true
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f <= 0 || f > maxQuantity || math.Trunc(f) != f {
		return 0, false
	}
	return int(f), true
}
