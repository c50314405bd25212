// Package ops implements the file and reporting operations that sit on top
// of an inventory: JSONL export and import, and the Markdown stock report.
package ops

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hpungsan/stockpile/internal/errors"
)

// ParseItemID parses an item id as given on a command line, URL or tool call.
func ParseItemID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.NewInvalidRequest("id is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewInvalidRequest(fmt.Sprintf("invalid item id: %q", raw))
	}
	return id, nil
}

// ParseImportMode validates an import mode; "" means append.
func ParseImportMode(raw string) (ImportMode, error) {
	switch ImportMode(strings.TrimSpace(raw)) {
	case "", ImportModeAppend:
		return ImportModeAppend, nil
	case ImportModeReplace:
		return ImportModeReplace, nil
	default:
		return "", errors.NewInvalidRequest("mode must be one of: append, replace")
	}
}
