package ops

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/hpungsan/stockpile/internal/errors"
	"github.com/hpungsan/stockpile/internal/inventory"
	"github.com/hpungsan/stockpile/internal/item"
)

// ImportMode controls what happens to the existing collection.
type ImportMode string

const (
	ImportModeAppend  ImportMode = "append"  // add imported items after existing ones
	ImportModeReplace ImportMode = "replace" // imported items become the whole collection
)

// maxImportLine bounds a single JSONL line.
const maxImportLine = 1 << 20

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required
	Mode ImportMode // default: append
}

// ImportOutput contains the result of the Import operation.
// Imported is 0 whenever Errors is non-empty: imports are all-or-nothing.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Mode     ImportMode    `json:"mode"`
	Errors   []ImportError `json:"errors"`
}

// ImportError describes a rejected line.
type ImportError struct {
	Line    int    `json:"line"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// importRecord is one line of an export file. Quantity is kept raw so the
// same validation as user input applies to it.
type importRecord struct {
	StockpileExport bool            `json:"_stockpile_export"`
	Name            string          `json:"name"`
	Category        string          `json:"category"`
	Quantity        json.RawMessage `json:"quantity"`
}

// Import reads a JSONL export file and adds its items to the store.
// Imported items always get fresh ids. Any invalid line aborts the import.
func Import(store *inventory.Store, policy PathPolicy, input ImportInput) (*ImportOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	mode, err := ParseImportMode(string(input.Mode))
	if err != nil {
		return nil, err
	}

	if err := policy.ValidatePath(input.Path, PathCheckRead); err != nil {
		return nil, err
	}

	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		if _, ok := err.(*errors.StockError); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	drafts, lines, parseErrors := parseImport(file)
	out := &ImportOutput{Mode: mode, Errors: parseErrors}
	if len(parseErrors) > 0 {
		return out, nil
	}

	n, err := store.Import(drafts, mode == ImportModeReplace)
	if err != nil {
		sErr, ok := err.(*errors.StockError)
		if !ok || sErr.Code != errors.ErrInvalidRequest {
			return nil, err
		}
		idx, _ := sErr.Details["index"].(int)
		out.Errors = []ImportError{{
			Line:    lines[idx],
			Code:    string(sErr.Code),
			Message: sErr.Message,
		}}
		return out, nil
	}

	out.Imported = n
	out.Errors = []ImportError{}
	return out, nil
}

// parseImport turns export lines into drafts, remembering each draft's line number.
func parseImport(r io.Reader) ([]item.Draft, []int, []ImportError) {
	var (
		drafts []item.Draft
		lines  []int
		errs   []ImportError
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxImportLine)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec importRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			errs = append(errs, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}
		if rec.StockpileExport {
			continue
		}

		drafts = append(drafts, item.Draft{
			Name:     rec.Name,
			Category: rec.Category,
			Quantity: rawQuantity(rec.Quantity),
		})
		lines = append(lines, lineNum)
	}

	if err := scanner.Err(); err != nil {
		errs = append(errs, ImportError{
			Line:    lineNum,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}

	return drafts, lines, errs
}

// rawQuantity renders a JSON quantity (number or string) as draft text.
func rawQuantity(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		if s, err := strconv.Unquote(string(raw)); err == nil {
			return s
		}
		return ""
	}
	return string(raw)
}
