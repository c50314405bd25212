package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strconv"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/stockpile/internal/errors"
	"github.com/hpungsan/stockpile/internal/inventory"
	"github.com/hpungsan/stockpile/internal/item"
	"github.com/hpungsan/stockpile/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
// Tool calls may arrive concurrently; mu serializes access to the store.
type Handlers struct {
	mu     sync.Mutex
	store  *inventory.Store
	policy ops.PathPolicy
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store *inventory.Store, policy ops.PathPolicy) *Handlers {
	return &Handlers{store: store, policy: policy}
}

// Request types for each tool

// SubmitRequest represents the arguments for item_submit.
// Quantity is accepted as a string or a JSON number.
type SubmitRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Quantity any    `json:"quantity"`
	ID       *int64 `json:"id,omitempty"`
}

// IDRequest represents the arguments for item_edit and item_delete.
type IDRequest struct {
	ID *int64 `json:"id"`
}

// FilterRequest represents the arguments for item_filter.
type FilterRequest struct {
	Category string `json:"category"`
}

// ExportRequest represents the arguments for item_export.
type ExportRequest struct {
	Path string `json:"path,omitempty"`
}

// ImportRequest represents the arguments for item_import.
type ImportRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

// StateOutput is the store state returned by most tools.
type StateOutput struct {
	View     inventory.View `json:"view"`
	Draft    item.Draft     `json:"draft"`
	Mode     string         `json:"mode"`
	EditID   *int64         `json:"edit_id,omitempty"`
	Error    string         `json:"error,omitempty"`
	Warning  string         `json:"warning,omitempty"`
	LowStock int            `json:"low_stock"`
}

// SubmitOutput is the result of item_submit.
type SubmitOutput struct {
	Item    item.Item `json:"item"`
	Created bool      `json:"created"`
}

// DeleteOutput is the result of item_delete.
type DeleteOutput struct {
	ID      int64 `json:"id"`
	Deleted bool  `json:"deleted"`
}

// ReportOutput is the result of item_report.
type ReportOutput struct {
	Markdown   string                `json:"markdown"`
	Categories []ops.CategorySummary `json:"categories"`
}

// Handler implementations

// HandleSubmit handles the item_submit tool call.
func (h *Handlers) HandleSubmit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SubmitRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.store.SetDraft(item.Draft{
		Name:     input.Name,
		Category: input.Category,
		Quantity: quantityText(input.Quantity),
	})

	var saved *item.Item
	created := false
	if input.ID != nil {
		saved, err = h.store.SubmitDraft(h.store.Draft(), input.ID)
	} else {
		_, editing := h.store.EditTarget()
		created = !editing
		saved, err = h.store.Submit()
	}
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(SubmitOutput{Item: *saved, Created: created})
}

// HandleEdit handles the item_edit tool call.
func (h *Handlers) HandleEdit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == nil {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.store.BeginEdit(*input.ID); err != nil {
		return errorResult(err), nil
	}
	return successResult(h.state())
}

// HandleCancelEdit handles the item_cancel_edit tool call.
func (h *Handlers) HandleCancelEdit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.store.CancelEdit()
	return successResult(h.state())
}

// HandleDelete handles the item_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == nil {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	_, existed := h.store.Get(*input.ID)
	if err := h.store.DeleteItem(*input.ID); err != nil {
		return errorResult(err), nil
	}
	return successResult(DeleteOutput{ID: *input.ID, Deleted: existed})
}

// HandleFilter handles the item_filter tool call.
func (h *Handlers) HandleFilter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FilterRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.store.SetFilter(input.Category)
	return successResult(h.state())
}

// HandleSort handles the item_sort tool call.
func (h *Handlers) HandleSort(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.store.SortByQuantityAscending(); err != nil {
		return errorResult(err), nil
	}
	return successResult(h.state())
}

// HandleView handles the item_view tool call.
func (h *Handlers) HandleView(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return successResult(h.state())
}

// HandleExport handles the item_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	h.mu.Lock()
	items := h.store.Items()
	h.mu.Unlock()

	result, err := ops.Export(items, h.policy, ops.ExportInput{Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleImport handles the item_import tool call.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	result, err := ops.Import(h.store, h.policy, ops.ImportInput{
		Path: input.Path,
		Mode: ops.ImportMode(input.Mode),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleReport handles the item_report tool call.
func (h *Handlers) HandleReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h.mu.Lock()
	items := h.store.Items()
	h.mu.Unlock()

	return successResult(ReportOutput{
		Markdown:   ops.Report(items, time.Now()),
		Categories: ops.Summarize(items),
	})
}

// state snapshots the store. Callers hold h.mu.
func (h *Handlers) state() StateOutput {
	view := h.store.View()
	out := StateOutput{
		View:     view,
		Draft:    h.store.Draft(),
		Mode:     h.store.Mode().String(),
		Error:    h.store.Error(),
		LowStock: view.LowStockCount(),
	}
	if id, ok := h.store.EditTarget(); ok {
		out.EditID = &id
	}
	if warn := h.store.Warning(); warn != nil {
		out.Warning = warn.Message
	}
	return out
}

// quantityText renders a quantity argument as draft text.
func quantityText(v any) string {
	switch q := v.(type) {
	case nil:
		return ""
	case string:
		return q
	case float64:
		return strconv.FormatFloat(q, 'f', -1, 64)
	case json.Number:
		return q.String()
	default:
		b, _ := json.Marshal(q)
		return string(b)
	}
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var sErr *errors.StockError
	if stderrors.As(err, &sErr) {
		message := sErr.Message
		// Keep wrapper context such as "items[2]: ..."
		if err != error(sErr) {
			message = err.Error()
		}
		errorObj := map[string]any{
			"code":    sErr.Code,
			"message": message,
			"status":  sErr.Status,
		}
		// Internal errors may carry file paths or SQL errors
		if sErr.Code != errors.ErrInternal && sErr.Details != nil {
			errorObj["details"] = sErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
