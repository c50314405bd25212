package web

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpungsan/stockpile/internal/errors"
	"github.com/hpungsan/stockpile/internal/inventory"
	"github.com/hpungsan/stockpile/internal/item"
	"github.com/hpungsan/stockpile/internal/ops"
)

// Handlers contains HTTP route handlers for the web UI.
// mu serializes every request that touches the store.
type Handlers struct {
	mu       sync.Mutex
	store    *inventory.Store
	policy   ops.PathPolicy
	renderer *Renderer
	log      zerolog.Logger
}

// stateJSON is the JSON shape of the inventory page.
type stateJSON struct {
	View     inventory.View `json:"view"`
	Draft    item.Draft     `json:"draft"`
	Mode     string         `json:"mode"`
	EditID   *int64         `json:"edit_id,omitempty"`
	Error    string         `json:"error,omitempty"`
	Warning  string         `json:"warning,omitempty"`
	LowStock int            `json:"low_stock"`
}

// HandleList handles GET /items, the inventory page.
// A category query parameter changes the active filter.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r.URL.Query().Has("category") {
		h.store.SetFilter(r.URL.Query().Get("category"))
	}
	h.renderItems(w, r, http.StatusOK, "")
}

// HandleSubmit handles POST /items. It submits the draft as a new item or as
// the update of the item being edited.
func (h *Handlers) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.store.SetDraft(item.Draft{
		Name:     r.PostFormValue("name"),
		Category: r.PostFormValue("category"),
		Quantity: r.PostFormValue("quantity"),
	})

	_, wasEditing := h.store.EditTarget()
	saved, err := h.store.Submit()
	if err != nil {
		if wantsJSON(r) {
			h.renderer.renderError(w, r, err)
			return
		}
		// Re-render the form with the draft kept and the message shown
		status := http.StatusInternalServerError
		if sErr, ok := err.(*errors.StockError); ok {
			status = sErr.Status
		}
		h.renderItems(w, r, status, "")
		return
	}

	if wantsJSON(r) {
		status := http.StatusCreated
		if wasEditing {
			status = http.StatusOK
		}
		renderJSON(w, status, saved)
		return
	}
	h.redirectToItems(w, r)
}

// HandleEdit handles GET /items/{id}/edit. Loads an item into the form.
func (h *Handlers) HandleEdit(w http.ResponseWriter, r *http.Request) {
	id, err := ops.ParseItemID(r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.store.BeginEdit(id); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.renderItems(w, r, http.StatusOK, "")
}

// HandleDelete handles POST /items/{id}/delete and DELETE /items/{id}.
// Deleting an id that does not exist is not an error.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := ops.ParseItemID(r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	_, existed := h.store.Get(id)
	if err := h.store.DeleteItem(id); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{
			"deleted": existed,
			"id":      id,
		})
		return
	}
	h.redirectToItems(w, r)
}

// HandleSort handles POST /items/sort. Sorts the collection by quantity.
func (h *Handlers) HandleSort(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.store.SortByQuantityAscending(); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, h.state())
		return
	}
	h.redirectToItems(w, r)
}

// HandleCancel handles POST /items/cancel. Leaves edit mode.
func (h *Handlers) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.store.CancelEdit()

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, h.state())
		return
	}
	h.redirectToItems(w, r)
}

// HandleReport handles GET /report, the Markdown stock report.
func (h *Handlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	items := h.store.Items()
	pd := h.pageData("Report", "report")
	h.mu.Unlock()

	md := ops.Report(items, time.Now())

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{
			"markdown":   md,
			"categories": ops.Summarize(items),
		})
		return
	}

	h.renderer.renderPage(w, r, "report", ReportPageData{
		PageData:     pd,
		RenderedHTML: h.renderer.renderMarkdown(md),
	})
}

// HandleExport handles POST /export. Writes the collection to the exports dir.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	out, err := ops.Export(h.store.Items(), h.policy, ops.ExportInput{})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.log.Info().Str("path", out.Path).Int("count", out.Count).Msg("inventory exported")

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, out)
		return
	}
	h.renderItems(w, r, http.StatusOK, fmt.Sprintf("Exported %d items to %s", out.Count, out.Path))
}

// renderItems renders the inventory page, or its JSON state.
// Callers hold h.mu.
func (h *Handlers) renderItems(w http.ResponseWriter, r *http.Request, status int, notice string) {
	if wantsJSON(r) {
		renderJSON(w, status, h.state())
		return
	}

	view := h.store.View()
	editID, editing := h.store.EditTarget()
	h.renderer.renderPageStatus(w, r, status, "items", ItemsPageData{
		PageData: h.pageData("Inventory", "items"),
		View:     view,
		Draft:    h.store.Draft(),
		Editing:  editing,
		EditID:   editID,
		Error:    h.store.Error(),
		Notice:   notice,
		LowStock: view.LowStockCount(),
	})
}

// state snapshots the store for JSON responses. Callers hold h.mu.
func (h *Handlers) state() stateJSON {
	view := h.store.View()
	s := stateJSON{
		View:     view,
		Draft:    h.store.Draft(),
		Mode:     h.store.Mode().String(),
		Error:    h.store.Error(),
		LowStock: view.LowStockCount(),
	}
	if id, ok := h.store.EditTarget(); ok {
		s.EditID = &id
	}
	if warn := h.store.Warning(); warn != nil {
		s.Warning = warn.Message
	}
	return s
}

func (h *Handlers) pageData(title, nav string) PageData {
	pd := PageData{
		Title:   title,
		Version: h.renderer.version,
		Nav:     nav,
	}
	if warn := h.store.Warning(); warn != nil {
		pd.Warning = warn.Message
	}
	return pd
}

// redirectToItems sends the browser back to the inventory page.
func (h *Handlers) redirectToItems(w http.ResponseWriter, r *http.Request) {
	// HTMX request: redirect via HX-Redirect header
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/items")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/items", http.StatusSeeOther)
}
