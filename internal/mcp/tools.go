package mcp

import "github.com/mark3labs/mcp-go/mcp"

var submitToolDef = mcp.NewTool("item_submit",
	mcp.WithDescription("Add an item, or update one. With id, updates that item. Without id, "+
		"updates the item selected by item_edit if there is one, otherwise adds a new item. "+
		"On a validation error nothing changes and the message is returned."),
	mcp.WithString("name", mcp.Description("Item name")),
	mcp.WithString("category", mcp.Description("Category, free form")),
	mcp.WithString("quantity", mcp.Description("Positive whole number, as typed")),
	mcp.WithNumber("id", mcp.Description("Id of the item to update")),
)

var editToolDef = mcp.NewTool("item_edit",
	mcp.WithDescription("Select an item for editing and load its values into the draft."),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Item id")),
)

var cancelEditToolDef = mcp.NewTool("item_cancel_edit",
	mcp.WithDescription("Leave edit mode and clear the draft."),
)

var deleteToolDef = mcp.NewTool("item_delete",
	mcp.WithDescription("Delete an item by id. Deleting an id that does not exist is not an error."),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Item id")),
	mcp.WithDestructiveHintAnnotation(true),
)

var filterToolDef = mcp.NewTool("item_filter",
	mcp.WithDescription("Show only one category, or \"All\" for every item. Returns the filtered view."),
	mcp.WithString("category", mcp.Required(), mcp.Description("Category name or \"All\"")),
)

var sortToolDef = mcp.NewTool("item_sort",
	mcp.WithDescription("Sort the whole inventory by quantity, lowest first. The new order is saved."),
)

var viewToolDef = mcp.NewTool("item_view",
	mcp.WithDescription("Return the current view: filtered items with low-stock flags, categories, filter, draft and edit mode."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var exportToolDef = mcp.NewTool("item_export",
	mcp.WithDescription("Export the inventory to a JSONL file. Defaults to the exports directory."),
	mcp.WithString("path", mcp.Description("Target .jsonl path")),
)

var importToolDef = mcp.NewTool("item_import",
	mcp.WithDescription("Import items from a JSONL export. All-or-nothing: any invalid line aborts the import."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Source .jsonl path")),
	mcp.WithString("mode", mcp.Description("append (default) or replace"), mcp.Enum("append", "replace")),
)

var reportToolDef = mcp.NewTool("item_report",
	mcp.WithDescription("Markdown stock report: totals, per-category table and low-stock list."),
	mcp.WithReadOnlyHintAnnotation(true),
)
