package ops

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hpungsan/stockpile/internal/errors"
	"github.com/hpungsan/stockpile/internal/inventory"
	"github.com/hpungsan/stockpile/internal/item"
)

func writeImportFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600); err != nil {
		t.Fatalf("write import file: %v", err)
	}
	return path
}

func newTestStore(t *testing.T, items ...item.Item) *inventory.Store {
	t.Helper()
	storage := inventory.NewMemoryStorage()
	if len(items) > 0 {
		raw, err := inventory.Encode(items)
		if err != nil {
			t.Fatal(err)
		}
		if err := storage.Set(inventory.StorageKey, raw); err != nil {
			t.Fatal(err)
		}
	}
	store, err := inventory.Open(storage)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return store
}

const testHeader = `{"_stockpile_export":true,"schema_version":"1.0","exported_at":1700000000}`

func TestImport_Append(t *testing.T) {
	policy, tmpDir := testPolicy(t)
	store := newTestStore(t, item.Item{ID: 1, Name: "Existing", Category: "Misc", Quantity: 4})

	path := writeImportFile(t, tmpDir, "in.jsonl",
		testHeader,
		`{"id":1,"name":"Widget","category":"Tools","quantity":3}`,
		``,
		`{"id":2,"name":"Bolt","category":"Hardware","quantity":"50"}`,
	)

	out, err := Import(store, policy, ImportInput{Path: path})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if out.Imported != 2 || out.Mode != ImportModeAppend || len(out.Errors) != 0 {
		t.Fatalf("unexpected output: %+v", out)
	}

	items := store.Items()
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	if items[0].Name != "Existing" || items[1].Name != "Widget" || items[2].Name != "Bolt" {
		t.Errorf("unexpected order: %+v", items)
	}
	// Imported items get fresh ids
	if items[1].ID == 1 || items[1].ID == items[2].ID {
		t.Errorf("expected fresh unique ids, got %d and %d", items[1].ID, items[2].ID)
	}
	if items[2].Quantity != 50 {
		t.Errorf("string quantity not converted: %d", items[2].Quantity)
	}
}

func TestImport_Replace(t *testing.T) {
	policy, tmpDir := testPolicy(t)
	store := newTestStore(t, item.Item{ID: 1, Name: "Old", Category: "Misc", Quantity: 4})

	path := writeImportFile(t, tmpDir, "in.jsonl",
		testHeader,
		`{"name":"New","category":"Misc","quantity":7}`,
	)

	out, err := Import(store, policy, ImportInput{Path: path, Mode: ImportModeReplace})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if out.Imported != 1 {
		t.Errorf("Imported = %d, want 1", out.Imported)
	}
	items := store.Items()
	if len(items) != 1 || items[0].Name != "New" {
		t.Errorf("replace did not replace: %+v", items)
	}
}

func TestImport_ParseErrorIsNoOp(t *testing.T) {
	policy, tmpDir := testPolicy(t)
	store := newTestStore(t)

	path := writeImportFile(t, tmpDir, "in.jsonl",
		testHeader,
		`{"name":"Widget","category":"Tools","quantity":3}`,
		`{not json`,
	)

	out, err := Import(store, policy, ImportInput{Path: path})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if out.Imported != 0 {
		t.Errorf("Imported = %d, want 0", out.Imported)
	}
	if len(out.Errors) != 1 || out.Errors[0].Line != 3 || out.Errors[0].Code != "PARSE_ERROR" {
		t.Errorf("unexpected errors: %+v", out.Errors)
	}
	if len(store.Items()) != 0 {
		t.Error("store should be unchanged after a failed import")
	}
}

func TestImport_ValidationErrorReportsLine(t *testing.T) {
	policy, tmpDir := testPolicy(t)
	store := newTestStore(t)

	path := writeImportFile(t, tmpDir, "in.jsonl",
		testHeader,
		`{"name":"Widget","category":"Tools","quantity":3}`,
		`{"name":"Gear","category":"Tools","quantity":2.5}`,
	)

	out, err := Import(store, policy, ImportInput{Path: path})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(out.Errors) != 1 {
		t.Fatalf("expected one error, got %+v", out.Errors)
	}
	if out.Errors[0].Line != 3 || out.Errors[0].Message != errors.MsgQuantityPositive {
		t.Errorf("unexpected error: %+v", out.Errors[0])
	}
	if len(store.Items()) != 0 {
		t.Error("store should be unchanged after a failed import")
	}
}

func TestImport_MissingFields(t *testing.T) {
	policy, tmpDir := testPolicy(t)
	store := newTestStore(t)

	path := writeImportFile(t, tmpDir, "in.jsonl", `{"name":"Widget","quantity":3}`)

	out, err := Import(store, policy, ImportInput{Path: path})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(out.Errors) != 1 || out.Errors[0].Message != errors.MsgFieldsRequired {
		t.Errorf("unexpected errors: %+v", out.Errors)
	}
}

func TestImport_InvalidInput(t *testing.T) {
	policy, tmpDir := testPolicy(t)
	store := newTestStore(t)

	if _, err := Import(store, policy, ImportInput{}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("empty path: expected ErrInvalidRequest, got %v", err)
	}

	path := writeImportFile(t, tmpDir, "in.jsonl", testHeader)
	if _, err := Import(store, policy, ImportInput{Path: path, Mode: "merge"}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("bad mode: expected ErrInvalidRequest, got %v", err)
	}

	_, err := Import(store, policy, ImportInput{Path: filepath.Join(tmpDir, "missing.jsonl")})
	if !errors.Is(err, errors.ErrFileNotFound) {
		t.Errorf("missing file: expected ErrFileNotFound, got %v", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	policy, tmpDir := testPolicy(t)
	path := filepath.Join(tmpDir, "round.jsonl")

	if _, err := Export(testItems(), policy, ExportInput{Path: path}); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	store := newTestStore(t)
	out, err := Import(store, policy, ImportInput{Path: path})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if out.Imported != 2 {
		t.Fatalf("Imported = %d, want 2", out.Imported)
	}

	for i, want := range testItems() {
		got := store.Items()[i]
		if got.Name != want.Name || got.Category != want.Category || got.Quantity != want.Quantity {
			t.Errorf("item %d = %+v, want fields of %+v", i, got, want)
		}
	}
}
