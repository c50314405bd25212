package inventory

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/stockpile/internal/errors"
	"github.com/hpungsan/stockpile/internal/item"
)

// fixedClock returns the same millisecond on every call, forcing the
// store's id bumping to keep ids unique.
func fixedClock(ms uint64) func() uint64 {
	return func() uint64 { return ms }
}

// failingStorage reads like MemoryStorage but rejects every write.
type failingStorage struct {
	*MemoryStorage
}

func (f failingStorage) Set(string, string) error {
	return fmt.Errorf("disk full")
}

// brokenStorage fails reads.
type brokenStorage struct{}

func (brokenStorage) Get(string) (string, bool, error) { return "", false, fmt.Errorf("io error") }
func (brokenStorage) Set(string, string) error         { return nil }

func openEmpty(t *testing.T) (*Store, *MemoryStorage) {
	t.Helper()
	storage := NewMemoryStorage()
	s, err := Open(storage, WithClock(fixedClock(1000)))
	require.NoError(t, err)
	return s, storage
}

func add(t *testing.T, s *Store, name, category, quantity string) item.Item {
	t.Helper()
	it, err := s.SubmitDraft(item.Draft{Name: name, Category: category, Quantity: quantity}, nil)
	require.NoError(t, err)
	return *it
}

func quantities(items []item.Item) []int {
	q := make([]int, len(items))
	for i, it := range items {
		q[i] = it.Quantity
	}
	return q
}

func persisted(t *testing.T, storage *MemoryStorage) []item.Item {
	t.Helper()
	raw, ok, err := storage.Get(StorageKey)
	require.NoError(t, err)
	require.True(t, ok, "nothing persisted")
	items, err := Decode(raw)
	require.NoError(t, err)
	return items
}

func TestOpen_Empty(t *testing.T) {
	s, storage := openEmpty(t)

	require.Empty(t, s.Items())
	require.Nil(t, s.Warning())
	require.Equal(t, ModeCreating, s.Mode())
	require.Equal(t, AllCategories, s.Filter())
	require.Equal(t, 0, storage.Writes())
}

func TestOpen_LoadsPersisted(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(StorageKey, `[{"id":5,"name":"Widget","category":"Parts","quantity":12}]`))

	s, err := Open(storage)
	require.NoError(t, err)
	require.Equal(t, []item.Item{{ID: 5, Name: "Widget", Category: "Parts", Quantity: 12}}, s.Items())
	require.Nil(t, s.Warning())
}

func TestOpen_CorruptFallsBackToEmpty(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(StorageKey, `[{"id":1,"name":"Widget"`))

	s, err := Open(storage)
	require.NoError(t, err)
	require.Empty(t, s.Items())
	require.NotNil(t, s.Warning())
	require.True(t, errors.Is(s.Warning(), errors.ErrStorageReadAnomaly))
	require.Empty(t, s.Error(), "anomaly must not show up as a submit error")

	// Corrupt content stays until the next mutation overwrites it
	require.Equal(t, 1, storage.Writes())
	add(t, s, "Bolt", "Parts", "3")
	require.Len(t, persisted(t, storage), 1)
}

func TestOpen_StorageError(t *testing.T) {
	_, err := Open(brokenStorage{})
	require.Error(t, err)
}

func TestSubmitDraft_AddsItem(t *testing.T) {
	s, storage := openEmpty(t)

	s.SetDraft(item.Draft{Name: "Widget", Category: "Parts", Quantity: "5"})
	got, err := s.Submit()
	require.NoError(t, err)

	items := s.Items()
	require.Len(t, items, 1)
	require.Equal(t, got.ID, items[0].ID)
	require.Equal(t, "Widget", items[0].Name)
	require.Equal(t, "Parts", items[0].Category)
	require.Equal(t, 5, items[0].Quantity)
	require.Empty(t, s.Error())
	require.True(t, s.Draft().IsEmpty())
	require.Equal(t, ModeCreating, s.Mode())
	require.Equal(t, items, persisted(t, storage))
}

func TestSubmitDraft_MissingField(t *testing.T) {
	s, storage := openEmpty(t)

	draft := item.Draft{Name: "", Category: "Parts", Quantity: "5"}
	s.SetDraft(draft)
	_, err := s.Submit()
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	require.Empty(t, s.Items())
	require.Equal(t, "All fields are required.", s.Error())
	require.Equal(t, draft, s.Draft(), "draft is kept on failure")
	require.Equal(t, 0, storage.Writes())
}

func TestSubmitDraft_NegativeQuantity(t *testing.T) {
	s, storage := openEmpty(t)

	_, err := s.SubmitDraft(item.Draft{Name: "Bolt", Category: "Parts", Quantity: "-3"}, nil)
	require.Error(t, err)
	require.Equal(t, "Quantity must be a positive number.", s.Error())
	require.Empty(t, s.Items())
	require.Equal(t, 0, storage.Writes())
}

func TestSubmitDraft_RejectionLeavesCollectionUnchanged(t *testing.T) {
	s, storage := openEmpty(t)
	add(t, s, "Widget", "Parts", "5")
	before := s.Items()
	writes := storage.Writes()

	bad := []item.Draft{
		{Name: "", Category: "c", Quantity: "1"},
		{Name: "n", Category: "", Quantity: "1"},
		{Name: "n", Category: "c", Quantity: ""},
		{Name: "n", Category: "c", Quantity: "abc"},
		{Name: "n", Category: "c", Quantity: "0"},
		{Name: "n", Category: "c", Quantity: "-1"},
		{Name: "n", Category: "c", Quantity: "1.5"},
	}
	for _, d := range bad {
		_, err := s.SubmitDraft(d, nil)
		require.Error(t, err, "draft %+v", d)
		require.NotEmpty(t, s.Error())
		require.Equal(t, before, s.Items())
	}
	require.Equal(t, writes, storage.Writes())
}

func TestSubmitDraft_ErrorReplacedAndCleared(t *testing.T) {
	s, _ := openEmpty(t)

	_, _ = s.SubmitDraft(item.Draft{Name: "x"}, nil)
	require.Equal(t, "All fields are required.", s.Error())

	_, _ = s.SubmitDraft(item.Draft{Name: "x", Category: "y", Quantity: "zero"}, nil)
	require.Equal(t, "Quantity must be a positive number.", s.Error())

	add(t, s, "x", "y", "1")
	require.Empty(t, s.Error())
}

func TestSubmitDraft_UniqueIDs(t *testing.T) {
	s, _ := openEmpty(t)

	for i := range 50 {
		add(t, s, fmt.Sprintf("item-%d", i), "Parts", "1")
	}

	seen := make(map[int64]bool)
	for _, it := range s.Items() {
		require.False(t, seen[it.ID], "duplicate id %d", it.ID)
		seen[it.ID] = true
	}
	require.Len(t, seen, 50)
}

func TestSubmitDraft_IDsFromClock(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(StorageKey, `[{"id":5000,"name":"a","category":"b","quantity":1}]`))

	clock := uint64(100)
	s, err := Open(storage, WithClock(func() uint64 { return clock }))
	require.NoError(t, err)

	// Clock behind existing ids: bumped past the max
	first := add(t, s, "x", "y", "1")
	require.Equal(t, int64(5001), first.ID)

	// Clock ahead: used as-is
	clock = 9000
	second := add(t, s, "x", "y", "1")
	require.Equal(t, int64(9000), second.ID)
}

func TestOpen_AnomalyLoggedOnce(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(StorageKey, `{"broken":`))

	var buf bytes.Buffer
	s, err := Open(storage, WithLogger(zerolog.New(&buf)))
	require.NoError(t, err)
	require.NotNil(t, s.Warning())
	require.Equal(t, 1, strings.Count(buf.String(), `"level":"warn"`))
	require.Contains(t, buf.String(), StorageKey)
}

func TestOpen_NonPositiveIDsAreAnomaly(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(StorageKey,
		`[{"id":0,"name":"Widget","category":"Parts","quantity":3},{"id":-5,"name":"Bolt","category":"Parts","quantity":4}]`))

	s, err := Open(storage)
	require.NoError(t, err)
	require.Empty(t, s.Items())
	require.NotNil(t, s.Warning())
	require.Equal(t, errors.ErrStorageReadAnomaly, s.Warning().Code)
}

func TestSubmitDraft_IDSpaceExhausted(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(StorageKey,
		`[{"id":9223372036854775807,"name":"Widget","category":"Parts","quantity":3}]`))
	s, err := Open(storage, WithClock(fixedClock(1000)))
	require.NoError(t, err)
	require.Nil(t, s.Warning())
	writes := storage.Writes()

	_, err = s.SubmitDraft(item.Draft{Name: "Bolt", Category: "Parts", Quantity: "4"}, nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrInternal))
	require.Len(t, s.Items(), 1)
	require.Equal(t, writes, storage.Writes())

	_, err = s.Import([]item.Draft{{Name: "Bolt", Category: "Parts", Quantity: "4"}}, false)
	require.True(t, errors.Is(err, errors.ErrInternal))
	require.Len(t, s.Items(), 1)

	for _, it := range s.Items() {
		require.Positive(t, it.ID)
	}
}

func TestSubmitDraft_InsertionOrder(t *testing.T) {
	s, _ := openEmpty(t)
	add(t, s, "c", "x", "30")
	add(t, s, "a", "x", "10")
	add(t, s, "b", "x", "20")

	require.Equal(t, []int{30, 10, 20}, quantities(s.Items()))
}

func TestEdit_UpdatesInPlace(t *testing.T) {
	s, storage := openEmpty(t)
	first := add(t, s, "Widget", "Parts", "5")
	second := add(t, s, "Glue", "Supplies", "2")
	third := add(t, s, "Saw", "Tools", "8")

	require.NoError(t, s.BeginEdit(second.ID))
	require.Equal(t, ModeEditing, s.Mode())
	target, ok := s.EditTarget()
	require.True(t, ok)
	require.Equal(t, second.ID, target)
	require.Equal(t, item.Draft{Name: "Glue", Category: "Supplies", Quantity: "2"}, s.Draft())

	s.SetDraft(item.Draft{Name: "Super Glue", Category: "Adhesives", Quantity: "40"})
	updated, err := s.Submit()
	require.NoError(t, err)
	require.Equal(t, second.ID, updated.ID)

	want := []item.Item{
		first,
		{ID: second.ID, Name: "Super Glue", Category: "Adhesives", Quantity: 40},
		third,
	}
	if diff := cmp.Diff(want, s.Items()); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, ModeCreating, s.Mode())
	require.True(t, s.Draft().IsEmpty())
	require.Equal(t, want, persisted(t, storage))
}

func TestEdit_FailedSubmitKeepsEditMode(t *testing.T) {
	s, _ := openEmpty(t)
	it := add(t, s, "Widget", "Parts", "5")

	require.NoError(t, s.BeginEdit(it.ID))
	s.SetDraft(item.Draft{Name: "Widget", Category: "Parts", Quantity: "-1"})
	_, err := s.Submit()
	require.Error(t, err)

	require.Equal(t, ModeEditing, s.Mode())
	require.Equal(t, "-1", s.Draft().Quantity)
	require.Equal(t, 5, s.Items()[0].Quantity)
}

func TestBeginEdit_ClearsErrorAndSwitchesTarget(t *testing.T) {
	s, _ := openEmpty(t)
	a := add(t, s, "A", "x", "1")
	b := add(t, s, "B", "x", "2")

	_, _ = s.SubmitDraft(item.Draft{}, nil)
	require.NotEmpty(t, s.Error())

	require.NoError(t, s.BeginEdit(a.ID))
	require.Empty(t, s.Error())

	require.NoError(t, s.BeginEdit(b.ID))
	target, _ := s.EditTarget()
	require.Equal(t, b.ID, target)
	require.Equal(t, "B", s.Draft().Name)
}

func TestBeginEdit_UnknownID(t *testing.T) {
	s, _ := openEmpty(t)
	err := s.BeginEdit(42)
	require.True(t, errors.Is(err, errors.ErrNotFound))
	require.Equal(t, ModeCreating, s.Mode())
}

func TestSubmitDraft_UnknownTarget(t *testing.T) {
	s, storage := openEmpty(t)
	add(t, s, "A", "x", "1")
	writes := storage.Writes()

	missing := int64(77)
	_, err := s.SubmitDraft(item.Draft{Name: "B", Category: "y", Quantity: "2"}, &missing)
	require.True(t, errors.Is(err, errors.ErrNotFound))
	require.Len(t, s.Items(), 1)
	require.Equal(t, writes, storage.Writes())
}

func TestCancelEdit(t *testing.T) {
	s, _ := openEmpty(t)
	it := add(t, s, "A", "x", "1")
	require.NoError(t, s.BeginEdit(it.ID))

	s.CancelEdit()
	require.Equal(t, ModeCreating, s.Mode())
	require.True(t, s.Draft().IsEmpty())
}

func TestDeleteItem(t *testing.T) {
	s, storage := openEmpty(t)
	a := add(t, s, "A", "x", "1")
	b := add(t, s, "B", "y", "2")

	require.NoError(t, s.DeleteItem(a.ID))
	require.Equal(t, []item.Item{b}, s.Items())
	require.Equal(t, []item.Item{b}, persisted(t, storage))
	require.Equal(t, []string{"y"}, s.View().Categories, "no stale categories after delete")
}

func TestDeleteItem_MissingIsNoop(t *testing.T) {
	s, storage := openEmpty(t)
	add(t, s, "A", "x", "1")
	writes := storage.Writes()

	require.NoError(t, s.DeleteItem(12345))
	require.Len(t, s.Items(), 1)
	require.Equal(t, writes, storage.Writes())
}

func TestDeleteItem_EditTargetResetsEditMode(t *testing.T) {
	s, _ := openEmpty(t)
	a := add(t, s, "A", "x", "1")
	b := add(t, s, "B", "x", "2")

	require.NoError(t, s.BeginEdit(a.ID))

	// Deleting another item leaves the edit alone
	require.NoError(t, s.DeleteItem(b.ID))
	require.Equal(t, ModeEditing, s.Mode())

	require.NoError(t, s.DeleteItem(a.ID))
	require.Equal(t, ModeCreating, s.Mode())
	require.True(t, s.Draft().IsEmpty())
}

func TestSetFilter(t *testing.T) {
	s, storage := openEmpty(t)
	first := add(t, s, "one", "A", "1")
	add(t, s, "two", "B", "2")
	third := add(t, s, "three", "A", "3")
	writes := storage.Writes()

	s.SetFilter("A")
	v := s.View()
	require.Len(t, v.Items, 2)
	require.Equal(t, first.ID, v.Items[0].ID)
	require.Equal(t, third.ID, v.Items[1].ID)
	require.Equal(t, []string{"A", "B"}, v.Categories)
	require.Equal(t, "A", v.Filter)
	require.Equal(t, writes, storage.Writes(), "filter is not persisted")

	s.SetFilter(AllCategories)
	require.Len(t, s.View().Items, 3)

	s.SetFilter("")
	require.Equal(t, AllCategories, s.Filter())

	s.SetFilter("A")
	s.SetFilter(" \t ")
	require.Equal(t, AllCategories, s.Filter())
	require.Len(t, s.View().Items, 3)
}

func TestSetFilter_KeptAcrossMutations(t *testing.T) {
	s, _ := openEmpty(t)
	add(t, s, "one", "A", "1")
	s.SetFilter("A")
	add(t, s, "two", "B", "2")

	v := s.View()
	require.Equal(t, "A", v.Filter)
	require.Len(t, v.Items, 1)
	require.Equal(t, 2, v.Total)
}

func TestSortByQuantityAscending_Stable(t *testing.T) {
	s, storage := openEmpty(t)
	big := add(t, s, "big", "x", "20")
	fiveA := add(t, s, "five-a", "x", "5")
	fiveB := add(t, s, "five-b", "x", "5")
	one := add(t, s, "one", "x", "1")

	require.NoError(t, s.SortByQuantityAscending())

	want := []item.Item{one, fiveA, fiveB, big}
	require.Equal(t, want, s.Items())
	require.Equal(t, want, persisted(t, storage), "sorted order is persisted")
}

func TestSortByQuantityAscending_NonDecreasing(t *testing.T) {
	s, _ := openEmpty(t)
	for _, q := range []string{"7", "3", "3", "12", "1", "7", "40", "2"} {
		add(t, s, "n"+q, "c", q)
	}
	before := s.Items()

	require.NoError(t, s.SortByQuantityAscending())
	after := s.Items()

	for i := 1; i < len(after); i++ {
		require.LessOrEqual(t, after[i-1].Quantity, after[i].Quantity)
	}

	// Ties keep their pre-sort relative order
	pos := make(map[int64]int)
	for i, it := range before {
		pos[it.ID] = i
	}
	for i := 1; i < len(after); i++ {
		if after[i-1].Quantity == after[i].Quantity {
			require.Less(t, pos[after[i-1].ID], pos[after[i].ID])
		}
	}
}

func TestSortByQuantityAscending_SortsFullCollection(t *testing.T) {
	s, _ := openEmpty(t)
	add(t, s, "a", "A", "9")
	add(t, s, "b", "B", "1")
	s.SetFilter("A")

	require.NoError(t, s.SortByQuantityAscending())
	require.Equal(t, []int{1, 9}, quantities(s.Items()))
}

func TestPersistenceRoundTrip(t *testing.T) {
	s, storage := openEmpty(t)
	add(t, s, "Widget", "Parts", "5")
	add(t, s, "Glue", "Supplies", "25")
	add(t, s, "Saw", "Tools", "3")
	require.NoError(t, s.SortByQuantityAscending())

	reopened, err := Open(storage)
	require.NoError(t, err)
	if diff := cmp.Diff(s.Items(), reopened.Items()); diff != "" {
		t.Errorf("reopened mismatch (-want +got):\n%s", diff)
	}
}

func TestView_LowStockFlags(t *testing.T) {
	s, _ := openEmpty(t)
	add(t, s, "low", "x", "9")
	add(t, s, "edge", "x", "10")
	add(t, s, "high", "x", "100")

	rows := s.View().Items
	require.True(t, rows[0].LowStock)
	require.False(t, rows[1].LowStock)
	require.False(t, rows[2].LowStock)
}

func TestWriteFailure_LeavesStateUnchanged(t *testing.T) {
	mem := NewMemoryStorage()
	require.NoError(t, mem.Set(StorageKey, `[{"id":1,"name":"a","category":"b","quantity":3},{"id":2,"name":"c","category":"d","quantity":1}]`))

	s, err := Open(failingStorage{mem})
	require.NoError(t, err)
	before := s.Items()

	_, err = s.SubmitDraft(item.Draft{Name: "x", Category: "y", Quantity: "1"}, nil)
	require.True(t, errors.Is(err, errors.ErrInternal))
	require.Equal(t, before, s.Items())
	require.Equal(t, "disk full", s.Error())

	require.Error(t, s.DeleteItem(1))
	require.Error(t, s.SortByQuantityAscending())
	require.Equal(t, before, s.Items())
}

func TestImport(t *testing.T) {
	s, storage := openEmpty(t)
	existing := add(t, s, "Widget", "Parts", "5")
	writes := storage.Writes()

	n, err := s.Import([]item.Draft{
		{Name: "Glue", Category: "Supplies", Quantity: "4"},
		{Name: "Saw", Category: "Tools", Quantity: "12"},
	}, false)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, writes+1, storage.Writes(), "import is a single write")

	items := s.Items()
	require.Len(t, items, 3)
	require.Equal(t, existing, items[0])
	require.Equal(t, "Glue", items[1].Name)
	require.Equal(t, "Saw", items[2].Name)
	require.NotEqual(t, items[1].ID, items[2].ID)
}

func TestImport_InvalidIsAtomic(t *testing.T) {
	s, storage := openEmpty(t)
	add(t, s, "Widget", "Parts", "5")
	writes := storage.Writes()

	_, err := s.Import([]item.Draft{
		{Name: "Glue", Category: "Supplies", Quantity: "4"},
		{Name: "Saw", Category: "Tools", Quantity: "0"},
	}, false)
	require.Error(t, err)
	sErr := err.(*errors.StockError)
	require.Equal(t, 1, sErr.Details["index"])
	require.Equal(t, "Quantity must be a positive number.", sErr.Message)
	require.Len(t, s.Items(), 1)
	require.Equal(t, writes, storage.Writes())
}

func TestImport_Replace(t *testing.T) {
	s, _ := openEmpty(t)
	old := add(t, s, "Widget", "Parts", "5")
	require.NoError(t, s.BeginEdit(old.ID))

	n, err := s.Import([]item.Draft{{Name: "Saw", Category: "Tools", Quantity: "12"}}, true)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	items := s.Items()
	require.Len(t, items, 1)
	require.Equal(t, "Saw", items[0].Name)
	require.Equal(t, ModeCreating, s.Mode())
	require.Equal(t, []string{"Tools"}, s.View().Categories)
}

func TestSubscribe(t *testing.T) {
	s, _ := openEmpty(t)

	var views []View
	unsubscribe := s.Subscribe(func(v View) { views = append(views, v) })

	add(t, s, "a", "A", "1")
	s.SetFilter("A")
	require.Len(t, views, 2)
	require.Equal(t, 1, views[0].Total)
	require.Equal(t, "A", views[1].Filter)

	unsubscribe()
	add(t, s, "b", "B", "2")
	require.Len(t, views, 2)
}

func TestItems_ReturnsCopy(t *testing.T) {
	s, _ := openEmpty(t)
	add(t, s, "a", "A", "1")

	items := s.Items()
	items[0].Name = "mutated"
	require.Equal(t, "a", s.Items()[0].Name)
}
