// Package inventory owns the item collection: validation, mutation,
// persistence to a key-value slot, and derived views.
//
// A Store is not safe for concurrent use. Callers that receive requests
// concurrently (web, MCP) serialize access themselves.
package inventory

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/hpungsan/stockpile/internal/errors"
	"github.com/hpungsan/stockpile/internal/item"
)

// Mode is the edit state of the store.
type Mode int

const (
	// ModeCreating means a submitted draft becomes a new item.
	ModeCreating Mode = iota
	// ModeEditing means a submitted draft replaces the edit target.
	ModeEditing
)

// String returns "creating" or "editing".
func (m Mode) String() string {
	if m == ModeEditing {
		return "editing"
	}
	return "creating"
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithClock sets the millisecond clock used for new ids. Defaults to ulid.Now.
func WithClock(now func() uint64) Option {
	return func(s *Store) { s.now = now }
}

type observer struct {
	id int
	fn func(View)
}

// Store is the authoritative in-memory inventory.
type Store struct {
	storage Storage
	log     zerolog.Logger
	now     func() uint64

	items  []item.Item
	filter string
	draft  item.Draft
	mode   Mode
	editID int64

	errMsg  string
	warning *errors.StockError

	observers  []observer
	observerID int
}

// Open loads the collection from storage and returns a ready Store.
// A missing slot yields an empty collection. Content that fails to decode
// also yields an empty collection; the problem is kept as Warning().
// Only a failure of the storage itself is returned as an error.
func Open(storage Storage, opts ...Option) (*Store, error) {
	s := &Store{
		storage: storage,
		log:     zerolog.Nop(),
		now:     ulid.Now,
		filter:  AllCategories,
		mode:    ModeCreating,
	}
	for _, opt := range opts {
		opt(s)
	}

	raw, ok, err := storage.Get(StorageKey)
	if err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}
	if !ok {
		s.items = []item.Item{}
		s.log.Debug().Msg("no stored inventory, starting empty")
		return s, nil
	}

	items, err := Decode(raw)
	if err != nil {
		s.items = []item.Item{}
		s.warning = errors.NewStorageReadAnomaly(StorageKey, err)
		s.log.Warn().Err(err).Str("key", StorageKey).Msg("stored inventory unreadable, starting empty")
		return s, nil
	}

	s.items = items
	s.log.Debug().Int("items", len(items)).Msg("inventory loaded")
	return s, nil
}

// Items returns a copy of the full collection in collection order.
func (s *Store) Items() []item.Item {
	return slices.Clone(s.items)
}

// Get returns the item with the given id.
func (s *Store) Get(id int64) (item.Item, bool) {
	idx := indexOf(s.items, id)
	if idx < 0 {
		return item.Item{}, false
	}
	return s.items[idx], true
}

// Draft returns the staged input.
func (s *Store) Draft() item.Draft {
	return s.draft
}

// SetDraft replaces the staged input. Nothing is validated until submit.
func (s *Store) SetDraft(d item.Draft) {
	s.draft = d
	s.notify()
}

// Error returns the message of the last failed submit, or "".
func (s *Store) Error() string {
	return s.errMsg
}

// Warning returns the storage read anomaly found at Open, if any.
func (s *Store) Warning() *errors.StockError {
	return s.warning
}

// Mode returns the current edit state.
func (s *Store) Mode() Mode {
	return s.mode
}

// EditTarget returns the id being edited, if any.
func (s *Store) EditTarget() (int64, bool) {
	if s.mode != ModeEditing {
		return 0, false
	}
	return s.editID, true
}

// Filter returns the active category filter.
func (s *Store) Filter() string {
	return s.filter
}

// View derives the filtered rows and category list from the current state.
func (s *Store) View() View {
	return buildView(s.items, s.filter)
}

// Submit commits the staged draft against the current edit target.
func (s *Store) Submit() (*item.Item, error) {
	var target *int64
	if id, ok := s.EditTarget(); ok {
		target = &id
	}
	return s.SubmitDraft(s.draft, target)
}

// SubmitDraft validates d and either appends a new item (target nil) or
// replaces the fields of the item with id *target in place.
//
// On success the full collection is persisted, the draft is cleared, edit
// mode returns to creating and the error state is cleared.
// On failure nothing is mutated or written; the message becomes the error
// state while draft and edit mode stay as they were.
func (s *Store) SubmitDraft(d item.Draft, target *int64) (*item.Item, error) {
	fields, err := item.Validate(d)
	if err != nil {
		s.fail(err)
		return nil, err
	}

	next := slices.Clone(s.items)
	var saved item.Item

	if target == nil {
		id, err := s.nextID(next)
		if err != nil {
			s.fail(err)
			return nil, err
		}
		saved = item.Item{
			ID:       id,
			Name:     fields.Name,
			Category: fields.Category,
			Quantity: fields.Quantity,
		}
		next = append(next, saved)
	} else {
		idx := indexOf(next, *target)
		if idx < 0 {
			nf := errors.NewNotFound(*target)
			s.fail(nf)
			return nil, nf
		}
		next[idx].Name = fields.Name
		next[idx].Category = fields.Category
		next[idx].Quantity = fields.Quantity
		saved = next[idx]
	}

	if err := s.commit(next); err != nil {
		s.fail(err)
		return nil, err
	}

	s.draft = item.Draft{}
	s.mode = ModeCreating
	s.editID = 0
	s.errMsg = ""

	if target == nil {
		s.log.Debug().Int64("id", saved.ID).Str("category", saved.Category).Msg("item added")
	} else {
		s.log.Debug().Int64("id", saved.ID).Msg("item updated")
	}
	s.notify()
	return &saved, nil
}

// BeginEdit loads the item's values into the draft and switches to editing it.
// Clears the error state. The collection is not touched.
func (s *Store) BeginEdit(id int64) error {
	it, ok := s.Get(id)
	if !ok {
		return errors.NewNotFound(id)
	}
	s.draft = it.ToDraft()
	s.mode = ModeEditing
	s.editID = id
	s.errMsg = ""
	s.notify()
	return nil
}

// CancelEdit returns to creating mode with an empty draft.
func (s *Store) CancelEdit() {
	s.draft = item.Draft{}
	s.mode = ModeCreating
	s.editID = 0
	s.errMsg = ""
	s.notify()
}

// DeleteItem removes the item with the given id. A missing id is a no-op.
// Deleting the item being edited also leaves edit mode and clears the draft,
// so a later submit cannot target an id that no longer exists.
func (s *Store) DeleteItem(id int64) error {
	idx := indexOf(s.items, id)
	if idx < 0 {
		return nil
	}

	next := slices.Delete(slices.Clone(s.items), idx, idx+1)
	if err := s.commit(next); err != nil {
		return err
	}

	if s.mode == ModeEditing && s.editID == id {
		s.draft = item.Draft{}
		s.mode = ModeCreating
		s.editID = 0
	}

	s.log.Debug().Int64("id", id).Msg("item deleted")
	s.notify()
	return nil
}

// SetFilter selects a category, or AllCategories for no filter.
// Blank or whitespace-only input is normalized to AllCategories, since
// stored categories are never blank.
// The filter is session state and is not persisted.
func (s *Store) SetFilter(category string) {
	if strings.TrimSpace(category) == "" {
		category = AllCategories
	}
	s.filter = category
	s.notify()
}

// SortByQuantityAscending stably reorders the whole collection by quantity
// and persists the new order. Items with equal quantity keep their order.
func (s *Store) SortByQuantityAscending() error {
	next := slices.Clone(s.items)
	slices.SortStableFunc(next, func(a, b item.Item) int {
		return cmp.Compare(a.Quantity, b.Quantity)
	})
	if err := s.commit(next); err != nil {
		return err
	}
	s.log.Debug().Int("items", len(next)).Msg("inventory sorted by quantity")
	s.notify()
	return nil
}

// Import validates every draft and then adds them all with fresh ids in a
// single write. With replace set, the imported items become the whole
// collection. Nothing changes if any draft is invalid; the returned error
// carries the failing index in Details["index"].
func (s *Store) Import(drafts []item.Draft, replace bool) (int, error) {
	fields := make([]item.Fields, 0, len(drafts))
	for i, d := range drafts {
		f, err := item.Validate(d)
		if err != nil {
			sErr := err.(*errors.StockError)
			return 0, &errors.StockError{
				Code:    sErr.Code,
				Status:  sErr.Status,
				Message: sErr.Message,
				Details: map[string]any{"index": i},
			}
		}
		fields = append(fields, f)
	}

	var next []item.Item
	if replace {
		next = make([]item.Item, 0, len(fields))
	} else {
		next = slices.Clone(s.items)
	}
	for _, f := range fields {
		id, err := s.nextID(next)
		if err != nil {
			return 0, err
		}
		next = append(next, item.Item{
			ID:       id,
			Name:     f.Name,
			Category: f.Category,
			Quantity: f.Quantity,
		})
	}

	if err := s.commit(next); err != nil {
		return 0, err
	}

	if replace && s.mode == ModeEditing {
		s.draft = item.Draft{}
		s.mode = ModeCreating
		s.editID = 0
	}

	s.log.Info().Int("imported", len(fields)).Bool("replace", replace).Msg("inventory imported")
	s.notify()
	return len(fields), nil
}

// Subscribe registers fn to receive a fresh View after every state change.
// The returned func removes the subscription.
func (s *Store) Subscribe(fn func(View)) func() {
	s.observerID++
	id := s.observerID
	s.observers = append(s.observers, observer{id: id, fn: fn})
	return func() {
		s.observers = slices.DeleteFunc(s.observers, func(o observer) bool {
			return o.id == id
		})
	}
}

// notify pushes the current view to observers in subscription order.
func (s *Store) notify() {
	if len(s.observers) == 0 {
		return
	}
	v := s.View()
	for _, o := range slices.Clone(s.observers) {
		o.fn(v)
	}
}

// commit persists next and makes it the collection. The collection is left
// untouched if the write fails.
func (s *Store) commit(next []item.Item) error {
	raw, err := Encode(next)
	if err != nil {
		return errors.NewInternal(err)
	}
	if err := s.storage.Set(StorageKey, raw); err != nil {
		s.log.Error().Err(err).Str("key", StorageKey).Msg("persist inventory failed")
		if sErr, ok := err.(*errors.StockError); ok {
			return sErr
		}
		return errors.NewInternal(err)
	}
	s.items = next
	return nil
}

// fail records err as the visible error state.
func (s *Store) fail(err error) {
	if sErr, ok := err.(*errors.StockError); ok {
		s.errMsg = sErr.Message
	} else {
		s.errMsg = err.Error()
	}
	s.notify()
}

// nextID returns a millisecond timestamp id, bumped past the largest id
// already in items so ids stay unique within one millisecond or across
// clock skew. Ids never wrap: once the largest id is math.MaxInt64 no
// further id can be assigned.
func (s *Store) nextID(items []item.Item) (int64, error) {
	now := s.now()
	if now > math.MaxInt64 {
		now = math.MaxInt64
	}
	id := int64(now)
	for _, it := range items {
		if it.ID == math.MaxInt64 {
			return 0, errors.NewInternal(fmt.Errorf("no item id left above %d", it.ID))
		}
		if it.ID >= id {
			id = it.ID + 1
		}
	}
	return id, nil
}

func indexOf(items []item.Item, id int64) int {
	return slices.IndexFunc(items, func(it item.Item) bool { return it.ID == id })
}
