package model

import (
	"time"

	"github.com/pkg/errors"
)

// ItemTableName is item table name.
const ItemTableName = "items"

// ErrItemNotFound is returned when an item id is not in the cache.
var ErrItemNotFound = errors.New("item not found")

// Item is one deletable unit of user content: a tweet or a like.
// A zero CreatedAt means the source did not report a date (likes
// imported from an archive).
type Item struct {
	ID         uint64
	ScreenName string
	CreatedAt  time.Time
	Text       string
	Deleted    bool
}

// HasCreatedAt reports whether the item carries a known creation date.
func (i *Item) HasCreatedAt() bool {
	return !i.CreatedAt.IsZero()
}

// ItemService is item cache service interface.
//
// The cache is insert-if-absent, status-update-only: a second
// observation of a known id never overwrites text, created date or
// deleted flag, and the deleted flag only ever goes from false to true.
// Deleted rows are kept as tombstones so an id is never re-processed.
type ItemService interface {
	// InsertIfAbsent inserts item only if its id is unknown.
	// Returns whether an insert occurred. Safe to call repeatedly.
	InsertIfAbsent(item *Item) (bool, error)

	// ActiveItems returns all not-deleted items for the screen name,
	// ordered by id ascending.
	ActiveItems(screenName string) ([]Item, error)

	// MarkDeleted flips an item's deleted flag. Unknown ids fail with
	// ErrItemNotFound; already-deleted ids are a no-op success.
	MarkDeleted(id uint64) error

	// Exists reports whether the id is in the cache.
	Exists(id uint64) (bool, error)

	// MaxID returns the largest known id for the screen name, deleted
	// rows included, or 0 when the cache is empty. Used as the
	// since_id cursor when fetching newer items.
	MaxID(screenName string) (uint64, error)

	// MinActiveID returns the smallest not-deleted id for the screen
	// name, skipping ignoreIDs, or 0 when there is none. Used as the
	// max_id cursor when fetching older items.
	MinActiveID(screenName string, ignoreIDs []uint64) (uint64, error)

	// Count returns the number of cached items for the screen name.
	Count(screenName string) (int, error)

	// DeletedCount returns the number of tombstones for the screen name.
	DeletedCount(screenName string) (int, error)
}
