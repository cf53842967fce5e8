package sqlite

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/eigenmagic/twitforget/model"
)

// ItemService is sqlite item cache service.
type ItemService struct {
	pr prepareRunner
}

// NewItemService is create service.
func NewItemService(db *sql.DB) ItemService {
	return ItemService{pr: prepareRunner{preparer: db}}
}

// InsertIfAbsent inserts the item unless its id is already cached.
// INSERT OR IGNORE keeps the first-seen row, so later observations of
// the same id never change text, created date or deleted flag.
func (s ItemService) InsertIfAbsent(item *model.Item) (bool, error) {
	var createdAt interface{}
	if item.HasCreatedAt() {
		createdAt = item.CreatedAt.UTC()
	}

	query, args, err := sq.Insert(model.ItemTableName).Options("OR IGNORE").
		Columns("id", "screen_name", "created_at", "content_text", "deleted").
		Values(int64(item.ID), item.ScreenName, createdAt, item.Text, item.Deleted).ToSql()
	if err != nil {
		return false, err
	}

	res, err := s.pr.Exec(query, args...)
	if err != nil {
		return false, err
	}

	cnt, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return cnt > 0, nil
}

// ActiveItems returns all not-deleted items for the screen name,
// ordered by id ascending.
func (s ItemService) ActiveItems(screenName string) ([]model.Item, error) {
	query, args, err := sq.Select("id", "screen_name", "created_at", "content_text", "deleted").
		From(model.ItemTableName).
		Where(sq.Eq{"screen_name": screenName, "deleted": false}).
		OrderBy("id ASC").ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.pr.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var item model.Item
		var id int64
		var createdAt sql.NullTime
		if err := rows.Scan(&id, &item.ScreenName, &createdAt, &item.Text, &item.Deleted); err != nil {
			return nil, err
		}

		item.ID = uint64(id)
		if createdAt.Valid {
			item.CreatedAt = createdAt.Time
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// MarkDeleted flips the item's deleted flag. The flag is monotonic:
// marking an already-deleted id again is a no-op success.
func (s ItemService) MarkDeleted(id uint64) error {
	exists, err := s.Exists(id)
	if err != nil {
		return err
	} else if !exists {
		return model.ErrItemNotFound
	}

	query, args, err := sq.Update(model.ItemTableName).
		Set("deleted", true).Where(sq.Eq{"id": int64(id)}).ToSql()
	if err != nil {
		return err
	}

	_, err = s.pr.Exec(query, args...)
	return err
}

// Exists reports whether the id is in the cache.
func (s ItemService) Exists(id uint64) (bool, error) {
	query, args, err := sq.Select("1").From(model.ItemTableName).
		Where(sq.Eq{"id": int64(id)}).ToSql()
	if err != nil {
		return false, err
	}

	var one int
	err = s.pr.QueryRow(query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	} else if err != nil {
		return false, err
	}

	return true, nil
}

// MaxID returns the largest cached id for the screen name, tombstones
// included, or 0 for an empty cache.
func (s ItemService) MaxID(screenName string) (uint64, error) {
	query, args, err := sq.Select("max(id)").From(model.ItemTableName).
		Where(sq.Eq{"screen_name": screenName}).ToSql()
	if err != nil {
		return 0, err
	}

	return s.scanID(query, args)
}

// MinActiveID returns the smallest not-deleted id for the screen name,
// skipping ignoreIDs, or 0 when there is none. Tombstones are excluded
// so a backfill fetch is not stuck behind already-deleted items.
func (s ItemService) MinActiveID(screenName string, ignoreIDs []uint64) (uint64, error) {
	where := sq.And{sq.Eq{"screen_name": screenName, "deleted": false}}
	if len(ignoreIDs) > 0 {
		ids := make([]int64, len(ignoreIDs))
		for i, id := range ignoreIDs {
			ids[i] = int64(id)
		}

		where = append(where, sq.NotEq{"id": ids})
	}

	query, args, err := sq.Select("min(id)").
		From(model.ItemTableName).Where(where).ToSql()
	if err != nil {
		return 0, err
	}

	return s.scanID(query, args)
}

// Count returns the number of cached items for the screen name.
func (s ItemService) Count(screenName string) (int, error) {
	return s.scanCount(sq.Eq{"screen_name": screenName})
}

// DeletedCount returns the number of tombstones for the screen name.
func (s ItemService) DeletedCount(screenName string) (int, error) {
	return s.scanCount(sq.Eq{"screen_name": screenName, "deleted": true})
}

func (s ItemService) scanID(query string, args []interface{}) (uint64, error) {
	var id sql.NullInt64
	err := s.pr.QueryRow(query, args...).Scan(&id)
	if err == sql.ErrNoRows || (err == nil && !id.Valid) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}

	return uint64(id.Int64), nil
}

func (s ItemService) scanCount(where sq.Eq) (int, error) {
	query, args, err := sq.Select("count(*)").
		From(model.ItemTableName).Where(where).ToSql()
	if err != nil {
		return 0, err
	}

	var cnt int
	if err := s.pr.QueryRow(query, args...).Scan(&cnt); err != nil {
		return 0, err
	}

	return cnt, nil
}
