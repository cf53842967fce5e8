// Package merge reconciles item records from any source into the
// cache. It makes no deletion decisions: it only inserts ids the cache
// has never seen, so replaying an archive or re-fetching a timeline in
// any order converges to the same cache state.
package merge

import (
	"io"

	"github.com/pkg/errors"

	"github.com/eigenmagic/twitforget/model"
)

// Source is a lazy sequence of item records. Next returns io.EOF when
// the source is exhausted.
type Source interface {
	Next() (*model.Item, error)
}

// Result is merge counters for one source.
type Result struct {
	Inserted int
	Skipped  int
}

// Run drains src into the cache. First-seen values win: records whose
// id is already cached are counted as skipped and otherwise discarded.
func Run(svc model.ItemService, src Source) (Result, error) {
	var res Result
	for {
		item, err := src.Next()
		if err == io.EOF {
			return res, nil
		} else if err != nil {
			return res, errors.Wrap(err, "read source")
		}

		inserted, err := svc.InsertIfAbsent(item)
		if err != nil {
			return res, errors.Wrapf(err, "insert item %d", item.ID)
		}

		if inserted {
			res.Inserted++
		} else {
			res.Skipped++
		}
	}
}

// Items merges an already materialized batch, such as one page of a
// timeline fetch.
func Items(svc model.ItemService, items []model.Item) (Result, error) {
	return Run(svc, &sliceSource{items: items})
}

type sliceSource struct {
	items []model.Item
	pos   int
}

func (s *sliceSource) Next() (*model.Item, error) {
	if s.pos >= len(s.items) {
		return nil, io.EOF
	}

	item := s.items[s.pos]
	s.pos++
	return &item, nil
}
