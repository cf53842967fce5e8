package eraser_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/eigenmagic/twitforget/eraser"
	"github.com/eigenmagic/twitforget/model"
	"github.com/eigenmagic/twitforget/model/sqlite"
)

// fakeDeleter scripts remote outcomes per id. A nil entry (or no
// entry) means success.
type fakeDeleter struct {
	errs    map[uint64]error
	classes map[uint64]eraser.Class
	calls   []uint64

	// cancelAfter cancels ctx once this many calls have been made,
	// simulating an interrupt partway through a run.
	cancelAfter int
	cancel      context.CancelFunc
}

func (d *fakeDeleter) DeleteItem(id uint64) error {
	d.calls = append(d.calls, id)
	if d.cancel != nil && len(d.calls) == d.cancelAfter {
		d.cancel()
	}

	return d.errs[id]
}

func (d *fakeDeleter) Classify(err error) eraser.Class {
	for id, e := range d.errs {
		if e == err {
			return d.classes[id]
		}
	}

	return eraser.ClassRetryable
}

func newService(t *testing.T, ids ...uint64) model.ItemService {
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "cache.db"))
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := sqlite.NewItemService(db)
	for _, id := range ids {
		inserted, err := svc.InsertIfAbsent(&model.Item{ID: id, ScreenName: "testuser"})
		assert.NoError(t, err)
		assert.True(t, inserted)
	}

	return svc
}

func activeIDs(t *testing.T, svc model.ItemService) []uint64 {
	items, err := svc.ActiveItems("testuser")
	assert.NoError(t, err)

	ids := make([]uint64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}

	return ids
}

func TestRunConfirmed(t *testing.T) {
	svc := newService(t, 1, 2, 3)
	d := &fakeDeleter{}

	sum, err := eraser.New(svc, d, 0, false).Run(context.Background(), []uint64{1, 2})
	assert.NoError(t, err)
	assert.Equal(t, eraser.Summary{Planned: 2, Confirmed: 2}, sum)

	assert.Equal(t, []uint64{1, 2}, d.calls)
	assert.Equal(t, []uint64{3}, activeIDs(t, svc))
}

func TestRunGoneRecordedAsDeleted(t *testing.T) {
	svc := newService(t, 1, 2)
	goneErr := errors.New("no status found with that ID")
	d := &fakeDeleter{
		errs:    map[uint64]error{1: goneErr},
		classes: map[uint64]eraser.Class{1: eraser.ClassGone},
	}

	sum, err := eraser.New(svc, d, 0, false).Run(context.Background(), []uint64{1, 2})
	assert.NoError(t, err)
	assert.Equal(t, eraser.Summary{Planned: 2, Confirmed: 1, Gone: 1}, sum)

	// A stale cache entry is tombstoned like a confirmed delete.
	assert.Empty(t, activeIDs(t, svc))
}

func TestRunRetryableStaysActive(t *testing.T) {
	svc := newService(t, 1)
	d := &fakeDeleter{
		errs:    map[uint64]error{1: errors.New("over capacity")},
		classes: map[uint64]eraser.Class{1: eraser.ClassRateLimited},
	}

	sum, err := eraser.New(svc, d, 0, false).Run(context.Background(), []uint64{1})
	assert.NoError(t, err)
	assert.Equal(t, eraser.Summary{Planned: 1, LeftActive: 1}, sum)

	// Bounded in-run retries, then the item carries to the next run.
	assert.Equal(t, []uint64{1, 1, 1}, d.calls)
	assert.Equal(t, []uint64{1}, activeIDs(t, svc))
}

func TestRunDryRunPurity(t *testing.T) {
	svc := newService(t, 1, 2, 3)
	d := &fakeDeleter{}

	sum, err := eraser.New(svc, d, 0, true).Run(context.Background(), []uint64{1, 2, 3})
	assert.NoError(t, err)
	assert.Equal(t, eraser.Summary{Planned: 3}, sum)

	// Zero remote calls, cache untouched.
	assert.Empty(t, d.calls)
	assert.Equal(t, []uint64{1, 2, 3}, activeIDs(t, svc))
}

func TestRunResumable(t *testing.T) {
	svc := newService(t, 1, 2, 3, 4, 5)

	ctx, cancel := context.WithCancel(context.Background())
	d := &fakeDeleter{cancelAfter: 3, cancel: cancel}

	sum, err := eraser.New(svc, d, 0, false).Run(ctx, []uint64{1, 2, 3, 4, 5})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, sum.Confirmed)

	// Second run over the remaining active candidates processes
	// exactly the two left over, never the tombstoned three.
	d2 := &fakeDeleter{}
	remaining := activeIDs(t, svc)
	assert.Equal(t, []uint64{4, 5}, remaining)

	sum, err = eraser.New(svc, d2, 0, false).Run(context.Background(), remaining)
	assert.NoError(t, err)
	assert.Equal(t, eraser.Summary{Planned: 2, Confirmed: 2}, sum)
	assert.Equal(t, []uint64{4, 5}, d2.calls)
	assert.Empty(t, activeIDs(t, svc))
}

func TestRunUnknownIDFails(t *testing.T) {
	svc := newService(t, 1)
	d := &fakeDeleter{}

	// A delete-set id missing from the cache is a cache-consistency
	// problem and aborts the run.
	_, err := eraser.New(svc, d, 0, false).Run(context.Background(), []uint64{999})
	assert.Error(t, err)
	assert.ErrorIs(t, errors.Cause(err), model.ErrItemNotFound)
}
