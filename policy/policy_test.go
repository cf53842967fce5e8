package policy_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/eigenmagic/twitforget/model"
	"github.com/eigenmagic/twitforget/policy"
)

var now = time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)

// makeItems builds items with ids 1..n; id i was created daysApart*i
// days before now, oldest id first.
func makeItems(n int, daysApart int) []model.Item {
	items := make([]model.Item, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, model.Item{
			ID:         uint64(i),
			ScreenName: "testuser",
			CreatedAt:  now.AddDate(0, 0, -daysApart*(n-i+1)),
		})
	}

	return items
}

func idRange(from, to uint64) []uint64 {
	ids := make([]uint64, 0, to-from+1)
	for id := from; id <= to; id++ {
		ids = append(ids, id)
	}

	return ids
}

func TestEvaluateKeepNum(t *testing.T) {
	items := makeItems(10000, 0)

	res := policy.Evaluate(items, policy.Config{KeepNum: 5000}, now)

	assert.Equal(t, idRange(1, 5000), res.Delete)
	assert.Equal(t, idRange(5001, 10000), res.Keep)
}

func TestEvaluatePartition(t *testing.T) {
	items := makeItems(100, 1)
	items[10].CreatedAt = time.Time{}
	items[20].CreatedAt = time.Time{}

	configs := []policy.Config{
		{KeepNum: 5000},
		{KeepNum: 0},
		{KeepNum: 10},
		{KeepNum: 10, BeforeDays: 30},
		{KeepNum: 10, BeforeDays: 30, AfterDays: 60},
		{KeepNum: 10, DeleteNodate: true},
		{KeepNum: 10, DeleteMax: 3},
		{KeepNum: 10, KeepIDs: map[uint64]struct{}{1: {}, 50: {}}},
	}

	for _, conf := range configs {
		res := policy.Evaluate(items, conf, now)

		assert.Len(t, append(res.Keep, res.Delete...), len(items))

		seen := map[uint64]int{}
		for _, id := range res.Keep {
			seen[id]++
		}
		for _, id := range res.Delete {
			seen[id]++
		}

		for _, item := range items {
			assert.Equal(t, 1, seen[item.ID], "item %d under %+v", item.ID, conf)
		}
	}
}

func TestEvaluateKeepListOverridesAge(t *testing.T) {
	items := []model.Item{
		{ID: 1, CreatedAt: now.AddDate(0, 0, -400)}, // keep-listed
		{ID: 2, CreatedAt: now.AddDate(0, 0, -400)},
		{ID: 3, CreatedAt: now.AddDate(0, 0, -1)},
	}

	conf := policy.Config{
		KeepNum:    0,
		BeforeDays: 30,
		KeepIDs:    map[uint64]struct{}{1: {}},
	}

	// Id 1 is as old as id 2 but the keep list shields it; id 3 is
	// too young for the day bound.
	res := policy.Evaluate(items, conf, now)
	assert.Equal(t, []uint64{1, 3}, res.Keep)
	assert.Equal(t, []uint64{2}, res.Delete)
}

func TestEvaluateDayBoundsIntersectKeepNum(t *testing.T) {
	// Ten items one day apart, oldest (id 1) ten days old.
	items := makeItems(10, 1)

	// Outside the newest-5 window AND older than 7 days: ids 1..3
	// qualify on age, ids 1..5 on the window; only 1..3 are deleted.
	res := policy.Evaluate(items, policy.Config{KeepNum: 5, BeforeDays: 7}, now)
	assert.Equal(t, []uint64{1, 2, 3}, res.Delete)

	// Adding an after bound trims the old side too; both bounds are
	// exclusive, so the item created exactly 9 days ago stays.
	res = policy.Evaluate(items, policy.Config{KeepNum: 5, BeforeDays: 7, AfterDays: 9}, now)
	assert.Equal(t, []uint64{3}, res.Delete)
}

func TestEvaluateUndatedExemptFromDayBounds(t *testing.T) {
	items := makeItems(4, 100)
	items[0].CreatedAt = time.Time{} // id 1, oldest rank

	// Day bounds never match an undated item; it is decided by the
	// keep-newest rule alone.
	res := policy.Evaluate(items, policy.Config{KeepNum: 1, BeforeDays: 5000}, now)
	assert.Contains(t, res.Delete, uint64(1))
	assert.NotContains(t, res.Delete, uint64(2))
	assert.NotContains(t, res.Delete, uint64(3))
}

func TestEvaluateDeleteNodate(t *testing.T) {
	items := makeItems(3, 1)
	items[2].CreatedAt = time.Time{} // id 3, newest

	// Without the flag the undated item ranks by id and is kept.
	res := policy.Evaluate(items, policy.Config{KeepNum: 3}, now)
	assert.Empty(t, res.Delete)

	// With it, undated items are deleted even inside the keep window.
	res = policy.Evaluate(items, policy.Config{KeepNum: 3, DeleteNodate: true}, now)
	assert.Equal(t, []uint64{3}, res.Delete)
}

func TestEvaluateDeleteMax(t *testing.T) {
	items := makeItems(10, 0)

	res := policy.Evaluate(items, policy.Config{KeepNum: 2, DeleteMax: 3}, now)

	// Oldest first, capped; the overflow stays kept for this run.
	assert.Equal(t, []uint64{1, 2, 3}, res.Delete)
	assert.Equal(t, idRange(4, 10), res.Keep)
}

func TestEvaluateDeterministic(t *testing.T) {
	items := makeItems(50, 2)
	conf := policy.Config{KeepNum: 10, BeforeDays: 14, KeepIDs: map[uint64]struct{}{5: {}}}

	first := policy.Evaluate(items, conf, now)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, policy.Evaluate(items, conf, now))
	}
}

func TestEvaluateEmpty(t *testing.T) {
	res := policy.Evaluate(nil, policy.Config{KeepNum: 5000}, now)
	assert.Empty(t, res.Keep)
	assert.Empty(t, res.Delete)
}
