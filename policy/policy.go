// Package policy decides which cached items to keep and which to
// delete. Evaluate is a pure function of its inputs so a dry-run
// preview always matches the real run.
package policy

import (
	"sort"
	"time"

	"github.com/eigenmagic/twitforget/model"
)

// DefaultKeepNum is how many of the newest items are kept when no
// keep count is configured.
const DefaultKeepNum = 5000

// Config is the retention rule set.
type Config struct {
	// KeepNum is how many of the newest items to keep.
	KeepNum int

	// BeforeDays, when set, only deletes items created more than this
	// many days ago. AfterDays, when set, additionally bounds the
	// range on the old side: only items created less than AfterDays
	// days ago are deleted. Zero means unset.
	BeforeDays int
	AfterDays  int

	// DeleteNodate marks items with no known creation date for
	// deletion regardless of KeepNum. Without it such items are
	// ranked by id with everything else.
	DeleteNodate bool

	// DeleteMax caps how many items are deleted in one run, oldest
	// first. Zero means no cap.
	DeleteMax int

	// KeepIDs are always kept, whatever the other rules say.
	KeepIDs map[uint64]struct{}
}

// Result is a partition of the evaluated item ids: Keep and Delete are
// disjoint, their union is the input set, both sorted ascending.
type Result struct {
	Keep   []uint64
	Delete []uint64
}

// Evaluate partitions items into keep and delete sets under conf.
// Rules apply in order; an item kept by an earlier rule is out of
// consideration for later ones:
//
//  1. ids in conf.KeepIDs are kept;
//  2. the KeepNum newest remaining items (by id, ids are issued
//     chronologically) are kept, the rest become candidates;
//  3. with day bounds configured, a candidate with a known creation
//     date is only deleted when it falls inside the bounds; undated
//     candidates are not matched by the bounds and stay decided by
//     rule 2 alone.
//
// Callers pass active items only; tombstones are already resolved.
func Evaluate(items []model.Item, conf Config, now time.Time) Result {
	sorted := make([]model.Item, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID > sorted[j].ID })

	var res Result
	var candidates []model.Item
	kept := 0
	for _, item := range sorted {
		if _, ok := conf.KeepIDs[item.ID]; ok {
			res.Keep = append(res.Keep, item.ID)
			continue
		}

		// The original tool's nodate mode: undated items never age
		// out by date, so deleting them has to be asked for
		// explicitly, and then KeepNum does not shelter them.
		if conf.DeleteNodate && !item.HasCreatedAt() {
			candidates = append(candidates, item)
			continue
		}

		if kept < conf.KeepNum {
			res.Keep = append(res.Keep, item.ID)
			kept++
			continue
		}

		candidates = append(candidates, item)
	}

	beforeBound := now.AddDate(0, 0, -conf.BeforeDays)
	afterBound := now.AddDate(0, 0, -conf.AfterDays)
	for _, item := range candidates {
		if item.HasCreatedAt() {
			if conf.BeforeDays > 0 && !item.CreatedAt.Before(beforeBound) {
				res.Keep = append(res.Keep, item.ID)
				continue
			}

			if conf.AfterDays > 0 && !item.CreatedAt.After(afterBound) {
				res.Keep = append(res.Keep, item.ID)
				continue
			}
		}

		res.Delete = append(res.Delete, item.ID)
	}

	sortIDs(res.Delete)

	if conf.DeleteMax > 0 && len(res.Delete) > conf.DeleteMax {
		res.Keep = append(res.Keep, res.Delete[conf.DeleteMax:]...)
		res.Delete = res.Delete[:conf.DeleteMax]
	}

	sortIDs(res.Keep)

	return res
}

func sortIDs(ids []uint64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
