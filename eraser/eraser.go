// Package eraser applies a delete-set against the remote API, one
// item at a time, pacing calls under the published rate limit and
// recording every outcome in the item cache so an interrupted run can
// resume where it left off.
package eraser

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/eigenmagic/twitforget/model"
)

// Class is the category of a failed remote delete.
type Class int

const (
	// ClassRetryable is a transient failure. The item stays active
	// and is retried, within this run up to the attempt budget and
	// otherwise on the next run.
	ClassRetryable Class = iota

	// ClassRateLimited is a retryable failure that means calls are
	// too frequent; the retry delay escalates.
	ClassRateLimited

	// ClassGone means the item is already absent from the account
	// (deleted elsewhere, author suspended, permission revoked). The
	// end state matches intent, so the item is recorded as deleted.
	ClassGone
)

// Deleter invokes the remote deletion operation and classifies its
// failures.
type Deleter interface {
	DeleteItem(id uint64) error
	Classify(err error) Class
}

// Summary is the aggregate outcome of one run.
type Summary struct {
	Planned    int
	Confirmed  int
	Gone       int
	LeftActive int
}

// Eraser is the deletion driver.
type Eraser struct {
	svc    model.ItemService
	client Deleter

	// interval is the minimum delay before each remote call, derived
	// from the per-minute delete limit.
	interval    time.Duration
	maxAttempts int
	maxBackoff  time.Duration
	dryRun      bool
}

// New is create eraser.
func New(svc model.ItemService, client Deleter, interval time.Duration, dryRun bool) *Eraser {
	return &Eraser{
		svc:         svc,
		client:      client,
		interval:    interval,
		maxAttempts: 3,
		maxBackoff:  15 * time.Minute,
		dryRun:      dryRun,
	}
}

// Run deletes the given items in ascending id order. Failures on one
// item never abort the run; cancellation is honored between items and
// while waiting, never mid-call. In dry-run mode no remote call is
// made and the cache is not touched.
func (e *Eraser) Run(ctx context.Context, ids []uint64) (Summary, error) {
	sum := Summary{Planned: len(ids)}
	for i, id := range ids {
		select {
		case <-ctx.Done():
			log.WithField("remaining", len(ids)-i).Info("Run cancelled.")
			return sum, ctx.Err()
		default:
		}

		l := log.WithField("id", id)
		if e.dryRun {
			l.Info("Would delete.")
			continue
		}

		if err := sleepCtx(ctx, e.interval); err != nil {
			return sum, err
		}

		if err := e.deleteOne(ctx, id, &sum); err != nil {
			return sum, err
		}

		l.Infof("Item %d of %d processed.", i+1, len(ids))
	}

	return sum, nil
}

// deleteOne runs the per-item state machine. It returns an error only
// for cache failures or cancellation; remote failures are absorbed
// into the summary.
func (e *Eraser) deleteOne(ctx context.Context, id uint64, sum *Summary) error {
	l := log.WithField("id", id)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.interval
	bo.MaxInterval = e.maxBackoff
	bo.MaxElapsedTime = 0

	for attempt := 1; ; attempt++ {
		err := e.client.DeleteItem(id)
		if err == nil {
			if err := e.markDeleted(id); err != nil {
				return err
			}

			sum.Confirmed++
			l.Info("Successfully deleted!")
			return nil
		}

		switch e.client.Classify(err) {
		case ClassGone:
			// Stale cache entry; the item is gone either way.
			if err := e.markDeleted(id); err != nil {
				return err
			}

			sum.Gone++
			l.Warnf("Already gone remotely, recording as deleted: %s", err)
			return nil

		case ClassRateLimited, ClassRetryable:
			if attempt >= e.maxAttempts {
				sum.LeftActive++
				l.Warnf("Giving up after %d attempts, retrying next run: %s", attempt, err)
				return nil
			}

			wait := bo.NextBackOff()
			l.WithField("wait", wait).Warnf("Fail delete: %s", err)
			if err := sleepCtx(ctx, wait); err != nil {
				sum.LeftActive++
				return err
			}
		}
	}
}

func (e *Eraser) markDeleted(id uint64) error {
	if err := e.svc.MarkDeleted(id); err != nil {
		return errors.Wrapf(err, "mark item %d deleted", id)
	}

	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
