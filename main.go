package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	kingpin "gopkg.in/alecthomas/kingpin.v2"

	"github.com/eigenmagic/twitforget/archive"
	"github.com/eigenmagic/twitforget/config"
	"github.com/eigenmagic/twitforget/eraser"
	"github.com/eigenmagic/twitforget/merge"
	"github.com/eigenmagic/twitforget/model"
	"github.com/eigenmagic/twitforget/model/sqlite"
	"github.com/eigenmagic/twitforget/policy"
	"github.com/eigenmagic/twitforget/twitter"
)

var (
	configFilePath = kingpin.Flag("config", "config file (toml) path.").Default("etc/config.toml").String()
	cachePath      = kingpin.Flag("cache", "item cache file path.").String()
	screenName     = kingpin.Flag("screen-name", "account screen name.").String()
	kind           = kingpin.Flag("kind", "item kind to manage (likes or tweets).").String()

	keepNum      = kingpin.Flag("keep-num", "how many of the newest items to keep.").Default("-1").Int()
	beforeDays   = kingpin.Flag("before-days", "only delete items older than this many days.").Default("-1").Int()
	afterDays    = kingpin.Flag("after-days", "only delete items newer than this many days.").Default("-1").Int()
	deleteNodate = kingpin.Flag("delete-nodate", "delete items with no known creation date.").Bool()
	deleteMax    = kingpin.Flag("delete-max", "delete at most this many items this run.").Int()
	keepIDs      = kingpin.Flag("keep-id", "never delete this item id (repeatable).").Uint64List()

	importFilePath = kingpin.Flag("import-file", "twitter archive zip file path to import.").String()
	isNoFetch      = kingpin.Flag("no-fetch", "skip the fetch stage.").Bool()
	isNoDelete     = kingpin.Flag("no-delete", "skip the delete stage.").Bool()
	isDryRun       = kingpin.Flag("dry-run", "don't actually delete items or touch the cache.").Bool()

	batchSize   = kingpin.Flag("batch-size", "items to fetch per API call.").Default("200").Int()
	deleteLimit = kingpin.Flag("delete-limit", "max deletes per minute.").Default("-1").Int()
	searchLimit = kingpin.Flag("search-limit", "max fetches per minute.").Default("-1").Int()
)

func main() {
	kingpin.Parse()
	os.Exit(run())
}

func run() int {
	conf, err := loadConfig()
	if err != nil {
		log.Error(err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(conf.CachePath)
	if err != nil {
		log.Errorf("Fail cache open: %s.", err)
		return 1
	}
	defer db.Close()

	c := &forgetClient{
		svc:           sqlite.NewItemService(db),
		client:        twitter.NewClient(conf),
		conf:          conf,
		fetchInterval: time.Minute / time.Duration(conf.SearchLimit),
	}

	if *importFilePath != "" {
		c.importArchive(*importFilePath)
	}

	if !*isNoFetch {
		if err := c.fetchAll(ctx); err != nil {
			if ctx.Err() != nil {
				log.Warn("Interrupted.")
				return 1
			}

			// Deletion of already-known items still proceeds.
			log.Warnf("Fail fetch: %s.", err)
		}
	}

	sum, err := c.erase(ctx)
	if err != nil {
		if ctx.Err() != nil {
			log.Warn("Interrupted.")
		} else {
			log.Error(err)
		}

		return 1
	}

	log.WithFields(log.Fields{
		"planned":     sum.Planned,
		"confirmed":   sum.Confirmed,
		"gone":        sum.Gone,
		"left_active": sum.LeftActive,
	}).Info("Done.")

	if sum.Gone > 0 {
		return 1
	}

	return 0
}

// loadConfig layers CLI flags over the config file and validates the
// result before anything touches the cache or the network.
func loadConfig() (*config.Config, error) {
	conf, err := config.LoadConfig(*configFilePath)
	if err != nil {
		return nil, err
	}

	conf = config.MergeFlags(conf, config.Overrides{
		ScreenName:  *screenName,
		CachePath:   *cachePath,
		Kind:        *kind,
		KeepNum:     *keepNum,
		BeforeDays:  *beforeDays,
		AfterDays:   *afterDays,
		DeleteLimit: *deleteLimit,
		SearchLimit: *searchLimit,
		KeepIDs:     *keepIDs,
	})

	if err := conf.Validate(); err != nil {
		return nil, err
	}

	return conf, nil
}

type forgetClient struct {
	svc           model.ItemService
	client        *twitter.Client
	conf          *config.Config
	fetchInterval time.Duration
}

// importArchive backfills the cache from an account export. Archive
// problems only cost this source's contribution; the run continues
// with what the cache already knows.
func (c *forgetClient) importArchive(path string) {
	l := log.WithField("path", path)

	var src merge.Source
	var err error
	switch c.conf.Kind {
	case "tweets":
		var cs *archive.TweetCSVSource
		if cs, err = archive.OpenTweetCSVZip(path, c.conf.ScreenName); err == nil {
			defer cs.Close()
			src = cs
		}
	default:
		src, err = archive.NewLikeSource(path, c.conf.ScreenName)
	}
	if err != nil {
		l.Warnf("Fail archive open: %s.", err)
		return
	}

	res, err := merge.Run(c.svc, src)
	if err != nil {
		l.Warnf("Fail archive import: %s.", err)
	}

	l.WithFields(log.Fields{
		"inserted": res.Inserted, "skipped": res.Skipped,
	}).Info("Archive imported.")
}

// fetchAll pulls the account's items into the cache: first backfilling
// older than the oldest active cached item, then catching up on newer
// ones. Both directions stop at an empty page or a stuck cursor.
func (c *forgetClient) fetchAll(ctx context.Context) error {
	if err := c.fetchOlder(ctx); err != nil {
		return err
	}

	return c.fetchNewer(ctx)
}

func (c *forgetClient) fetchOlder(ctx context.Context) error {
	var knownMinID uint64
	for {
		cnt, err := c.svc.Count(c.conf.ScreenName)
		if err != nil {
			return err
		}

		var maxID uint64
		if cnt > 0 {
			// Tombstones are excluded from the cursor: once old items
			// are deleted, paging from them would never move.
			minID, err := c.svc.MinActiveID(c.conf.ScreenName, c.conf.KeepIDs)
			if err != nil {
				return err
			}

			if minID == 0 || minID == knownMinID {
				log.Debug("No more old items to fetch.")
				return nil
			}

			knownMinID = minID
			maxID = minID - 1
		}

		n, err := c.fetchPage(ctx, 0, maxID)
		if err != nil || n == 0 {
			return err
		}
	}
}

func (c *forgetClient) fetchNewer(ctx context.Context) error {
	for {
		maxID, err := c.svc.MaxID(c.conf.ScreenName)
		if err != nil {
			return err
		} else if maxID == 0 {
			return nil
		}

		n, err := c.fetchPage(ctx, maxID, 0)
		if err != nil || n == 0 {
			return err
		}
	}
}

func (c *forgetClient) fetchPage(ctx context.Context, sinceID, maxID uint64) (int, error) {
	batch, err := c.client.FetchBatch(c.conf.ScreenName, *batchSize, sinceID, maxID)
	if err != nil {
		return 0, err
	} else if len(batch) == 0 {
		return 0, nil
	}

	res, err := merge.Items(c.svc, batch)
	if err != nil {
		return 0, err
	}

	log.WithFields(log.Fields{
		"fetched": len(batch), "inserted": res.Inserted, "skipped": res.Skipped,
	}).Debug("Fetched page.")

	return res.Inserted, waitCtx(ctx, c.fetchInterval)
}

// erase evaluates the retention policy over the active items and
// drives the deletions.
func (c *forgetClient) erase(ctx context.Context) (eraser.Summary, error) {
	items, err := c.svc.ActiveItems(c.conf.ScreenName)
	if err != nil {
		return eraser.Summary{}, err
	}

	res := policy.Evaluate(items, policy.Config{
		KeepNum:      c.conf.KeepNum,
		BeforeDays:   c.conf.BeforeDays,
		AfterDays:    c.conf.AfterDays,
		DeleteNodate: *deleteNodate,
		DeleteMax:    *deleteMax,
		KeepIDs:      c.conf.KeepIDSet(),
	}, time.Now())

	log.WithFields(log.Fields{
		"active": len(items), "keep": len(res.Keep), "delete": len(res.Delete),
	}).Info("Policy evaluated.")

	if *isNoDelete {
		return eraser.Summary{}, nil
	}

	e := eraser.New(c.svc, c.client,
		time.Minute/time.Duration(c.conf.DeleteLimit), *isDryRun)

	return e.Run(ctx, res.Delete)
}

func waitCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
