// Command seedcache fills an item cache with fake items so policy and
// deletion runs can be exercised without touching a real account.
package main

import (
	"time"

	log "github.com/sirupsen/logrus"
	uuid "github.com/satori/go.uuid"
	kingpin "gopkg.in/alecthomas/kingpin.v2"

	"github.com/eigenmagic/twitforget/model"
	"github.com/eigenmagic/twitforget/model/sqlite"
)

var (
	cachePath  = kingpin.Flag("cache", "item cache file path.").Default("twitforget_test.db").String()
	screenName = kingpin.Flag("screen-name", "account screen name.").Default("testuser").String()
	count      = kingpin.Flag("count", "how many items to seed.").Default("10000").Int()
)

func main() {
	kingpin.Parse()

	db, err := sqlite.Open(*cachePath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	svc := sqlite.NewItemService(db)
	now := time.Now().UTC()

	var inserted int
	for i := 1; i <= *count; i++ {
		item := &model.Item{
			ID:         uint64(i),
			ScreenName: *screenName,
			Text:       uuid.NewV4().String(),
		}

		// Every tenth item stays dateless, like an archive-imported
		// like whose tweet is no longer visible.
		if i%10 != 0 {
			item.CreatedAt = now.AddDate(0, 0, -(*count - i))
		}

		ok, err := svc.InsertIfAbsent(item)
		if err != nil {
			log.Fatal(err)
		} else if ok {
			inserted++
		}
	}

	log.WithFields(log.Fields{"inserted": inserted, "cache": *cachePath}).Info("Seeded.")
}
