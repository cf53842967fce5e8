// Package twitter adapts the Twitter API for fetching and deleting
// items. All authentication and transport lives here; the rest of the
// program only sees model.Item values and classified errors.
package twitter

import (
	"fmt"
	"net/url"

	"github.com/ChimeraCoder/anaconda"
	"github.com/pkg/errors"

	"github.com/eigenmagic/twitforget/config"
	"github.com/eigenmagic/twitforget/eraser"
	"github.com/eigenmagic/twitforget/model"
)

// Kind selects which items the client manages.
type Kind string

// Supported item kinds.
const (
	KindLikes  Kind = "likes"
	KindTweets Kind = "tweets"
)

// Client is a kind-aware Twitter API client.
type Client struct {
	api  *anaconda.TwitterApi
	kind Kind
}

// NewClient is create client from config credentials.
func NewClient(conf *config.Config) *Client {
	anaconda.SetConsumerKey(conf.ConsumerKey)
	anaconda.SetConsumerSecret(conf.ConsumerSecret)
	api := anaconda.NewTwitterApi(conf.AccessToken, conf.AccessTokenSecret)

	return &Client{api: api, kind: Kind(conf.Kind)}
}

// FetchBatch fetches one page of the account's items, newest first.
// sinceID and maxID are optional paging cursors; zero means unset.
// The visibility window is Twitter's: pages beyond it come back empty.
func (c *Client) FetchBatch(screenName string, count int, sinceID, maxID uint64) ([]model.Item, error) {
	v := url.Values{}
	v.Set("screen_name", screenName)
	v.Set("count", fmt.Sprint(count))
	v.Set("include_entities", "false")
	if sinceID > 0 {
		v.Set("since_id", fmt.Sprint(sinceID))
	}
	if maxID > 0 {
		v.Set("max_id", fmt.Sprint(maxID))
	}

	var tweets []anaconda.Tweet
	var err error
	switch c.kind {
	case KindTweets:
		v.Set("trim_user", "true")
		v.Set("include_rts", "false")
		tweets, err = c.api.GetUserTimeline(v)
	default:
		tweets, err = c.api.GetFavorites(v)
	}
	if err != nil {
		return nil, errors.Wrap(err, "fetch batch")
	}

	items := make([]model.Item, 0, len(tweets))
	for _, t := range tweets {
		item := model.Item{
			ID:         uint64(t.Id),
			ScreenName: screenName,
			Text:       t.Text,
		}

		// Some items come back without a parseable date; the cache
		// stores them dateless rather than guessing.
		if createdAt, err := t.CreatedAtTime(); err == nil {
			item.CreatedAt = createdAt
		}

		items = append(items, item)
	}

	return items, nil
}

// DeleteItem removes one item from the account.
func (c *Client) DeleteItem(id uint64) error {
	var err error
	switch c.kind {
	case KindTweets:
		_, err = c.api.DeleteTweet(int64(id), true)
	default:
		_, err = c.api.Unfavorite(int64(id))
	}

	return err
}

// Twitter error codes for items that are already gone: 144 no such
// status, 34 page does not exist, 63 author suspended, 179 not
// authorized to see the status.
var goneCodes = map[int]bool{144: true, 34: true, 63: true, 179: true}

// Classify maps an API error onto the driver's taxonomy.
func (c *Client) Classify(err error) eraser.Class {
	apiErr, ok := errors.Cause(err).(*anaconda.ApiError)
	if !ok {
		// Network level failure; worth retrying.
		return eraser.ClassRetryable
	}

	for _, te := range apiErr.Decoded.Errors {
		if te.Code == anaconda.TwitterErrorRateLimitExceeded {
			return eraser.ClassRateLimited
		}
		if goneCodes[te.Code] {
			return eraser.ClassGone
		}
	}

	switch apiErr.StatusCode {
	case 420, 429:
		return eraser.ClassRateLimited
	case 403, 404, 410:
		return eraser.ClassGone
	}

	return eraser.ClassRetryable
}
