// Package archive reads item records out of a Twitter account export
// so the cache can be backfilled with items older than the API's
// visibility window.
package archive

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/eigenmagic/twitforget/model"
)

// likeFileNames are where the likes data file has lived across archive
// layouts.
var likeFileNames = []string{"data/like.js", "like.js"}

// tweetCSVName is the tweets file in the older archive layout.
const tweetCSVName = "tweets.csv"

// likeRecord is one entry of like.js.
type likeRecord struct {
	Like struct {
		TweetID  string `json:"tweetId"`
		FullText string `json:"fullText"`
	} `json:"like"`
}

// LikeSource yields liked items from an archive zip. The archive does
// not record when the liked tweet was created, so items come out with
// no creation date.
type LikeSource struct {
	items []model.Item
	pos   int
}

// NewLikeSource reads the likes data file out of the archive at path.
func NewLikeSource(path, screenName string) (*LikeSource, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrap(err, "open archive")
	}
	defer r.Close()

	var zf *zip.File
	for _, f := range r.File {
		for _, name := range likeFileNames {
			if f.Name == name {
				zf = f
				break
			}
		}
	}
	if zf == nil {
		return nil, errors.Errorf("no likes data file in archive %s", path)
	}

	rc, err := zf.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}

	items, err := parseLikeJS(data, screenName)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", zf.Name)
	}

	return &LikeSource{items: items}, nil
}

// Next implements merge.Source.
func (s *LikeSource) Next() (*model.Item, error) {
	if s.pos >= len(s.items) {
		return nil, io.EOF
	}

	item := s.items[s.pos]
	s.pos++
	return &item, nil
}

// parseLikeJS parses the likes data file. The file is a Javascript
// variable assignment of a JSON array, so everything before the first
// bracket is stripped.
func parseLikeJS(data []byte, screenName string) ([]model.Item, error) {
	idx := bytes.IndexByte(data, '[')
	if idx < 0 {
		return nil, errors.New("no JSON array found")
	}

	var records []likeRecord
	if err := json.Unmarshal(data[idx:], &records); err != nil {
		return nil, err
	}

	items := make([]model.Item, 0, len(records))
	for _, rec := range records {
		id, err := strconv.ParseUint(rec.Like.TweetID, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad tweet id %q", rec.Like.TweetID)
		}

		items = append(items, model.Item{
			ID:         id,
			ScreenName: screenName,
			Text:       rec.Like.FullText,
		})
	}

	return items, nil
}

// tweetTimeLayouts are the timestamp formats seen in tweets.csv.
var tweetTimeLayouts = []string{
	"2006-01-02 15:04:05 -0700",
	time.RFC3339,
}

// TweetCSVSource yields tweets from the tweets.csv of an older archive
// layout. Column positions come from the header row.
type TweetCSVSource struct {
	cr         *csv.Reader
	closer     io.Closer
	screenName string

	idIdx   int
	timeIdx int
	textIdx int
}

// NewTweetCSVSource wraps an already opened tweets.csv stream.
func NewTweetCSVSource(r io.Reader, screenName string) (*TweetCSVSource, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read csv header")
	}

	s := &TweetCSVSource{cr: cr, screenName: screenName, idIdx: -1, timeIdx: -1, textIdx: -1}
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "tweet_id":
			s.idIdx = i
		case "timestamp", "created_at":
			s.timeIdx = i
		case "text":
			s.textIdx = i
		}
	}

	if s.idIdx < 0 {
		return nil, errors.New("no tweet_id column in csv header")
	}

	return s, nil
}

// OpenTweetCSVZip finds tweets.csv inside the archive zip at path.
// Close releases the archive once the source is drained.
func OpenTweetCSVZip(path, screenName string) (*TweetCSVSource, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrap(err, "open archive")
	}

	var zf *zip.File
	for _, f := range r.File {
		if f.Name == tweetCSVName {
			zf = f
			break
		}
	}
	if zf == nil {
		r.Close()
		return nil, errors.Errorf("no %s in archive %s", tweetCSVName, path)
	}

	rc, err := zf.Open()
	if err != nil {
		r.Close()
		return nil, err
	}

	s, err := NewTweetCSVSource(rc, screenName)
	if err != nil {
		rc.Close()
		r.Close()
		return nil, err
	}

	s.closer = multiCloser{rc, r}
	return s, nil
}

// Next implements merge.Source.
func (s *TweetCSVSource) Next() (*model.Item, error) {
	record, err := s.cr.Read()
	if err != nil {
		return nil, err
	}

	id, err := strconv.ParseUint(record[s.idIdx], 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "bad tweet id %q", record[s.idIdx])
	}

	item := &model.Item{ID: id, ScreenName: s.screenName}
	if s.textIdx >= 0 && s.textIdx < len(record) {
		item.Text = record[s.textIdx]
	}

	if s.timeIdx >= 0 && s.timeIdx < len(record) {
		for _, layout := range tweetTimeLayouts {
			if t, err := time.Parse(layout, record[s.timeIdx]); err == nil {
				item.CreatedAt = t
				break
			}
		}
	}

	return item, nil
}

// Close releases the underlying archive, if this source owns one.
func (s *TweetCSVSource) Close() error {
	if s.closer == nil {
		return nil
	}

	return s.closer.Close()
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for _, c := range m {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}

	return first
}
