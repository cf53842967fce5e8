package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Defaults applied when neither the config file nor the CLI sets a
// value. The delete and search limits sit under Twitter's published
// per-window ceilings.
const (
	DefaultKind        = "likes"
	DefaultCachePath   = ".tweetcache.db"
	DefaultKeepNum     = 5000
	DefaultDeleteLimit = 60
	DefaultSearchLimit = 5
)

// Config is twitforget configuration.
type Config struct {
	ConsumerKey       string `toml:"consumer_key"`
	ConsumerSecret    string `toml:"consumer_secret"`
	AccessToken       string `toml:"access_token"`
	AccessTokenSecret string `toml:"access_token_secret"`

	ScreenName string `toml:"screen_name"`
	CachePath  string `toml:"cache_path"`
	Kind       string `toml:"kind"`

	KeepNum    int `toml:"keep_num"`
	BeforeDays int `toml:"before_days"`
	AfterDays  int `toml:"after_days"`

	// DeleteLimit and SearchLimit are calls per minute.
	DeleteLimit int `toml:"delete_limit"`
	SearchLimit int `toml:"search_limit"`

	KeepIDs []uint64 `toml:"keep_ids"`
}

// Default returns a config with defaults filled in.
func Default() *Config {
	return &Config{
		CachePath:   DefaultCachePath,
		Kind:        DefaultKind,
		KeepNum:     DefaultKeepNum,
		DeleteLimit: DefaultDeleteLimit,
		SearchLimit: DefaultSearchLimit,
	}
}

// LoadConfig is load config file.
func LoadConfig(path string) (*Config, error) {
	configFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := Default()
	_, err = toml.Decode(string(configFile), config)
	if err != nil {
		return nil, err
	}

	return config, nil
}

// Overrides are the CLI-supplied values layered over the file config.
// Empty strings and negative ints mean the flag was not given.
type Overrides struct {
	ScreenName string
	CachePath  string
	Kind       string

	KeepNum    int
	BeforeDays int
	AfterDays  int

	DeleteLimit int
	SearchLimit int

	KeepIDs []uint64
}

// MergeFlags layers o over c and returns the result: CLI wins where
// set, except keep-id lists which union. Neither argument is mutated.
func MergeFlags(c *Config, o Overrides) *Config {
	merged := *c

	if o.ScreenName != "" {
		merged.ScreenName = o.ScreenName
	}
	if o.CachePath != "" {
		merged.CachePath = o.CachePath
	}
	if o.Kind != "" {
		merged.Kind = o.Kind
	}
	if o.KeepNum >= 0 {
		merged.KeepNum = o.KeepNum
	}
	if o.BeforeDays >= 0 {
		merged.BeforeDays = o.BeforeDays
	}
	if o.AfterDays >= 0 {
		merged.AfterDays = o.AfterDays
	}
	if o.DeleteLimit > 0 {
		merged.DeleteLimit = o.DeleteLimit
	}
	if o.SearchLimit > 0 {
		merged.SearchLimit = o.SearchLimit
	}

	merged.KeepIDs = unionIDs(c.KeepIDs, o.KeepIDs)

	return &merged
}

// Validate reports configuration errors before any cache or network
// activity happens.
func (c *Config) Validate() error {
	switch {
	case c.ConsumerKey == "" || c.ConsumerSecret == "":
		return errors.New("consumer key and secret are required")
	case c.AccessToken == "" || c.AccessTokenSecret == "":
		return errors.New("access token and secret are required")
	case c.ScreenName == "":
		return errors.New("screen name is required")
	case c.CachePath == "":
		return errors.New("cache path is required")
	case c.Kind != "likes" && c.Kind != "tweets":
		return errors.Errorf("unknown item kind %q (want likes or tweets)", c.Kind)
	case c.KeepNum < 0:
		return errors.Errorf("keep num must not be negative: %d", c.KeepNum)
	case c.BeforeDays < 0 || c.AfterDays < 0:
		return errors.New("day bounds must not be negative")
	case c.BeforeDays > 0 && c.AfterDays > 0 && c.AfterDays <= c.BeforeDays:
		return errors.Errorf("after-days (%d) must be larger than before-days (%d)",
			c.AfterDays, c.BeforeDays)
	case c.DeleteLimit <= 0 || c.SearchLimit <= 0:
		return errors.New("rate limits must be positive")
	}

	return nil
}

// KeepIDSet returns the keep list as a set for the policy engine.
func (c *Config) KeepIDSet() map[uint64]struct{} {
	set := make(map[uint64]struct{}, len(c.KeepIDs))
	for _, id := range c.KeepIDs {
		set[id] = struct{}{}
	}

	return set
}

func unionIDs(a, b []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(a)+len(b))
	var ids []uint64
	for _, id := range append(append([]uint64{}, a...), b...) {
		if _, ok := seen[id]; ok {
			continue
		}

		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	return ids
}
