package fbads

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// cachePath returns the per-account cache file path, or "" when caching
// is disabled.
func (c *Client) cachePath() string {
	if c.opts.CacheDir == "" {
		return ""
	}
	return filepath.Join(c.opts.CacheDir, "facebook_cache_"+c.accountID+".json")
}

// loadCache returns the cached winning ads when the file exists and is
// younger than the TTL. Malformed or stale files are treated as a miss.
func (c *Client) loadCache() ([]Ad, bool) {
	path := c.cachePath()
	if path == "" {
		return nil, false
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if time.Since(info.ModTime()) >= c.opts.CacheTTL {
		log.Printf("[fbads] cache for account %s expired", c.accountID)
		return nil, false
	}

	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return nil, false
	}
	defer lock.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var ads []Ad
	if err := json.Unmarshal(data, &ads); err != nil {
		log.Printf("[fbads] malformed cache %s: %v", path, err)
		return nil, false
	}
	log.Printf("[fbads] loaded %d winning ads from cache %s", len(ads), path)
	return ads, true
}

// saveCache writes the winning ads under a file lock with an atomic
// rename, so concurrent runners never observe a partial file.
func (c *Client) saveCache(ads []Ad) error {
	path := c.cachePath()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(ads, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock cache: %w", err)
	}
	defer lock.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename cache: %w", err)
	}
	return nil
}
