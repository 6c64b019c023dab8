package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// MinioSubDir holds objects fetched from minio locations.
const MinioSubDir = "miniocache"

// cachePrefix marks files written by this service. The purge loop
// removes nothing else.
const cachePrefix = "rgbtoz_"

type Cache struct {
	Location string
	Logger   *zap.Logger
}

// New returns a cache rooted at location. A nil logger discards logs.
func New(location string, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{Location: location, Logger: logger}
}

// UrlToCacheFileName flattens a url or object path into a single cache
// file name.
func UrlToCacheFileName(url string) string {
	response := strings.Replace(url, "?", "_", 1)
	replacer := strings.NewReplacer("&", "", "=", "", "/", "_", ":", "_", "\\", "_")
	return cachePrefix + replacer.Replace(response)
}

func (c *Cache) path(cacheFileName string, subDir string) string {
	return filepath.Join(c.Location, subDir, cacheFileName)
}

// GetItemFromCache opens `cacheFileName` within the `subDir` directory.
func (c *Cache) GetItemFromCache(cacheFileName string, subDir string) (*os.File, error) {
	file, err := os.Open(c.path(cacheFileName, subDir))
	if err != nil {
		c.Logger.Debug("Request not in cache", zap.String("cache_file", cacheFileName), zap.Error(err))
		return nil, err
	}
	return file, nil
}

// PutItemInCache places `data` into `cacheFileName` within `subDir`,
// creating the directory if needed.
func (c *Cache) PutItemInCache(cacheFileName string, subDir string, data []byte) error {
	fullPath := c.path(cacheFileName, subDir)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	// Readers never see a partial object.
	tmp := fullPath + ".part"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	return nil
}

// Purge removes the oldest cache files in `subDir` until its size is at
// most `maxBytes`, and returns the number of files removed.
func (c *Cache) Purge(subDir string, maxBytes int64) (int, error) {
	dir := filepath.Join(c.Location, subDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	type cached struct {
		name    string
		size    int64
		modTime time.Time
	}
	var files []cached
	var currentBytes int64
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), cachePrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		currentBytes += info.Size()
		files = append(files, cached{entry.Name(), info.Size(), info.ModTime()})
	}

	removed := 0
	for currentBytes > maxBytes && len(files) > 0 {
		oldest := 0
		for i := range files {
			if files[i].modTime.Before(files[oldest].modTime) {
				oldest = i
			}
		}
		f := files[oldest]
		c.Logger.Info("Cache over maximum, removing old file",
			zap.String("cache_file", f.name),
			zap.Int64("cache_bytes", currentBytes),
			zap.Int64("max_bytes", maxBytes),
		)
		if err := os.Remove(filepath.Join(dir, f.name)); err != nil {
			return removed, err
		}
		currentBytes -= f.size
		files = append(files[:oldest], files[oldest+1:]...)
		removed++
	}
	return removed, nil
}

// CheckCache purges `subDir` every `checkInterval` until ctx is done.
func (c *Cache) CheckCache(ctx context.Context, subDir string, checkInterval time.Duration, maxBytes int64) {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for {
		if _, err := c.Purge(subDir, maxBytes); err != nil && !os.IsNotExist(err) {
			c.Logger.Error("CheckCache error", zap.String("sub_dir", subDir), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
