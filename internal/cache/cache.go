// Package cache is the content-addressed store of finished artifacts.
package cache

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"bird-analysis-service/internal/entity"
)

// Cache keeps one annotated mp4 plus one result document per digest.
// An entry is valid only when both files exist; entries older than the
// retention window are swept opportunistically.
type Cache struct {
	dir       string
	retention time.Duration
}

// Entry points at the two files of a valid cache entry.
type Entry struct {
	VideoPath  string
	ResultPath string
}

func New(dir string, retention time.Duration) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache dir: %w", err)
	}
	return &Cache{dir: dir, retention: retention}, nil
}

func (c *Cache) videoPath(digest string) string {
	return filepath.Join(c.dir, digest+".mp4")
}

func (c *Cache) resultPath(digest string) string {
	return filepath.Join(c.dir, digest+".json")
}

// Lookup returns the entry for digest if both files are present.
func (c *Cache) Lookup(digest string) (*Entry, bool) {
	c.SweepExpired()

	e := &Entry{VideoPath: c.videoPath(digest), ResultPath: c.resultPath(digest)}
	if _, err := os.Stat(e.VideoPath); err != nil {
		return nil, false
	}
	if _, err := os.Stat(e.ResultPath); err != nil {
		return nil, false
	}
	return e, true
}

// Result loads the cached result document for digest.
func (c *Cache) Result(digest string) (*entity.ResultDocument, error) {
	raw, err := os.ReadFile(c.resultPath(digest))
	if err != nil {
		return nil, err
	}
	var doc entity.ResultDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("cache result %s: %w", digest, err)
	}
	return &doc, nil
}

// Store moves the finished video into the cache and writes the result
// document next to it. The document is written first so a partial store
// never looks like a hit.
func (c *Cache) Store(digest, videoSrc string, doc *entity.ResultDocument) (*Entry, error) {
	c.SweepExpired()

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	if err := os.WriteFile(c.resultPath(digest), raw, 0o644); err != nil {
		return nil, fmt.Errorf("write result: %w", err)
	}
	if err := moveFile(videoSrc, c.videoPath(digest)); err != nil {
		_ = os.Remove(c.resultPath(digest))
		return nil, fmt.Errorf("store video: %w", err)
	}
	return &Entry{VideoPath: c.videoPath(digest), ResultPath: c.resultPath(digest)}, nil
}

// SweepExpired removes entries whose video file is older than the
// retention window. A retention of zero disables eviction.
func (c *Cache) SweepExpired() int {
	if c.retention <= 0 {
		return 0
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0
	}

	cutoff := time.Now().Add(-c.retention)
	removed := 0
	for _, de := range entries {
		if de.IsDir() || filepath.Ext(de.Name()) != ".mp4" {
			continue
		}
		info, err := de.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		digest := de.Name()[:len(de.Name())-len(".mp4")]
		_ = os.Remove(c.videoPath(digest))
		_ = os.Remove(c.resultPath(digest))
		removed++
	}
	if removed > 0 {
		log.Printf("[cache] swept=%d retention=%s", removed, c.retention)
	}
	return removed
}

// moveFile renames src to dst, falling back to copy+remove when the
// cache dir lives on another filesystem.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return os.Remove(src)
}
