package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	rawExt  = ".pcm"
	zstdExt = ".pcm.zst"
)

// DiskCache is the L2 level. Each entry is one file named after its key,
// compressed with zstd when that makes it smaller. The index is rebuilt from
// the directory on start.
type DiskCache struct {
	mu       sync.Mutex
	basePath string
	capacity int64
	size     int64
	index    map[string]*diskEntry
	stats    Stats

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

type diskEntry struct {
	key        string
	path       string
	size       int64
	modTime    time.Time
	lastAccess time.Time
}

// NewDiskCache opens or creates a disk cache under basePath. A
// compressionLevel of 0 disables compression.
func NewDiskCache(basePath string, capacity int64, compressionLevel int) (*DiskCache, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dc := &DiskCache{
		basePath: basePath,
		capacity: capacity,
		index:    make(map[string]*diskEntry),
		stats:    Stats{Capacity: capacity},
	}

	var err error
	if compressionLevel > 0 {
		dc.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	// Always able to read compressed entries written with another level.
	dc.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	if err := dc.scan(); err != nil {
		return nil, err
	}
	return dc, nil
}

func (dc *DiskCache) scan() error {
	return filepath.WalkDir(dc.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		key, ok := keyFromName(d.Name())
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		dc.index[key] = &diskEntry{
			key:        key,
			path:       path,
			size:       info.Size(),
			modTime:    info.ModTime(),
			lastAccess: info.ModTime(),
		}
		dc.size += info.Size()
		return nil
	})
}

func keyFromName(name string) (string, bool) {
	switch {
	case strings.HasSuffix(name, zstdExt):
		return strings.TrimSuffix(name, zstdExt), true
	case strings.HasSuffix(name, rawExt):
		return strings.TrimSuffix(name, rawExt), true
	default:
		return "", false
	}
}

// Get reads and, if needed, decompresses an entry. Unreadable entries are
// dropped and reported as misses.
func (dc *DiskCache) Get(key string) ([]byte, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	e, ok := dc.index[key]
	if !ok {
		dc.stats.Misses++
		return nil, false
	}

	data, err := dc.read(e)
	if err != nil {
		dc.removeEntry(e)
		dc.stats.Misses++
		return nil, false
	}

	e.lastAccess = time.Now()
	dc.stats.Hits++
	return data, true
}

func (dc *DiskCache) read(e *diskEntry) ([]byte, error) {
	data, err := os.ReadFile(e.path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(e.path, zstdExt) {
		return data, nil
	}
	out, err := dc.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheCorrupted, err)
	}
	return out, nil
}

// Put writes an entry, evicting the least recently used entries when the
// cache would exceed its capacity.
func (dc *DiskCache) Put(key string, value []byte) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	data, ext := value, rawExt
	if dc.encoder != nil && len(value) > 1024 {
		if c := dc.encoder.EncodeAll(value, nil); len(c) < len(value) {
			data, ext = c, zstdExt
		}
	}

	n := int64(len(data))
	if n > dc.capacity {
		return ErrItemTooLarge
	}

	if e, ok := dc.index[key]; ok {
		dc.removeEntry(e)
	}
	dc.evictFor(n)

	path := filepath.Join(dc.basePath, key[:min(2, len(key))], key+ext)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := time.Now()
	dc.index[key] = &diskEntry{key: key, path: path, size: n, modTime: now, lastAccess: now}
	dc.size += n
	return nil
}

func (dc *DiskCache) evictFor(n int64) {
	if dc.size+n <= dc.capacity {
		return
	}
	entries := make([]*diskEntry, 0, len(dc.index))
	for _, e := range dc.index {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].lastAccess.Before(entries[j].lastAccess)
	})
	for _, e := range entries {
		if dc.size+n <= dc.capacity {
			return
		}
		dc.removeEntry(e)
		dc.stats.Evictions++
	}
}

// Delete removes an entry.
func (dc *DiskCache) Delete(key string) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	e, ok := dc.index[key]
	if !ok {
		return nil
	}
	return dc.removeEntry(e)
}

// Clear removes every entry.
func (dc *DiskCache) Clear() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	var errs []error
	for _, e := range dc.index {
		errs = append(errs, dc.removeEntry(e))
	}
	return errors.Join(errs...)
}

// Prune removes entries written before now-maxAge and returns how many were
// removed.
func (dc *DiskCache) Prune(maxAge time.Duration) int {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range dc.index {
		if e.modTime.Before(cutoff) {
			dc.removeEntry(e)
			removed++
		}
	}
	return removed
}

// Contains checks for a key.
func (dc *DiskCache) Contains(key string) bool {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	_, ok := dc.index[key]
	return ok
}

// Size returns the bytes used on disk.
func (dc *DiskCache) Size() int64 {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return dc.size
}

// Stats returns a snapshot of the counters.
func (dc *DiskCache) Stats() Stats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	s := dc.stats
	s.Size = dc.size
	s.ItemCount = int64(len(dc.index))
	s.updateHitRate()
	return s
}

// Close releases the zstd coders.
func (dc *DiskCache) Close() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if dc.encoder != nil {
		dc.encoder.Close()
	}
	dc.decoder.Close()
	return nil
}

// removeEntry must be called with the lock held.
func (dc *DiskCache) removeEntry(e *diskEntry) error {
	delete(dc.index, e.key)
	dc.size -= e.size
	if err := os.Remove(e.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
