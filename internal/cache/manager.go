package cache

import (
	"fmt"

	"github.com/charmbracelet/log"
)

// Manager looks up L1 then L2 and promotes disk hits into memory. Writes go
// to both levels.
type Manager struct {
	memory *MemoryCache
	disk   *DiskCache
	logger *log.Logger
}

// NewManager creates the cache levels described by cfg. The disk level is
// skipped when DiskPath is empty or DiskCapacity is 0.
func NewManager(cfg Config) (*Manager, error) {
	m := &Manager{
		memory: NewMemoryCache(cfg.MemoryCapacity),
		logger: log.Default().WithPrefix("cache"),
	}

	if cfg.DiskPath != "" && cfg.DiskCapacity > 0 {
		disk, err := NewDiskCache(cfg.DiskPath, cfg.DiskCapacity, cfg.CompressionLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to create disk cache: %w", err)
		}
		if cfg.TTL > 0 {
			if n := disk.Prune(cfg.TTL); n > 0 {
				m.logger.Debug("Pruned expired cache entries", "count", n)
			}
		}
		m.disk = disk
	}
	return m, nil
}

// Get returns a cached value and the level it was found at.
func (m *Manager) Get(key string) ([]byte, Level, bool) {
	if data, ok := m.memory.Get(key); ok {
		return data, LevelMemory, true
	}
	if m.disk == nil {
		return nil, 0, false
	}
	data, ok := m.disk.Get(key)
	if !ok {
		return nil, 0, false
	}
	if err := m.memory.Put(key, data); err != nil {
		m.logger.Debug("Not promoting to memory", "key", key, "error", err)
	}
	return data, LevelDisk, true
}

// Put stores value in every level. A disk failure is logged; the memory
// copy still serves the current run.
func (m *Manager) Put(key string, value []byte) error {
	memErr := m.memory.Put(key, value)
	if m.disk != nil {
		if err := m.disk.Put(key, value); err != nil {
			m.logger.Warn("Failed to write disk cache", "key", key, "error", err)
			if memErr != nil {
				return err
			}
		}
	}
	if memErr != nil && m.disk == nil {
		return memErr
	}
	return nil
}

// Clear empties every level.
func (m *Manager) Clear() error {
	if err := m.memory.Clear(); err != nil {
		return err
	}
	if m.disk != nil {
		return m.disk.Clear()
	}
	return nil
}

// Stats returns the counters of each level.
func (m *Manager) Stats() map[Level]Stats {
	out := map[Level]Stats{LevelMemory: m.memory.Stats()}
	if m.disk != nil {
		out[LevelDisk] = m.disk.Stats()
	}
	return out
}

// Close releases the disk level.
func (m *Manager) Close() error {
	if m.disk != nil {
		return m.disk.Close()
	}
	return nil
}
