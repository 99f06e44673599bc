package cache

import (
	"bytes"
	"testing"
)

func TestManager_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DiskPath = dir

	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	key := Key("tts", "Fenrir", "hello")
	value := speechLike(2048)
	if err := m.Put(key, value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	m.Close()

	// A new manager starts with an empty memory level.
	m2, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer m2.Close()

	got, level, ok := m2.Get(key)
	if !ok || level != LevelDisk {
		t.Fatalf("Expected disk hit, got ok=%v level=%v", ok, level)
	}
	if !bytes.Equal(got, value) {
		t.Error("Disk value mismatch")
	}

	if _, level, _ = m2.Get(key); level != LevelMemory {
		t.Errorf("Expected promoted memory hit, got %v", level)
	}
}

func TestManager_MemoryOnly(t *testing.T) {
	m, err := NewManager(Config{MemoryCapacity: 1024})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if err := m.Put("k", []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, ok := m.Stats()[LevelDisk]; ok {
		t.Error("Expected no disk level")
	}
	if _, _, ok := m.Get("k"); !ok {
		t.Error("Expected memory hit")
	}
}

func TestKey(t *testing.T) {
	if Key("a", "bc") == Key("ab", "c") {
		t.Error("Key should separate parts")
	}
	if len(Key("x")) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(Key("x")))
	}
}
