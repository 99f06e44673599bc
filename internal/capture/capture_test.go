package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/padworld/padtour/activity"
)

func writePCM(t *testing.T, samples []int16) string {
	t.Helper()
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(s))
	}
	path := filepath.Join(t.TempDir(), "mic.raw")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("write pcm: %v", err)
	}
	return path
}

func collect(t *testing.T, s *Stream) [][]float32 {
	t.Helper()
	var out [][]float32
	timeout := time.After(2 * time.Second)
	for {
		select {
		case c, ok := <-s.Chunks():
			if !ok {
				return out
			}
			out = append(out, c)
		case <-timeout:
			t.Fatal("timed out reading chunks")
		}
	}
}

func TestRecorderChunks(t *testing.T) {
	samples := make([]int16, 10)
	for i := range samples {
		samples[i] = int16(i * 1000)
	}
	path := writePCM(t, samples)

	r, err := NewRecorder(Config{Command: "cat '" + path + "'", ChunkSamples: 4})
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}
	s, err := r.Open(context.Background())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	chunks := collect(t, s)
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 4 || len(chunks[2]) != 2 {
		t.Errorf("chunk sizes = %d, %d, %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
	if got, want := chunks[1][0], float32(4000)/32768; got != want {
		t.Errorf("sample = %v, want %v", got, want)
	}
	if s.Err() != nil {
		t.Errorf("Expected clean end, got %v", s.Err())
	}
	if s.SampleRate() != DefaultSampleRate {
		t.Errorf("SampleRate = %d, want %d", s.SampleRate(), DefaultSampleRate)
	}
}

func TestRecorderDownmix(t *testing.T) {
	path := writePCM(t, []int16{1000, 3000, -2000, 2000})
	r, err := NewRecorder(Config{Command: "cat " + path, Channels: 2, ChunkSamples: 2})
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}
	s, err := r.Open(context.Background())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	chunks := collect(t, s)
	if len(chunks) != 1 || len(chunks[0]) != 2 {
		t.Fatalf("unexpected chunks %v", chunks)
	}
	if got, want := chunks[0][0], float32(2000)/32768; got != want {
		t.Errorf("downmixed = %v, want %v", got, want)
	}
}

func TestRecorderPermissionDenied(t *testing.T) {
	tests := []struct {
		name    string
		command string
	}{
		{"missing binary", "padtour-no-such-recorder --flag"},
		{"exits without audio", "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRecorder(Config{Command: tt.command})
			if err != nil {
				t.Fatalf("NewRecorder failed: %v", err)
			}
			_, err = r.Open(context.Background())
			if !errors.Is(err, activity.ErrPermissionDenied) {
				t.Errorf("Expected ErrPermissionDenied, got %v", err)
			}
		})
	}
}

func TestNewRecorderParseError(t *testing.T) {
	if _, err := NewRecorder(Config{Command: `arecord "unterminated`}); err == nil {
		t.Error("Expected parse error")
	}
}

func TestDefaultCommand(t *testing.T) {
	if DefaultCommand() == "" {
		t.Error("DefaultCommand should not be empty")
	}
}
