package asset

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/padworld/padtour/pkg/audio"
	"github.com/padworld/padtour/pkg/playback"
)

func wavBytes(seconds float64, rate, channels int) []byte {
	n := int(seconds*float64(rate)) * channels
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.25
	}
	return audio.WrapPCMAsWAV(audio.SamplesToBytes(samples), rate, channels, 16)
}

func TestProbeRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("Expected HEAD, got %s", r.Method)
		}
		if r.URL.Path == "/padworld_podcast.mp3" {
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	s := NewStore(WithBaseURL(srv.URL + "/"))

	ok, err := s.ProbeAssetExists(context.Background(), "/padworld_podcast.mp3")
	if err != nil || !ok {
		t.Errorf("Expected asset to exist, got %v, %v", ok, err)
	}
	ok, err = s.ProbeAssetExists(context.Background(), "/missing.mp3")
	if err != nil || ok {
		t.Errorf("Expected missing asset, got %v, %v", ok, err)
	}
}

func TestProbeLocal(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "padworld_podcast.wav"), wavBytes(0.1, 24000, 1), 0o644)

	s := NewStore(WithDir(dir))

	if ok, err := s.ProbeAssetExists(context.Background(), "/padworld_podcast.wav"); err != nil || !ok {
		t.Errorf("Expected local asset, got %v, %v", ok, err)
	}
	if ok, err := s.ProbeAssetExists(context.Background(), "/padworld_podcast.mp3"); err != nil || ok {
		t.Errorf("Expected no asset, got %v, %v", ok, err)
	}
}

func TestDecodeWAVResamplesAndDownmixes(t *testing.T) {
	samples, err := Decode(wavBytes(1, 48000, 2), 24000)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(samples) < 23990 || len(samples) > 24010 {
		t.Errorf("Expected ~24000 samples, got %d", len(samples))
	}
}

func TestDecodeUnsupported(t *testing.T) {
	if _, err := Decode([]byte("OggS...."), 24000); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestLoadLocal(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "clip.wav"), wavBytes(2, 24000, 1), 0o644)

	s := NewStore(WithDir(dir))
	samples, err := s.Load(context.Background(), "/clip.wav")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if want := 2 * playback.SampleRate; len(samples) != want {
		t.Errorf("Expected %d samples, got %d", want, len(samples))
	}
}

func TestLoadRemoteMissing(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s := NewStore(WithBaseURL(srv.URL))
	if _, err := s.Load(context.Background(), "/padworld_podcast.mp3"); err == nil {
		t.Error("Expected an error for a missing remote asset")
	}
}

func TestLoadCanceled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	s := NewStore(WithBaseURL(srv.URL))
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := s.Load(ctx, "/padworld_podcast.mp3")
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Load did not return after cancel")
	}
}
