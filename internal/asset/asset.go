// Package asset locates and loads the pre-rendered podcast audio. Assets
// are referenced by a path such as "/padworld_podcast.mp3" and resolved
// against either a base URL or a local directory.
package asset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hajimehoshi/go-mp3"
	"github.com/padworld/padtour/pkg/audio"
	"github.com/padworld/padtour/pkg/playback"
)

// maxAssetSize bounds downloaded assets.
const maxAssetSize = 64 << 20

// ErrUnsupportedFormat is returned for assets that are neither WAV nor MP3.
var ErrUnsupportedFormat = errors.New("unsupported asset format")

// Store resolves asset references and decodes them for playback.
type Store struct {
	baseURL string
	dir     string
	http    *http.Client
	logger  *log.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithBaseURL resolves references against an HTTP origin.
func WithBaseURL(u string) Option {
	return func(s *Store) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithDir resolves references against a local directory.
func WithDir(dir string) Option {
	return func(s *Store) { s.dir = dir }
}

// WithHTTPClient sets the HTTP client used for remote assets.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) { s.http = c }
}

// NewStore creates a store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: log.Default().WithPrefix("asset"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) remote(ref string) (string, bool) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, true
	}
	if s.baseURL != "" {
		return s.baseURL + "/" + strings.TrimLeft(ref, "/"), true
	}
	return "", false
}

func (s *Store) localPath(ref string) string {
	return filepath.Join(s.dir, filepath.FromSlash(strings.TrimLeft(ref, "/")))
}

// ProbeAssetExists reports whether the asset is available. Remote assets
// are checked with a HEAD request.
func (s *Store) ProbeAssetExists(ctx context.Context, ref string) (bool, error) {
	if u, ok := s.remote(ref); ok {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
		if err != nil {
			return false, err
		}
		resp, err := s.http.Do(req)
		if err != nil {
			return false, fmt.Errorf("probe %s: %w", u, err)
		}
		resp.Body.Close()
		return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
	}

	info, err := os.Stat(s.localPath(ref))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

// Load fetches and decodes an asset to mono samples at the playback rate.
// Canceling ctx aborts a remote download.
func (s *Store) Load(ctx context.Context, ref string) ([]float32, error) {
	data, err := s.fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	samples, err := Decode(data, playback.SampleRate)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Asset loaded", "ref", ref, "bytes", len(data), "duration", audio.Duration(len(samples), playback.SampleRate))
	return samples, nil
}

func (s *Store) fetch(ctx context.Context, ref string) ([]byte, error) {
	u, ok := s.remote(ref)
	if !ok {
		return os.ReadFile(s.localPath(ref))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: HTTP %d", u, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxAssetSize))
}

// Decode converts WAV or MP3 bytes to mono samples at rate.
func Decode(data []byte, rate int) ([]float32, error) {
	var (
		samples  []float32
		srcRate  int
		channels int
	)

	switch {
	case bytes.HasPrefix(data, []byte("RIFF")):
		f, pcm, err := audio.ParseWAV(data)
		if err != nil {
			return nil, err
		}
		if f.BitsPerSample != audio.BitDepth {
			return nil, fmt.Errorf("%w: %d-bit WAV", ErrUnsupportedFormat, f.BitsPerSample)
		}
		samples, srcRate, channels = audio.BytesToSamples(pcm), f.SampleRate, f.Channels

	case looksLikeMP3(data):
		d, err := mp3.NewDecoder(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode mp3: %w", err)
		}
		pcm, err := io.ReadAll(d)
		if err != nil {
			return nil, fmt.Errorf("decode mp3: %w", err)
		}
		// go-mp3 always produces 16-bit stereo.
		samples, srcRate, channels = audio.BytesToSamples(pcm), d.SampleRate(), 2

	default:
		return nil, ErrUnsupportedFormat
	}

	return audio.Resample(audio.Downmix(samples, channels), srcRate, rate), nil
}

func looksLikeMP3(b []byte) bool {
	if bytes.HasPrefix(b, []byte("ID3")) {
		return true
	}
	return len(b) > 1 && b[0] == 0xFF && b[1]&0xE0 == 0xE0
}
