// Package capture records microphone audio by running an external recorder
// that writes raw signed 16-bit little-endian PCM to stdout.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-shellwords"
	"github.com/padworld/padtour/activity"
	"github.com/padworld/padtour/pkg/audio"
)

// Defaults for the live session input.
const (
	DefaultSampleRate   = audio.InputSampleRate
	DefaultChunkSamples = 4096
)

// DefaultCommand returns the recorder command line for the current
// platform.
func DefaultCommand() string {
	if runtime.GOOS == "darwin" {
		return "sox -q -d -t raw -b 16 -e signed -c 1 -r 16000 -"
	}
	return "arecord -q -t raw -f S16_LE -c 1 -r 16000"
}

// Config describes the recorder and the format it produces.
type Config struct {
	Command      string
	SampleRate   int
	Channels     int
	ChunkSamples int
}

// Recorder opens capture streams.
type Recorder struct {
	args         []string
	sampleRate   int
	channels     int
	chunkSamples int
	logger       *log.Logger
}

// NewRecorder parses cfg.Command. Zero fields take the defaults.
func NewRecorder(cfg Config) (*Recorder, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		cfg.Command = DefaultCommand()
	}
	args, err := shellwords.NewParser().Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse capture command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("capture command empty")
	}

	r := &Recorder{
		args:         args,
		sampleRate:   cfg.SampleRate,
		channels:     cfg.Channels,
		chunkSamples: cfg.ChunkSamples,
		logger:       log.Default().WithPrefix("capture"),
	}
	if r.sampleRate <= 0 {
		r.sampleRate = DefaultSampleRate
	}
	if r.channels <= 0 {
		r.channels = 1
	}
	if r.chunkSamples <= 0 {
		r.chunkSamples = DefaultChunkSamples
	}
	return r, nil
}

// Open starts the recorder and waits for its first chunk. A recorder that
// cannot start, or exits before producing audio, is reported as
// activity.ErrPermissionDenied.
func (r *Recorder) Open(ctx context.Context) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, r.args[0], r.args[1:]...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", activity.ErrPermissionDenied, err)
	}

	s := &Stream{
		cmd:        cmd,
		cancel:     cancel,
		stdout:     stdout,
		sampleRate: r.sampleRate,
		channels:   r.channels,
		chunkBytes: r.chunkSamples * r.channels * audio.BytesPerSample,
		chunks:     make(chan []float32, 8),
		done:       make(chan struct{}),
		logger:     r.logger,
	}

	first, err := s.readChunk()
	if err != nil || len(first) == 0 {
		cancel()
		_ = cmd.Wait()
		msg := strings.TrimSpace(stderr.String())
		if msg == "" && err != nil {
			msg = err.Error()
		}
		return nil, fmt.Errorf("%w: recorder produced no audio: %s", activity.ErrPermissionDenied, msg)
	}

	r.logger.Debug("Capture started", "command", r.args[0], "rate", r.sampleRate, "channels", r.channels)
	go s.pump(first)
	return s, nil
}

// Stream is a running capture. Chunks are mono samples at SampleRate.
type Stream struct {
	cmd        *exec.Cmd
	cancel     context.CancelFunc
	stdout     io.Reader
	sampleRate int
	channels   int
	chunkBytes int
	chunks     chan []float32
	done       chan struct{}
	logger     *log.Logger

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

// Chunks delivers captured audio. It is closed when the recorder exits or
// the stream is closed.
func (s *Stream) Chunks() <-chan []float32 {
	return s.chunks
}

// SampleRate returns the rate of the delivered samples.
func (s *Stream) SampleRate() int {
	return s.sampleRate
}

// Err returns the error that ended the stream, if any.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the recorder.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
	})
	return nil
}

// readChunk reads up to one chunk. A short final chunk is returned with a
// nil error; io.EOF means nothing was left.
func (s *Stream) readChunk() ([]float32, error) {
	buf := make([]byte, s.chunkBytes)
	n, err := io.ReadFull(s.stdout, buf)
	if n == 0 {
		if err == nil || errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return nil, err
	}
	samples := audio.BytesToSamples(buf[:n])
	if s.channels > 1 {
		samples = audio.Downmix(samples, s.channels)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}
	return samples, err
}

func (s *Stream) pump(first []float32) {
	defer close(s.chunks)
	if !s.send(first) {
		_ = s.cmd.Wait()
		return
	}

	for {
		chunk, err := s.readChunk()
		if len(chunk) > 0 && !s.send(chunk) {
			_ = s.cmd.Wait()
			return
		}
		if err != nil {
			waitErr := s.cmd.Wait()
			s.mu.Lock()
			if !errors.Is(err, io.EOF) {
				s.err = err
			} else if waitErr != nil && !s.closed() {
				s.err = waitErr
			}
			s.mu.Unlock()
			s.logger.Debug("Capture ended", "error", s.err)
			return
		}
	}
}

func (s *Stream) send(chunk []float32) bool {
	select {
	case s.chunks <- chunk:
		return true
	case <-s.done:
		return false
	}
}

func (s *Stream) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
