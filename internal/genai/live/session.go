// Package live implements the bidirectional voice transport of the Gemini
// Live API on top of the SDK's websocket session.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/padworld/padtour/activity"
	"github.com/padworld/padtour/internal/genai"
	"github.com/padworld/padtour/pkg/audio"
	gemini "google.golang.org/genai"
)

// InputMimeType labels outbound microphone chunks.
const InputMimeType = "audio/pcm;rate=16000"

// ErrSessionClosed is returned when sending on a closed session.
var ErrSessionClosed = errors.New("live session closed")

// Config describes a live session. URL is the API origin, such as
// "wss://generativelanguage.googleapis.com"; the SDK default is used when
// it is empty.
type Config struct {
	URL               string
	APIKey            string
	Model             string
	Voice             string
	SystemInstruction string
}

// Handlers receive session events. They are called from a single reader
// goroutine, in arrival order. Nil handlers are skipped.
type Handlers struct {
	OnOpen  func()
	OnAudio func(b64 string)
	OnClose func()
	OnError func(error)
}

// Session is an open live connection.
type Session struct {
	conn     *gemini.Session
	handlers Handlers
	logger   *log.Logger

	wmu       sync.Mutex
	closeOnce sync.Once
	closing   chan struct{}
	done      chan struct{}
}

// Dial opens the websocket, sends the setup message and starts the reader.
// OnOpen fires once the server acknowledges the setup.
func Dial(ctx context.Context, cfg Config, h Handlers) (*Session, error) {
	model := cfg.Model
	if model == "" {
		model = genai.DefaultLiveModel
	}

	client, err := gemini.NewClient(ctx, &gemini.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     gemini.BackendGeminiAPI,
		HTTPClient:  &http.Client{},
		HTTPOptions: gemini.HTTPOptions{BaseURL: cfg.URL},
	})
	if err != nil {
		return nil, fmt.Errorf("create live client: %w", err)
	}

	lc := &gemini.LiveConnectConfig{
		ResponseModalities: []gemini.Modality{gemini.ModalityAudio},
		SpeechConfig:       genai.VoiceSpeech(cfg.Voice),
	}
	if cfg.SystemInstruction != "" {
		lc.SystemInstruction = &gemini.Content{Parts: []*gemini.Part{gemini.NewPartFromText(cfg.SystemInstruction)}}
	}
	conn, err := client.Live.Connect(ctx, model, lc)
	if err != nil {
		return nil, fmt.Errorf("websocket connect failed: %w", err)
	}

	s := &Session{
		conn:     conn,
		handlers: h,
		logger:   log.Default().WithPrefix("live"),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// SendAudio sends one base64 16 kHz PCM chunk.
func (s *Session) SendAudio(b64 string) error {
	if s.closed() {
		return ErrSessionClosed
	}
	pcm, err := audio.DecodeBase64(b64)
	if err != nil {
		return err
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.conn.SendRealtimeInput(gemini.LiveRealtimeInput{
		Media: &gemini.Blob{MIMEType: InputMimeType, Data: pcm},
	})
}

// Close ends the session. Handlers are not called after Close, apart from
// one that is already running. Close may be called from a handler.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closing)
		err = s.conn.Close()
	})
	return err
}

// Done is closed when the reader exits.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) closed() bool {
	select {
	case <-s.closing:
		return true
	default:
		return false
	}
}

// undecodable reports whether err concerns a single frame rather than the
// connection.
func undecodable(err error) bool {
	var syntax *json.SyntaxError
	var typ *json.UnmarshalTypeError
	return errors.As(err, &syntax) || errors.As(err, &typ)
}

func (s *Session) readLoop() {
	defer close(s.done)

	for {
		msg, err := s.conn.Receive()
		if s.closed() {
			return
		}
		if err != nil {
			if undecodable(err) {
				s.logger.Debug("Ignoring undecodable frame", "kind", activity.ErrMalformedPayload, "error", err)
				continue
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("Live session closed by server")
				if s.handlers.OnClose != nil {
					s.handlers.OnClose()
				}
				return
			}
			if s.handlers.OnError != nil {
				s.handlers.OnError(err)
			}
			return
		}
		s.dispatch(msg)
	}
}

func (s *Session) dispatch(msg *gemini.LiveServerMessage) {
	if msg.SetupComplete != nil {
		s.logger.Debug("Live session setup complete")
		if s.handlers.OnOpen != nil {
			s.handlers.OnOpen()
		}
	}
	if msg.ServerContent == nil || msg.ServerContent.ModelTurn == nil {
		return
	}
	for _, p := range msg.ServerContent.ModelTurn.Parts {
		if p == nil || p.InlineData == nil || len(p.InlineData.Data) == 0 {
			continue
		}
		if s.closed() {
			return
		}
		if s.handlers.OnAudio != nil {
			s.handlers.OnAudio(audio.EncodeBase64(p.InlineData.Data))
		}
	}
}
