package live

import (
	"context"

	"github.com/padworld/padtour/internal/capture"
	genailive "github.com/padworld/padtour/internal/genai/live"
)

// Recorder adapts a capture.Recorder to Microphone.
type Recorder struct {
	*capture.Recorder
}

// Open starts the recorder.
func (r Recorder) Open(ctx context.Context) (Capture, error) {
	s, err := r.Recorder.Open(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Dialer connects to the Gemini live endpoint. Voice and system
// instruction come from the controller; the rest from Config.
type Dialer struct {
	Config genailive.Config
}

// Connect dials a session.
func (d Dialer) Connect(ctx context.Context, sc SessionConfig, h Handlers) (Stream, error) {
	cfg := d.Config
	cfg.Voice = sc.Voice
	cfg.SystemInstruction = sc.SystemInstruction
	s, err := genailive.Dial(ctx, cfg, genailive.Handlers{
		OnOpen:  h.OnOpen,
		OnAudio: h.OnAudio,
		OnClose: h.OnClose,
		OnError: h.OnError,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}
