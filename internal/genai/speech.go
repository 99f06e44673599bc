package genai

import (
	"context"
	"fmt"
	"strings"

	"github.com/padworld/padtour/activity"
	"github.com/padworld/padtour/internal/cache"
	gemini "google.golang.org/genai"
)

// Speaker maps a script speaker name to a prebuilt voice.
type Speaker struct {
	Name  string
	Voice string
}

// Synthesize speaks text with voice and returns raw 24 kHz mono 16-bit PCM.
// Results are cached when a cache is configured.
func (c *Client) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	key := cache.Key(c.models.Speech, voice, text)
	if pcm, ok := c.cached(ctx, key); ok {
		return pcm, nil
	}

	pcm, err := c.speech(ctx, "synthesize", text, VoiceSpeech(voice))
	if err != nil {
		return nil, err
	}
	c.store(key, pcm)
	return pcm, nil
}

// SynthesizeSpeakers speaks a "Name: line" script with one voice per
// speaker.
func (c *Client) SynthesizeSpeakers(ctx context.Context, script string, speakers []Speaker) ([]byte, error) {
	if len(speakers) == 0 {
		return nil, fmt.Errorf("synthesize speakers: no speakers")
	}
	msc := &gemini.MultiSpeakerVoiceConfig{}
	names := make([]string, 0, len(speakers))
	for _, s := range speakers {
		msc.SpeakerVoiceConfigs = append(msc.SpeakerVoiceConfigs, &gemini.SpeakerVoiceConfig{
			Speaker:     s.Name,
			VoiceConfig: prebuiltVoice(s.Voice),
		})
		names = append(names, s.Name)
	}

	prompt := fmt.Sprintf("TTS the following conversation between %s:\n%s", strings.Join(names, " and "), script)
	return c.speech(ctx, "synthesize_speakers", prompt, &gemini.SpeechConfig{MultiSpeakerVoiceConfig: msc})
}

func prebuiltVoice(name string) *gemini.VoiceConfig {
	return &gemini.VoiceConfig{PrebuiltVoiceConfig: &gemini.PrebuiltVoiceConfig{VoiceName: name}}
}

// VoiceSpeech returns a single prebuilt voice config.
func VoiceSpeech(voice string) *gemini.SpeechConfig {
	return &gemini.SpeechConfig{VoiceConfig: prebuiltVoice(voice)}
}

func (c *Client) speech(ctx context.Context, op, text string, sc *gemini.SpeechConfig) ([]byte, error) {
	resp, err := c.generate(ctx, op, c.models.Speech, gemini.Text(text), &gemini.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig:       sc,
	})
	if err != nil {
		return nil, err
	}

	data := inlineData(resp)
	if data == nil {
		return nil, fmt.Errorf("%s: %w: no audio in response", op, activity.ErrTransientGeneration)
	}
	c.logger.Debug("Speech synthesized", "op", op, "bytes", len(data.Data), "mime", data.MIMEType)
	return data.Data, nil
}

func (c *Client) cached(ctx context.Context, key string) ([]byte, bool) {
	if c.cache == nil {
		return nil, false
	}
	pcm, level, ok := c.cache.Get(key)
	if !ok {
		c.metrics.RecordCache(ctx, "")
		return nil, false
	}
	c.metrics.RecordCache(ctx, level.String())
	c.logger.Debug("Speech cache hit", "level", level)
	return pcm, true
}

func (c *Client) store(key string, pcm []byte) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Put(key, pcm); err != nil {
		c.logger.Debug("Failed to cache speech", "error", err)
	}
}
