package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/padworld/padtour/activity"
	"github.com/padworld/padtour/internal/cache"
	"github.com/padworld/padtour/pkg/audio"
)

type fakeAPI struct {
	mu       sync.Mutex
	requests []recordedRequest
	handle   func(w http.ResponseWriter, r *http.Request, body []byte)
}

type recordedRequest struct {
	Method string
	Path   string
	Key    string
	Body   []byte
}

func newFakeAPI(t *testing.T, handle func(w http.ResponseWriter, r *http.Request, body []byte)) (*fakeAPI, *Client) {
	t.Helper()
	api := &fakeAPI{handle: handle}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		buf.ReadFrom(r.Body)
		api.mu.Lock()
		api.requests = append(api.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Key:    r.Header.Get("x-goog-api-key"),
			Body:   buf.Bytes(),
		})
		api.mu.Unlock()
		api.handle(w, r, buf.Bytes())
	}))
	t.Cleanup(srv.Close)

	c, err := New("test-key", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return api, c
}

func (a *fakeAPI) last() recordedRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests[len(a.requests)-1]
}

func (a *fakeAPI) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

// sentRequest is the subset of a generateContent body the tests inspect.
type sentRequest struct {
	Contents          []sentContent
	SystemInstruction *sentContent
	GenerationConfig  *struct {
		ResponseModalities []string
		SpeechConfig       struct {
			VoiceConfig             *sentVoice
			MultiSpeakerVoiceConfig *struct {
				SpeakerVoiceConfigs []struct {
					Speaker     string
					VoiceConfig sentVoice
				}
			}
		}
	}
}

type sentContent struct {
	Role  string
	Parts []struct{ Text string }
}

type sentVoice struct {
	PrebuiltVoiceConfig struct{ VoiceName string }
}

func decodeSent(t *testing.T, body []byte) sentRequest {
	t.Helper()
	var sent sentRequest
	if err := json.Unmarshal(body, &sent); err != nil {
		t.Fatalf("bad request body: %v", err)
	}
	return sent
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func textReply(text string) map[string]any {
	return map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{"role": "model", "parts": []any{map[string]any{"text": text}}},
		}},
	}
}

func audioReply(pcm []byte) map[string]any {
	return map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{"parts": []any{map[string]any{
				"inlineData": map[string]any{"mimeType": "audio/L16;codec=pcm;rate=24000", "data": audio.EncodeBase64(pcm)},
			}}},
		}},
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New("  "); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Expected ErrMissingAPIKey, got %v", err)
	}
}

func TestGenerateText(t *testing.T) {
	api, c := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		writeJSON(w, textReply("  Alex: Hi!\nSam: Hello!  "))
	})

	got, err := c.GenerateText(context.Background(), "write a script")
	if err != nil {
		t.Fatalf("GenerateText failed: %v", err)
	}
	if got != "Alex: Hi!\nSam: Hello!" {
		t.Errorf("got %q", got)
	}

	req := api.last()
	if req.Path != "/v1beta/models/gemini-2.5-flash:generateContent" {
		t.Errorf("path = %s", req.Path)
	}
	if req.Key != "test-key" {
		t.Errorf("api key header = %q", req.Key)
	}
	sent := decodeSent(t, req.Body)
	if len(sent.Contents) != 1 || sent.Contents[0].Parts[0].Text != "write a script" {
		t.Errorf("unexpected contents: %+v", sent.Contents)
	}
}

func TestGenerateTextEmptyIsTransient(t *testing.T) {
	_, c := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		writeJSON(w, textReply(""))
	})
	if _, err := c.GenerateText(context.Background(), "x"); !errors.Is(err, activity.ErrTransientGeneration) {
		t.Errorf("Expected ErrTransientGeneration, got %v", err)
	}
}

func TestAPIErrorIsTransient(t *testing.T) {
	_, c := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		w.WriteHeader(http.StatusTooManyRequests)
		writeJSON(w, map[string]any{"error": map[string]any{"code": 429, "message": "quota", "status": "RESOURCE_EXHAUSTED"}})
	})

	_, err := c.GenerateText(context.Background(), "x")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != 429 || apiErr.Status != "RESOURCE_EXHAUSTED" || apiErr.Message != "quota" {
		t.Errorf("unexpected APIError: %+v", apiErr)
	}
	if !errors.Is(err, activity.ErrTransientGeneration) {
		t.Error("APIError should match ErrTransientGeneration")
	}
}

func TestNoCandidatesIsTransient(t *testing.T) {
	_, c := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		writeJSON(w, map[string]any{"promptFeedback": map[string]any{"blockReason": "SAFETY"}})
	})
	_, err := c.Synthesize(context.Background(), "hello", "Fenrir")
	if !errors.Is(err, activity.ErrTransientGeneration) {
		t.Fatalf("Expected ErrTransientGeneration, got %v", err)
	}
	if !strings.Contains(err.Error(), "SAFETY") {
		t.Errorf("Expected block reason in error, got %v", err)
	}
}

func TestChat(t *testing.T) {
	api, c := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		writeJSON(w, textReply("Book court 3 at 7pm."))
	})

	history := []Message{
		{Role: RoleUser, Text: "Hi Paddy"},
		{Role: RoleModel, Text: "Ready."},
		{Role: RoleUser, Text: "When can I play?"},
	}
	got, err := c.Chat(context.Background(), "You are Paddy.", history)
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if got != "Book court 3 at 7pm." {
		t.Errorf("got %q", got)
	}

	sent := decodeSent(t, api.last().Body)
	if sent.SystemInstruction == nil || sent.SystemInstruction.Parts[0].Text != "You are Paddy." {
		t.Errorf("missing system instruction: %+v", sent.SystemInstruction)
	}
	if len(sent.Contents) != 3 || sent.Contents[1].Role != RoleModel || sent.Contents[2].Parts[0].Text != "When can I play?" {
		t.Errorf("unexpected history: %+v", sent.Contents)
	}
}

func TestSynthesize(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0}
	api, c := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		writeJSON(w, audioReply(pcm))
	})

	got, err := c.Synthesize(context.Background(), "Welcome to PadWorld.", "Fenrir")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("got %v, want %v", got, pcm)
	}

	req := api.last()
	if req.Path != "/v1beta/models/gemini-2.5-flash-preview-tts:generateContent" {
		t.Errorf("path = %s", req.Path)
	}
	gc := decodeSent(t, req.Body).GenerationConfig
	if gc == nil || len(gc.ResponseModalities) != 1 || gc.ResponseModalities[0] != "AUDIO" {
		t.Fatalf("unexpected generation config: %+v", gc)
	}
	if gc.SpeechConfig.VoiceConfig == nil || gc.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName != "Fenrir" {
		t.Errorf("voice = %+v", gc.SpeechConfig.VoiceConfig)
	}
}

func TestSynthesizeMissingAudio(t *testing.T) {
	_, c := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		writeJSON(w, textReply("I cannot speak"))
	})
	if _, err := c.Synthesize(context.Background(), "x", "Fenrir"); !errors.Is(err, activity.ErrTransientGeneration) {
		t.Errorf("Expected ErrTransientGeneration, got %v", err)
	}
}

func TestSynthesizeMalformedAudio(t *testing.T) {
	_, c := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		writeJSON(w, map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{
					"inlineData": map[string]any{"mimeType": "audio/pcm", "data": "%%%"},
				}}},
			}},
		})
	})
	_, err := c.Synthesize(context.Background(), "x", "Fenrir")
	if !errors.Is(err, activity.ErrMalformedPayload) {
		t.Errorf("Expected ErrMalformedPayload, got %v", err)
	}
}

func TestSynthesizeUsesCache(t *testing.T) {
	pcm := []byte{9, 9, 8, 8}
	api, c := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		writeJSON(w, audioReply(pcm))
	})
	m, err := cache.NewManager(cache.Config{MemoryCapacity: 1024})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	WithCache(m)(c)

	for i := 0; i < 3; i++ {
		got, err := c.Synthesize(context.Background(), "same text", "Fenrir")
		if err != nil {
			t.Fatalf("Synthesize failed: %v", err)
		}
		if !bytes.Equal(got, pcm) {
			t.Errorf("got %v, want %v", got, pcm)
		}
	}
	if api.count() != 1 {
		t.Errorf("Expected 1 request with cache, got %d", api.count())
	}

	c.Synthesize(context.Background(), "same text", "Kore")
	if api.count() != 2 {
		t.Errorf("Expected a different voice to miss the cache, got %d requests", api.count())
	}
}

func TestSynthesizeSpeakers(t *testing.T) {
	pcm := []byte{0, 1}
	api, c := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		writeJSON(w, audioReply(pcm))
	})

	script := "Alex: PadWorld is here.\nSam: Game on."
	_, err := c.SynthesizeSpeakers(context.Background(), script, []Speaker{
		{Name: "Alex", Voice: "Fenrir"},
		{Name: "Sam", Voice: "Kore"},
	})
	if err != nil {
		t.Fatalf("SynthesizeSpeakers failed: %v", err)
	}

	sent := decodeSent(t, api.last().Body)
	if sent.GenerationConfig == nil {
		t.Fatal("missing generation config")
	}
	msc := sent.GenerationConfig.SpeechConfig.MultiSpeakerVoiceConfig
	if msc == nil || len(msc.SpeakerVoiceConfigs) != 2 {
		t.Fatalf("unexpected multi speaker config: %+v", msc)
	}
	if msc.SpeakerVoiceConfigs[1].Speaker != "Sam" || msc.SpeakerVoiceConfigs[1].VoiceConfig.PrebuiltVoiceConfig.VoiceName != "Kore" {
		t.Errorf("unexpected Sam config: %+v", msc.SpeakerVoiceConfigs[1])
	}
	if !strings.Contains(sent.Contents[0].Parts[0].Text, script) {
		t.Error("prompt should contain the script")
	}
}

func TestRateLimit(t *testing.T) {
	_, c := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		writeJSON(w, textReply("ok"))
	})
	WithRequestsPerMinute(60)(c)

	c.GenerateText(context.Background(), "first")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.GenerateText(ctx, "second"); err == nil {
		t.Error("Expected second request to be throttled past the deadline")
	}
}
