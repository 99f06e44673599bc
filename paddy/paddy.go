// Package paddy is the text side of Paddy, the PadWorld coaching assistant.
// The same persona drives the live voice session.
package paddy

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/padworld/padtour/activity"
	"github.com/padworld/padtour/internal/genai"
)

// SystemInstruction is the Paddy persona shared by chat and voice.
const SystemInstruction = `You are Paddy, the advanced AI operating system for PadWorld.
Your personality is professional, elite, yet encouraging, like a high-performance sports coach mixed with a futuristic digital assistant.

You have comprehensive knowledge of the PadWorld App features:

1. GLOBAL RANKING: A meritocratic system where players earn points locally to rise globally.
2. FASTPAD BOOKING: Instant reservations with split payments and automated door unlocking via phone.
3. PRO ANALYZER: Deep learning technique analysis comparing player swing signatures against top pros.
4. PADDY CHAT: Your text-based tactical interface for personalized coaching advice.
5. PADDY VOICE: Hands-free assistant for booking courts ("Hey Paddy, book a court") or analyzing stats ("Analyze my last set").
6. GLOBAL PASSPORT: Universal identity with verified stats, NFT trophy cabinet, and on-chain history.
7. PADWALLET: Management of PAD tokens for payments and tournament winnings.
8. AI MATCHMAKING: Geo-location based opponent finding filtered by skill level (NTRP) and style.

Speak concisely. Avoid long monologues.
When analyzing shots, be technical but accessible.
Always maintain the persona of a high-tech system.`

// Voice is the prebuilt voice Paddy speaks with.
const Voice = "Fenrir"

// Canned replies.
const (
	Greeting        = "Systems Online. I am Paddy. How can I optimize your game?"
	ReplyEmpty      = "System Error."
	ReplyFailed     = "Connection interrupted."
	DefaultMaxTurns = 20
)

// ErrEmptyMessage is returned for blank input.
var ErrEmptyMessage = errors.New("empty message")

// Model answers a conversation under a system instruction.
type Model interface {
	Chat(ctx context.Context, system string, history []genai.Message) (string, error)
}

// Chat holds one conversation with Paddy.
type Chat struct {
	model    Model
	logger   *log.Logger
	maxTurns int

	mu      sync.Mutex
	history []genai.Message
}

// Option configures a Chat.
type Option func(*Chat)

// WithMaxTurns caps the number of messages kept in the history.
func WithMaxTurns(n int) Option {
	return func(c *Chat) { c.maxTurns = n }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Chat) { c.logger = l }
}

// NewChat starts a conversation that opens with Paddy's greeting.
func NewChat(model Model, opts ...Option) *Chat {
	c := &Chat{
		model:    model,
		logger:   log.Default().WithPrefix("paddy"),
		maxTurns: DefaultMaxTurns,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Reset()
	return c
}

// Reset clears the conversation back to the greeting.
func (c *Chat) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = []genai.Message{{Role: genai.RoleModel, Text: Greeting}}
}

// History returns a copy of the conversation, greeting included.
func (c *Chat) History() []genai.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]genai.Message(nil), c.history...)
}

// Send adds msg to the conversation and returns Paddy's reply. The reply is
// always usable: an empty answer becomes ReplyEmpty and a failed call
// becomes ReplyFailed, with the failure returned alongside for logging.
func (c *Chat) Send(ctx context.Context, msg string) (string, error) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return "", ErrEmptyMessage
	}

	c.mu.Lock()
	c.history = append(c.history, genai.Message{Role: genai.RoleUser, Text: msg})
	req := conversation(c.history)
	c.mu.Unlock()

	reply, err := c.model.Chat(ctx, SystemInstruction, req)
	switch {
	case err != nil:
		c.logger.Warn("Chat request failed", "kind", activity.Classify(err), "error", err)
		reply = ReplyFailed
	case strings.TrimSpace(reply) == "":
		reply = ReplyEmpty
	default:
		reply = strings.TrimSpace(reply)
	}

	c.mu.Lock()
	c.history = append(c.history, genai.Message{Role: genai.RoleModel, Text: reply})
	c.trimLocked()
	c.mu.Unlock()
	return reply, err
}

func (c *Chat) trimLocked() {
	if c.maxTurns <= 0 || len(c.history) <= c.maxTurns {
		return
	}
	c.history = append([]genai.Message(nil), c.history[len(c.history)-c.maxTurns:]...)
}

// conversation drops the leading model turns so the request opens with the
// user.
func conversation(history []genai.Message) []genai.Message {
	i := 0
	for i < len(history) && history[i].Role != genai.RoleUser {
		i++
	}
	return append([]genai.Message(nil), history[i:]...)
}
