package genai

import (
	"context"
	"fmt"
	"strings"

	"github.com/padworld/padtour/activity"
	gemini "google.golang.org/genai"
)

// Roles used in chat history.
const (
	RoleUser  = gemini.RoleUser
	RoleModel = gemini.RoleModel
)

// Message is one turn of a chat.
type Message struct {
	Role string
	Text string
}

// GenerateText returns the model's text reply to prompt.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := c.generate(ctx, "text", c.models.Text, gemini.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("text: %w: empty reply", activity.ErrTransientGeneration)
	}
	return text, nil
}

// Chat sends history under the system instruction and returns the reply.
// An empty reply is returned as "" without error.
func (c *Client) Chat(ctx context.Context, system string, history []Message) (string, error) {
	contents := make([]*gemini.Content, 0, len(history))
	for _, m := range history {
		contents = append(contents, gemini.NewContentFromText(m.Text, gemini.Role(m.Role)))
	}
	var cfg *gemini.GenerateContentConfig
	if system != "" {
		cfg = &gemini.GenerateContentConfig{
			SystemInstruction: &gemini.Content{Parts: []*gemini.Part{gemini.NewPartFromText(system)}},
		}
	}

	resp, err := c.generate(ctx, "chat", c.models.Text, contents, cfg)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}
