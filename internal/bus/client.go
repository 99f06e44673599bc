// Package bus publishes presentation events over NATS so that external
// renderers can follow a tour, and accepts remote control commands.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"
)

// Subjects.
const (
	SubjectScroll       = "padtour.tour.scroll"
	SubjectSubtitle     = "padtour.tour.subtitle"
	SubjectStatePrefix  = "padtour.state."
	SubjectControl      = "padtour.control"
	defaultClientName   = "padtour"
	defaultConnectDelay = 2 * time.Second
)

// Config describes the NATS connection.
type Config struct {
	URL            string
	Name           string
	ConnectTimeout time.Duration
	Embedded       bool
	Port           int
}

// Client wraps a NATS connection.
type Client struct {
	conn   *nats.Conn
	logger *log.Logger
}

// Connect dials the configured servers.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("no NATS url configured")
	}
	name := cfg.Name
	if name == "" {
		name = defaultClientName
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectDelay
	}
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.Timeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	logger := log.Default().WithPrefix("bus")
	logger.Info("Connected to NATS", "url", cfg.URL)
	return &Client{conn: conn, logger: logger}, nil
}

// Close drains and closes the connection.
func (c *Client) Close() {
	if c == nil || c.conn == nil {
		return
	}
	_ = c.conn.Drain()
	c.conn.Close()
}

// Healthy reports whether the connection is up.
func (c *Client) Healthy() bool {
	return c != nil && c.conn != nil && c.conn.Status() == nats.CONNECTED
}

func (c *Client) publish(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.conn.Publish(subject, data)
}

// ScrollEvent is published on SubjectScroll.
type ScrollEvent struct {
	Section string `json:"section"`
}

// SubtitleEvent is published on SubjectSubtitle. An empty Text clears the
// subtitle.
type SubtitleEvent struct {
	Text string `json:"text"`
}

// Presenter forwards tour presentation calls to the bus.
type Presenter struct {
	c *Client
}

// Presenter returns a presenter backed by c.
func (c *Client) Presenter() *Presenter {
	return &Presenter{c: c}
}

func (p *Presenter) ScrollToSection(id string) {
	if err := p.c.publish(SubjectScroll, ScrollEvent{Section: id}); err != nil {
		p.c.logger.Warn("Failed to publish scroll", "section", id, "error", err)
	}
}

func (p *Presenter) DisplaySubtitle(text string) {
	if err := p.c.publish(SubjectSubtitle, SubtitleEvent{Text: text}); err != nil {
		p.c.logger.Warn("Failed to publish subtitle", "error", err)
	}
}

// PublishState publishes an activity state snapshot on
// SubjectStatePrefix+activity.
func (c *Client) PublishState(activity string, state any) error {
	return c.publish(SubjectStatePrefix+activity, state)
}

// Command is a remote control instruction.
type Command string

const (
	CommandStart    Command = "start"
	CommandStop     Command = "stop"
	CommandNext     Command = "next"
	CommandPrevious Command = "previous"
	CommandPodcast  Command = "podcast"
	CommandLive     Command = "live"
)

// ParseCommand validates a control payload.
func ParseCommand(b []byte) (Command, error) {
	cmd := Command(strings.ToLower(strings.TrimSpace(string(b))))
	switch cmd {
	case CommandStart, CommandStop, CommandNext, CommandPrevious, CommandPodcast, CommandLive:
		return cmd, nil
	default:
		return "", fmt.Errorf("unknown control command %q", string(b))
	}
}

// SubscribeControl calls handle for each valid command on SubjectControl.
// Invalid payloads are logged and dropped.
func (c *Client) SubscribeControl(handle func(Command)) (func() error, error) {
	sub, err := c.conn.Subscribe(SubjectControl, func(msg *nats.Msg) {
		cmd, err := ParseCommand(msg.Data)
		if err != nil {
			c.logger.Warn("Ignoring control message", "error", err)
			return
		}
		c.logger.Debug("Control command received", "command", cmd)
		handle(cmd)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", SubjectControl, err)
	}
	return sub.Unsubscribe, nil
}
