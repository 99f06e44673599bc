package genai

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/padworld/padtour/activity"
	gemini "google.golang.org/genai"
)

// DefaultPollInterval is how often PollUntilDone checks an operation.
const DefaultPollInterval = 5 * time.Second

// Operation is a long-running video generation.
type Operation = gemini.GenerateVideosOperation

// VideoRequest describes a clip to generate.
type VideoRequest struct {
	Prompt      string
	AspectRatio string // "16:9" when empty
	Resolution  string // "1080p" when empty
}

// VideoStage is a coarse progress label for video generation.
type VideoStage string

const (
	StageInitializing VideoStage = "INITIALIZING"
	StageGenerating   VideoStage = "GENERATING FRAMES"
	StageRendering    VideoStage = "RENDERING VIDEO"
	StageDownloading  VideoStage = "DOWNLOADING"
)

// GenerateVideo starts a video generation and returns its operation.
func (c *Client) GenerateVideo(ctx context.Context, r VideoRequest) (*Operation, error) {
	if r.AspectRatio == "" {
		r.AspectRatio = "16:9"
	}
	if r.Resolution == "" {
		r.Resolution = "1080p"
	}

	var op *Operation
	err := c.call(ctx, "video", func(ctx context.Context) error {
		var err error
		op, err = c.api.Models.GenerateVideos(ctx, c.models.Video, r.Prompt, nil, &gemini.GenerateVideosConfig{
			AspectRatio:    r.AspectRatio,
			Resolution:     r.Resolution,
			NumberOfVideos: 1,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if op.Name == "" {
		return nil, fmt.Errorf("video: %w: no operation name", activity.ErrTransientGeneration)
	}
	return op, nil
}

// GetOperation fetches the current state of an operation.
func (c *Client) GetOperation(ctx context.Context, name string) (*Operation, error) {
	var op *Operation
	err := c.call(ctx, "operation", func(ctx context.Context) error {
		var err error
		op, err = c.api.Operations.GetVideosOperation(ctx, &Operation{Name: name}, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return op, nil
}

// PollUntilDone polls the operation every interval until it is done and
// returns the final state. onPoll, if set, is called after each poll.
func (c *Client) PollUntilDone(ctx context.Context, name string, interval time.Duration, onPoll func(*Operation)) (*Operation, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		op, err := c.GetOperation(ctx, name)
		if err != nil {
			return nil, err
		}
		if onPoll != nil {
			onPoll(op)
		}
		if op.Done {
			if op.Error != nil {
				return nil, fmt.Errorf("video: %w: %v", activity.ErrTransientGeneration, op.Error["message"])
			}
			return op, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// VideoURI returns the download URI of the first generated video.
func VideoURI(op *Operation) string {
	if op == nil || op.Response == nil || len(op.Response.GeneratedVideos) == 0 {
		return ""
	}
	v := op.Response.GeneratedVideos[0]
	if v == nil || v.Video == nil {
		return ""
	}
	return v.Video.URI
}

// Download fetches the file at uri and writes it to w. It returns the byte
// count.
func (c *Client) Download(ctx context.Context, uri string, w io.Writer) (int64, error) {
	var data []byte
	err := c.call(ctx, "download", func(ctx context.Context) error {
		var err error
		data, err = c.api.Files.Download(ctx, gemini.NewDownloadURIFromVideo(&gemini.Video{URI: uri}), nil)
		return err
	})
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, fmt.Errorf("download: %w: empty file", activity.ErrTransientGeneration)
	}
	n, err := w.Write(data)
	return int64(n), err
}

// GenerateVideoTo runs a full generation: submit, poll, download into w.
// onStage reports progress.
func (c *Client) GenerateVideoTo(ctx context.Context, r VideoRequest, w io.Writer, interval time.Duration, onStage func(VideoStage)) (int64, error) {
	stage := func(s VideoStage) {
		if onStage != nil {
			onStage(s)
		}
	}

	stage(StageInitializing)
	op, err := c.GenerateVideo(ctx, r)
	if err != nil {
		return 0, err
	}

	stage(StageGenerating)
	done, err := c.PollUntilDone(ctx, op.Name, interval, nil)
	if err != nil {
		return 0, err
	}

	stage(StageRendering)
	uri := VideoURI(done)
	if uri == "" {
		return 0, fmt.Errorf("video: %w: no video in response", activity.ErrTransientGeneration)
	}

	stage(StageDownloading)
	return c.Download(ctx, uri, w)
}
