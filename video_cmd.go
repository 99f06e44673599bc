package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mitchellh/go-homedir"
	"github.com/padworld/padtour/internal/genai"
	"github.com/spf13/cobra"
)

// heroPrompt describes the landing page background clip.
const heroPrompt = "Cinematic establishing shot of a futuristic cyberpunk padel tennis court, neon lime and blue laser lights, dark foggy atmosphere, 4k, hyper-realistic, slow camera pan"

var (
	videoOutput string
	videoPrompt string
)

var videoCmd = &cobra.Command{
	Use:   "video",
	Short: "Generate the hero video",
	Long: paragraph(fmt.Sprintf("\nGenerate the %s for the landing page. Generation takes a few minutes; progress is printed as the clip moves through its stages.", keyword("hero video"))),
	Example: paragraph("padtour video\npadtour video --out hero.mp4\npadtour video --prompt \"Aerial shot of a padel court at dawn\""),
	Args:    cobra.NoArgs,
	RunE:    runVideo,
}

func init() {
	videoCmd.Flags().StringVarP(&videoOutput, "out", "O", "", "write the clip to this file (default from config)")
	videoCmd.Flags().StringVar(&videoPrompt, "prompt", heroPrompt, "describe the clip")
}

func runVideo(cmd *cobra.Command, _ []string) error {
	client, err := newClient(cfg, nil, nil)
	if err != nil {
		return err
	}

	path := videoOutput
	if path == "" {
		path = cfg.Video.Output
	}
	path, _ = homedir.Expand(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the clip only appears at path once fully downloaded
	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}

	started := time.Now()
	n, err := client.GenerateVideoTo(ctx, genai.VideoRequest{
		Prompt:      videoPrompt,
		AspectRatio: cfg.Video.AspectRatio,
		Resolution:  cfg.Video.Resolution,
	}, f, cfg.Video.PollInterval, func(s genai.VideoStage) {
		fmt.Println(subtle(fmt.Sprintf("· %s (%s)", s, time.Since(started).Round(time.Second))))
	})
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("video generation failed: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("unable to move video into place: %w", err)
	}

	fmt.Printf("Wrote %s (%s)\n", keyword(path), humanize.Bytes(uint64(n))) //nolint:gosec
	return nil
}
