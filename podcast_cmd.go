package main

import (
	"errors"
	"fmt"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/dustin/go-humanize"
	"github.com/mitchellh/go-homedir"
	"github.com/padworld/padtour/podcast"
	"github.com/spf13/cobra"
)

var (
	exportPath string
	copyScript bool
)

var podcastCmd = &cobra.Command{
	Use:   "podcast",
	Short: "Play the podcast briefing",
	Long: paragraph(fmt.Sprintf("\nPlay the %s. The pre-rendered episode is used when it can be found, otherwise a fresh two-host script is written and voiced.", keyword("podcast briefing"))),
	Example: paragraph("padtour podcast\npadtour podcast --export briefing.wav\npadtour podcast --copy-script"),
	Args:    cobra.NoArgs,
	RunE:    runPodcast,
}

func init() {
	podcastCmd.Flags().StringVarP(&exportPath, "export", "e", "", "write the generated briefing to this WAV file")
	podcastCmd.Flags().Lookup("export").NoOptDefVal = "-"
	podcastCmd.Flags().BoolVar(&copyScript, "copy-script", false, "copy the generated script to the clipboard")
}

func runPodcast(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	p := a.newPodcast()

	var (
		once    sync.Once
		started bool
		mu      sync.Mutex
	)
	done := make(chan struct{})
	p.OnStateChange(func(s podcast.State) {
		mu.Lock()
		defer mu.Unlock()
		if s != podcast.StateIdle {
			started = true
			fmt.Println(subtle("· " + s.String()))
			return
		}
		if started {
			once.Do(func() { close(done) })
		}
	})

	p.Start(a.ctx)

	select {
	case <-done:
	case <-a.ctx.Done():
		p.Stop()
		return errors.New("briefing interrupted")
	}

	if err := p.LastError(); err != nil {
		return fmt.Errorf("briefing failed: %w", err)
	}

	if copyScript {
		if script := p.Script(); script != "" {
			if err := clipboard.WriteAll(script); err != nil {
				return fmt.Errorf("unable to copy script: %w", err)
			}
			fmt.Println("Copied the script to the clipboard.")
		} else {
			fmt.Println(subtle("No script to copy: the pre-rendered episode was played."))
		}
	}

	if exportPath != "" {
		path := exportPath
		if path == "-" {
			path = cfg.Podcast.ExportPath
		}
		path, _ = homedir.Expand(path)
		ok, err := p.ExportArtifact(path)
		if err != nil {
			return err //nolint:wrapcheck
		}
		if !ok {
			fmt.Println(subtle("Nothing to export: the pre-rendered episode was played."))
			return nil
		}
		fmt.Printf("Wrote %s (%s)\n", keyword(path), humanize.Bytes(uint64(len(p.Artifact())))) //nolint:gosec
	}
	return nil
}
