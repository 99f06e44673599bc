package main

import (
	"errors"
	"fmt"

	"github.com/padworld/padtour/live"
	"github.com/spf13/cobra"
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Talk to Paddy",
	Long: paragraph(fmt.Sprintf("\nOpen a %s with Paddy. Your microphone is streamed and the replies are played as they arrive. Press Ctrl+C to hang up.", keyword("live voice session"))),
	Example: paragraph("padtour live\npadtour live --output device"),
	Args:    cobra.NoArgs,
	RunE:    runLive,
}

func runLive(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	l, err := a.newLive()
	if err != nil {
		return err
	}

	ended := make(chan live.Status, 1)
	l.OnStateChange(func(s live.Status) {
		switch s.State {
		case live.StateConnected:
			fmt.Println(keyword("Paddy is listening.") + subtle(" Press Ctrl+C to hang up."))
		case live.StateError:
			select {
			case ended <- s:
			default:
			}
		}
	})

	if err := l.Connect(a.ctx); err != nil {
		return fmt.Errorf("unable to start session: %w", err)
	}

	select {
	case s := <-ended:
		return errors.New("session ended: " + s.Reason)
	case <-a.ctx.Done():
		l.Disconnect()
		fmt.Println(subtle("\nSession closed."))
		return nil
	}
}
