package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/padworld/padtour/internal/journal"
	"github.com/spf13/cobra"
)

var (
	journalLimit  int
	journalEvents string
	journalPrune  bool
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show past sessions",
	Long: paragraph(fmt.Sprintf("\nList the %s recorded by padtour: every tour, briefing and live session with the state changes it went through.", keyword("sessions"))),
	Example: paragraph("padtour journal\npadtour journal --limit 5\npadtour journal --events 3f2a\npadtour journal --prune"),
	Args:    cobra.NoArgs,
	RunE:    runJournal,
}

func init() {
	journalCmd.Flags().IntVarP(&journalLimit, "limit", "n", 20, "number of sessions to show")
	journalCmd.Flags().StringVar(&journalEvents, "events", "", "show the events of the session with this ID prefix")
	journalCmd.Flags().BoolVar(&journalPrune, "prune", false, "apply the retention policy now")
}

func runJournal(cmd *cobra.Command, _ []string) error {
	if !cfg.Journal.Enabled {
		fmt.Fprintln(cmd.OutOrStdout(), subtle("The journal is disabled."))
		return nil
	}
	s, err := openJournal(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("unable to open journal: %w", err)
	}
	defer s.Close() //nolint:errcheck

	if journalPrune {
		if err := s.Prune(cmd.Context()); err != nil {
			return fmt.Errorf("unable to prune journal: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Journal pruned.")
		return nil
	}

	if journalEvents != "" {
		sessions, err := s.ListSessions(cmd.Context(), cfg.Journal.MaxSessions)
		if err != nil {
			return fmt.Errorf("unable to list sessions: %w", err)
		}
		id, err := matchSession(sessions, journalEvents)
		if err != nil {
			return err
		}
		events, err := s.ListEvents(cmd.Context(), id, 0)
		if err != nil {
			return fmt.Errorf("unable to list events: %w", err)
		}
		printEvents(cmd.OutOrStdout(), events)
		return nil
	}

	sessions, err := s.ListSessions(cmd.Context(), journalLimit)
	if err != nil {
		return fmt.Errorf("unable to list sessions: %w", err)
	}
	printSessions(cmd.OutOrStdout(), sessions, time.Now())
	return nil
}

func matchSession(sessions []journal.Session, prefix string) (string, error) {
	var found []string
	for _, s := range sessions {
		if strings.HasPrefix(s.ID, prefix) {
			found = append(found, s.ID)
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("no session matches %q", prefix)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("%q matches %d sessions", prefix, len(found))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func printSessions(w io.Writer, sessions []journal.Session, now time.Time) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, subtle("No sessions recorded yet."))
		return
	}
	for _, s := range sessions {
		length := "running"
		if !s.EndedAt.IsZero() {
			length = s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s  %-8s %s  %s, %s\n",
			subtle(shortID(s.ID)),
			keyword(s.Activity),
			humanize.RelTime(s.StartedAt, now, "ago", "from now"),
			length,
			english.Plural(s.Events, "event", ""),
		)
	}
}

func printEvents(w io.Writer, events []journal.Event) {
	for _, e := range events {
		line := fmt.Sprintf("%s  %s", subtle(e.CreatedAt.Format(time.TimeOnly)), e.Type)
		if e.Detail != "" {
			line += "  " + subtle(e.Detail)
		}
		fmt.Fprintln(w, line)
	}
}
