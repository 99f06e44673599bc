package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "journal.db")
	}
	s, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAndList(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, Config{})

	id, err := s.StartSession(ctx, "tour")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	for _, ev := range []string{"scrolling", "synthesizing", "playing"} {
		if err := s.Append(ctx, id, ev, "hero"); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := s.EndSession(ctx, id); err != nil {
		t.Fatalf("end session: %v", err)
	}

	sessions, err := s.ListSessions(ctx, 10)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].Activity != "tour" || sessions[0].Events != 3 || sessions[0].EndedAt.IsZero() {
		t.Errorf("unexpected session: %+v", sessions[0])
	}

	events, err := s.ListEvents(ctx, id, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 3 || events[0].Type != "scrolling" || events[2].Type != "playing" {
		t.Errorf("unexpected events: %+v", events)
	}
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, Config{RetentionDays: 1, MaxSessions: 2})

	base := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	s.clock = func() time.Time { return base.Add(-72 * time.Hour) }
	old, _ := s.StartSession(ctx, "podcast")
	s.Append(ctx, old, "checking_file", "")

	var recent []string
	for i := 0; i < 3; i++ {
		s.clock = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		id, _ := s.StartSession(ctx, "live")
		recent = append(recent, id)
	}

	s.clock = func() time.Time { return base.Add(time.Hour) }
	if err := s.Prune(ctx); err != nil {
		t.Fatalf("prune: %v", err)
	}

	sessions, err := s.ListSessions(ctx, 10)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions after prune, got %d", len(sessions))
	}
	if sessions[0].ID != recent[2] || sessions[1].ID != recent[1] {
		t.Errorf("prune kept the wrong sessions: %+v", sessions)
	}
	events, _ := s.ListEvents(ctx, old, 10)
	if len(events) != 0 {
		t.Errorf("expected events of pruned session to cascade, got %d", len(events))
	}
}

func TestTracker(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, Config{})
	tr := s.Track("podcast")

	tr.Record(ctx, "idle", "", true)
	if tr.SessionID() != "" {
		t.Fatal("idle state should not open a session")
	}

	tr.Record(ctx, "checking_file", "", false)
	id := tr.SessionID()
	if id == "" {
		t.Fatal("expected an open session")
	}
	tr.Record(ctx, "playing_static", "", false)
	tr.Record(ctx, "idle", "", true)
	if tr.SessionID() != "" {
		t.Error("idle should close the session")
	}

	events, _ := s.ListEvents(ctx, id, 10)
	if len(events) != 3 {
		t.Errorf("expected 3 events, got %d", len(events))
	}

	tr.Record(ctx, "checking_file", "", false)
	if tr.SessionID() == id {
		t.Error("expected a new session")
	}
}
