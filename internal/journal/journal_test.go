package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndRecent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	events := []Entry{
		{Kind: KindTrigger, Detail: "udev add", Timestamp: base},
		{Kind: KindApply, Outcome: "applied", Profile: "docked", Dock: "c0ffee", Timestamp: base.Add(time.Second)},
		{Kind: KindApply, Outcome: "no_change", Profile: "docked", Timestamp: base.Add(2 * time.Second)},
	}
	for _, e := range events {
		if err := j.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].Outcome != "no_change" {
		t.Errorf("expected newest first, got %+v", got[0])
	}
	if got[2].Kind != KindTrigger {
		t.Errorf("expected oldest last, got %+v", got[2])
	}
	for _, e := range got {
		if e.ID == "" {
			t.Error("entry ID should be assigned on record")
		}
	}
}

func TestRecentLimit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		entry := Entry{
			Kind:      KindTrigger,
			Timestamp: time.Date(2025, 6, 1, 12, 0, i, 0, time.UTC),
		}
		if err := j.Record(ctx, entry); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
}

func TestRecordRequiresKind(t *testing.T) {
	j := openTestJournal(t)
	if err := j.Record(context.Background(), Entry{}); err == nil {
		t.Fatal("expected error for missing kind")
	}
}

func TestPrune(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	old := Entry{Kind: KindApply, Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	recent := Entry{Kind: KindApply, Timestamp: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	for _, e := range []Entry{old, recent} {
		if err := j.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	deleted, err := j.Prune(ctx, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 pruned entry, got %d", deleted)
	}

	got, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 remaining entry, got %d", len(got))
	}
}

func TestReopenPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.db")
	ctx := context.Background()

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := j.Record(ctx, Entry{Kind: KindStartup}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	j2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j2.Close()

	got, err := j2.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].Kind != KindStartup {
		t.Fatalf("unexpected entries after reopen: %+v", got)
	}
}
