package worker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/sheets/memory"
)

func TestArchivePreviousMonth(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "archive")
	opts := core.Options{Categories: []string{"食費", "交通費"}, Users: []string{"Mom", "Dad"}}
	a := NewArchiver(memory.New(sheetRows()...), opts, dir, quietLogger())
	a.now = func() time.Time { return time.Date(2024, time.March, 1, 5, 0, 0, 0, time.UTC) }

	paths, err := a.ArchivePreviousMonth(context.Background())
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 files, got %v", paths)
	}
	if filepath.Base(paths[0]) != "kakeibo_2024-02.csv" || filepath.Base(paths[1]) != "kakeibo_2024-02.xlsx" {
		t.Errorf("unexpected names %v", paths)
	}

	b, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	csv := string(b)
	if !strings.Contains(csv, "合計,\"1,300\"") {
		t.Errorf("february total missing:\n%s", csv)
	}
	if strings.Contains(csv, "2024/3/1") {
		t.Errorf("march row leaked into february archive")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestArchiveJanuaryRollsBackYear(t *testing.T) {
	a := NewArchiver(memory.New(), core.Options{}, t.TempDir(), quietLogger())
	a.now = func() time.Time { return time.Date(2025, time.January, 1, 5, 0, 0, 0, time.UTC) }

	paths, err := a.ArchivePreviousMonth(context.Background())
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if filepath.Base(paths[0]) != "kakeibo_2024-12.csv" {
		t.Errorf("unexpected name %s", paths[0])
	}
}

func TestNewScheduler(t *testing.T) {
	a := NewArchiver(memory.New(), core.Options{}, t.TempDir(), quietLogger())

	if _, err := NewScheduler("not a cron schedule", a); err == nil {
		t.Fatal("expected error for bad schedule")
	}

	s, err := NewScheduler("", a)
	if err != nil {
		t.Fatalf("default schedule: %v", err)
	}
	s.Start()
	defer s.Stop(context.Background())

	next := s.Next()
	if next.IsZero() || next.Day() != 1 || next.Hour() != 5 || next.Minute() != 0 {
		t.Errorf("unexpected next run %v", next)
	}
}
