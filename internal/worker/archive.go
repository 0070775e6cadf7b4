package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"kakeibo/internal/core"
	"kakeibo/internal/export"
	applog "kakeibo/internal/log"
	ports "kakeibo/internal/sheets"
)

// DefaultArchiveSchedule runs at 05:00 on the first day of each month.
const DefaultArchiveSchedule = "0 5 1 * *"

// Archiver writes a month's ledger to ARCHIVE_DIR in every export format.
type Archiver struct {
	source  ports.RecordReader
	options core.Options
	dir     string
	now     func() time.Time
	logger  *applog.Logger
}

func NewArchiver(source ports.RecordReader, opts core.Options, dir string, logger *applog.Logger) *Archiver {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Archiver{
		source:  source,
		options: opts,
		dir:     dir,
		now:     time.Now,
		logger:  logger.WithComponent(applog.ComponentExport),
	}
}

// ArchivePreviousMonth archives the month before now's month.
func (a *Archiver) ArchivePreviousMonth(ctx context.Context) ([]string, error) {
	return a.Archive(ctx, core.CursorAt(a.now()).Prev())
}

// Archive writes c's ledger as CSV and XLSX and returns the file paths.
// Files are written to a temporary name first, so a reader never sees a
// partial archive.
func (a *Archiver) Archive(ctx context.Context, c core.Cursor) ([]string, error) {
	recs, err := a.source.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}
	v := core.ComputeMonthlyView(recs, c.Year, c.Month)
	s := v.Summarize(a.options)

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	var paths []string
	for _, f := range []export.Format{export.FormatCSV, export.FormatXLSX} {
		path := filepath.Join(a.dir, export.Filename(c.Year, c.Month, f))
		if err := writeAtomic(path, func(file *os.File) error { return export.Write(file, f, v, s) }); err != nil {
			return paths, fmt.Errorf("archive %s: %w", filepath.Base(path), err)
		}
		paths = append(paths, path)
	}
	a.logger.InfoContext(ctx, "Month archived",
		applog.FieldYear, c.Year,
		applog.FieldMonth, int(c.Month),
		applog.FieldRecordCount, len(v.Visible))
	return paths, nil
}

func writeAtomic(path string, write func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".archive-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Scheduler runs the archiver on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	archiver *Archiver
	timeout  time.Duration
}

// NewScheduler registers the archive job under schedule, a standard five-field
// cron expression.
func NewScheduler(schedule string, archiver *Archiver) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultArchiveSchedule
	}
	s := &Scheduler{cron: cron.New(), archiver: archiver, timeout: 2 * time.Minute}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("add archive job %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.archiver.logger.InfoContext(ctx, "Executing month-end archive")
	if _, err := s.archiver.ArchivePreviousMonth(ctx); err != nil {
		s.archiver.logger.ErrorContext(ctx, "Month-end archive failed", applog.FieldError, err)
	}
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running job until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Next reports when the archive will next run.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
