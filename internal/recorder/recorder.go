// Package recorder periodically computes correlation snapshots for a set of
// windows and persists them.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"stockdash/internal/domain"
	"stockdash/internal/engine"
	"stockdash/internal/errtrack"
	"stockdash/internal/gather"
	"stockdash/internal/metrics"
	"stockdash/internal/store"
)

// Broadcaster is notified of every newly stored snapshot.
type Broadcaster interface {
	BroadcastSnapshot(snap domain.Snapshot)
}

// Options configures a Recorder.
type Options struct {
	// Source should bypass the dashboard cache, which never expires.
	Source    gather.Source
	Snapshots store.SnapshotStore
	// Archive, when set, receives the raw series of every run.
	Archive store.SeriesArchive
	Windows []domain.Window
	Notify  Broadcaster
	Tracker errtrack.Tracker
	Logger  *slog.Logger
	Now     func() time.Time
}

// Recorder computes and stores correlation snapshots on a cron schedule.
type Recorder struct {
	cron      *cron.Cron
	src       gather.Source
	snapshots store.SnapshotStore
	archive   store.SeriesArchive
	windows   []domain.Window
	notify    Broadcaster
	tracker   errtrack.Tracker
	log       *slog.Logger
	now       func() time.Time
	ctx       context.Context
}

// New creates a Recorder. Call Register and Start to schedule it.
func New(opts Options) *Recorder {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	tracker := opts.Tracker
	if tracker == nil {
		tracker = errtrack.Noop{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	windows := opts.Windows
	if len(windows) == 0 {
		windows = domain.DashboardWindows
	}
	return &Recorder{
		cron:      cron.New(cron.WithSeconds()),
		src:       opts.Source,
		snapshots: opts.Snapshots,
		archive:   opts.Archive,
		windows:   windows,
		notify:    opts.Notify,
		tracker:   tracker,
		log:       log.With("component", "recorder"),
		now:       now,
		ctx:       context.Background(),
	}
}

// Register schedules RunOnce with a six-field (seconds first) cron spec.
func (r *Recorder) Register(schedule string) error {
	if _, err := r.cron.AddFunc(schedule, r.scheduledRun); err != nil {
		return fmt.Errorf("register snapshot task: %w", err)
	}
	return nil
}

// Start starts the scheduler. Scheduled runs use ctx.
func (r *Recorder) Start(ctx context.Context) {
	r.ctx = ctx
	r.cron.Start()
	r.log.Info("recorder started", "windows", len(r.windows))
}

// Stop stops the scheduler and waits for a running job to finish.
func (r *Recorder) Stop() {
	<-r.cron.Stop().Done()
	r.log.Info("recorder stopped")
}

func (r *Recorder) scheduledRun() {
	if _, err := r.RunOnce(r.ctx); err != nil {
		r.log.Error("snapshot run failed", "error", err)
	}
}

// RunOnce records one snapshot per configured window and returns the
// snapshots that were newly stored. Windows are independent: a failure in
// one does not stop the others, and the errors are joined.
func (r *Recorder) RunOnce(ctx context.Context) ([]domain.Snapshot, error) {
	start := time.Now()
	var (
		stored []domain.Snapshot
		errs   []error
	)
	for _, w := range r.windows {
		snap, inserted, err := r.RecordWindow(ctx, w)
		if err != nil {
			errs = append(errs, fmt.Errorf("window %s: %w", w.Key(), err))
			continue
		}
		if inserted {
			stored = append(stored, *snap)
		}
	}
	r.log.Info("snapshot run complete",
		"stored", len(stored),
		"failed", len(errs),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return stored, errors.Join(errs...)
}

// RecordWindow fetches every stock for window, computes the matrix and
// stores it unless an identical matrix is already stored for the window.
func (r *Recorder) RecordWindow(ctx context.Context, window domain.Window) (*domain.Snapshot, bool, error) {
	snap, inserted, err := r.recordWindow(ctx, window)
	switch {
	case err != nil:
		metrics.SnapshotsRecorded.WithLabelValues("error").Inc()
		r.tracker.CaptureError(ctx, err, map[string]string{
			"component": "recorder",
			"minutes":   strconv.Itoa(window.Minutes()),
		})
	case inserted:
		metrics.SnapshotsRecorded.WithLabelValues("stored").Inc()
	default:
		metrics.SnapshotsRecorded.WithLabelValues("duplicate").Inc()
	}
	return snap, inserted, err
}

func (r *Recorder) recordWindow(ctx context.Context, window domain.Window) (*domain.Snapshot, bool, error) {
	stocks, err := r.src.Stocks(ctx)
	if err != nil {
		return nil, false, err
	}
	set, err := gather.FetchSet(ctx, r.src, stocks, window)
	if err != nil {
		return nil, false, err
	}

	if r.archive != nil {
		for _, t := range set.Tickers() {
			if err := r.archive.WriteSeries(ctx, t, window, set.Series[t]); err != nil {
				// The snapshot is still worth storing.
				r.log.Warn("archiving series", "ticker", t, "minutes", window.Minutes(), "error", err)
			}
		}
	}

	m := engine.ComputeSet(set)
	metrics.MatrixComputations.WithLabelValues("recorder").Inc()
	metrics.UndefinedCoefficients.Add(float64(engine.UndefinedCount(m)))

	hash, err := MatrixHash(window, m)
	if err != nil {
		return nil, false, fmt.Errorf("hashing matrix: %w", err)
	}
	snap := &domain.Snapshot{
		ID:      uuid.NewString(),
		Window:  window,
		Matrix:  m,
		Hash:    hash,
		TakenAt: r.now().UTC(),
	}
	inserted, err := r.snapshots.SaveSnapshot(ctx, snap)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		r.log.Debug("snapshot unchanged", "minutes", window.Minutes(), "hash", hash[:12])
		return snap, false, nil
	}

	r.log.Info("snapshot stored",
		"id", snap.ID,
		"minutes", window.Minutes(),
		"tickers", m.Len(),
		"aligned", m.AlignedLength,
	)
	if r.notify != nil {
		r.notify.BroadcastSnapshot(*snap)
	}
	return snap, true, nil
}
