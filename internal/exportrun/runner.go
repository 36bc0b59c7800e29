// Package exportrun drives one export from click to saved archive.
package exportrun

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"printer_history/exporter-go/internal/collector"
	"printer_history/exporter-go/internal/connect"
	"printer_history/exporter-go/internal/download"
	"printer_history/exporter-go/internal/export"
	"printer_history/exporter-go/internal/metrics"
	"printer_history/exporter-go/internal/ui"
)

const SuccessMessage = "Data fetched and downloaded successfully!"

// ErrBusy is returned when a run is triggered while another one is active.
var ErrBusy = errors.New("an export is already running")

type State string

const (
	StateIdle            State = "idle"
	StateFetchingDevices State = "fetching_devices"
	StateFetchingJobs    State = "fetching_jobs"
	StatePackaging       State = "packaging"
	StateDownloading     State = "downloading"
	StateSuccess         State = "success"
	StateError           State = "error"
)

// Status describes the current or most recent run.
type Status struct {
	State      State      `json:"state"`
	RunID      string     `json:"run_id,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Devices    int        `json:"devices,omitempty"`
	SavedTo    string     `json:"saved_to,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type Runner struct {
	log        zerolog.Logger
	collector  *collector.Collector
	saver      download.Saver
	ui         ui.Presenter
	metrics    *metrics.Metrics
	now        func() time.Time
	formatTime export.TimeFormatter

	running atomic.Bool
	wg      sync.WaitGroup

	mu     sync.Mutex
	status Status
}

type Options struct {
	// Now supplies the run date. Defaults to time.Now.
	Now        func() time.Time
	TimeFormat export.TimeFormatter
}

func New(log zerolog.Logger, src collector.Source, saver download.Saver, p ui.Presenter, opts Options, m *metrics.Metrics) *Runner {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	tf := opts.TimeFormat
	if tf == nil {
		tf = export.NewTimeFormatter(nil, "")
	}

	r := &Runner{
		log:        log,
		saver:      saver,
		ui:         p,
		metrics:    m,
		now:        now,
		formatTime: tf,
		status:     Status{State: StateIdle},
	}
	r.collector = collector.New(log, &phaseSource{src: src, r: r})
	return r
}

// Status returns a copy of the current run status.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Busy reports whether a run is in progress.
func (r *Runner) Busy() bool {
	return r.running.Load()
}

// Run performs one export and blocks until it ends.
func (r *Runner) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return r.execute(ctx)
}

// Start begins one export in the background. It returns ErrBusy without
// starting anything if a run is active.
func (r *Runner) Start(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_ = r.execute(ctx)
	}()
	return nil
}

// Wait blocks until every run begun with Start has finished, including its
// cleanup.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) execute(ctx context.Context) (err error) {
	defer r.running.Store(false)

	runID := uuid.NewString()
	log := r.log.With().Str("run_id", runID).Logger()
	start := time.Now()
	r.begin(runID, start)

	r.ui.BeginProgress()
	defer r.ui.EndProgress()

	defer func() {
		r.metrics.ObserveExportRunDuration(time.Since(start))
		if err != nil {
			r.metrics.IncExportRun("error")
			r.finish(StateError, "", err)
			log.Error().Err(err).Int64("duration_ms", time.Since(start).Milliseconds()).Msg("export failed")
			r.ui.ShowError("Error: " + err.Error())
			return
		}
		r.metrics.IncExportRun("success")
		r.ui.ShowSuccess(SuccessMessage)
	}()

	log.Info().Msg("export started")
	return r.run(ctx, log, start)
}

func (r *Runner) run(ctx context.Context, log zerolog.Logger, start time.Time) error {
	r.setState(StateFetchingDevices)
	bundles, err := r.collector.CollectAll(ctx, r.ui.UpdateProgress)
	if err != nil {
		return err
	}
	r.setDevices(len(bundles))

	r.setState(StatePackaging)
	archive, err := export.BuildArchive(bundles, r.now(), r.formatTime)
	if err != nil {
		return err
	}
	for _, name := range archive.Duplicates {
		log.Warn().Str("file", name).Msg("several printers share a file name; the archive holds each copy under the same name")
	}

	r.setState(StateDownloading)
	path, err := r.saver.Save(ctx, download.ArchiveName(archive.Date), archive.Data)
	if err != nil {
		return err
	}

	r.finish(StateSuccess, path, nil)
	log.Info().
		Str("path", path).
		Int("files", len(archive.Entries)).
		Int("bytes", len(archive.Data)).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("export saved")
	return nil
}

func (r *Runner) begin(runID string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = Status{State: StateFetchingDevices, RunID: runID, StartedAt: &at}
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.State = s
}

func (r *Runner) setDevices(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Devices = n
}

func (r *Runner) finish(s State, path string, err error) {
	at := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.State = s
	r.status.FinishedAt = &at
	r.status.SavedTo = path
	if err != nil {
		r.status.Error = err.Error()
	}
}

// phaseSource moves the run into the jobs phase once the device list is in.
type phaseSource struct {
	src collector.Source
	r   *Runner
}

func (p *phaseSource) FetchDevices(ctx context.Context) ([]connect.Device, error) {
	return p.src.FetchDevices(ctx)
}

func (p *phaseSource) FetchJobs(ctx context.Context, id string) ([]connect.Job, error) {
	p.r.setState(StateFetchingJobs)
	return p.src.FetchJobs(ctx, id)
}
