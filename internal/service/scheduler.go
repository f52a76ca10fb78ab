package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"bling-mirror/internal/bling"
	"bling-mirror/internal/clock"
	"bling-mirror/internal/logging"
	"bling-mirror/internal/metrics"
	"bling-mirror/internal/model"
	"bling-mirror/internal/repository"
	"bling-mirror/pkg/uid"
)

// ErrCycleRunning is returned when a cycle is requested while one is running.
var ErrCycleRunning = errors.New("sync cycle already running")

// Triggers recorded on sync runs.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// Job is one entity sync inside a cycle.
type Job struct {
	Entity string
	Run    func(ctx context.Context) (*Result, error)
}

// SchedulerConfig holds configuration for the sync scheduler.
type SchedulerConfig struct {
	// Interval between cycles. Default: 24 hours
	Interval time.Duration
	// RunOnStart runs a cycle as soon as the scheduler starts.
	RunOnStart bool
	Tenant     string
}

// Scheduler runs every job in order once per interval. Jobs are isolated: an
// error or panic in one is recorded and the next job still runs. Cycles never
// overlap.
type Scheduler struct {
	jobs   []Job
	runs   repository.Collection[model.SyncRun]
	config SchedulerConfig
	clock  clock.Clock
	log    zerolog.Logger

	cycleMu sync.Mutex

	mu        sync.Mutex
	ticker    *time.Ticker
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once
	isRunning bool
	lastRuns  []model.SyncRun
}

// NewScheduler creates a scheduler. runs may be nil to skip run history.
func NewScheduler(jobs []Job, runs repository.Collection[model.SyncRun], config SchedulerConfig, clk clock.Clock) *Scheduler {
	if config.Interval == 0 {
		config.Interval = 24 * time.Hour
	}
	if clk == nil {
		clk = clock.Real{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:   jobs,
		runs:   runs,
		config: config,
		clock:  clk,
		log:    logging.Component("Scheduler"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.Interval)
	s.mu.Unlock()

	s.log.Info().Dur("interval", s.config.Interval).Int("jobs", len(s.jobs)).Msg("started")

	if s.config.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.tick()
		}()
	}

	s.wg.Add(1)
	go s.run()
}

func (s *Scheduler) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ticker.C:
			s.tick()
		case <-s.ctx.Done():
			s.log.Info().Msg("stopped")
			return
		}
	}
}

// tick runs a scheduled cycle; a cycle still running is left alone.
func (s *Scheduler) tick() {
	if _, err := s.RunNow(s.ctx, TriggerSchedule); err != nil {
		if errors.Is(err, ErrCycleRunning) {
			s.log.Warn().Msg("previous cycle still running, skipping tick")
			return
		}
		s.log.Error().Err(err).Msg("cycle aborted")
	}
}

// Stop cancels any running cycle and waits for the loop to exit.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		if s.ticker != nil {
			s.ticker.Stop()
		}
		s.isRunning = false
		s.mu.Unlock()

		s.cancel()
		s.wg.Wait()
	})
}

// RunNow runs a full cycle synchronously.
func (s *Scheduler) RunNow(ctx context.Context, trigger string) ([]model.SyncRun, error) {
	if !s.cycleMu.TryLock() {
		return nil, ErrCycleRunning
	}
	defer s.cycleMu.Unlock()

	return s.runCycle(ctx, uid.NewRunID(), trigger), ctx.Err()
}

// Trigger starts a cycle in the background and returns its run id.
func (s *Scheduler) Trigger(trigger string) (string, error) {
	if !s.cycleMu.TryLock() {
		return "", ErrCycleRunning
	}

	runID := uid.NewRunID()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.cycleMu.Unlock()
		s.runCycle(s.ctx, runID, trigger)
	}()
	return runID, nil
}

// Running reports whether a cycle is in progress.
func (s *Scheduler) Running() bool {
	if s.cycleMu.TryLock() {
		s.cycleMu.Unlock()
		return false
	}
	return true
}

// LastRuns returns the entity runs of the most recent finished cycle.
func (s *Scheduler) LastRuns() []model.SyncRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.SyncRun, len(s.lastRuns))
	copy(out, s.lastRuns)
	return out
}

// History returns up to limit persisted runs, newest first.
func (s *Scheduler) History(ctx context.Context, limit int) ([]model.SyncRun, error) {
	if s.runs == nil {
		return s.LastRuns(), nil
	}
	runs, err := s.runs.Find(ctx, repository.Filter{Newest: true, Limit: limit})
	if err != nil {
		return nil, bling.NewError(bling.KindPersistence, "find sync runs", 0, err)
	}
	return runs, nil
}

func (s *Scheduler) runCycle(ctx context.Context, runID, trigger string) []model.SyncRun {
	log := s.log.With().Str("run_id", runID).Str("trigger", trigger).Logger()
	log.Info().Msg("cycle started")

	runs := make([]model.SyncRun, 0, len(s.jobs))
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			break
		}
		run := s.runJob(ctx, job)
		run.RunID = runID
		run.Trigger = trigger
		run.Tenant = s.config.Tenant

		metrics.RecordSync(run.Entity, string(run.Outcome), run.Count, run.Duration(), run.FinishedAt)

		ev := log.Info()
		if run.Outcome == model.OutcomeFailed {
			ev = log.Error().Str("error_kind", run.ErrorKind).Str("error", run.Error)
		}
		ev.Str("entity", run.Entity).
			Str("outcome", string(run.Outcome)).
			Int("count", run.Count).
			Int("issues", run.Issues).
			Dur("duration", run.Duration()).
			Msg("entity sync finished")

		runs = append(runs, run)
	}

	if s.runs != nil && len(runs) > 0 {
		// history is best effort and must not fail the cycle
		if err := s.runs.InsertMany(context.WithoutCancel(ctx), runs); err != nil {
			log.Warn().Err(err).Msg("failed to record sync runs")
		}
	}

	s.mu.Lock()
	s.lastRuns = runs
	s.mu.Unlock()

	log.Info().Int("entities", len(runs)).Msg("cycle finished")
	return runs
}

// runJob runs one job, converting a panic into a failed run.
func (s *Scheduler) runJob(ctx context.Context, job Job) (run model.SyncRun) {
	run = model.SyncRun{Entity: job.Entity, StartedAt: s.clock.Now()}

	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error().
				Str("entity", job.Entity).
				Interface("panic", rec).
				Str("stack", string(debug.Stack())).
				Msg("panic recovered in sync job")
			run.Outcome = model.OutcomeFailed
			run.ErrorKind = "panic"
			run.Error = fmt.Sprint(rec)
		}
		run.FinishedAt = s.clock.Now()
	}()

	res, err := job.Run(ctx)
	if res != nil {
		run.Outcome = res.Outcome
		run.Count = res.Count
		run.Issues = res.IssueCount
	}
	if err != nil {
		run.Outcome = model.OutcomeFailed
		run.ErrorKind = string(bling.KindOf(err))
		run.Error = err.Error()
	}
	if run.Outcome == "" {
		run.Outcome = model.OutcomeSynced
	}
	return run
}

// ReceivablesJob adapts a ReceivablesSync to a Job.
func ReceivablesJob(rs *ReceivablesSync) Job {
	return Job{
		Entity: model.EntityReceivables,
		Run: func(ctx context.Context) (*Result, error) {
			res, err := rs.Sync(ctx)
			if res == nil {
				return nil, err
			}
			return &res.Result, err
		},
	}
}

// MirrorJobs returns the sellers, modules and payment methods jobs in the
// order they run.
func MirrorJobs(ms *MirrorSync) []Job {
	return []Job{
		{Entity: model.EntitySellers, Run: ms.SyncSellers},
		{Entity: model.EntityModules, Run: ms.SyncModules},
		{Entity: model.EntityPaymentMethods, Run: ms.SyncPaymentMethods},
	}
}
