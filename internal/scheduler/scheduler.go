// Package scheduler runs the alert jobs at fixed times of day in a named
// timezone. Each job is independent: a failure or panic in one body is
// logged and counted, never propagated, and never stops other jobs or later
// runs of the same job.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/brokerage-alerts/internal/config"
)

var (
	// ErrUnknownJob is returned by RunNow for a name that was never registered.
	ErrUnknownJob = errors.New("unknown job")
	// ErrJobRunning is returned by RunNow while the same job is still running.
	ErrJobRunning = errors.New("job already running")
)

// Body is the work of a job.
type Body func(ctx context.Context) (RunResult, error)

// JobConfig describes one daily job.
type JobConfig struct {
	Name      string
	TimeOfDay string // "HH:MM", 24h
	Timezone  string // IANA name; empty means the scheduler default
	Body      Body
}

// State is the lifecycle state of a job.
type State string

const (
	StateRegistered State = "registered"
	StateRunning    State = "running"
	StateIdle       State = "idle"
)

// RunResult summarizes one execution of a job body.
type RunResult struct {
	Job        string         `json:"job"`
	Trigger    string         `json:"trigger"`
	Created    int            `json:"criados"`
	Duplicates int            `json:"duplicados"`
	Failed     int            `json:"falhas"`
	Dispatched int            `json:"enviados"`
	Deleted    int64          `json:"removidos"`
	ByKind     map[string]int `json:"por_tipo,omitempty"`
	StartedAt  time.Time      `json:"inicio"`
	DurationMS int64          `json:"duracao_ms"`
	Error      string         `json:"erro,omitempty"`
}

// JobStatus is the observable state of a registered job.
type JobStatus struct {
	Name       string     `json:"nome"`
	Schedule   string     `json:"agenda"`
	Timezone   string     `json:"fuso"`
	State      State      `json:"estado"`
	NextRun    *time.Time `json:"proxima_execucao,omitempty"`
	LastRun    *time.Time `json:"ultima_execucao,omitempty"`
	LastResult *RunResult `json:"ultimo_resultado,omitempty"`
}

type job struct {
	cfg      JobConfig
	loc      *time.Location
	hour     int
	minute   int
	schedule cron.Schedule

	mu      sync.Mutex
	state   State
	lastRun *time.Time
	last    *RunResult
}

// Scheduler owns the registered jobs and the cron runner that triggers them.
// It is constructed once at process start and passed to whoever needs it.
type Scheduler struct {
	mu      sync.Mutex
	jobs    map[string]*job
	order   []string
	cron    *cron.Cron
	started bool

	// active counts bodies in flight; drained is closed when it drops to zero.
	active  int
	drained chan struct{}

	loc *time.Location
	now func() time.Time
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New validates jobs and registers them. defaultTZ applies to jobs without
// their own timezone; empty means UTC.
func New(defaultTZ string, jobs []JobConfig, opts ...Option) (*Scheduler, error) {
	loc := time.UTC
	if strings.TrimSpace(defaultTZ) != "" {
		l, err := time.LoadLocation(defaultTZ)
		if err != nil {
			return nil, fmt.Errorf("scheduler timezone %q: %w", defaultTZ, err)
		}
		loc = l
	}
	s := &Scheduler{jobs: map[string]*job{}, loc: loc, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	for _, jc := range jobs {
		if err := s.register(jc); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) register(jc JobConfig) error {
	jc.Name = strings.TrimSpace(jc.Name)
	if jc.Name == "" {
		return errors.New("job name required")
	}
	if jc.Body == nil {
		return fmt.Errorf("job %s: body required", jc.Name)
	}
	if _, dup := s.jobs[jc.Name]; dup {
		return fmt.Errorf("job %s: registered twice", jc.Name)
	}
	h, m, err := config.ParseTimeOfDay(jc.TimeOfDay)
	if err != nil {
		return fmt.Errorf("job %s: %w", jc.Name, err)
	}
	loc := s.loc
	if jc.Timezone != "" {
		if loc, err = time.LoadLocation(jc.Timezone); err != nil {
			return fmt.Errorf("job %s timezone %q: %w", jc.Name, jc.Timezone, err)
		}
	}
	sched, err := cron.ParseStandard(cronSpec(h, m, loc))
	if err != nil {
		return fmt.Errorf("job %s: %w", jc.Name, err)
	}
	s.jobs[jc.Name] = &job{cfg: jc, loc: loc, hour: h, minute: m, schedule: sched, state: StateRegistered}
	s.order = append(s.order, jc.Name)
	return nil
}

// cronSpec renders a daily trigger at h:m in loc.
func cronSpec(h, m int, loc *time.Location) string {
	return fmt.Sprintf("CRON_TZ=%s %d %d * * *", loc.String(), m, h)
}

// Start arms every job. Calling it again while started is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	c := cron.New(cron.WithLocation(s.loc), cron.WithLogger(cronLogger{}))
	for _, name := range s.order {
		j := s.jobs[name]
		c.Schedule(j.schedule, cron.FuncJob(func() {
			_, _ = s.run(context.Background(), j, "schedule")
		}))
	}
	c.Start()
	s.cron = c
	s.started = true
	log.Info().Int("jobs", len(s.order)).Str("timezone", s.loc.String()).Msg("scheduler started")
}

// Stop disarms every job and waits for running bodies, scheduled or manual,
// until they return or ctx is done. Safe to call when never started.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	if s.started {
		s.cron = nil
		s.started = false
	}
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			return fmt.Errorf("scheduler stop: %w", ctx.Err())
		}
		log.Info().Msg("scheduler stopped")
	}

	s.mu.Lock()
	if s.active == 0 {
		s.mu.Unlock()
		return nil
	}
	drained := s.drained
	n := s.active
	s.mu.Unlock()

	log.Info().Int("running", n).Msg("waiting for running jobs")
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// track marks one body in flight; the returned func marks it done.
func (s *Scheduler) track() func() {
	s.mu.Lock()
	if s.active == 0 {
		s.drained = make(chan struct{})
	}
	s.active++
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.active--
		if s.active == 0 {
			close(s.drained)
		}
		s.mu.Unlock()
	}
}

// Started reports whether the jobs are armed.
func (s *Scheduler) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// RunNow runs one job immediately, outside its schedule, and waits for it.
// The body is not cancelled when ctx is; only ctx values are carried over.
func (s *Scheduler) RunNow(ctx context.Context, name string) (RunResult, error) {
	j, ok := s.job(name)
	if !ok {
		return RunResult{}, ErrUnknownJob
	}
	return s.run(context.WithoutCancel(ctx), j, "manual")
}

func (s *Scheduler) job(name string) (*job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[strings.TrimSpace(name)]
	return j, ok
}

// Status lists every job in registration order.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	names := append([]string(nil), s.order...)
	s.mu.Unlock()

	now := s.now()
	out := make([]JobStatus, 0, len(names))
	for _, name := range names {
		j, _ := s.job(name)
		j.mu.Lock()
		st := JobStatus{
			Name:     name,
			Schedule: fmt.Sprintf("diariamente às %02d:%02d", j.hour, j.minute),
			Timezone: j.loc.String(),
			State:    j.state,
			LastRun:  j.lastRun,
		}
		if j.last != nil {
			r := *j.last
			st.LastResult = &r
		}
		j.mu.Unlock()
		next := j.schedule.Next(now)
		st.NextRun = &next
		out = append(out, st)
	}
	return out
}

// run executes j once. A second trigger while j is running is dropped.
func (s *Scheduler) run(ctx context.Context, j *job, trigger string) (RunResult, error) {
	l := log.With().Str("job", j.cfg.Name).Str("trigger", trigger).Logger()

	j.mu.Lock()
	if j.state == StateRunning {
		j.mu.Unlock()
		l.Warn().Msg("job still running; trigger skipped")
		jobRuns.WithLabelValues(j.cfg.Name, outcomeSkipped).Inc()
		return RunResult{Job: j.cfg.Name, Trigger: trigger}, ErrJobRunning
	}
	j.state = StateRunning
	j.mu.Unlock()
	defer s.track()()

	start := s.now()
	l.Info().Msg("job started")
	res, err := safeRun(ctx, j.cfg.Body)
	elapsed := s.now().Sub(start)

	res.Job, res.Trigger, res.StartedAt = j.cfg.Name, trigger, start
	res.DurationMS = elapsed.Milliseconds()
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeError
		res.Error = err.Error()
		l.Error().Err(err).Dur("elapsed", elapsed).Msg("job failed")
	} else {
		l.Info().Int("created", res.Created).Int("duplicates", res.Duplicates).
			Int("failed", res.Failed).Int("dispatched", res.Dispatched).
			Int64("deleted", res.Deleted).Dur("elapsed", elapsed).Msg("job finished")
	}
	observeRun(j.cfg.Name, outcome, elapsed, res.ByKind)

	j.mu.Lock()
	j.state = StateIdle
	j.lastRun = &start
	j.last = &res
	j.mu.Unlock()
	return res, err
}

// safeRun calls body, turning a panic into an error.
func safeRun(ctx context.Context, body Body) (res RunResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return body(ctx)
}

// cronLogger routes cron's own messages to zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
