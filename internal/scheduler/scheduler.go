package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wonny/walletsim/pkg/logger"
)

// Scheduler runs walletsim jobs on cron schedules.
// An activation that finds the previous one of the same job still running is skipped.
// ⭐ SSOT: 스케줄 관리는 이 스케줄러에서만
type Scheduler struct {
	cron   *cron.Cron
	logger *logger.Logger

	mu      sync.RWMutex
	jobs    map[string]Job
	entries map[string]cron.EntryID
	history map[string]*JobHistory
	running map[string]bool

	// Stop이 ctx를 취소하고 wg로 실행 중 작업을 기다림
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	maxRetries int
	retryDelay time.Duration
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithRetry sets the retry count and the delay between attempts
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(s *Scheduler) {
		s.maxRetries = maxRetries
		s.retryDelay = delay
	}
}

// WithLocation evaluates schedules in loc (e.g. Asia/Seoul)
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		s.cron = cron.New(cron.WithSeconds(), cron.WithLocation(loc), cron.WithLogger(cronLogger{s.logger}))
	}
}

// New creates a new scheduler
func New(log *logger.Logger, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		logger:     log.Component("scheduler"),
		jobs:       make(map[string]Job),
		entries:    make(map[string]cron.EntryID),
		history:    make(map[string]*JobHistory),
		running:    make(map[string]bool),
		ctx:        ctx,
		cancel:     cancel,
		maxRetries: 3,
		retryDelay: 1 * time.Minute,
	}
	s.cron = cron.New(cron.WithSeconds(), cron.WithLogger(cronLogger{s.logger}))

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddJob registers job under its name; names must be unique
func (s *Scheduler) AddJob(job Job) error {
	name := job.Name()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("job %s already registered", name)
	}

	id, err := s.cron.AddFunc(job.Schedule(), func() { s.trigger(job) })
	if err != nil {
		return fmt.Errorf("schedule %q for job %s: %w", job.Schedule(), name, err)
	}

	s.jobs[name] = job
	s.entries[name] = id
	s.history[name] = &JobHistory{}

	s.logger.WithField("job", name).WithField("schedule", job.Schedule()).Info("Job registered")
	return nil
}

// RemoveJob removes a job from the scheduler (history is dropped too)
func (s *Scheduler) RemoveJob(jobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[jobName]; !exists {
		return fmt.Errorf("job %s not found", jobName)
	}

	s.cron.Remove(s.entries[jobName])
	delete(s.jobs, jobName)
	delete(s.entries, jobName)
	delete(s.history, jobName)

	s.logger.WithField("job", jobName).Info("Job removed")
	return nil
}

// Start begins firing schedules in the background
func (s *Scheduler) Start() {
	s.logger.WithField("jobs", len(s.GetAllJobs())).Info("Scheduler starting")
	s.cron.Start()
}

// Stop stops the scheduler, cancels running jobs and waits for them
func (s *Scheduler) Stop() {
	cronDone := s.cron.Stop()
	s.cancel()
	<-cronDone.Done()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// NextRun returns the next activation time of a job (zero before Start)
func (s *Scheduler) NextRun(jobName string) (time.Time, error) {
	s.mu.RLock()
	id, exists := s.entries[jobName]
	s.mu.RUnlock()

	if !exists {
		return time.Time{}, fmt.Errorf("job %s not found", jobName)
	}
	e := s.cron.Entry(id)
	if e.Next.IsZero() && e.Schedule != nil {
		// Start 전에는 cron이 Next를 채우지 않음
		return e.Schedule.Next(time.Now().In(s.cron.Location())), nil
	}
	return e.Next, nil
}

// RunJob fires jobName now in the background, outside its schedule
func (s *Scheduler) RunJob(jobName string) error {
	s.mu.RLock()
	job, ok := s.jobs[jobName]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job %s not found", jobName)
	}

	go s.trigger(job)
	return nil
}

// trigger runs a job unless a previous activation is still in progress
func (s *Scheduler) trigger(job Job) {
	name := job.Name()

	s.mu.Lock()
	if s.running[name] {
		s.mu.Unlock()
		s.logger.WithField("job", name).Warn("Job still running, skipping activation")
		return
	}
	s.running[name] = true
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, name)
		s.mu.Unlock()
		s.wg.Done()
	}()

	s.runJob(job)
}

// runJob executes one activation and records its result
func (s *Scheduler) runJob(job Job) {
	log := s.logger.WithField("job", job.Name())
	log.Info("Job started")

	res := s.attempt(job, log)

	s.mu.Lock()
	if h, ok := s.history[res.JobName]; ok {
		h.AddResult(res)
	}
	s.mu.Unlock()

	log = log.WithFields(map[string]interface{}{"duration": res.Duration, "attempts": res.Attempts})
	if res.Success {
		log.Info("Job completed")
		return
	}
	log.WithField("error", res.Error).Error("Job failed")
}

// attempt runs job up to 1+maxRetries times, pausing retryDelay between tries.
// Stop interrupts both the running attempt (via ctx) and the pause.
func (s *Scheduler) attempt(job Job, log *logger.Logger) JobResult {
	res := JobResult{JobName: job.Name(), StartTime: time.Now()}

	var err error
	for res.Attempts <= s.maxRetries {
		if err = s.ctx.Err(); err != nil {
			break
		}
		res.Attempts++

		if err = safeRun(s.ctx, job); err == nil {
			res.Success = true
			break
		}
		if res.Attempts > s.maxRetries {
			break
		}

		log.WithError(err).WithField("attempt", res.Attempts).Warn("Job attempt failed, retrying")
		timer := time.NewTimer(s.retryDelay)
		select {
		case <-timer.C:
		case <-s.ctx.Done():
			timer.Stop()
		}
	}

	res.EndTime = time.Now()
	res.Duration = res.EndTime.Sub(res.StartTime)
	if !res.Success && err != nil {
		res.Error = err.Error()
	}
	return res
}

// safeRun turns a panicking job into a failed attempt
func safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), v)
		}
	}()
	return job.Run(ctx)
}

// GetJobHistory returns a copy of jobName's recorded results
func (s *Scheduler) GetJobHistory(jobName string) (*JobHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.history[jobName]
	if !ok {
		return nil, fmt.Errorf("job %s not found", jobName)
	}
	return h.Clone(), nil
}

// GetAllJobs returns all registered jobs, sorted by name
func (s *Scheduler) GetAllJobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetJobStats summarizes the history of every registered job
func (s *Scheduler) GetJobStats() map[string]JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]JobStats, len(s.jobs))
	for name, job := range s.jobs {
		stats[name] = s.history[name].Stats(name, job.Schedule())
	}
	return stats
}

// cronLogger routes robfig/cron's internal logs to zerolog
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(kv(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).WithFields(kv(keysAndValues)).Error(msg)
}

func kv(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
