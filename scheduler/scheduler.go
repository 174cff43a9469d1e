package scheduler

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// pollInterval is how often the loop wakes up to check the entry table.
// Trigger times have minute resolution with per-minute dedupe, so any
// interval under a minute lands each job inside its due minute.
const pollInterval = 20 * time.Second

// Clock abstracts wall-clock time so the loop is testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the real clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Job is what an entry runs when due. now is the dispatch time; jobs that
// need today's date derive it from now, never from registration time.
type Job func(now time.Time)

// Entry pairs a daily hour:minute trigger with a job.
type Entry struct {
	Name   string
	Hour   int
	Minute int
	Run    Job
}

// Scheduler evaluates an explicit entry table once per poll on a single
// goroutine. Jobs run inline on that goroutine, so two entries never execute
// concurrently and each fetch cycle finishes before the next dispatches.
type Scheduler struct {
	entries []Entry
	clock   Clock
	log     *zap.SugaredLogger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	lastRun  map[string]time.Time
}

// New creates a scheduler over a fixed entry table.
func New(entries []Entry, clock Clock, log *zap.SugaredLogger) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Scheduler{
		entries: entries,
		clock:   clock,
		log:     log,
		lastRun: make(map[string]time.Time),
	}
}

// Start launches the polling loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go s.run()
	s.log.Infow("Scheduler started", "entries", len(s.entries))
}

// Stop stops the polling loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	close(s.stopChan)
	s.running = false
	s.log.Info("Scheduler stopped")
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.dispatch(s.clock.Now())
		}
	}
}

// dispatch runs every entry due at now, at most once per minute per entry.
func (s *Scheduler) dispatch(now time.Time) {
	minute := now.Truncate(time.Minute)
	for _, entry := range s.entries {
		if entry.Hour != now.Hour() || entry.Minute != now.Minute() {
			continue
		}
		if last, ok := s.lastRun[entry.Name]; ok && last.Equal(minute) {
			continue
		}
		s.lastRun[entry.Name] = minute
		s.runJob(entry, now)
	}
}

// runJob isolates one job: a panic is logged and the loop keeps going.
func (s *Scheduler) runJob(entry Entry, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("Scheduled job panicked", "job", entry.Name, "panic", fmt.Sprint(r))
		}
	}()
	entry.Run(now)
}
