package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Scheduler periodically asks its job provider for work and feeds the
// worker pool.
type Scheduler struct {
	workerPool   *WorkerPool
	interval     time.Duration
	runOnStartup bool
	jobProvider  func(context.Context) ([]Job, error)
	onRejected   func(Job)

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun time.Time
}

type SchedulerConfig struct {
	Interval     time.Duration
	WorkerCount  int
	JobDelay     time.Duration
	QueueSize    int
	RunOnStartup bool
	JobProvider  func(context.Context) ([]Job, error)
	// OnRejected is called for each job the pool refused.
	OnRejected func(Job)
}

func NewScheduler(config SchedulerConfig) (*Scheduler, error) {
	if config.Interval <= 0 {
		return nil, fmt.Errorf("scheduler interval must be positive, got %v", config.Interval)
	}
	if config.JobProvider == nil {
		return nil, fmt.Errorf("scheduler requires a job provider")
	}

	workerPool := NewWorkerPool(config.WorkerCount, config.JobDelay, config.QueueSize)
	ctx, cancel := context.WithCancel(context.Background())

	log.Printf("Scheduler initialized: every %v, %d workers, queue %d", config.Interval, config.WorkerCount, config.QueueSize)

	return &Scheduler{
		workerPool:   workerPool,
		interval:     config.Interval,
		runOnStartup: config.RunOnStartup,
		jobProvider:  config.JobProvider,
		onRejected:   config.OnRejected,
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

func (s *Scheduler) Start() {
	s.workerPool.Start()

	if s.runOnStartup {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runJobs()
		}()
	}

	s.wg.Add(1)
	go s.scheduleLoop()

	log.Println("Scheduler started")
}

func (s *Scheduler) scheduleLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runJobs()
		}
	}
}

func (s *Scheduler) runJobs() {
	ctx, cancel := context.WithTimeout(s.ctx, s.interval)
	defer cancel()

	jobs, err := s.jobProvider(ctx)
	if err != nil {
		log.Printf("Scheduler: Failed to fetch jobs: %v", err)
		return
	}

	s.mu.Lock()
	s.lastRun = time.Now()
	s.mu.Unlock()

	if len(jobs) == 0 {
		return
	}

	rejected := jobs
	if s.ctx.Err() == nil {
		rejected = s.workerPool.SubmitBatch(jobs)
	}
	if s.onRejected != nil {
		for _, job := range rejected {
			s.onRejected(job)
		}
	}
}

// LastRun reports when the provider last returned successfully.
func (s *Scheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// TriggerNow runs one provider pass immediately.
func (s *Scheduler) TriggerNow() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runJobs()
	}()
}

// Shutdown stops scheduling, then drains the worker pool.
func (s *Scheduler) Shutdown(timeout time.Duration) {
	log.Println("Scheduler: Initiating graceful shutdown...")

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		log.Println("Scheduler: Timeout waiting for scheduler loop to stop")
	}

	s.workerPool.ShutdownWithTimeout(timeout)

	log.Println("Scheduler: Shutdown complete")
}
