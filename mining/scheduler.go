/*
scheduler.go - Periodic accrual driver

PURPOSE:
  Owns the single background loop that runs accrual passes on a fixed
  cadence. The loop does not fan out across subscriptions; the Accruer
  iterates them sequentially, which bounds wallet contention.

DESIGN:
  - Ticker-driven goroutine, one immediate pass on start
  - Stop() closes the stop channel and waits for the in-flight pass, so
    shutdown never interrupts an atomic mutation
  - RunNow() drives a pass synchronously for admin endpoints and tests;
    time itself comes from the Accruer's injectable clock

USAGE:
  sched := mining.NewScheduler(accruer, time.Minute)
  sched.Start()
  defer sched.Stop()
*/
package mining

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler periodically drives the Accruer.
type Scheduler struct {
	Accruer  *Accruer
	Interval time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewScheduler(accruer *Accruer, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		Accruer:  accruer,
		Interval: interval,
	}
}

// Start begins the periodic loop. Safe to call once.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		return
	}
	s.stop = make(chan struct{})
	s.ticker = time.NewTicker(s.Interval)
	s.wg.Add(1)
	go s.run()

	zap.L().Info("accrual scheduler started", zap.Duration("interval", s.Interval))
}

// Stop ends the loop and waits for any in-flight pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil

	zap.L().Info("accrual scheduler stopped")
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	// First pass immediately so restarts catch up without waiting a tick.
	s.runPass()

	for {
		select {
		case <-s.ticker.C:
			s.runPass()
		case <-s.stop:
			return
		}
	}
}

func (s *Scheduler) runPass() {
	if _, err := s.Accruer.RunOnce(context.Background()); err != nil {
		zap.L().Error("accrual pass aborted", zap.Error(err))
	}
}

// RunNow executes one pass synchronously.
func (s *Scheduler) RunNow(ctx context.Context) (Report, error) {
	return s.Accruer.RunOnce(ctx)
}
