package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps robfig/cron and tracks the next scheduled library scan.
// It holds one replaceable entry for the scan job plus any number of
// fire-and-forget background jobs such as trash auto-purge.
type Scheduler struct {
	mu           sync.RWMutex
	c            *cron.Cron
	scanEntryID  cron.EntryID
	scanCronExpr string
}

// New creates a stopped Scheduler. Call Start to activate it.
func New() *Scheduler {
	return &Scheduler{
		c: cron.New(),
	}
}

// SetScanJob replaces the current scan schedule with the given expression and
// callback. If the scheduler is already running, the new schedule takes
// effect immediately. cmd/mediasort calls it once at startup; a schedule
// change saved through /api/config does not call it, so the running job
// keeps the cadence it was started with.
func (s *Scheduler) SetScanJob(expr string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scanEntryID != 0 {
		s.c.Remove(s.scanEntryID)
	}

	id, err := s.c.AddFunc(expr, fn)
	if err != nil {
		return err
	}
	s.scanEntryID = id
	s.scanCronExpr = expr
	slog.Info("scheduler: scan job set", "cron", expr)
	return nil
}

// AddJob adds a background job that fires on the given cron expression.
// Unlike SetScanJob, this does not replace the tracked scan schedule and
// isn't reported by NextRunAt/CronExpr — it's for maintenance work like
// trash auto-purge that runs on its own fixed cadence.
func (s *Scheduler) AddJob(expr string, fn func()) error {
	_, err := s.c.AddFunc(expr, fn)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	slog.Info("scheduler: background job added", "cron", expr)
	return nil
}

// Start begins the cron loop.
func (s *Scheduler) Start() {
	s.c.Start()
}

// Stop halts the cron loop gracefully.
func (s *Scheduler) Stop() {
	s.c.Stop()
}

// NextRunAt returns the next scheduled scan time, or nil if no scan job is set.
func (s *Scheduler) NextRunAt() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.scanEntryID == 0 {
		return nil
	}
	entry := s.c.Entry(s.scanEntryID)
	if entry.ID == 0 {
		return nil
	}
	t := entry.Next
	return &t
}

// CronExpr returns the current scan cron expression.
func (s *Scheduler) CronExpr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanCronExpr
}
