// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs the periodic housekeeping jobs: purging expired
// sessions, remember-me tokens, password resets and old events.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultJobTimeout bounds a single job run.
const DefaultJobTimeout = 2 * time.Minute

// Job is a named task with a standard five-field cron schedule.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) (int, error)
}

// JobInfo is the public view of a registered job.
type JobInfo struct {
	Name     string
	Schedule string
	LastRun  time.Time
	LastErr  string
	Removed  int
	NextRun  time.Time
}

type registeredJob struct {
	job     Job
	entryID cron.EntryID
	running sync.Mutex
	lastRun time.Time
	lastErr error
	removed int
}

// Scheduler runs jobs on a cron.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration
	mu      sync.RWMutex
	jobs    map[string]*registeredJob
}

// New creates a new scheduler instance.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:    cron.New(),
		logger:  logger,
		timeout: DefaultJobTimeout,
		jobs:    make(map[string]*registeredJob),
	}
}

// Add registers a job. Its cron expression is validated immediately.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("job needs a name and a func")
	}
	if _, err := cron.ParseStandard(job.Spec); err != nil {
		return fmt.Errorf("job %s: invalid schedule %q: %w", job.Name, job.Spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.Name]; ok {
		return fmt.Errorf("job %s already registered", job.Name)
	}
	rj := &registeredJob{job: job}
	id, err := s.cron.AddFunc(job.Spec, func() { s.execute(rj) })
	if err != nil {
		return err
	}
	rj.entryID = id
	s.jobs[job.Name] = rj
	return nil
}

// Start begins running jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop gracefully stops the scheduler, waiting for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// RunNow runs a job synchronously.
func (s *Scheduler) RunNow(name string) (int, error) {
	s.mu.RLock()
	rj, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("job %s not found", name)
	}
	return s.execute(rj)
}

// Jobs returns all registered jobs sorted by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for _, rj := range s.jobs {
		rj.running.Lock()
		info := JobInfo{
			Name:     rj.job.Name,
			Schedule: rj.job.Spec,
			LastRun:  rj.lastRun,
			Removed:  rj.removed,
			NextRun:  s.cron.Entry(rj.entryID).Next,
		}
		if rj.lastErr != nil {
			info.LastErr = rj.lastErr.Error()
		}
		rj.running.Unlock()
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// execute runs a job, serialising runs of the same job.
func (s *Scheduler) execute(rj *registeredJob) (int, error) {
	rj.running.Lock()
	defer rj.running.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	removed, err := rj.job.Run(ctx)
	rj.lastRun = start
	rj.lastErr = err
	rj.removed = removed

	if err != nil {
		s.logger.Error("scheduled job failed", "job", rj.job.Name, "error", err)
		return removed, err
	}
	if removed > 0 {
		s.logger.Info("scheduled job finished", "job", rj.job.Name, "removed", removed,
			"duration", time.Since(start))
	}
	return removed, nil
}
