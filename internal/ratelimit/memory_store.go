package ratelimit

import (
	"context"
	"sync"
	"time"

	"invest-wallet/internal/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type record struct {
	count     int
	resetTime time.Time
}

// MemoryStore keeps counters in process memory. Expired records are only
// removed by Sweep; a stale record is replaced on its next use anyway.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]record
	cron    *cron.Cron
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]record)}
}

func (s *MemoryStore) Take(_ context.Context, key string, cfg Config, now time.Time) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || !now.Before(rec.resetTime) {
		rec = record{count: 1, resetTime: now.Add(cfg.Window)}
		s.records[key] = rec
		return Result{Allowed: true, Remaining: cfg.MaxRequests - 1, ResetTime: rec.resetTime}, nil
	}

	if rec.count >= cfg.MaxRequests {
		return Result{Allowed: false, Remaining: 0, ResetTime: rec.resetTime}, nil
	}

	rec.count++
	s.records[key] = rec
	return Result{Allowed: true, Remaining: cfg.MaxRequests - rec.count, ResetTime: rec.resetTime}, nil
}

// Sweep drops every record whose window has ended and returns how many it removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, rec := range s.records {
		if !now.Before(rec.resetTime) {
			delete(s.records, key)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// StartSweeper runs Sweep on the given cron schedule, "@every 1m" when empty.
func (s *MemoryStore) StartSweeper(schedule string) error {
	if schedule == "" {
		schedule = "@every 1m"
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if removed := s.Sweep(time.Now()); removed > 0 {
			logger.Log.Debug("Swept expired rate limit records", zap.Int("removed", removed))
		}
	})
	if err != nil {
		return err
	}
	c.Start()

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()
	logger.Log.Info("Rate limit sweeper started", zap.String("schedule", schedule))
	return nil
}

func (s *MemoryStore) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}
