package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"evalsum/internal/metrics"
)

// Sweeper periodically removes upload files left behind by requests that
// never reached cleanup, e.g. after a crash.
type Sweeper struct {
	dir    string
	ttl    time.Duration
	cron   *cron.Cron
	logger *zap.Logger
	now    func() time.Time
}

// NewSweeper schedules a sweep of dir every interval for files older than ttl.
func NewSweeper(dir string, interval, ttl time.Duration, logger *zap.Logger) (*Sweeper, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sweeper{
		dir:    dir,
		ttl:    ttl,
		cron:   cron.New(),
		logger: logger.Named("sweeper"),
		now:    time.Now,
	}
	spec := fmt.Sprintf("@every %s", interval)
	if _, err := s.cron.AddFunc(spec, func() {
		if _, err := s.Sweep(); err != nil {
			s.logger.Error("sweep upload dir", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule sweeper: %w", err)
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("sweeper started", zap.String("dir", s.dir), zap.Duration("ttl", s.ttl))
}

// Stop halts scheduling and waits for a running sweep, or until ctx is done.
func (s *Sweeper) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Sweep removes regular files in the upload dir older than the ttl and
// returns how many were removed.
func (s *Sweeper) Sweep() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("remove orphaned upload", zap.String("path", path), zap.Error(err))
			continue
		}
		removed++
	}
	metrics.RecordSwept(removed)
	if removed > 0 {
		s.logger.Info("orphaned uploads removed", zap.Int("count", removed))
	}
	return removed, nil
}
