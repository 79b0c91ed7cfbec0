package services

import (
	"time"

	"github.com/go-co-op/gocron"

	"rag-knowledge-platform/internal/logger"
)

// Sweeper is anything with expired entries worth purging on a schedule.
type Sweeper interface {
	Sweep() int
}

// CacheJanitor periodically evicts expired entries from an in-process cache
// so memory is reclaimed even for keys nobody reads again. The Redis backend
// does not need this: TTLs expire server-side.
type CacheJanitor struct {
	scheduler *gocron.Scheduler
}

func NewCacheJanitor(cache Sweeper, interval time.Duration) (*CacheJanitor, error) {
	s := gocron.NewScheduler(time.UTC)
	_, err := s.Every(interval).Tag("cache_sweep").Do(func() {
		if removed := cache.Sweep(); removed > 0 {
			logger.Debug("Swept expired cache entries", "removed", removed)
		}
	})
	if err != nil {
		return nil, err
	}
	return &CacheJanitor{scheduler: s}, nil
}

func (j *CacheJanitor) Start() {
	j.scheduler.StartAsync()
}

func (j *CacheJanitor) Stop() {
	j.scheduler.Stop()
}
