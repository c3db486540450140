package revocation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/blog-service/internal/events"
)

// Sweeper periodically purges expired revocation rows and reloads the
// in-memory set, bounding ledger growth and healing any drift between cache
// and ledger. It is supervised: Start and Stop are tied to process
// lifecycle so it never outlives the component under test.
type Sweeper struct {
	cache      *Cache
	dispatcher events.Dispatcher
	logger     *zap.Logger
	interval   time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewSweeper builds a sweeper. dispatcher may be nil.
func NewSweeper(cache *Cache, dispatcher events.Dispatcher, logger *zap.Logger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Sweeper{
		cache:      cache,
		dispatcher: dispatcher,
		logger:     logger,
		interval:   interval,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (s *Sweeper) Start() {
	s.startOnce.Do(func() {
		go s.run()
	})
}

// Stop halts the loop and waits for the in-flight sweep, if any, to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh
	})
}

func (s *Sweeper) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	purged, err := s.cache.Reload(context.Background())
	if err != nil {
		s.logger.Error("revocation sweep failed", zap.Error(err))
		return
	}

	s.logger.Info("revocation sweep completed",
		zap.Int64("purged", purged),
		zap.Int("active", s.cache.Len()))

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(context.Background(), events.NewSweepCompletedEvent(purged, s.cache.Len()))
	}
}
