package revocation_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/blog-service/internal/events"
	"github.com/spec-kit/blog-service/internal/revocation"
)

func TestSweeper_PurgesAndReloadsPeriodically(t *testing.T) {
	ledger := newFakeLedger()
	cache := revocation.NewCache(ledger, nil, zap.NewNop(), time.Second)
	cache.Sync(context.Background())

	require.NoError(t, cache.Revoke(context.Background(), record("tok-sweep")))
	ledger.expire("tok-sweep")

	var sweeps atomic.Int64
	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.Subscribe(events.EventSweepCompleted, func(context.Context, events.Event) error {
		sweeps.Add(1)
		return nil
	})

	sweeper := revocation.NewSweeper(cache, dispatcher, zap.NewNop(), 10*time.Millisecond)
	sweeper.Start()
	defer sweeper.Stop()

	require.Eventually(t, func() bool {
		return sweeps.Load() >= 1 && !cache.IsRevoked(context.Background(), "tok-sweep")
	}, time.Second, 5*time.Millisecond)

	durable, err := ledger.Contains(context.Background(), "tok-sweep")
	require.NoError(t, err)
	assert.False(t, durable)
}

func TestSweeper_StopHaltsDeterministically(t *testing.T) {
	ledger := newFakeLedger()
	cache := revocation.NewCache(ledger, nil, zap.NewNop(), time.Second)
	cache.Sync(context.Background())

	sweeper := revocation.NewSweeper(cache, nil, zap.NewNop(), 5*time.Millisecond)
	sweeper.Start()
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		sweeper.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}

	// Stop is idempotent
	sweeper.Stop()
}
