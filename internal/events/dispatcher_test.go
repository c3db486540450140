package events_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/blog-service/internal/domain"
	"github.com/spec-kit/blog-service/internal/events"
)

func TestDispatcher_DeliversToAllSubscribers(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()

	var first, second int
	dispatcher.Subscribe(events.EventTokenRevoked, func(context.Context, events.Event) error {
		first++
		return errors.New("handler failed")
	})
	dispatcher.Subscribe(events.EventTokenRevoked, func(context.Context, events.Event) error {
		second++
		return nil
	})

	rec := &domain.RevocationRecord{Namespace: domain.NamespaceUser, SubjectID: 1, Reason: domain.RevocationReasonLogout}
	require.NoError(t, dispatcher.Publish(context.Background(), events.NewTokenRevokedEvent(rec)))

	// a failing handler does not stop delivery
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}

func TestDispatcher_IgnoresUnsubscribedTypes(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()

	var calls int
	dispatcher.Subscribe(events.EventLoginFailed, func(context.Context, events.Event) error {
		calls++
		return nil
	})

	require.NoError(t, dispatcher.Publish(context.Background(), events.NewSweepCompletedEvent(3, 10)))
	assert.Equal(t, 0, calls)
}
