package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/blog-service/internal/events"
	"github.com/spec-kit/blog-service/internal/observability"
)

// AuditService turns auth domain events into structured audit log lines.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventLoginSucceeded, a.handleEvent)
	a.dispatcher.Subscribe(events.EventLoginFailed, a.handleEvent)
	a.dispatcher.Subscribe(events.EventTokenRevoked, a.handleEvent)
	a.dispatcher.Subscribe(events.EventSweepCompleted, a.handleSweep)
}

func (a *AuditService) handleEvent(_ context.Context, event events.Event) error {
	a.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("namespace", event.Namespace),
		zap.Int64("subject_id", event.SubjectID),
		zap.Any("payload", event.Payload))
	return nil
}

func (a *AuditService) handleSweep(_ context.Context, event events.Event) error {
	if payload, ok := event.Payload.(events.SweepCompletedPayload); ok {
		a.metrics.RecordSweep(payload.Purged)
	}
	a.logger.Info(string(event.Type), zap.Any("payload", event.Payload))
	return nil
}
