package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/blog-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLoginSucceeded EventType = "auth_login_succeeded"
	EventLoginFailed    EventType = "auth_login_failed"
	EventTokenRevoked   EventType = "auth_token_revoked"
	EventSweepCompleted EventType = "auth_sweep_completed"
)

// Event represents a domain event emitted by the auth subsystem. Payloads
// never carry passwords, hashes or full token strings.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Namespace string      `json:"namespace,omitempty"`
	SubjectID int64       `json:"subject_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// LoginFailedPayload payload.
type LoginFailedPayload struct {
	Identifier string `json:"identifier"`
	Code       string `json:"code"`
}

// TokenRevokedPayload payload.
type TokenRevokedPayload struct {
	Reason    domain.RevocationReason `json:"reason"`
	ExpiresAt time.Time               `json:"expires_at"`
}

// SweepCompletedPayload payload.
type SweepCompletedPayload struct {
	Purged int64 `json:"purged"`
	Active int   `json:"active"`
}

// NewLoginSucceededEvent builds the event for a completed login.
func NewLoginSucceededEvent(account *domain.Account) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      EventLoginSucceeded,
		Namespace: string(account.Namespace),
		SubjectID: account.ID,
		Timestamp: time.Now(),
	}
}

// NewLoginFailedEvent builds the event for a refused login.
func NewLoginFailedEvent(ns domain.Namespace, identifier, code string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      EventLoginFailed,
		Namespace: string(ns),
		Timestamp: time.Now(),
		Payload:   LoginFailedPayload{Identifier: identifier, Code: code},
	}
}

// NewTokenRevokedEvent builds the event for a durable revocation.
func NewTokenRevokedEvent(rec *domain.RevocationRecord) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      EventTokenRevoked,
		Namespace: string(rec.Namespace),
		SubjectID: rec.SubjectID,
		Timestamp: time.Now(),
		Payload:   TokenRevokedPayload{Reason: rec.Reason, ExpiresAt: rec.ExpiresAt},
	}
}

// NewSweepCompletedEvent builds the event for a finished revocation sweep.
func NewSweepCompletedEvent(purged int64, active int) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      EventSweepCompleted,
		Timestamp: time.Now(),
		Payload:   SweepCompletedPayload{Purged: purged, Active: active},
	}
}
