package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/blog-service/internal/auth"
	"github.com/spec-kit/blog-service/internal/config"
	"github.com/spec-kit/blog-service/internal/domain"
	"github.com/spec-kit/blog-service/internal/events"
	"github.com/spec-kit/blog-service/internal/observability"
	"github.com/spec-kit/blog-service/internal/repository"
	"github.com/spec-kit/blog-service/internal/revocation"
	apperrors "github.com/spec-kit/blog-service/pkg/util/errorutil"
)

// AuthService orchestrates login, logout and request-time authentication
// over the credential store, token manager and revocation cache.
type AuthService struct {
	accounts   repository.AccountRepository
	cache      *revocation.Cache
	tokenMgr   *auth.TokenManager
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// AuthDependencies encapsulates collaborator requirements for the service.
type AuthDependencies struct {
	AccountRepo     repository.AccountRepository
	RevocationCache *revocation.Cache
	Dispatcher      events.Dispatcher
	Metrics         *observability.Metrics
	Logger          *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		accounts:   deps.AccountRepo,
		cache:      deps.RevocationCache,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// Login verifies credentials within a namespace and issues a session token.
// The identifier is a username or, when it contains '@', an email address.
// Unknown accounts and wrong passwords yield the same outward error.
func (s *AuthService) Login(ctx context.Context, ns domain.Namespace, identifier, password string) (*domain.SafeAccount, string, time.Time, error) {
	if !ns.Valid() {
		return nil, "", time.Time{}, apperrors.NewValidationError("unknown account namespace", nil)
	}

	account, err := s.findAccount(ctx, ns, identifier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, s.refuseLogin(ctx, ns, identifier, "not_found")
		}
		return nil, "", time.Time{}, apperrors.NewStoreUnavailable(err)
	}

	if account.Disabled() {
		s.metrics.RecordLogin(string(ns), false)
		s.publish(ctx, events.NewLoginFailedEvent(ns, identifier, "disabled"))
		return nil, "", time.Time{}, apperrors.NewAccountDisabled()
	}

	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, s.refuseLogin(ctx, ns, identifier, "bad_password")
	}

	// Best-effort: a failed timestamp update never fails the login.
	now := time.Now()
	if err := s.accounts.UpdateLastLogin(ctx, ns, account.ID); err != nil {
		s.logger.Warn("last login update failed",
			zap.String("namespace", string(ns)),
			zap.Int64("account_id", account.ID),
			zap.Error(err))
	} else {
		account.LastLoginAt = &now
	}

	token, expiresAt, err := s.tokenMgr.GenerateToken(account)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}

	s.metrics.RecordLogin(string(ns), true)
	s.publish(ctx, events.NewLoginSucceededEvent(account))
	return account.SafeView(), token, expiresAt, nil
}

// Logout revokes the presented token. Malformed and already-expired tokens
// are a no-op success: there is nothing left to revoke.
func (s *AuthService) Logout(ctx context.Context, tokenStr string) error {
	return s.revoke(ctx, tokenStr, domain.RevocationReasonLogout)
}

// RevokeToken invalidates an arbitrary token administratively. Same
// idempotency contract as Logout.
func (s *AuthService) RevokeToken(ctx context.Context, tokenStr string) error {
	return s.revoke(ctx, tokenStr, domain.RevocationReasonAdminRevoke)
}

// Authenticate verifies the token signature and expiry, then checks the
// revocation cache. Both failures yield a uniform Unauthorized outward; the
// distinction is kept only in logs.
func (s *AuthService) Authenticate(ctx context.Context, tokenStr string) (*auth.Claims, error) {
	claims, err := s.tokenMgr.ParseToken(tokenStr)
	if err != nil {
		s.logger.Debug("token rejected", zap.String("cause", "parse"), zap.Error(err))
		return nil, apperrors.NewUnauthorized("invalid token")
	}

	if s.cache.IsRevoked(ctx, tokenStr) {
		s.logger.Debug("token rejected",
			zap.String("cause", "revoked"),
			zap.Int64("account_id", claims.SubjectID))
		return nil, apperrors.NewUnauthorized("invalid token")
	}

	return claims, nil
}

// GetSafeAccount returns the sanitized view of an account.
func (s *AuthService) GetSafeAccount(ctx context.Context, ns domain.Namespace, id int64) (*domain.SafeAccount, error) {
	account, err := s.accounts.GetByID(ctx, ns, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("account", nil)
		}
		return nil, apperrors.NewStoreUnavailable(err)
	}
	return account.SafeView(), nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) findAccount(ctx context.Context, ns domain.Namespace, identifier string) (*domain.Account, error) {
	if strings.Contains(identifier, "@") {
		return s.accounts.FindByEmail(ctx, ns, identifier)
	}
	return s.accounts.FindByUsername(ctx, ns, identifier)
}

func (s *AuthService) refuseLogin(ctx context.Context, ns domain.Namespace, identifier, cause string) error {
	s.metrics.RecordLogin(string(ns), false)
	s.publish(ctx, events.NewLoginFailedEvent(ns, identifier, cause))
	return apperrors.NewInvalidCredentials()
}

func (s *AuthService) revoke(ctx context.Context, tokenStr string, reason domain.RevocationReason) error {
	claims, err := s.tokenMgr.ParseToken(tokenStr)
	if err != nil {
		s.logger.Debug("revocation skipped for unusable token", zap.Error(err))
		return nil
	}

	rec := &domain.RevocationRecord{
		Token:     tokenStr,
		SubjectID: claims.SubjectID,
		Namespace: claims.Namespace,
		Reason:    reason,
		ExpiresAt: claims.ExpiresAt.Time,
	}

	if err := s.cache.Revoke(ctx, rec); err != nil {
		// The token is NOT revoked; the caller must retry.
		return apperrors.NewStoreUnavailable(err)
	}

	s.metrics.RecordRevocation(string(reason))
	s.publish(ctx, events.NewTokenRevokedEvent(rec))
	return nil
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}
