package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/blog-service/internal/auth"
	"github.com/spec-kit/blog-service/internal/config"
	"github.com/spec-kit/blog-service/internal/domain"
	"github.com/spec-kit/blog-service/internal/events"
	"github.com/spec-kit/blog-service/internal/observability"
	"github.com/spec-kit/blog-service/internal/revocation"
	"github.com/spec-kit/blog-service/internal/service"
	apperrors "github.com/spec-kit/blog-service/pkg/util/errorutil"
)

const testSecret = "service-test-secret"

var errStoreDown = errors.New("store down")

// fakeAccounts is an in-memory AccountRepository with error injection.
type fakeAccounts struct {
	mu             sync.Mutex
	accounts       []*domain.Account
	findErr        error
	lastLoginErr   error
	lastLoginCalls int
}

func (f *fakeAccounts) FindByUsername(_ context.Context, ns domain.Namespace, username string) (*domain.Account, error) {
	return f.find(ns, func(a *domain.Account) bool { return a.Username == username })
}

func (f *fakeAccounts) FindByEmail(_ context.Context, ns domain.Namespace, email string) (*domain.Account, error) {
	return f.find(ns, func(a *domain.Account) bool { return a.Email == email })
}

func (f *fakeAccounts) GetByID(_ context.Context, ns domain.Namespace, id int64) (*domain.Account, error) {
	return f.find(ns, func(a *domain.Account) bool { return a.ID == id })
}

func (f *fakeAccounts) UpdateLastLogin(_ context.Context, _ domain.Namespace, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLoginCalls++
	return f.lastLoginErr
}

func (f *fakeAccounts) find(ns domain.Namespace, match func(*domain.Account) bool) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, a := range f.accounts {
		if a.Namespace == ns && match(a) {
			copied := *a
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

// fakeLedger is an in-memory RevocationLedger with error injection.
type fakeLedger struct {
	mu         sync.Mutex
	records    map[string]*domain.RevocationRecord
	nextID     int64
	failRecord bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: map[string]*domain.RevocationRecord{}}
}

func (f *fakeLedger) Record(_ context.Context, rec *domain.RevocationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRecord {
		return errStoreDown
	}
	f.nextID++
	rec.ID = f.nextID
	rec.RevokedAt = time.Now()
	stored := *rec
	f.records[rec.Token] = &stored
	return nil
}

func (f *fakeLedger) Contains(_ context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.records[token]
	return ok, nil
}

func (f *fakeLedger) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var purged int64
	for token, rec := range f.records {
		if rec.Expired(now) {
			delete(f.records, token)
			purged++
		}
	}
	return purged, nil
}

func (f *fakeLedger) LoadActive(_ context.Context, now time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var tokens []string
	for token, rec := range f.records {
		if !rec.Expired(now) {
			tokens = append(tokens, token)
		}
	}
	return tokens, nil
}

func (f *fakeLedger) EnsureSchema(_ context.Context) error { return nil }

func (f *fakeLedger) reason(token string) domain.RevocationReason {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[token]; ok {
		return rec.Reason
	}
	return ""
}

type fixture struct {
	svc      *service.AuthService
	accounts *fakeAccounts
	ledger   *fakeLedger
	cache    *revocation.Cache
	metrics  *observability.Metrics
	cfg      config.Config
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hashed, err := auth.HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	return hashed
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	accounts := &fakeAccounts{accounts: []*domain.Account{
		{
			ID: 1, Namespace: domain.NamespaceUser,
			Username: "alice", Email: "alice@example.com",
			PasswordHash: mustHash(t, "P@ss1234"),
			Status:       domain.AccountStatusActive, Role: domain.RoleUser,
			CreatedAt: time.Now(),
		},
		{
			ID: 2, Namespace: domain.NamespaceUser,
			Username: "bob", Email: "bob@example.com",
			PasswordHash: mustHash(t, "B0b-pass"),
			Status:       domain.AccountStatusDisabled, Role: domain.RoleUser,
			CreatedAt: time.Now(),
		},
		{
			ID: 1, Namespace: domain.NamespaceAdmin,
			Username: "root", Email: "root@example.com",
			PasswordHash: mustHash(t, "R00t-pass"),
			Status:       domain.AccountStatusActive, Role: domain.RoleSuperAdmin,
			CreatedAt: time.Now(),
		},
	}}

	ledger := newFakeLedger()
	cache := revocation.NewCache(ledger, nil, zap.NewNop(), time.Second)
	cache.Sync(context.Background())

	cfg := config.Config{Auth: config.AuthConfig{
		JWTSecret:             testSecret,
		AccessTokenTTLMinutes: 60,
		BcryptCost:            bcrypt.MinCost,
	}}

	metrics := observability.NewMetrics()
	svc := service.NewAuthService(cfg, service.AuthDependencies{
		AccountRepo:     accounts,
		RevocationCache: cache,
		Dispatcher:      events.NewInMemoryDispatcher(),
		Metrics:         metrics,
		Logger:          zap.NewNop(),
	})

	return &fixture{svc: svc, accounts: accounts, ledger: ledger, cache: cache, metrics: metrics, cfg: cfg}
}

func TestLogin_Success(t *testing.T) {
	fx := newFixture(t)

	view, token, expiresAt, err := fx.svc.Login(context.Background(), domain.NamespaceUser, "alice", "P@ss1234")
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))
	assert.Equal(t, "alice", view.Username)
	assert.Equal(t, domain.RoleUser, view.Role)
	assert.NotNil(t, view.LastLoginAt)
	assert.Equal(t, 1, fx.accounts.lastLoginCalls)
	assert.Equal(t, int64(1), fx.metrics.LoginCount(string(domain.NamespaceUser), true))

	claims, err := fx.svc.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, int64(1), claims.SubjectID)
}

func TestLogin_ViewNeverContainsSecret(t *testing.T) {
	fx := newFixture(t)

	view, _, _, err := fx.svc.Login(context.Background(), domain.NamespaceUser, "alice", "P@ss1234")
	require.NoError(t, err)

	encoded, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), "password")
	assert.NotContains(t, string(encoded), "hash")
}

func TestLogin_EmailIdentifier(t *testing.T) {
	fx := newFixture(t)

	view, _, _, err := fx.svc.Login(context.Background(), domain.NamespaceUser, "alice@example.com", "P@ss1234")
	require.NoError(t, err)
	assert.Equal(t, "alice", view.Username)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	fx := newFixture(t)

	_, _, _, wrongPass := fx.svc.Login(context.Background(), domain.NamespaceUser, "alice", "wrong")
	_, _, _, unknown := fx.svc.Login(context.Background(), domain.NamespaceUser, "mallory", "wrong")

	require.Error(t, wrongPass)
	require.Error(t, unknown)
	assert.True(t, apperrors.IsCode(wrongPass, "INVALID_CREDENTIALS"))
	assert.True(t, apperrors.IsCode(unknown, "INVALID_CREDENTIALS"))
	assert.Equal(t, wrongPass.Error(), unknown.Error())
}

func TestLogin_RepeatedFailuresDoNotLock(t *testing.T) {
	fx := newFixture(t)

	for i := 0; i < 3; i++ {
		_, _, _, err := fx.svc.Login(context.Background(), domain.NamespaceUser, "alice", "wrong")
		require.True(t, apperrors.IsCode(err, "INVALID_CREDENTIALS"))
	}
	assert.Equal(t, 0, fx.accounts.lastLoginCalls)

	_, _, _, err := fx.svc.Login(context.Background(), domain.NamespaceUser, "alice", "P@ss1234")
	assert.NoError(t, err)
}

func TestLogin_DisabledAccount(t *testing.T) {
	fx := newFixture(t)

	// correct password does not matter for a disabled account
	_, _, _, err := fx.svc.Login(context.Background(), domain.NamespaceUser, "bob", "B0b-pass")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "ACCOUNT_DISABLED"))
}

func TestLogin_StoreUnavailable(t *testing.T) {
	fx := newFixture(t)
	fx.accounts.findErr = errStoreDown

	_, _, _, err := fx.svc.Login(context.Background(), domain.NamespaceUser, "alice", "P@ss1234")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "STORE_UNAVAILABLE"))
}

func TestLogin_LastLoginFailureIsBestEffort(t *testing.T) {
	fx := newFixture(t)
	fx.accounts.lastLoginErr = errStoreDown

	view, token, _, err := fx.svc.Login(context.Background(), domain.NamespaceUser, "alice", "P@ss1234")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Nil(t, view.LastLoginAt)
}

func TestLogin_NamespacesAreDisjoint(t *testing.T) {
	fx := newFixture(t)

	// the admin "root" does not exist in the user namespace
	_, _, _, err := fx.svc.Login(context.Background(), domain.NamespaceUser, "root", "R00t-pass")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "INVALID_CREDENTIALS"))

	view, _, _, err := fx.svc.Login(context.Background(), domain.NamespaceAdmin, "root", "R00t-pass")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSuperAdmin, view.Role)
}

func TestLogout_RevokesImmediately(t *testing.T) {
	fx := newFixture(t)

	_, token, _, err := fx.svc.Login(context.Background(), domain.NamespaceUser, "alice", "P@ss1234")
	require.NoError(t, err)

	_, err = fx.svc.Authenticate(context.Background(), token)
	require.NoError(t, err)

	require.NoError(t, fx.svc.Logout(context.Background(), token))
	assert.Equal(t, domain.RevocationReasonLogout, fx.ledger.reason(token))

	// every subsequent call for the exact token string must fail
	for i := 0; i < 3; i++ {
		_, err = fx.svc.Authenticate(context.Background(), token)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))
	}
}

func TestLogout_IdempotentNoOps(t *testing.T) {
	fx := newFixture(t)

	assert.NoError(t, fx.svc.Logout(context.Background(), "not.a.token"))
	assert.NoError(t, fx.svc.Logout(context.Background(), signExpiredToken(t)))

	contains, err := fx.ledger.Contains(context.Background(), "not.a.token")
	require.NoError(t, err)
	assert.False(t, contains)

	// logging out twice is also fine
	_, token, _, err := fx.svc.Login(context.Background(), domain.NamespaceUser, "alice", "P@ss1234")
	require.NoError(t, err)
	require.NoError(t, fx.svc.Logout(context.Background(), token))
	assert.NoError(t, fx.svc.Logout(context.Background(), token))
}

func TestLogout_LedgerFailureIsSurfaced(t *testing.T) {
	fx := newFixture(t)

	_, token, _, err := fx.svc.Login(context.Background(), domain.NamespaceUser, "alice", "P@ss1234")
	require.NoError(t, err)

	fx.ledger.failRecord = true
	err = fx.svc.Logout(context.Background(), token)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "STORE_UNAVAILABLE"))

	// the token is NOT considered revoked after a failed ledger write
	_, err = fx.svc.Authenticate(context.Background(), token)
	assert.NoError(t, err)
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.svc.Authenticate(context.Background(), signExpiredToken(t))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))
}

func TestAuthenticate_MalformedToken(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.svc.Authenticate(context.Background(), "garbage")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))
}

func TestRestart_RevocationsSurviveCacheRebuild(t *testing.T) {
	fx := newFixture(t)

	_, token, _, err := fx.svc.Login(context.Background(), domain.NamespaceUser, "alice", "P@ss1234")
	require.NoError(t, err)
	require.NoError(t, fx.svc.Logout(context.Background(), token))

	// simulated restart: fresh cache rebuilt from the same durable ledger
	rebuilt := revocation.NewCache(fx.ledger, nil, zap.NewNop(), time.Second)
	rebuilt.Sync(context.Background())

	restarted := service.NewAuthService(fx.cfg, service.AuthDependencies{
		AccountRepo:     fx.accounts,
		RevocationCache: rebuilt,
		Metrics:         observability.NewMetrics(),
		Logger:          zap.NewNop(),
	})

	_, err = restarted.Authenticate(context.Background(), token)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))
}

func TestRevokeToken_AdministrativeInvalidation(t *testing.T) {
	fx := newFixture(t)

	_, token, _, err := fx.svc.Login(context.Background(), domain.NamespaceUser, "alice", "P@ss1234")
	require.NoError(t, err)

	require.NoError(t, fx.svc.RevokeToken(context.Background(), token))
	assert.Equal(t, domain.RevocationReasonAdminRevoke, fx.ledger.reason(token))

	_, err = fx.svc.Authenticate(context.Background(), token)
	require.Error(t, err)
}

func TestGetSafeAccount(t *testing.T) {
	fx := newFixture(t)

	view, err := fx.svc.GetSafeAccount(context.Background(), domain.NamespaceUser, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", view.Username)

	_, err = fx.svc.GetSafeAccount(context.Background(), domain.NamespaceUser, 99)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

// signExpiredToken builds an HS256 token with the service secret whose
// expiry has already passed.
func signExpiredToken(t *testing.T) string {
	t.Helper()
	claims := &auth.Claims{
		SubjectID: 1,
		Namespace: domain.NamespaceUser,
		Username:  "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}
