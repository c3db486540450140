package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/blog-service/internal/domain"
)

func TestAccountQuery_DegradesWithoutLastLoginColumn(t *testing.T) {
	repo := &accountRepository{lastLoginSupported: map[domain.Namespace]bool{
		domain.NamespaceUser:  false,
		domain.NamespaceAdmin: true,
	}}

	degraded := repo.accountQuery(domain.NamespaceUser, "users", "username=$1")
	assert.Contains(t, degraded, "NULL::timestamptz AS last_login_at")
	assert.Contains(t, degraded, "FROM users WHERE username=$1")

	full := repo.accountQuery(domain.NamespaceAdmin, "admins", "id=$1")
	assert.Contains(t, full, "created_at, last_login_at")
	assert.NotContains(t, full, "NULL::")
}

func TestUpdateLastLogin_NoOpWhenColumnMissing(t *testing.T) {
	// nil pool: a no-op is the only way this can return without panicking,
	// proving no statement is issued when the column is absent
	repo := &accountRepository{
		logger:             zap.NewNop(),
		lastLoginSupported: map[domain.Namespace]bool{domain.NamespaceUser: false},
	}

	require.NoError(t, repo.UpdateLastLogin(context.Background(), domain.NamespaceUser, 1))
}

func TestTableFor(t *testing.T) {
	tests := []struct {
		name      string
		ns        domain.Namespace
		wantTable string
		wantErr   bool
	}{
		{"user_namespace", domain.NamespaceUser, "users", false},
		{"admin_namespace", domain.NamespaceAdmin, "admins", false},
		{"unknown_namespace", domain.Namespace("GUEST"), "", true},
		{"empty_namespace", domain.Namespace(""), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := tableFor(tt.ns)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTable, table)
		})
	}
}
