package domain

import "time"

// Namespace partitions end-user accounts from administrator accounts.
// The two classes share a shape but live in disjoint identity spaces.
type Namespace string

const (
	NamespaceUser  Namespace = "USER"
	NamespaceAdmin Namespace = "ADMIN"
)

// Valid reports whether the namespace is one of the known partitions.
func (n Namespace) Valid() bool {
	return n == NamespaceUser || n == NamespaceAdmin
}

// AccountStatus represents lifecycle states for an account.
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "ACTIVE"
	AccountStatusDisabled AccountStatus = "DISABLED"
)

// Role labels. End-users always carry RoleUser; administrators carry a
// free-text label, with these two observed in practice.
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// Account is the domain model for a credentialed identity, end-user or
// administrator depending on Namespace.
type Account struct {
	ID           int64
	Namespace    Namespace
	Username     string
	Email        string
	PasswordHash string
	Status       AccountStatus
	Role         string
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// Disabled reports whether the account must be refused authentication.
func (a *Account) Disabled() bool {
	return a.Status != AccountStatusActive
}

// SafeAccount is the outward view of an Account with the secret stripped.
type SafeAccount struct {
	ID          int64         `json:"id"`
	Namespace   Namespace     `json:"namespace"`
	Username    string        `json:"username"`
	Email       string        `json:"email"`
	Status      AccountStatus `json:"status"`
	Role        string        `json:"role"`
	CreatedAt   time.Time     `json:"created_at"`
	LastLoginAt *time.Time    `json:"last_login_at,omitempty"`
}

// SafeView returns the account without its password hash.
func (a *Account) SafeView() *SafeAccount {
	return &SafeAccount{
		ID:          a.ID,
		Namespace:   a.Namespace,
		Username:    a.Username,
		Email:       a.Email,
		Status:      a.Status,
		Role:        a.Role,
		CreatedAt:   a.CreatedAt,
		LastLoginAt: a.LastLoginAt,
	}
}
