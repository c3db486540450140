package domain

import "time"

// RevocationReason tags why a token was revoked.
type RevocationReason string

const (
	RevocationReasonLogout      RevocationReason = "logout"
	RevocationReasonAdminRevoke RevocationReason = "admin_revoke"
)

// RevocationRecord marks an issued token as no longer usable. The ledger
// row is redundant once ExpiresAt has passed (the token fails validation
// on expiry grounds alone) and becomes eligible for purge.
type RevocationRecord struct {
	ID        int64
	Token     string
	SubjectID int64
	Namespace Namespace
	Reason    RevocationReason
	ExpiresAt time.Time
	RevokedAt time.Time
}

// Expired reports whether the record is past its copied token expiry.
func (r *RevocationRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
