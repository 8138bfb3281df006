package account

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound           = errors.New("User not found")
	ErrDuplicateAccount   = errors.New("Email or username already exists")
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrAccountInactive    = errors.New("Account inactive")
	ErrForbidden          = errors.New("Access denied: insufficient role")
)

// Store is the credential store. Adapters exist per storage technology;
// the service logic never depends on which one is used.
type Store interface {
	// FindByEmailOrUsername returns an active account matching either identifier, or ErrNotFound.
	FindByEmailOrUsername(ctx context.Context, email, username string) (Account, error)
	// FindByIdentifier matches the identifier against email and username.
	// An active match wins; otherwise the most recently created inactive match is returned.
	FindByIdentifier(ctx context.Context, identifier string) (Account, error)
	GetIdentity(ctx context.Context, id string) (Identity, error)
	// InsertAccountAndProfile writes the account and its role-specific profile in one transaction,
	// recounting the student's class if any. Uniqueness violations surface as ErrDuplicateAccount.
	// An empty Account.ID is generated; a set one is kept.
	InsertAccountAndProfile(ctx context.Context, idt Identity) (Identity, error)
	// UpdateRole writes the audit row, the new role and the profile admin flag in one transaction.
	UpdateRole(ctx context.Context, audit RoleChangeAudit) error
	// SetActive flips the active flag and recounts the class of a student in the same transaction.
	SetActive(ctx context.Context, id string, active bool, at time.Time) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id string, hash []byte, at time.Time) error
	ListRoleChanges(ctx context.Context, accountID string) ([]RoleChangeAudit, error)
}
