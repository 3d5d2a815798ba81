package otherus

import (
	"context"
	"strings"
	"time"
)

// User is the canonical account record. One record per member; the email
// index and the searchable id set always mirror the set of User records.
type User struct {
	ID           string    `json:"user_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash,omitempty"`
	DisplayName  string    `json:"display_name"`
	Bio          string    `json:"bio"`
	Interests    []string  `json:"interests"`
	AvatarURL    string    `json:"avatar_url"`
	Location     string    `json:"location"`
	Website      string    `json:"website"`
	Provider     string    `json:"provider"` // "email", "google" or "github"
	OAuthID      string    `json:"oauth_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PublicProfile is the view of a user exposed to other members. It carries
// no email and no credential material.
type PublicProfile struct {
	ID          string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio"`
	Interests   []string  `json:"interests"`
	AvatarURL   string    `json:"avatar_url"`
	Location    string    `json:"location"`
	Website     string    `json:"website"`
	Provider    string    `json:"provider"`
	CreatedAt   time.Time `json:"created_at"`
}

// Public returns the shareable view of the user.
func (u *User) Public() PublicProfile {
	interests := u.Interests
	if interests == nil {
		interests = []string{}
	}
	return PublicProfile{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Bio:         u.Bio,
		Interests:   interests,
		AvatarURL:   u.AvatarURL,
		Location:    u.Location,
		Website:     u.Website,
		Provider:    u.Provider,
		CreatedAt:   u.CreatedAt,
	}
}

// NormalizeEmail lowercases and trims an email address. Bind and resolve
// must use the same normalization or duplicate accounts slip through.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ProviderProfile is the normalized identity an OAuth provider adapter
// returns from an authorization-code exchange.
type ProviderProfile struct {
	ProviderUserID string
	Email          string
	DisplayName    string
	AvatarURL      string
	Bio            string
	Location       string
	Website        string
}

// Provider abstracts one external OAuth identity provider. The auth
// layer treats all providers uniformly through this interface; concrete
// adapters live in the oauth2 package.
type Provider interface {
	// Name is the provider key used in routes and user records.
	Name() string

	// AuthCodeURL builds the provider authorization URL embedding
	// client id, redirect URI, scopes and the CSRF state token.
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for the provider profile.
	// Any non-success provider response fails with ErrProvider; the
	// error text never carries client secrets or access tokens.
	Exchange(ctx context.Context, code string) (*ProviderProfile, error)
}

// UserStore persists user records keyed by id.
type UserStore interface {
	// CreateUser stores a new user record. The record's id must be unused.
	CreateUser(ctx context.Context, user *User) error

	// GetUserByID retrieves a user by id. Returns ErrNotFound on a miss.
	GetUserByID(ctx context.Context, userID string) (*User, error)

	// SaveUser overwrites an existing user record (last write wins).
	SaveUser(ctx context.Context, user *User) error

	// DeleteUser removes the record and its membership in the searchable set.
	DeleteUser(ctx context.Context, userID string) error

	// ListUserIDs returns the ids of all existing users, for search
	// enumeration only. Never use this for authorization decisions.
	ListUserIDs(ctx context.Context) ([]string, error)
}

// IdentityStore maps normalized emails to user ids and enforces email
// uniqueness across accounts.
type IdentityStore interface {
	// ResolveEmail returns the user id bound to the email, or ErrNotFound.
	ResolveEmail(ctx context.Context, email string) (string, error)

	// BindEmail atomically binds an email to a user id. Returns
	// ErrDuplicateEmail if the email is already bound - this is the
	// guard that makes concurrent registrations safe.
	BindEmail(ctx context.Context, email, userID string) error

	// UnbindEmail removes the email binding. Unbinding an unknown email
	// is not an error.
	UnbindEmail(ctx context.Context, email string) error
}

// StateStore issues and consumes the one-time CSRF tokens that tie an
// OAuth authorization request to its callback.
type StateStore interface {
	// IssueState stores a state token with the provider it was issued
	// for. The entry expires after ttl; expiry is the backing store's
	// job, no scanning happens here.
	IssueState(ctx context.Context, state, provider string, ttl time.Duration) error

	// ConsumeState atomically checks and deletes a state token,
	// returning the provider it was issued for. A missing, expired or
	// already-consumed token returns ErrInvalidState. First caller
	// wins; a concurrent second consume must lose.
	ConsumeState(ctx context.Context, state string) (string, error)
}
