package otherus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StateExpiry is how long an issued OAuth state token stays valid.
const StateExpiry = 600 * time.Second

// Registration carries the signup payload.
type Registration struct {
	Email       string
	Password    string
	DisplayName string
	Bio         string
	Interests   []string
}

// ProfileUpdate is a partial profile mutation. Nil fields are left
// untouched; concurrent updates are last-write-wins.
type ProfileUpdate struct {
	DisplayName *string
	Bio         *string
	Interests   *[]string
	AvatarURL   *string
	Location    *string
	Website     *string
}

// Auth orchestrates the stores, the token issuer and the provider
// adapters. It holds no mutable state of its own, so one instance serves
// all concurrent requests.
type Auth struct {
	Users      UserStore
	Identities IdentityStore
	States     StateStore
	Tokens     *Issuer

	// StateTTL overrides StateExpiry when > 0.
	StateTTL time.Duration

	providers map[string]Provider
}

// NewAuth wires an Auth from its collaborators.
func NewAuth(users UserStore, identities IdentityStore, states StateStore, tokens *Issuer) *Auth {
	return &Auth{
		Users:      users,
		Identities: identities,
		States:     states,
		Tokens:     tokens,
		providers:  map[string]Provider{},
	}
}

// RegisterProvider makes an OAuth provider available for login.
func (a *Auth) RegisterProvider(p Provider) *Auth {
	a.providers[p.Name()] = p
	return a
}

// Provider returns a registered provider adapter, or ErrNotFound.
func (a *Auth) Provider(name string) (Provider, error) {
	p, ok := a.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", ErrNotFound, name)
	}
	return p, nil
}

func (a *Auth) stateTTL() time.Duration {
	if a.StateTTL > 0 {
		return a.StateTTL
	}
	return StateExpiry
}

// Register creates a password-based account and returns a bearer token
// for it. The email is bound before the record is written, so two
// concurrent registrations with the same email cannot both succeed.
func (a *Auth) Register(ctx context.Context, reg Registration) (string, *User, error) {
	email := NormalizeEmail(reg.Email)
	if !ValidEmail(email) {
		return "", nil, ErrInvalidEmail
	}
	if err := ValidatePassword(reg.Password); err != nil {
		return "", nil, err
	}

	hash, err := HashPassword(reg.Password)
	if err != nil {
		return "", nil, err
	}

	now := time.Now().UTC()
	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  reg.DisplayName,
		Bio:          reg.Bio,
		Interests:    reg.Interests,
		Provider:     "email",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := a.Identities.BindEmail(ctx, email, user.ID); err != nil {
		return "", nil, err
	}
	if err := a.Users.CreateUser(ctx, user); err != nil {
		// Release the binding so the email is not orphaned.
		if uerr := a.Identities.UnbindEmail(ctx, email); uerr != nil {
			slog.Warn("failed to unbind email after create failure", "email", email, "error", uerr)
		}
		return "", nil, err
	}

	token, err := a.Tokens.Issue(user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Login verifies email/password credentials and returns a bearer token.
// Unknown email, OAuth-only account and wrong password all fail with the
// identical ErrInvalidCredentials.
func (a *Auth) Login(ctx context.Context, email, password string) (string, *User, error) {
	userID, err := a.Identities.ResolveEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	user, err := a.Users.GetUserByID(ctx, userID)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if !VerifyPassword(password, user.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := a.Tokens.Issue(user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// OAuthStart begins an OAuth login: issues a single-use state token and
// returns the provider authorization URL carrying it.
func (a *Auth) OAuthStart(ctx context.Context, providerName string) (authURL, state string, err error) {
	p, err := a.Provider(providerName)
	if err != nil {
		return "", "", err
	}
	state, err = GenerateState()
	if err != nil {
		return "", "", err
	}
	if err := a.States.IssueState(ctx, state, p.Name(), a.stateTTL()); err != nil {
		return "", "", err
	}
	return p.AuthCodeURL(state), state, nil
}

// OAuthCallback completes an OAuth login. The state token is consumed
// before anything else happens; a missing, expired, reused or
// wrong-provider state rejects the whole callback.
func (a *Auth) OAuthCallback(ctx context.Context, providerName, code, state string) (string, *User, error) {
	p, err := a.Provider(providerName)
	if err != nil {
		return "", nil, err
	}

	issuedFor, err := a.States.ConsumeState(ctx, state)
	if err != nil {
		return "", nil, err
	}
	if issuedFor != p.Name() {
		return "", nil, ErrInvalidState
	}

	profile, err := p.Exchange(ctx, code)
	if errors.Is(err, ErrProvider) {
		// One internal retry before surfacing; provider hiccups are
		// common enough during the token exchange.
		profile, err = p.Exchange(ctx, code)
	}
	if err != nil {
		return "", nil, err
	}

	user, err := a.findOrCreateOAuthUser(ctx, p.Name(), profile)
	if err != nil {
		return "", nil, err
	}

	token, err := a.Tokens.Issue(user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// findOrCreateOAuthUser maps a provider profile to a local account,
// creating one on first login with that email.
func (a *Auth) findOrCreateOAuthUser(ctx context.Context, provider string, profile *ProviderProfile) (*User, error) {
	email := NormalizeEmail(profile.Email)

	userID, err := a.Identities.ResolveEmail(ctx, email)
	if err == nil {
		user, err := a.Users.GetUserByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if profile.AvatarURL != "" && user.AvatarURL != profile.AvatarURL {
			user.AvatarURL = profile.AvatarURL
			user.UpdatedAt = time.Now().UTC()
			if err := a.Users.SaveUser(ctx, user); err != nil {
				return nil, err
			}
		}
		return user, nil
	}

	now := time.Now().UTC()
	user := &User{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: profile.DisplayName,
		Bio:         profile.Bio,
		AvatarURL:   profile.AvatarURL,
		Location:    profile.Location,
		Website:     profile.Website,
		Provider:    provider,
		OAuthID:     profile.ProviderUserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.Identities.BindEmail(ctx, email, user.ID); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			// Lost a race against a concurrent first login; use the
			// account that won.
			if winnerID, rerr := a.Identities.ResolveEmail(ctx, email); rerr == nil {
				return a.Users.GetUserByID(ctx, winnerID)
			}
		}
		return nil, err
	}
	if err := a.Users.CreateUser(ctx, user); err != nil {
		if uerr := a.Identities.UnbindEmail(ctx, email); uerr != nil {
			slog.Warn("failed to unbind email after create failure", "email", email, "error", uerr)
		}
		return nil, err
	}
	return user, nil
}

// Authenticate verifies a bearer token and re-resolves its user. The
// re-check is mandatory: it is what turns an outstanding token for a
// deleted account into a failure instead of a false success.
func (a *Auth) Authenticate(ctx context.Context, token string) (*User, error) {
	userID, err := a.Tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	user, err := a.Users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// UpdateProfile applies a partial update to the caller's own record.
func (a *Auth) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*User, error) {
	user, err := a.Users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if update.DisplayName != nil {
		user.DisplayName = *update.DisplayName
	}
	if update.Bio != nil {
		user.Bio = *update.Bio
	}
	if update.Interests != nil {
		user.Interests = *update.Interests
	}
	if update.AvatarURL != nil {
		user.AvatarURL = *update.AvatarURL
	}
	if update.Location != nil {
		user.Location = *update.Location
	}
	if update.Website != nil {
		user.Website = *update.Website
	}
	user.UpdatedAt = time.Now().UTC()
	if err := a.Users.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteAccount removes the caller's record, its email binding and its
// membership in the searchable set.
func (a *Auth) DeleteAccount(ctx context.Context, userID string) error {
	user, err := a.Users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := a.Identities.UnbindEmail(ctx, user.Email); err != nil {
		return err
	}
	return a.Users.DeleteUser(ctx, userID)
}

// GetProfile returns the public view of any member.
func (a *Auth) GetProfile(ctx context.Context, userID string) (PublicProfile, error) {
	user, err := a.Users.GetUserByID(ctx, userID)
	if err != nil {
		return PublicProfile{}, err
	}
	return user.Public(), nil
}

// SearchUsers matches the query against display name, email, bio,
// interests and location of every member except the caller.
func (a *Auth) SearchUsers(ctx context.Context, selfID, query string) ([]PublicProfile, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return nil, ErrShortQuery
	}
	needle := strings.ToLower(query)

	ids, err := a.Users.ListUserIDs(ctx)
	if err != nil {
		return nil, err
	}

	results := []PublicProfile{}
	for _, id := range ids {
		if id == selfID {
			continue
		}
		user, err := a.Users.GetUserByID(ctx, id)
		if err != nil {
			// Deleted between enumeration and load; skip.
			continue
		}
		haystack := strings.ToLower(strings.Join([]string{
			user.DisplayName,
			user.Email,
			user.Bio,
			strings.Join(user.Interests, " "),
			user.Location,
		}, " "))
		if strings.Contains(haystack, needle) {
			results = append(results, user.Public())
		}
	}
	return results, nil
}
