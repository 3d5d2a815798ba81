package otherus_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/other-realm/otherus"
	"github.com/other-realm/otherus/stores/mem"
)

// stubProvider stands in for a real OAuth provider adapter.
type stubProvider struct {
	name     string
	profile  otherus.ProviderProfile
	err      error
	failures int // Exchange calls to fail before succeeding
	calls    int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) AuthCodeURL(state string) string {
	return "https://provider.example.com/auth?state=" + state
}

func (p *stubProvider) Exchange(_ context.Context, _ string) (*otherus.ProviderProfile, error) {
	p.calls++
	if p.failures > 0 {
		p.failures--
		return nil, otherus.ErrProvider
	}
	if p.err != nil {
		return nil, p.err
	}
	profile := p.profile
	return &profile, nil
}

func newTestAuth(t *testing.T) (*otherus.Auth, *mem.Store) {
	t.Helper()
	store := mem.New()
	issuer := otherus.NewIssuer("test-secret-key", "otherus-test", time.Hour)
	return otherus.NewAuth(store, store, store, issuer), store
}

func register(t *testing.T, auth *otherus.Auth, email, password string) (string, *otherus.User) {
	t.Helper()
	token, user, err := auth.Register(context.Background(), otherus.Registration{
		Email:       email,
		Password:    password,
		DisplayName: "Someone",
	})
	if err != nil {
		t.Fatalf("Register(%q) failed: %v", email, err)
	}
	return token, user
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	_, created := register(t, auth, "a@x.com", "pw123456")
	if created.Provider != "email" {
		t.Errorf("Provider = %q, want %q", created.Provider, "email")
	}
	if created.PasswordHash == "" || created.PasswordHash == "pw123456" {
		t.Error("password was not hashed")
	}

	token, user, err := auth.Login(ctx, "a@x.com", "pw123456")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if user.ID != created.ID {
		t.Errorf("Login resolved id %q, want %q", user.ID, created.ID)
	}

	verified, err := auth.Tokens.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if verified != created.ID {
		t.Errorf("token subject %q, want %q", verified, created.ID)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	auth, store := newTestAuth(t)
	ctx := context.Background()

	register(t, auth, "dup@x.com", "pw123456")

	_, _, err := auth.Register(ctx, otherus.Registration{Email: "dup@x.com", Password: "pw123456"})
	if !errors.Is(err, otherus.ErrDuplicateEmail) {
		t.Fatalf("second register error = %v, want ErrDuplicateEmail", err)
	}

	// Case and whitespace variants are the same address.
	_, _, err = auth.Register(ctx, otherus.Registration{Email: " DUP@X.COM ", Password: "pw123456"})
	if !errors.Is(err, otherus.ErrDuplicateEmail) {
		t.Fatalf("case-variant register error = %v, want ErrDuplicateEmail", err)
	}

	ids, err := store.ListUserIDs(ctx)
	if err != nil {
		t.Fatalf("ListUserIDs failed: %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("searchable set has %d ids after duplicate registrations, want 1", len(ids))
	}
}

func TestRegisterValidation(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	_, _, err := auth.Register(ctx, otherus.Registration{Email: "not-an-email", Password: "pw123456"})
	if !errors.Is(err, otherus.ErrInvalidEmail) {
		t.Errorf("bad email error = %v, want ErrInvalidEmail", err)
	}

	_, _, err = auth.Register(ctx, otherus.Registration{Email: "ok@x.com", Password: "short"})
	if !errors.Is(err, otherus.ErrWeakPassword) {
		t.Errorf("short password error = %v, want ErrWeakPassword", err)
	}
}

func TestLoginFailuresIndistinguishable(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	register(t, auth, "a@x.com", "pw123456")

	_, _, wrongPw := auth.Login(ctx, "a@x.com", "wrong-password")
	_, _, noUser := auth.Login(ctx, "nobody@x.com", "pw123456")

	if !errors.Is(wrongPw, otherus.ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredentials", wrongPw)
	}
	if !errors.Is(noUser, otherus.ErrInvalidCredentials) {
		t.Errorf("unknown email error = %v, want ErrInvalidCredentials", noUser)
	}
	if wrongPw.Error() != noUser.Error() {
		t.Errorf("failure messages differ: %q vs %q", wrongPw, noUser)
	}
}

func TestAuthenticate(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	token, created := register(t, auth, "a@x.com", "pw123456")

	user, err := auth.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if user.ID != created.ID {
		t.Errorf("Authenticate resolved %q, want %q", user.ID, created.ID)
	}

	if _, err := auth.Authenticate(ctx, "garbage"); !errors.Is(err, otherus.ErrUnauthorized) {
		t.Errorf("garbage token error = %v, want ErrUnauthorized", err)
	}
}

func TestAuthenticateAfterDelete(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	token, created := register(t, auth, "a@x.com", "pw123456")
	if err := auth.DeleteAccount(ctx, created.ID); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}

	// The token still has a valid signature and expiry; the mandatory
	// user re-check is what must reject it.
	if _, err := auth.Authenticate(ctx, token); !errors.Is(err, otherus.ErrUnauthorized) {
		t.Errorf("post-delete Authenticate error = %v, want ErrUnauthorized", err)
	}
}

func TestDeleteAccountCleansUp(t *testing.T) {
	auth, store := newTestAuth(t)
	ctx := context.Background()

	_, created := register(t, auth, "a@x.com", "pw123456")
	if err := auth.DeleteAccount(ctx, created.ID); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}

	if _, err := store.GetUserByID(ctx, created.ID); !errors.Is(err, otherus.ErrNotFound) {
		t.Errorf("user record still readable after delete: %v", err)
	}
	if _, err := store.ResolveEmail(ctx, "a@x.com"); !errors.Is(err, otherus.ErrNotFound) {
		t.Errorf("email still resolvable after delete: %v", err)
	}
	ids, _ := store.ListUserIDs(ctx)
	if len(ids) != 0 {
		t.Errorf("searchable set still has %d ids after delete", len(ids))
	}

	// The email is free to register again.
	register(t, auth, "a@x.com", "pw123456")
}

func TestUpdateProfile(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	_, created := register(t, auth, "a@x.com", "pw123456")

	bio := "hello there"
	interests := []string{"hiking", "chess"}
	updated, err := auth.UpdateProfile(ctx, created.ID, otherus.ProfileUpdate{
		Bio:       &bio,
		Interests: &interests,
	})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if updated.Bio != "hello there" {
		t.Errorf("Bio = %q", updated.Bio)
	}
	if len(updated.Interests) != 2 {
		t.Errorf("Interests = %v", updated.Interests)
	}
	// Untouched fields survive a partial update.
	if updated.DisplayName != created.DisplayName {
		t.Errorf("DisplayName changed: %q -> %q", created.DisplayName, updated.DisplayName)
	}
	if updated.Email != created.Email {
		t.Errorf("Email changed: %q -> %q", created.Email, updated.Email)
	}

	if _, err := auth.UpdateProfile(ctx, "no-such-id", otherus.ProfileUpdate{Bio: &bio}); !errors.Is(err, otherus.ErrNotFound) {
		t.Errorf("update of missing user error = %v, want ErrNotFound", err)
	}
}

func TestSearchUsers(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	_, self := register(t, auth, "self@x.com", "pw123456")

	_, alice, err := auth.Register(ctx, otherus.Registration{
		Email: "alice@x.com", Password: "pw123456", DisplayName: "Alice",
		Bio: "likes climbing", Interests: []string{"bouldering"},
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	_, _, err = auth.Register(ctx, otherus.Registration{
		Email: "bob@x.com", Password: "pw123456", DisplayName: "Bob",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tests := []struct {
		name  string
		query string
		want  []string // expected user ids
	}{
		{"match display name", "alice", []string{alice.ID}},
		{"match bio", "climbing", []string{alice.ID}},
		{"match interests", "boulder", []string{alice.ID}},
		{"case insensitive", "ALICE", []string{alice.ID}},
		{"no match", "zzzz", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := auth.SearchUsers(ctx, self.ID, tt.query)
			if err != nil {
				t.Fatalf("SearchUsers failed: %v", err)
			}
			if len(results) != len(tt.want) {
				t.Fatalf("got %d results, want %d", len(results), len(tt.want))
			}
			for i, want := range tt.want {
				if results[i].ID != want {
					t.Errorf("result %d id = %q, want %q", i, results[i].ID, want)
				}
			}
		})
	}

	// The caller never shows up in their own results.
	results, err := auth.SearchUsers(ctx, self.ID, "x.com")
	if err != nil {
		t.Fatalf("SearchUsers failed: %v", err)
	}
	for _, r := range results {
		if r.ID == self.ID {
			t.Error("search results include the caller")
		}
	}

	if _, err := auth.SearchUsers(ctx, self.ID, " a "); !errors.Is(err, otherus.ErrShortQuery) {
		t.Errorf("short query error = %v, want ErrShortQuery", err)
	}
}

func TestSearchResultsArePublic(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	_, self := register(t, auth, "self@x.com", "pw123456")
	register(t, auth, "alice@x.com", "pw123456")

	results, err := auth.SearchUsers(ctx, self.ID, "alice")
	if err != nil {
		t.Fatalf("SearchUsers failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	// PublicProfile carries no email field; make sure nothing sneaks
	// through the display name either.
	if strings.Contains(results[0].DisplayName, "@") {
		t.Errorf("public profile leaks an address: %q", results[0].DisplayName)
	}
}

func TestOAuthStart(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	provider := &stubProvider{name: "google"}
	auth.RegisterProvider(provider)

	authURL, state, err := auth.OAuthStart(ctx, "google")
	if err != nil {
		t.Fatalf("OAuthStart failed: %v", err)
	}
	if state == "" {
		t.Fatal("empty state token")
	}
	if !strings.Contains(authURL, state) {
		t.Errorf("auth URL %q does not embed state %q", authURL, state)
	}

	if _, _, err := auth.OAuthStart(ctx, "myspace"); !errors.Is(err, otherus.ErrNotFound) {
		t.Errorf("unknown provider error = %v, want ErrNotFound", err)
	}
}

func TestOAuthCallbackStateChecks(t *testing.T) {
	auth, store := newTestAuth(t)
	ctx := context.Background()

	google := &stubProvider{name: "google", profile: otherus.ProviderProfile{
		ProviderUserID: "g-1", Email: "oauth@x.com", DisplayName: "OAuth User",
	}}
	github := &stubProvider{name: "github", profile: otherus.ProviderProfile{
		ProviderUserID: "gh-1", Email: "oauth@x.com", DisplayName: "OAuth User",
	}}
	auth.RegisterProvider(google).RegisterProvider(github)

	t.Run("unknown state", func(t *testing.T) {
		_, _, err := auth.OAuthCallback(ctx, "google", "code", "bogus")
		if !errors.Is(err, otherus.ErrInvalidState) {
			t.Errorf("error = %v, want ErrInvalidState", err)
		}
	})

	t.Run("state is single use", func(t *testing.T) {
		_, state, err := auth.OAuthStart(ctx, "google")
		if err != nil {
			t.Fatalf("OAuthStart failed: %v", err)
		}
		if _, _, err := auth.OAuthCallback(ctx, "google", "code", state); err != nil {
			t.Fatalf("first callback failed: %v", err)
		}
		_, _, err = auth.OAuthCallback(ctx, "google", "code", state)
		if !errors.Is(err, otherus.ErrInvalidState) {
			t.Errorf("second callback error = %v, want ErrInvalidState", err)
		}
	})

	t.Run("state bound to provider", func(t *testing.T) {
		_, state, err := auth.OAuthStart(ctx, "google")
		if err != nil {
			t.Fatalf("OAuthStart failed: %v", err)
		}
		_, _, err = auth.OAuthCallback(ctx, "github", "code", state)
		if !errors.Is(err, otherus.ErrInvalidState) {
			t.Errorf("cross-provider callback error = %v, want ErrInvalidState", err)
		}
	})

	t.Run("expired state", func(t *testing.T) {
		_, state, err := auth.OAuthStart(ctx, "google")
		if err != nil {
			t.Fatalf("OAuthStart failed: %v", err)
		}
		store.SetClock(func() time.Time { return time.Now().Add(601 * time.Second) })
		defer store.SetClock(time.Now)

		_, _, err = auth.OAuthCallback(ctx, "google", "code", state)
		if !errors.Is(err, otherus.ErrInvalidState) {
			t.Errorf("expired state error = %v, want ErrInvalidState", err)
		}
	})
}

func TestOAuthCallbackFindOrCreate(t *testing.T) {
	auth, store := newTestAuth(t)
	ctx := context.Background()

	provider := &stubProvider{name: "github", profile: otherus.ProviderProfile{
		ProviderUserID: "42",
		Email:          "Dev@X.com",
		DisplayName:    "Dev",
		AvatarURL:      "https://avatars.example.com/v1",
		Bio:            "builds things",
		Location:       "somewhere",
	}}
	auth.RegisterProvider(provider)

	_, state, _ := auth.OAuthStart(ctx, "github")
	token, user, err := auth.OAuthCallback(ctx, "github", "code", state)
	if err != nil {
		t.Fatalf("callback failed: %v", err)
	}
	if user.Email != "dev@x.com" {
		t.Errorf("email not normalized: %q", user.Email)
	}
	if user.PasswordHash != "" {
		t.Error("OAuth-only account has a password hash")
	}
	if user.Provider != "github" || user.OAuthID != "42" {
		t.Errorf("provider fields = %q/%q", user.Provider, user.OAuthID)
	}
	if user.Bio != "builds things" {
		t.Errorf("Bio = %q", user.Bio)
	}
	if got, err := auth.Tokens.Verify(token); err != nil || got != user.ID {
		t.Errorf("token subject = %q (%v), want %q", got, err, user.ID)
	}

	// Second login with the same email reuses the account and picks up
	// the new avatar.
	provider.profile.AvatarURL = "https://avatars.example.com/v2"
	_, state, _ = auth.OAuthStart(ctx, "github")
	_, again, err := auth.OAuthCallback(ctx, "github", "code", state)
	if err != nil {
		t.Fatalf("second callback failed: %v", err)
	}
	if again.ID != user.ID {
		t.Errorf("second login created a new account: %q vs %q", again.ID, user.ID)
	}
	if again.AvatarURL != "https://avatars.example.com/v2" {
		t.Errorf("avatar not refreshed: %q", again.AvatarURL)
	}

	ids, _ := store.ListUserIDs(ctx)
	if len(ids) != 1 {
		t.Errorf("searchable set has %d ids, want 1", len(ids))
	}
}

func TestOAuthCallbackProviderErrors(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	t.Run("one transient failure is retried", func(t *testing.T) {
		provider := &stubProvider{name: "google", failures: 1, profile: otherus.ProviderProfile{
			ProviderUserID: "g-1", Email: "a@x.com", DisplayName: "A",
		}}
		auth.RegisterProvider(provider)

		_, state, _ := auth.OAuthStart(ctx, "google")
		if _, _, err := auth.OAuthCallback(ctx, "google", "code", state); err != nil {
			t.Fatalf("callback failed despite retry: %v", err)
		}
		if provider.calls != 2 {
			t.Errorf("Exchange called %d times, want 2", provider.calls)
		}
	})

	t.Run("persistent failure surfaces", func(t *testing.T) {
		provider := &stubProvider{name: "github", failures: 2}
		auth.RegisterProvider(provider)

		_, state, _ := auth.OAuthStart(ctx, "github")
		_, _, err := auth.OAuthCallback(ctx, "github", "code", state)
		if !errors.Is(err, otherus.ErrProvider) {
			t.Errorf("error = %v, want ErrProvider", err)
		}
	})
}

func TestLoginOAuthOnlyAccount(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	provider := &stubProvider{name: "google", profile: otherus.ProviderProfile{
		ProviderUserID: "g-1", Email: "oauth@x.com", DisplayName: "OAuth User",
	}}
	auth.RegisterProvider(provider)

	_, state, _ := auth.OAuthStart(ctx, "google")
	if _, _, err := auth.OAuthCallback(ctx, "google", "code", state); err != nil {
		t.Fatalf("callback failed: %v", err)
	}

	// No password is set, so password login must fail generically.
	_, _, err := auth.Login(ctx, "oauth@x.com", "pw123456")
	if !errors.Is(err, otherus.ErrInvalidCredentials) {
		t.Errorf("error = %v, want ErrInvalidCredentials", err)
	}
}
