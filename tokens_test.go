package otherus_test

import (
	"errors"
	"testing"
	"time"

	"github.com/other-realm/otherus"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	issuer := otherus.NewIssuer("test-secret-key", "otherus-test", time.Hour)

	token, err := issuer.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if token == "" {
		t.Fatal("Issue returned an empty token")
	}

	userID, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if userID != "user-123" {
		t.Errorf("Verify returned user id %q, want %q", userID, "user-123")
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	issuer := otherus.NewIssuer("test-secret-key", "otherus-test", time.Hour)
	other := otherus.NewIssuer("a-different-secret", "otherus-test", time.Hour)

	goodToken, err := issuer.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	foreignToken, err := other.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	expired := otherus.NewIssuer("test-secret-key", "otherus-test", -time.Minute)
	expiredToken, err := expired.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"garbage token", "not.a.jwt"},
		{"wrong signing key", foreignToken},
		{"expired token", expiredToken},
		{"truncated token", goodToken[:len(goodToken)-5]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := issuer.Verify(tt.token); !errors.Is(err, otherus.ErrUnauthorized) {
				t.Errorf("Verify(%q) error = %v, want ErrUnauthorized", tt.name, err)
			}
		})
	}
}

func TestIssuerDefaultExpiry(t *testing.T) {
	issuer := otherus.NewIssuer("k", "i", 0)
	if issuer.Expiry() != otherus.TokenExpiryDefault {
		t.Errorf("Expiry = %v, want %v", issuer.Expiry(), otherus.TokenExpiryDefault)
	}
}

func TestGenerateState(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		state, err := otherus.GenerateState()
		if err != nil {
			t.Fatalf("GenerateState failed: %v", err)
		}
		if len(state) < 32 {
			t.Fatalf("state %q too short", state)
		}
		if seen[state] {
			t.Fatalf("duplicate state generated: %q", state)
		}
		seen[state] = true
	}
}
