package otherus

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiryDefault is how long issued bearer tokens stay valid.
const TokenExpiryDefault = 60 * time.Minute

// Issuer mints and verifies the signed bearer tokens that prove identity.
// Tokens are stateless: nothing is stored server-side and there is no
// revocation list, so logout is purely client-side discard. Deleted
// accounts are caught by the mandatory user re-check in Authenticate.
type Issuer struct {
	secret []byte
	issuer string
	expiry time.Duration
}

// NewIssuer creates a token issuer. expiry <= 0 selects the default.
func NewIssuer(secretKey, issuer string, expiry time.Duration) *Issuer {
	if expiry <= 0 {
		expiry = TokenExpiryDefault
	}
	return &Issuer{
		secret: []byte(secretKey),
		issuer: issuer,
		expiry: expiry,
	}
}

// Issue creates a signed token asserting the user id as its subject.
func (i *Issuer) Issue(userID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    i.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.expiry)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the asserted user id.
// Every failure collapses to ErrUnauthorized.
func (i *Issuer) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		// Pin the signing method so a token cannot pick its own algorithm.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrUnauthorized
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrUnauthorized
	}
	return sub, nil
}

// Expiry returns the configured token lifetime.
func (i *Issuer) Expiry() time.Duration { return i.expiry }

// GenerateState produces a cryptographically random OAuth state token for
// embedding in a provider authorization URL.
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", errors.New("failed to generate state token")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
