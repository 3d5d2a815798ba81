// Package oauth2 implements the external identity provider adapters.
// Each adapter turns a provider's authorization-code dance into one
// normalized Profile; the auth layer treats every provider the same
// after that point.
package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/other-realm/otherus"
)

// DefaultTimeout bounds every network call to a provider. A hung
// provider surfaces as ErrProvider, never as a stuck request.
const DefaultTimeout = 10 * time.Second

// Profile is the normalized provider-side identity handed back to the
// auth layer after a successful code exchange.
type Profile = otherus.ProviderProfile

// base carries the pieces shared by all adapters.
type base struct {
	name   string
	cfg    oauth2.Config
	client *http.Client
}

func newBase(name, clientID, clientSecret, redirectURL string, endpoint oauth2.Endpoint, scopes []string, timeout time.Duration) base {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return base{
		name: name,
		cfg: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		client: &http.Client{Timeout: timeout},
	}
}

func (b *base) Name() string { return b.name }

func (b *base) AuthCodeURL(state string) string {
	return b.cfg.AuthCodeURL(state)
}

// exchangeToken runs the code-for-token exchange through the bounded client.
func (b *base) exchangeToken(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.client)
	token, err := b.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %s code exchange failed", otherus.ErrProvider, b.name)
	}
	return token, nil
}

// getJSON fetches a provider API endpoint with the access token and
// decodes the JSON body into out.
func (b *base) getJSON(ctx context.Context, url, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: building %s request", otherus.ErrProvider, b.name)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s request failed", otherus.ErrProvider, b.name)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d", otherus.ErrProvider, b.name, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading %s response", otherus.ErrProvider, b.name)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: malformed %s response", otherus.ErrProvider, b.name)
	}
	return nil
}
