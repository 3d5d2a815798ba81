package oauth2

import (
	"context"
	"time"

	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// Google authenticates members against Google accounts.
type Google struct {
	base

	// UserInfoURL is where the profile is fetched from after the code
	// exchange. Overridable for tests.
	UserInfoURL string
}

// NewGoogle creates the Google adapter. timeout <= 0 selects DefaultTimeout.
func NewGoogle(clientID, clientSecret, redirectURL string, timeout time.Duration) *Google {
	return &Google{
		base: newBase("google", clientID, clientSecret, redirectURL, google.Endpoint,
			[]string{"openid", "email", "profile"}, timeout),
		UserInfoURL: googleUserInfoURL,
	}
}

// googleUserInfo is the OpenID Connect userinfo payload.
type googleUserInfo struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (g *Google) Exchange(ctx context.Context, code string) (*Profile, error) {
	token, err := g.exchangeToken(ctx, code)
	if err != nil {
		return nil, err
	}

	var info googleUserInfo
	if err := g.getJSON(ctx, g.UserInfoURL, token.AccessToken, &info); err != nil {
		return nil, err
	}

	name := info.Name
	if name == "" {
		name = localPart(info.Email)
	}
	return &Profile{
		ProviderUserID: info.Sub,
		Email:          info.Email,
		DisplayName:    name,
		AvatarURL:      info.Picture,
	}, nil
}
