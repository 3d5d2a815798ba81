package oauth2

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2/github"
)

const (
	githubUserURL   = "https://api.github.com/user"
	githubEmailsURL = "https://api.github.com/user/emails"
)

// GitHub authenticates members against GitHub accounts.
type GitHub struct {
	base

	// UserInfoURL and EmailsURL are the GitHub API endpoints used after
	// the code exchange. Overridable for tests.
	UserInfoURL string
	EmailsURL   string
}

// NewGitHub creates the GitHub adapter. timeout <= 0 selects DefaultTimeout.
func NewGitHub(clientID, clientSecret, redirectURL string, timeout time.Duration) *GitHub {
	return &GitHub{
		base: newBase("github", clientID, clientSecret, redirectURL, github.Endpoint,
			[]string{"read:user", "user:email"}, timeout),
		UserInfoURL: githubUserURL,
		EmailsURL:   githubEmailsURL,
	}
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	Bio       string `json:"bio"`
	Location  string `json:"location"`
	Blog      string `json:"blog"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (g *GitHub) Exchange(ctx context.Context, code string) (*Profile, error) {
	token, err := g.exchangeToken(ctx, code)
	if err != nil {
		return nil, err
	}

	var user githubUser
	if err := g.getJSON(ctx, g.UserInfoURL, token.AccessToken, &user); err != nil {
		return nil, err
	}

	// GitHub hides the primary email behind a second call; not all
	// accounts expose one publicly.
	var emails []githubEmail
	if err := g.getJSON(ctx, g.EmailsURL, token.AccessToken, &emails); err != nil {
		emails = nil
	}

	email := primaryVerifiedEmail(emails)
	if email == "" {
		email = strings.ToLower(user.Email)
	}
	if email == "" {
		// Account with no usable email at all; synthesize a stable one
		// so the member still gets a record.
		email = fmt.Sprintf("gh_%d@github.noemail", user.ID)
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}
	if name == "" {
		name = localPart(email)
	}

	return &Profile{
		ProviderUserID: fmt.Sprintf("%d", user.ID),
		Email:          email,
		DisplayName:    name,
		AvatarURL:      user.AvatarURL,
		Bio:            user.Bio,
		Location:       user.Location,
		Website:        user.Blog,
	}, nil
}

func primaryVerifiedEmail(emails []githubEmail) string {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return strings.ToLower(e.Email)
		}
	}
	return ""
}

// localPart returns everything before the @, as a display-name fallback.
func localPart(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
