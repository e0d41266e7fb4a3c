package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubAPI = "https://api.github.com"

// ErrNoVerifiedEmail is returned when a GitHub account exposes no verified
// address. Reminders need one, so such accounts cannot sign in.
var ErrNoVerifiedEmail = errors.New("auth: GitHub account has no verified email")

// GitHubUser is the part of the GitHub user profile a Profile is built from.
type GitHubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// DisplayName falls back to the login when the profile has no name.
func (u *GitHubUser) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Login
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// GitHubProvider runs the OAuth authorization code flow against GitHub.
type GitHubProvider struct {
	config  *oauth2.Config
	apiBase string
}

// NewGitHubProvider requests read:user and user:email. callbackURL must match
// the one registered for the OAuth app exactly.
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		apiBase: githubAPI,
	}
}

// AuthURL is where the login handler redirects. state is checked on callback.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the callback code for the user's GitHub profile. When the
// public profile hides the email, the primary verified address from
// /user/emails is used instead.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}
	client := p.config.Client(ctx, tok)

	var user GitHubUser
	if err := p.getJSON(ctx, client, "/user", &user); err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, errors.New("auth: GitHub returned an invalid user (ID = 0)")
	}

	if user.Email == "" {
		var emails []githubEmail
		if err := p.getJSON(ctx, client, "/user/emails", &emails); err != nil {
			return nil, err
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				user.Email = e.Email
				break
			}
		}
		if user.Email == "" {
			return nil, ErrNoVerifiedEmail
		}
	}

	return &user, nil
}

func (p *GitHubProvider) getJSON(ctx context.Context, client *http.Client, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBase+path, nil)
	if err != nil {
		return fmt.Errorf("auth: building GitHub %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("auth: calling GitHub %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: GitHub %s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("auth: decoding GitHub %s response: %w", path, err)
	}
	return nil
}
