// Package github signs users in through GitHub's OAuth 2.0 Authorization
// Code flow and resolves the result to an identity.Identity.
//
// This path has no password, so it is not a full identity.Provider — it
// cannot register with a password or reset one. Instead, the callback
// handler hands the resolved Identity straight to the session layer, which
// projects it exactly as it would a credentials login.
//
// FLOW:
//  1. We redirect the browser to GitHub's authorize endpoint.
//  2. The user approves; GitHub redirects back with a short-lived code.
//  3. We exchange the code for an access token (server-to-server, using
//     the client secret — the token never reaches the browser).
//  4. We call GitHub's /user API with the token and map the profile to an
//     Identity.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	oauthgithub "golang.org/x/oauth2/github"

	"github.com/sakif/threadlite/internal/identity"
)

// profile is the slice of GitHub's /user response we care about.
// GitHub returns much more; we only unmarshal these fields.
type profile struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`       // display name; may be empty
	Email     string `json:"email"`      // primary public email; empty if hidden
	AvatarURL string `json:"avatar_url"` // profile picture URL
}

// Provider wraps golang.org/x/oauth2 for the GitHub code flow.
type Provider struct {
	config  *oauth2.Config
	apiBase string // "https://api.github.com"; tests point it elsewhere
}

// New creates a Provider. ClientID/clientSecret come from a registered
// OAuth App (github.com/settings/developers); callbackURL must match the
// app's configured callback exactly.
func New(clientID, clientSecret, callbackURL string) *Provider {
	return &Provider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     oauthgithub.Endpoint,
		},
		apiBase: "https://api.github.com",
	}
}

// AuthURL returns the GitHub authorization URL for the given CSRF state.
// The caller stores state in a short-lived cookie and verifies it on
// callback — that proves the callback belongs to a flow we started.
func (p *Provider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for an Identity.
func (p *Provider) Exchange(ctx context.Context, code string) (*identity.Identity, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("identity/github: exchanging OAuth code: %w", err)
	}

	// config.Client returns an *http.Client that injects the bearer token
	// into every request it makes.
	client := p.config.Client(ctx, oauthToken)

	resp, err := client.Get(p.apiBase + "/user")
	if err != nil {
		return nil, fmt.Errorf("identity/github: calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity/github: GitHub /user API returned status %d", resp.StatusCode)
	}

	var gh profile
	if err := json.NewDecoder(resp.Body).Decode(&gh); err != nil {
		return nil, fmt.Errorf("identity/github: decoding GitHub /user response: %w", err)
	}

	if gh.ID == 0 {
		return nil, fmt.Errorf("identity/github: GitHub returned an invalid user (ID = 0)")
	}

	// Prefer the real name; fall back to the login handle so the session
	// layer's own fallbacks (email local part, then "User") rarely trigger.
	displayName := gh.Name
	if displayName == "" {
		displayName = gh.Login
	}

	// GitHub hides the email on /user for accounts that keep it private
	// (the default). The user:email scope we request lets /user/emails
	// reveal it anyway; if that also yields nothing, fall back to GitHub's
	// stable noreply address so the identity never has an empty email.
	email := gh.Email
	if email == "" {
		email = p.primaryEmail(client)
	}
	if email == "" {
		email = fmt.Sprintf("%d+%s@users.noreply.github.com", gh.ID, gh.Login)
	}

	return &identity.Identity{
		DisplayName: displayName,
		Email:       email,
		PhotoURL:    gh.AvatarURL,
	}, nil
}

// primaryEmail asks /user/emails for the address GitHub omits from /user
// when the profile email is private. Best effort: any failure returns "",
// and the caller falls back to the noreply address.
func (p *Provider) primaryEmail(client *http.Client) string {
	resp, err := client.Get(p.apiBase + "/user/emails")
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return ""
	}

	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email
		}
	}
	return ""
}
