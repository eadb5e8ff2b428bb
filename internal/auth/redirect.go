package auth

import (
	"fmt"
	"net/url"

	"golang.org/x/oauth2"
)

// AuthParam is an extra authorize request parameter.
type AuthParam = oauth2.AuthCodeOption

func WithNonce(nonce string) AuthParam {
	return oauth2.SetAuthURLParam("nonce", nonce)
}

func WithPrompt(prompt string) AuthParam {
	return oauth2.SetAuthURLParam("prompt", prompt)
}

// WithPKCE adds the S256 challenge derived from verifier.
func WithPKCE(verifier string) AuthParam {
	return oauth2.S256ChallengeOption(verifier)
}

// BuildAuthorizeURL returns the provider URL the browser is sent to. It has no side effects.
func BuildAuthorizeURL(endpoint, clientID, redirectURI string, scopes []string, state string, params ...AuthParam) (string, error) {
	if clientID == "" {
		return "", fmt.Errorf("%w: client id is empty", ErrConfiguration)
	}
	if redirectURI == "" {
		return "", fmt.Errorf("%w: redirect uri is empty", ErrConfiguration)
	}
	if state == "" {
		return "", fmt.Errorf("%w: state is empty", ErrConfiguration)
	}

	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: invalid authorize endpoint %q", ErrConfiguration, endpoint)
	}

	cfg := oauth2.Config{
		ClientID:    clientID,
		RedirectURL: redirectURI,
		Scopes:      scopes,
		Endpoint:    oauth2.Endpoint{AuthURL: endpoint},
	}

	return cfg.AuthCodeURL(state, params...), nil
}
