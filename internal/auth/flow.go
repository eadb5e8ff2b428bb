package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"

	"account-portal/internal/config"
	"account-portal/internal/metrics"
	"account-portal/internal/models"

	"golang.org/x/oauth2"
)

const (
	flowLogin = "login"
	flowLink  = "link"
)

// Redirect sends the browser to an authorization server.
type Redirect struct {
	URL   string
	State string
}

// LoginResult is a completed login or link. The caller writes Session and redirects to RedirectTo.
type LoginResult struct {
	Session    *models.Session
	RedirectTo string
	Credential *models.RefreshCredential
}

type AuthenticatorOptions struct {
	Primary   *Provider
	Linked    *Provider
	States    *StateTokenService
	Sessions  *SessionManager
	Rotator   *RefreshRotator
	Redirects config.AuthConfig
	Logger    *slog.Logger
}

// Authenticator drives the login and link round trips. A failed step leaves no session behind.
type Authenticator struct {
	primary   *Provider
	linked    *Provider
	states    *StateTokenService
	sessions  *SessionManager
	rotator   *RefreshRotator
	redirects config.AuthConfig
	logger    *slog.Logger
}

func NewAuthenticator(opts AuthenticatorOptions) *Authenticator {
	return &Authenticator{
		primary:   opts.Primary,
		linked:    opts.Linked,
		states:    opts.States,
		sessions:  opts.Sessions,
		rotator:   opts.Rotator,
		redirects: opts.Redirects,
		logger:    opts.Logger,
	}
}

func (a *Authenticator) LinkEnabled() bool {
	return a.linked != nil && a.rotator != nil
}

// StartLogin issues a login state and returns the primary provider redirect.
// A returnTo that is not a local path is replaced by the post-login default.
func (a *Authenticator) StartLogin(ctx context.Context, returnTo string) (*Redirect, error) {
	if !config.IsLocalPath(returnTo) {
		returnTo = a.redirects.PostLoginRedirect
	}

	return a.start(ctx, a.primary, StateOptions{
		Purpose:  models.StatePurposeLogin,
		ReturnTo: returnTo,
	})
}

func (a *Authenticator) CompleteLogin(ctx context.Context, code, state string) (*LoginResult, error) {
	result, err := a.completeLogin(ctx, code, state)
	a.record(flowLogin, err)
	return result, err
}

func (a *Authenticator) completeLogin(ctx context.Context, code, state string) (*LoginResult, error) {
	token, err := a.states.Verify(ctx, state, models.StatePurposeLogin)
	if err != nil {
		return nil, newFlowError(CodeStateInvalid, "state verification failed", err)
	}

	identity, _, err := a.exchange(ctx, a.primary, token, code, true)
	if err != nil {
		return nil, err
	}

	session, err := a.sessions.NewSession(identity)
	if err != nil {
		return nil, newFlowError(CodeInvalidToken, "cannot start session", err)
	}

	a.logger.Info("login completed", "subject", session.SubjectID, "session_id", session.ID)

	return &LoginResult{
		Session:    session,
		RedirectTo: a.returnTo(token),
	}, nil
}

// StartLink issues a link state bound to session and returns the linked provider redirect.
func (a *Authenticator) StartLink(ctx context.Context, session *models.Session) (*Redirect, error) {
	if !a.LinkEnabled() {
		return nil, fmt.Errorf("%w: linked provider is not enabled", ErrConfiguration)
	}
	if session == nil {
		return nil, errors.New("link requires a session")
	}

	return a.start(ctx, a.linked, StateOptions{
		Purpose:   models.StatePurposeLink,
		SessionID: session.ID,
		ReturnTo:  a.redirects.PostLoginRedirect,
	})
}

// CompleteLink stores the linked account credential and returns session carrying its id.
func (a *Authenticator) CompleteLink(ctx context.Context, session *models.Session, code, state string) (*LoginResult, error) {
	result, err := a.completeLink(ctx, session, code, state)
	a.record(flowLink, err)
	return result, err
}

func (a *Authenticator) completeLink(ctx context.Context, session *models.Session, code, state string) (*LoginResult, error) {
	if !a.LinkEnabled() {
		return nil, fmt.Errorf("%w: linked provider is not enabled", ErrConfiguration)
	}

	token, err := a.states.Verify(ctx, state, models.StatePurposeLink)
	if err != nil {
		return nil, newFlowError(CodeStateInvalid, "state verification failed", err)
	}
	if session == nil || subtle.ConstantTimeCompare([]byte(token.SessionID), []byte(session.ID)) != 1 {
		return nil, newFlowError(CodeStateInvalid, "state bound to another session", ErrStateInvalid)
	}

	// Providers verified with a static key may not echo the nonce.
	identity, tokens, err := a.exchange(ctx, a.linked, token, code, false)
	if err != nil {
		return nil, err
	}

	credential, err := a.rotator.Link(ctx, identity.SubjectID, tokens)
	if errors.Is(err, ErrExchangeFailed) {
		return nil, newFlowError(CodeExchangeFailed, "linked provider issued no refresh token", err)
	}
	if err != nil {
		return nil, err
	}

	updated := a.sessions.Refresh(session)
	updated.LinkedAccountID = identity.SubjectID

	a.logger.Info("account linked",
		"subject", session.SubjectID,
		"provider", a.linked.Name,
		"linked_account_id", identity.SubjectID)

	return &LoginResult{
		Session:    updated,
		RedirectTo: a.returnTo(token),
		Credential: credential,
	}, nil
}

func (a *Authenticator) start(ctx context.Context, provider *Provider, opts StateOptions) (*Redirect, error) {
	opts.Nonce = GenerateRandString(defaultRandomBytes)
	opts.CodeVerifier = oauth2.GenerateVerifier()

	state, err := a.states.Issue(ctx, opts)
	if err != nil {
		return nil, err
	}

	params := []AuthParam{WithNonce(opts.Nonce), WithPKCE(opts.CodeVerifier)}
	if provider.Prompt != "" {
		params = append(params, WithPrompt(provider.Prompt))
	}

	authURL, err := provider.AuthorizeURL(state.Value, params...)
	if err != nil {
		return nil, err
	}

	return &Redirect{URL: authURL, State: state.Value}, nil
}

// exchange turns an authorization code into a validated identity. The nonce
// must match when requireNonce is set or when the token carries one.
func (a *Authenticator) exchange(ctx context.Context, provider *Provider, state *models.StateToken, code string, requireNonce bool) (*models.IdentityToken, *models.ProviderTokens, error) {
	if code == "" {
		return nil, nil, newFlowError(CodeInvalidRequest, "no authorization code received", ErrExchangeFailed)
	}

	tokens, err := provider.Exchanger.ExchangeCode(ctx, code, state.CodeVerifier)
	if err != nil {
		return nil, nil, newFlowError(CodeExchangeFailed, "failed to exchange code for token", err)
	}

	if tokens.IDToken == "" {
		return nil, nil, newFlowError(CodeInvalidToken, "no id_token in token response", ErrInvalidToken)
	}

	identity, err := provider.Codec.Decode(ctx, tokens.IDToken)
	if err != nil {
		return nil, nil, newFlowError(CodeInvalidToken, "failed to verify id_token", err)
	}

	if requireNonce || identity.Nonce != "" {
		if subtle.ConstantTimeCompare([]byte(identity.Nonce), []byte(state.Nonce)) != 1 {
			return nil, nil, newFlowError(CodeInvalidToken, "nonce mismatch", ErrInvalidToken)
		}
	}

	return identity, tokens, nil
}

func (a *Authenticator) returnTo(state *models.StateToken) string {
	if config.IsLocalPath(state.ReturnTo) {
		return state.ReturnTo
	}
	return a.redirects.PostLoginRedirect
}

func (a *Authenticator) record(flow string, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeRejected
		var flowErr *FlowError
		if errors.As(err, &flowErr) {
			a.logger.Warn("authentication flow failed", "flow", flow, "code", flowErr.Code, "reason", flowErr.Message)
		} else {
			outcome = metrics.OutcomeFailure
			a.logger.Error("authentication flow error", "flow", flow, "error", err)
		}
	}
	metrics.LoginsTotal.WithLabelValues(flow, outcome).Inc()
}
