package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"account-portal/internal/metrics"
	"account-portal/internal/models"

	"golang.org/x/oauth2"
)

// TokenExchanger is the token endpoint surface used by the login flow and the rotator.
type TokenExchanger interface {
	ExchangeCode(ctx context.Context, code, verifier string) (*models.ProviderTokens, error)
	ExchangeRefreshToken(ctx context.Context, refreshToken string) (*models.ProviderTokens, error)
}

// CodeExchangeClient calls one provider's token endpoint as a confidential client.
type CodeExchangeClient struct {
	provider string
	config   *oauth2.Config
	client   *http.Client
	timeout  time.Duration
	logger   *slog.Logger
}

// NewCodeExchangeClient expects oauthConfig.Endpoint.AuthStyle to be set explicitly.
func NewCodeExchangeClient(provider string, oauthConfig *oauth2.Config, timeout time.Duration, logger *slog.Logger) *CodeExchangeClient {
	return &CodeExchangeClient{
		provider: provider,
		config:   oauthConfig,
		client:   &http.Client{Timeout: timeout},
		timeout:  timeout,
		logger:   logger,
	}
}

func (c *CodeExchangeClient) ExchangeCode(ctx context.Context, code, verifier string) (*models.ProviderTokens, error) {
	if code == "" {
		return nil, &ExchangeError{Grant: metrics.GrantAuthorizationCode, ErrorCode: "missing_code"}
	}

	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	return c.do(ctx, metrics.GrantAuthorizationCode, func(ctx context.Context) (*oauth2.Token, error) {
		return c.config.Exchange(ctx, code, opts...)
	})
}

func (c *CodeExchangeClient) ExchangeRefreshToken(ctx context.Context, refreshToken string) (*models.ProviderTokens, error) {
	if refreshToken == "" {
		return nil, &ExchangeError{Grant: metrics.GrantRefreshToken, ErrorCode: "missing_refresh_token"}
	}

	return c.do(ctx, metrics.GrantRefreshToken, func(ctx context.Context) (*oauth2.Token, error) {
		// An empty access token forces the source to hit the token endpoint.
		return c.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	})
}

func (c *CodeExchangeClient) do(ctx context.Context, grant string, call func(context.Context) (*oauth2.Token, error)) (*models.ProviderTokens, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.client)

	start := time.Now()
	token, err := call(ctx)
	metrics.ExchangeDuration.WithLabelValues(c.provider, grant).Observe(time.Since(start).Seconds())

	if err != nil {
		exchangeErr := &ExchangeError{Grant: grant, Err: err}
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			if retrieveErr.Response != nil {
				exchangeErr.StatusCode = retrieveErr.Response.StatusCode
			}
			exchangeErr.ErrorCode = retrieveErr.ErrorCode
		}

		c.logger.Warn("token exchange failed",
			"provider", c.provider,
			"grant", grant,
			"status", exchangeErr.StatusCode,
			"error_code", exchangeErr.ErrorCode)
		metrics.ExchangesTotal.WithLabelValues(c.provider, grant, metrics.OutcomeFailure).Inc()
		return nil, exchangeErr
	}

	metrics.ExchangesTotal.WithLabelValues(c.provider, grant, metrics.OutcomeSuccess).Inc()
	c.logger.Debug("token exchange succeeded", "provider", c.provider, "grant", grant)

	return providerTokens(token), nil
}

func providerTokens(token *oauth2.Token) *models.ProviderTokens {
	tokens := &models.ProviderTokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Expiry:       token.Expiry,
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		tokens.IDToken = idToken
	}
	if scope, ok := token.Extra("scope").(string); ok {
		tokens.Scope = scope
	}
	return tokens
}
