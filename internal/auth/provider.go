package auth

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"account-portal/internal/config"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const (
	PrimaryProviderName = "primary"
)

// Provider bundles what the login flow needs from one authorization server.
type Provider struct {
	Name      string
	OAuth2    *oauth2.Config
	Exchanger TokenExchanger
	Codec     IdentityTokenCodec
	Prompt    string
}

func (p *Provider) AuthorizeURL(state string, params ...AuthParam) (string, error) {
	return BuildAuthorizeURL(p.OAuth2.Endpoint.AuthURL, p.OAuth2.ClientID, p.OAuth2.RedirectURL, p.OAuth2.Scopes, state, params...)
}

// NewPrimaryProvider discovers the identity provider from its issuer URL unless
// explicit endpoints are configured. ctx must outlive the provider; it is used
// to fetch signing keys.
func NewPrimaryProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Provider, error) {
	oidcCfg := cfg.OIDC
	oauthConfig := &oauth2.Config{
		ClientID:     oidcCfg.ClientID,
		ClientSecret: oidcCfg.ClientSecret,
		RedirectURL:  oidcCfg.RedirectURI,
		Scopes:       oidcCfg.Scopes,
	}

	var codec IdentityTokenCodec
	if oidcCfg.HasExplicitEndpoints() {
		oauthConfig.Endpoint = oauth2.Endpoint{
			AuthURL:  oidcCfg.AuthorizeURL,
			TokenURL: oidcCfg.TokenURL,
		}
		codec = NewKeySetTokenCodec(oidcCfg.IssuerURL, oidcCfg.ClientID, oidc.NewRemoteKeySet(ctx, oidcCfg.JWKSURL), nil)
	} else {
		provider, err := oidc.NewProvider(ctx, oidcCfg.IssuerURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
		}
		oauthConfig.Endpoint = provider.Endpoint()
		codec = NewOIDCTokenCodec(provider.Verifier(&oidc.Config{ClientID: oidcCfg.ClientID}))
	}
	oauthConfig.Endpoint.AuthStyle = authStyle(oidcCfg.AuthStyle)

	logger.Info("primary provider configured",
		"issuer", oidcCfg.IssuerURL,
		"discovery", !oidcCfg.HasExplicitEndpoints(),
		"auth_style", oidcCfg.AuthStyle)

	return &Provider{
		Name:      PrimaryProviderName,
		OAuth2:    oauthConfig,
		Exchanger: NewCodeExchangeClient(PrimaryProviderName, oauthConfig, cfg.Exchange.Timeout, logger),
		Codec:     codec,
		Prompt:    oidcCfg.Prompt,
	}, nil
}

// NewLinkedProvider returns nil when no linked provider is enabled.
func NewLinkedProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Provider, error) {
	linked := cfg.Linked
	if linked == nil || !linked.Enabled {
		return nil, nil
	}

	oauthConfig := &oauth2.Config{
		ClientID:     linked.ClientID,
		ClientSecret: linked.ClientSecret,
		RedirectURL:  linked.RedirectURI,
		Scopes:       linked.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   linked.AuthorizeURL,
			TokenURL:  linked.TokenURL,
			AuthStyle: authStyle(linked.AuthStyle),
		},
	}

	var (
		codec IdentityTokenCodec
		err   error
	)
	switch {
	case linked.JWKSURL != "":
		codec = NewKeySetTokenCodec(linked.Issuer, linked.Audience, oidc.NewRemoteKeySet(ctx, linked.JWKSURL), nil)
	case linked.VerificationKeyFile != "":
		pemBytes, readErr := os.ReadFile(linked.VerificationKeyFile)
		if readErr != nil {
			return nil, fmt.Errorf("%w: failed to read linked.verification_key_file: %w", ErrConfiguration, readErr)
		}
		codec, err = NewPublicKeyTokenCodec(pemBytes, linked.Issuer, linked.Audience)
	default:
		codec, err = NewHMACTokenCodec([]byte(linked.HMACSecret), linked.Issuer, linked.Audience)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("linked provider configured", "name", linked.Name, "issuer", linked.Issuer)

	return &Provider{
		Name:      linked.Name,
		OAuth2:    oauthConfig,
		Exchanger: NewCodeExchangeClient(linked.Name, oauthConfig, cfg.Exchange.Timeout, logger),
		Codec:     codec,
	}, nil
}

func authStyle(style string) oauth2.AuthStyle {
	if style == config.AuthStyleParams {
		return oauth2.AuthStyleInParams
	}
	return oauth2.AuthStyleInHeader
}
