package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure. It is fatal at startup.
var ErrInvalidConfig = errors.New("invalid configuration")

const EnvPrefix = "PORTAL_"

func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("%w: config file path is required (use --config or -c)", ErrInvalidConfig)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig decodes YAML, applies environment overrides and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := applyEnvironmentOverrides(&config); err != nil {
		return nil, err
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// LoadDotEnv loads a .env file into the process environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

type environmentOverrides struct {
	OIDCClientID           string `env:"OIDC_CLIENT_ID"`
	OIDCClientSecret       string `env:"OIDC_CLIENT_SECRET"`
	OIDCIssuerURL          string `env:"OIDC_ISSUER_URL"`
	OIDCRedirectURL        string `env:"OIDC_REDIRECT_URL"`
	LinkedClientID         string `env:"LINKED_CLIENT_ID"`
	LinkedClientSecret     string `env:"LINKED_CLIENT_SECRET"`
	LinkedHMACSecret       string `env:"LINKED_HMAC_SECRET"`
	SessionSecret          string `env:"SESSION_SECRET"`
	StorageDSN             string `env:"STORAGE_DSN"`
	RedisUsername          string `env:"REDIS_USERNAME"`
	RedisPassword          string `env:"REDIS_PASSWORD"`
	RedisSentinelUsername  string `env:"REDIS_SENTINEL_USERNAME"`
	RedisSentinelPassword  string `env:"REDIS_SENTINEL_PASSWORD"`
	ExchangeTimeoutSeconds int    `env:"EXCHANGE_TIMEOUT_SECONDS"`
}

func applyEnvironmentOverrides(config *Config) error {
	var o environmentOverrides
	if err := env.ParseWithOptions(&o, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}

	if o.OIDCClientID != "" {
		config.OIDC.ClientID = o.OIDCClientID
	}

	if o.OIDCClientSecret != "" {
		config.OIDC.ClientSecret = o.OIDCClientSecret
	}

	if o.OIDCIssuerURL != "" {
		config.OIDC.IssuerURL = o.OIDCIssuerURL
	}

	if o.OIDCRedirectURL != "" {
		config.OIDC.RedirectURI = o.OIDCRedirectURL
	}

	if config.Linked != nil {
		if o.LinkedClientID != "" {
			config.Linked.ClientID = o.LinkedClientID
		}
		if o.LinkedClientSecret != "" {
			config.Linked.ClientSecret = o.LinkedClientSecret
		}
		if o.LinkedHMACSecret != "" {
			config.Linked.HMACSecret = o.LinkedHMACSecret
		}
	}

	if o.SessionSecret != "" {
		config.Sessions.Secret = o.SessionSecret
	}

	if o.StorageDSN != "" {
		config.Storage.DSN = o.StorageDSN
	}

	if o.ExchangeTimeoutSeconds > 0 {
		config.Exchange.Timeout = time.Duration(o.ExchangeTimeoutSeconds) * time.Second
	}

	if o.RedisUsername != "" || o.RedisPassword != "" {
		if config.Redis == nil {
			config.Redis = &RedisConfig{}
		}
		if o.RedisUsername != "" {
			config.Redis.Username = o.RedisUsername
		}
		if o.RedisPassword != "" {
			config.Redis.Password = o.RedisPassword
		}
	}

	if o.RedisSentinelUsername != "" || o.RedisSentinelPassword != "" {
		if config.Redis == nil {
			config.Redis = &RedisConfig{}
		}
		if config.Redis.Sentinel == nil {
			config.Redis.Sentinel = &RedisSentinelConfig{}
		}
		if o.RedisSentinelUsername != "" {
			config.Redis.Sentinel.SentinelUsername = o.RedisSentinelUsername
		}
		if o.RedisSentinelPassword != "" {
			config.Redis.Sentinel.SentinelPassword = o.RedisSentinelPassword
		}
	}

	return nil
}

func validateConfig(config *Config) error {
	validators := []func() error{
		config.validateServerConfig,
		config.validateOIDCConfig,
		config.validateLinkedConfig,
		config.validateLogConfig,
		config.validateCORSConfig,
		config.validateSessionConfig,
		config.validateStateConfig,
		config.validateExchangeConfig,
		config.validateAuthConfig,
		config.validateStorageConfig,
	}

	for _, validate := range validators {
		if err := validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	return nil
}

func (c *Config) validateServerConfig() error {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerConfig.Port
	}

	if c.Server.ExternalURL == "" {
		return fmt.Errorf("server.external_url is required")
	}

	if c.Server.Debug != nil && c.Server.Debug.Enabled {
		if c.Server.Debug.Host == "" {
			c.Server.Debug.Host = DefaultDebugConfig.Host
		}
		if c.Server.Debug.Port <= 0 || c.Server.Debug.Port >= 65535 {
			c.Server.Debug.Port = DefaultDebugConfig.Port
		}
	}

	return nil
}

func (c *Config) validateOIDCConfig() error {
	if c.OIDC.ClientID == "" {
		return fmt.Errorf("oidc.client_id is required")
	}

	if c.OIDC.ClientSecret == "" {
		return fmt.Errorf("oidc.client_secret is required")
	}

	if err := validateURL(c.OIDC.RedirectURI, "oidc.redirect_url"); err != nil {
		return err
	}

	if err := validateURL(c.OIDC.IssuerURL, "oidc.issuer_url"); err != nil {
		return err
	}

	if c.OIDC.HasExplicitEndpoints() {
		for field, value := range map[string]string{
			"oidc.authorize_url": c.OIDC.AuthorizeURL,
			"oidc.token_url":     c.OIDC.TokenURL,
			"oidc.jwks_url":      c.OIDC.JWKSURL,
		} {
			if err := validateURL(value, field); err != nil {
				return fmt.Errorf("%w (authorize_url, token_url and jwks_url are set together)", err)
			}
		}
	}

	if len(c.OIDC.Scopes) == 0 {
		c.OIDC.Scopes = DefaultOIDCConfig.Scopes
	}

	authStyle, err := validateAuthStyle(c.OIDC.AuthStyle, "oidc.auth_style")
	if err != nil {
		return err
	}
	c.OIDC.AuthStyle = authStyle

	return nil
}

func (c *Config) validateLinkedConfig() error {
	if c.Linked == nil || !c.Linked.Enabled {
		return nil
	}

	if c.Linked.Name == "" {
		c.Linked.Name = DefaultLinkedConfig.Name
	}

	if c.Linked.ClientID == "" {
		return fmt.Errorf("linked.client_id is required when linked is enabled")
	}

	if c.Linked.ClientSecret == "" {
		return fmt.Errorf("linked.client_secret is required when linked is enabled")
	}

	for field, value := range map[string]string{
		"linked.authorize_url": c.Linked.AuthorizeURL,
		"linked.token_url":     c.Linked.TokenURL,
		"linked.redirect_url":  c.Linked.RedirectURI,
	} {
		if err := validateURL(value, field); err != nil {
			return err
		}
	}

	if c.Linked.Issuer == "" {
		return fmt.Errorf("linked.issuer is required when linked is enabled")
	}

	if c.Linked.Audience == "" {
		c.Linked.Audience = c.Linked.ClientID
	}

	if c.Linked.JWKSURL == "" && c.Linked.VerificationKeyFile == "" && c.Linked.HMACSecret == "" {
		return fmt.Errorf("one of linked.jwks_url, linked.verification_key_file or linked.hmac_secret is required")
	}

	if c.Linked.HMACSecret != "" && len(c.Linked.HMACSecret) < MinSessionSecretLength {
		return fmt.Errorf("linked.hmac_secret must be at least %d characters", MinSessionSecretLength)
	}

	if len(c.Linked.Scopes) == 0 {
		c.Linked.Scopes = DefaultLinkedConfig.Scopes
	}

	authStyle, err := validateAuthStyle(c.Linked.AuthStyle, "linked.auth_style")
	if err != nil {
		return err
	}
	c.Linked.AuthStyle = authStyle

	if c.Linked.RefreshWindow <= 0 {
		c.Linked.RefreshWindow = DefaultLinkedConfig.RefreshWindow
	}

	if c.Linked.RefreshInterval <= 0 {
		c.Linked.RefreshInterval = DefaultLinkedConfig.RefreshInterval
	} else if c.Linked.RefreshInterval < 10*time.Second {
		return fmt.Errorf("linked.refresh_interval cannot be less than 10 seconds")
	}

	return nil
}

func (c *Config) validateLogConfig() error {
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogConfig.Format
	} else {
		switch c.Log.Format {
		case "text", "json":
		default:
			return fmt.Errorf("invalid log format: %s, options are text or json", c.Log.Format)
		}
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogConfig.Level
	} else {
		switch c.Log.Level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("invalid log level: %s, options are debug, info, warn, error", c.Log.Level)
		}
	}

	return nil
}

func (c *Config) validateCORSConfig() error {
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = DefaultCORSConfig.AllowedOrigins
	}
	if len(c.CORS.AllowedMethods) == 0 {
		c.CORS.AllowedMethods = DefaultCORSConfig.AllowedMethods
	}
	if len(c.CORS.AllowedHeaders) == 0 {
		c.CORS.AllowedHeaders = DefaultCORSConfig.AllowedHeaders
	}
	if c.CORS.MaxAgeSeconds == 0 {
		c.CORS.MaxAgeSeconds = DefaultCORSConfig.MaxAgeSeconds
	}

	return nil
}

func (c *Config) validateSessionConfig() error {
	if c.Sessions.Name == "" {
		c.Sessions.Name = DefaultSessionConfig.Name
	}

	if c.Sessions.SameSite == "" {
		c.Sessions.SameSite = DefaultSessionConfig.SameSite
	} else {
		switch c.Sessions.SameSite {
		case SameSiteLax, SameSiteStrict:
		default:
			return fmt.Errorf("invalid sessions.same_site: %s, options are 'lax' or 'strict'", c.Sessions.SameSite)
		}
	}

	if c.Sessions.DurationSource == "" {
		c.Sessions.DurationSource = DefaultSessionConfig.DurationSource
	} else {
		switch c.Sessions.DurationSource {
		case DurationSourceFixed, DurationSourceOIDCTokens:
		default:
			return fmt.Errorf("invalid session duration source: %s, options are 'fixed' or 'oidc_tokens'", c.Sessions.DurationSource)
		}
	}

	if c.Sessions.FixedTimeout <= 0 {
		c.Sessions.FixedTimeout = DefaultSessionConfig.FixedTimeout
	}

	if c.Sessions.Secret == "" {
		return fmt.Errorf("sessions.secret is required")
	}

	if len(c.Sessions.Secret) < MinSessionSecretLength {
		return fmt.Errorf("sessions.secret must be at least %d characters", MinSessionSecretLength)
	}

	return nil
}

func (c *Config) validateStateConfig() error {
	if c.State.TTL <= 0 {
		c.State.TTL = DefaultStateConfig.TTL
	} else if c.State.TTL > time.Hour {
		return fmt.Errorf("state.ttl cannot be more than 1 hour")
	}

	if c.State.SweepInterval <= 0 {
		c.State.SweepInterval = DefaultStateConfig.SweepInterval
	}

	return nil
}

func (c *Config) validateExchangeConfig() error {
	if c.Exchange.Timeout <= 0 {
		c.Exchange.Timeout = DefaultExchangeConfig.Timeout
	} else if c.Exchange.Timeout < time.Second || c.Exchange.Timeout > 30*time.Second {
		return fmt.Errorf("exchange.timeout must be between 1s and 30s, got %s", c.Exchange.Timeout)
	}

	return nil
}

func (c *Config) validateAuthConfig() error {
	if c.Auth.PostLoginRedirect == "" {
		c.Auth.PostLoginRedirect = DefaultAuthConfig.PostLoginRedirect
	}

	if c.Auth.PostLogoutRedirect == "" {
		c.Auth.PostLogoutRedirect = DefaultAuthConfig.PostLogoutRedirect
	}

	if c.Auth.ErrorRedirect == "" {
		c.Auth.ErrorRedirect = DefaultAuthConfig.ErrorRedirect
	}

	for field, value := range map[string]string{
		"auth.post_login_redirect":  c.Auth.PostLoginRedirect,
		"auth.post_logout_redirect": c.Auth.PostLogoutRedirect,
		"auth.error_redirect":       c.Auth.ErrorRedirect,
	} {
		if !IsLocalPath(value) {
			return fmt.Errorf("%s must be a local path starting with '/', got %q", field, value)
		}
	}

	return nil
}

func (c *Config) validateStorageConfig() error {
	if c.Storage.Type == "" {
		c.Storage.Type = DefaultStorageConfig.Type
	}

	switch c.Storage.Type {
	case StorageTypeMemory:
	case StorageTypeRedis:
		return c.validateRedisConfig()
	case StorageTypeBolt:
		if c.Storage.Path == "" {
			c.Storage.Path = DefaultStorageConfig.Path
		}
	case StorageTypePostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for postgres storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s, must be 'memory', 'redis', 'bolt' or 'postgres'", c.Storage.Type)
	}

	return nil
}

func (c *Config) validateRedisConfig() error {
	if c.Redis == nil {
		return fmt.Errorf("redis configuration is required to use redis storage")
	}

	if c.Redis.Sentinel != nil {
		if c.Redis.Sentinel.MasterName == "" {
			return fmt.Errorf("sentinel master_name is required")
		}
		if len(c.Redis.Sentinel.SentinelAddresses) == 0 {
			return fmt.Errorf("at least one sentinel address is required")
		}
		return nil
	}

	if c.Redis.Address == "" {
		return fmt.Errorf("redis address is required")
	}

	if _, _, err := net.SplitHostPort(c.Redis.Address); err != nil {
		return fmt.Errorf("invalid redis address format (expected host:port): %w", err)
	}

	const maxRedisDB = 15
	if c.Redis.Index < 0 || c.Redis.Index > maxRedisDB {
		return fmt.Errorf("redis index must be between 0 and %d, got %d", maxRedisDB, c.Redis.Index)
	}

	return nil
}
