package config

import (
	"time"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	OIDC     OIDCConfig     `yaml:"oidc"`
	Linked   *LinkedConfig  `yaml:"linked"`
	Log      LogConfig      `yaml:"log"`
	CORS     CORSConfig     `yaml:"cors"`
	Sessions SessionConfig  `yaml:"sessions"`
	State    StateConfig    `yaml:"state"`
	Exchange ExchangeConfig `yaml:"exchange"`
	Auth     AuthConfig     `yaml:"auth"`
	Storage  StorageConfig  `yaml:"storage"`
	Redis    *RedisConfig   `yaml:"redis"`
}

type ServerConfig struct {
	Port        int                `yaml:"port"`
	ExternalURL string             `yaml:"external_url"`
	Debug       *ServerDebugConfig `yaml:"debug"`
}

var DefaultServerConfig = ServerConfig{
	Port: 8080,
}

type ServerDebugConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

var DefaultDebugConfig = ServerDebugConfig{
	Enabled: false,
	Host:    "localhost",
	Port:    5123,
}

// OIDCConfig describes the primary identity provider. Endpoints are discovered from
// IssuerURL unless AuthorizeURL, TokenURL and JWKSURL are all given.
type OIDCConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	IssuerURL    string   `yaml:"issuer_url"`
	RedirectURI  string   `yaml:"redirect_url"`
	Scopes       []string `yaml:"scopes"`
	AuthorizeURL string   `yaml:"authorize_url"`
	TokenURL     string   `yaml:"token_url"`
	JWKSURL      string   `yaml:"jwks_url"`
	AuthStyle    string   `yaml:"auth_style"`
	Prompt       string   `yaml:"prompt"`
}

var DefaultOIDCConfig = OIDCConfig{
	Scopes:    []string{"openid", "profile", "email"},
	AuthStyle: AuthStyleHeader,
}

// HasExplicitEndpoints reports whether any endpoint is configured, which disables discovery.
func (o OIDCConfig) HasExplicitEndpoints() bool {
	return o.AuthorizeURL != "" || o.TokenURL != "" || o.JWKSURL != ""
}

const (
	AuthStyleHeader = "header"
	AuthStyleParams = "params"
)

// LinkedConfig describes the secondary provider whose refresh tokens are rotated.
type LinkedConfig struct {
	Enabled             bool          `yaml:"enabled"`
	Name                string        `yaml:"name"`
	ClientID            string        `yaml:"client_id"`
	ClientSecret        string        `yaml:"client_secret"`
	AuthorizeURL        string        `yaml:"authorize_url"`
	TokenURL            string        `yaml:"token_url"`
	RedirectURI         string        `yaml:"redirect_url"`
	Scopes              []string      `yaml:"scopes"`
	AuthStyle           string        `yaml:"auth_style"`
	Issuer              string        `yaml:"issuer"`
	Audience            string        `yaml:"audience"`
	JWKSURL             string        `yaml:"jwks_url"`
	VerificationKeyFile string        `yaml:"verification_key_file"`
	HMACSecret          string        `yaml:"hmac_secret"`
	RefreshWindow       time.Duration `yaml:"refresh_window"`
	RefreshInterval     time.Duration `yaml:"refresh_interval"`
}

var DefaultLinkedConfig = LinkedConfig{
	Name:            "linked",
	Scopes:          []string{"openid", "offline_access"},
	AuthStyle:       AuthStyleHeader,
	RefreshWindow:   5 * time.Minute,
	RefreshInterval: time.Minute,
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

var DefaultLogConfig = LogConfig{
	Level:  "info",
	Format: "text",
}

type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	ExposedHeaders   []string `yaml:"exposed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAgeSeconds    int      `yaml:"max_age_seconds"`
}

var DefaultCORSConfig = CORSConfig{
	AllowedOrigins: []string{"http://localhost:5173"},
	AllowedMethods: []string{"GET", "POST", "OPTIONS"},
	AllowedHeaders: []string{"*"},
	MaxAgeSeconds:  300,
}

type SessionConfig struct {
	Name           string        `yaml:"name"`
	Domain         string        `yaml:"domain"`
	Secure         *bool         `yaml:"secure"`
	SameSite       string        `yaml:"same_site"`
	DurationSource string        `yaml:"duration_source"`
	FixedTimeout   time.Duration `yaml:"fixed_timeout"`
	Secret         string        `yaml:"secret"`
	Encrypt        bool          `yaml:"encrypt"`
}

var DefaultSessionConfig = SessionConfig{
	Name:           "session",
	SameSite:       SameSiteLax,
	DurationSource: DurationSourceFixed,
	FixedTimeout:   24 * time.Hour,
}

const (
	SameSiteLax    = "lax"
	SameSiteStrict = "strict"

	DurationSourceFixed      = "fixed"
	DurationSourceOIDCTokens = "oidc_tokens"

	// MinSessionSecretLength is the minimum number of bytes accepted for sessions.secret.
	MinSessionSecretLength = 32
)

// IsSecure reports whether the session cookie carries the Secure attribute. Defaults to true.
func (s SessionConfig) IsSecure() bool {
	return s.Secure == nil || *s.Secure
}

type StateConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

var DefaultStateConfig = StateConfig{
	TTL:           10 * time.Minute,
	SweepInterval: 5 * time.Minute,
}

type ExchangeConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

var DefaultExchangeConfig = ExchangeConfig{
	Timeout: 10 * time.Second,
}

type AuthConfig struct {
	PostLoginRedirect  string `yaml:"post_login_redirect"`
	PostLogoutRedirect string `yaml:"post_logout_redirect"`
	ErrorRedirect      string `yaml:"error_redirect"`
}

var DefaultAuthConfig = AuthConfig{
	PostLoginRedirect:  "/",
	PostLogoutRedirect: "/",
	ErrorRedirect:      "/error",
}

type StorageConfig struct {
	Type string `yaml:"type"` // memory, redis, bolt or postgres
	Path string `yaml:"path"`
	DSN  string `yaml:"dsn"`
}

var DefaultStorageConfig = StorageConfig{
	Type: StorageTypeMemory,
	Path: "portal.db",
}

const (
	StorageTypeMemory   = "memory"
	StorageTypeRedis    = "redis"
	StorageTypeBolt     = "bolt"
	StorageTypePostgres = "postgres"
)

type RedisConfig struct {
	Address  string               `yaml:"address"`
	Username string               `yaml:"username"`
	Password string               `yaml:"password"`
	Sentinel *RedisSentinelConfig `yaml:"sentinel"`
	Index    int                  `yaml:"index"`
}

type RedisSentinelConfig struct {
	MasterName        string   `yaml:"master_name"`
	SentinelAddresses []string `yaml:"addresses"`
	SentinelPassword  string   `yaml:"password"`
	SentinelUsername  string   `yaml:"username"`
}
