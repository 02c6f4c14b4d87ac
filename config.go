package policyrouter

// Config holds the configuration for the policy router.
type Config struct {
	// Policy selects where the policy document is loaded from.
	Policy PolicyConfig `json:"policy" yaml:"policy"`
	// DefaultProfile is used when a request names no profile.
	DefaultProfile string `json:"default_profile,omitempty" yaml:"default_profile,omitempty"`
	// Backends configures the completion backends.
	Backends BackendsConfig `json:"backends" yaml:"backends"`
	// Pricing optionally overrides the embedded price table.
	Pricing PricingConfig `json:"pricing,omitempty" yaml:"pricing,omitempty"`
	Logging LoggingConfig `json:"logging,omitempty" yaml:"logging,omitempty"`
	Server  ServerConfig  `json:"server,omitempty" yaml:"server,omitempty"`
}

// PolicyDriver names a policy document source.
type PolicyDriver string

// PolicyDriver constants define the supported policy sources.
const (
	DriverFile     PolicyDriver = "file"
	DriverSQLite   PolicyDriver = "sqlite"
	DriverPostgres PolicyDriver = "postgres"
)

// PolicyConfig locates the policy document.
type PolicyConfig struct {
	Driver PolicyDriver `json:"driver,omitempty" yaml:"driver,omitempty"`
	// Path is the document file for the file driver.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// DSN and Name locate the document for the sqlite and postgres drivers.
	DSN  string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// Watch reloads a file-driver document when it changes on disk.
	Watch bool `json:"watch,omitempty" yaml:"watch,omitempty"`
}

// BackendMode selects canned or real completions.
type BackendMode string

// BackendMode constants.
const (
	ModeStub BackendMode = "stub"
	ModeLive BackendMode = "live"
)

// BackendsConfig configures the completion backends.
type BackendsConfig struct {
	Mode BackendMode `json:"mode,omitempty" yaml:"mode,omitempty"`
	// TimeoutMs bounds every backend call.
	TimeoutMs int             `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	OpenAI    APIKeyConfig    `json:"openai,omitempty" yaml:"openai,omitempty"`
	Anthropic APIKeyConfig    `json:"anthropic,omitempty" yaml:"anthropic,omitempty"`
	Bedrock   BedrockSettings `json:"bedrock,omitempty" yaml:"bedrock,omitempty"`
	// CircuitBreaker is off unless FailureThreshold is set.
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker,omitempty" yaml:"circuit_breaker,omitempty"`
}

// CircuitBreakerConfig configures per-provider circuit breakers.
type CircuitBreakerConfig struct {
	FailureThreshold int `json:"failure_threshold,omitempty" yaml:"failure_threshold,omitempty"`
	CooldownMs       int `json:"cooldown_ms,omitempty" yaml:"cooldown_ms,omitempty"`
}

// APIKeyConfig holds the credential and optional endpoint override of a
// key-authenticated backend. An empty APIKey is filled from the
// environment by ResolveCredentials.
type APIKeyConfig struct {
	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// BedrockSettings enables the optional AWS Bedrock backend.
type BedrockSettings struct {
	Enabled         bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Region          string `json:"region,omitempty" yaml:"region,omitempty"`
	AccessKeyID     string `json:"access_key_id,omitempty" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty" yaml:"secret_access_key,omitempty"`
	SessionToken    string `json:"session_token,omitempty" yaml:"session_token,omitempty"`
}

// PricingConfig points at an optional price table override.
type PricingConfig struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// LoggingConfig mirrors the LOG_LEVEL / LOG_FORMAT environment variables.
type LoggingConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// ServerConfig configures routerd.
type ServerConfig struct {
	Addr      string          `json:"addr,omitempty" yaml:"addr,omitempty"`
	RateLimit RateLimitConfig `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
}

// RateLimitConfig caps POST /v1/route per client IP. Zero RPS disables it.
type RateLimitConfig struct {
	RPS   float64 `json:"rps,omitempty" yaml:"rps,omitempty"`
	Burst float64 `json:"burst,omitempty" yaml:"burst,omitempty"`
}
