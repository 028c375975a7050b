package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for ekaya-sitequery.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	Auth       AuthConfig       `yaml:"auth"`
	Datasource DatasourceConfig `yaml:"datasource"`
	Tenant     TenantConfig     `yaml:"tenant"`
	LLM        LLMConfig        `yaml:"llm"`
	Assistant  AssistantConfig  `yaml:"assistant"`
	Security   SecurityConfig   `yaml:"security"`
	Platform   PlatformConfig   `yaml:"platform"`
}

// AuthConfig holds bearer-token settings for the HTTP surface.
type AuthConfig struct {
	// EnableVerification controls whether bearer tokens are required.
	// Set to false for local development.
	EnableVerification bool   `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"false"`
	Issuer             string `yaml:"issuer" env:"AUTH_ISSUER" env-default:""`
	JWTSecret          string `yaml:"-" env:"AUTH_JWT_SECRET"` // Secret - not in YAML
}

// DatasourceConfig holds the site database connection.
type DatasourceConfig struct {
	Type         string `yaml:"type" env:"DB_TYPE" env-default:"mysql"`
	Host         string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port         int    `yaml:"port" env:"DB_PORT" env-default:"3306"`
	User         string `yaml:"user" env:"DB_USER" env-default:""`
	Password     string `yaml:"-" env:"DB_PASSWORD"` // Secret - not in YAML
	Database     string `yaml:"database" env:"DB_NAME" env-default:""`
	SSLMode      string `yaml:"ssl_mode" env:"DB_SSLMODE" env-default:"disable"`
	PoolMaxConns int32  `yaml:"pool_max_conns" env:"DB_POOL_MAX_CONNS" env-default:"10"`
	// QueryTimeoutSeconds bounds every statement the assistant runs.
	QueryTimeoutSeconds int `yaml:"query_timeout_seconds" env:"DB_QUERY_TIMEOUT_SECONDS" env-default:"30"`
	// MaxRows caps rows returned from a single statement.
	MaxRows int `yaml:"max_rows" env:"DB_MAX_ROWS" env-default:"500"`
}

// IsConfigured reports whether enough is set to open a connection.
func (d *DatasourceConfig) IsConfigured() bool {
	return d.Type != "" && d.Host != "" && d.Database != ""
}

// TenantConfig describes how tables are partitioned by name prefix.
type TenantConfig struct {
	// BasePrefix is the installation-wide table prefix, e.g. "wp_".
	BasePrefix string `yaml:"base_prefix" env:"TENANT_BASE_PREFIX" env-default:"wp_"`
	// MultiTenant enables the "{base}{network}_{tenant}_" compound prefix scheme.
	MultiTenant bool `yaml:"multi_tenant" env:"TENANT_MULTI" env-default:"true"`
	NetworkID   int  `yaml:"network_id" env:"TENANT_NETWORK_ID" env-default:"1"`
	TenantID    int  `yaml:"tenant_id" env:"TENANT_ID" env-default:"1"`
	// SharedSuffixesStr is a comma-separated list of base-prefixed tables
	// visible to every tenant.
	SharedSuffixesStr string `yaml:"shared_suffixes" env:"TENANT_SHARED_SUFFIXES" env-default:"users,usermeta,blogs,site,sitemeta"`

	SharedSuffixes []string `yaml:"-"`
}

// Completion providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// LLMConfig holds the completion service settings.
type LLMConfig struct {
	// Provider selects the client: "openai" (any OpenAI-compatible endpoint) or "anthropic".
	Provider       string `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	Endpoint       string `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:"https://api.openai.com/v1"`
	Model          string `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o-mini"`
	APIKey         string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"LLM_TIMEOUT_SECONDS" env-default:"60"`
	MaxTokens      int    `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"1024"`
}

// IsConfigured reports whether a completion client can be built.
// Local OpenAI-compatible endpoints do not need a key.
func (l *LLMConfig) IsConfigured() bool {
	if l.Model == "" {
		return false
	}
	switch l.Provider {
	case ProviderAnthropic:
		return l.APIKey != ""
	default:
		if l.Endpoint == "" {
			return false
		}
		return l.APIKey != "" || !strings.Contains(l.Endpoint, "api.openai.com")
	}
}

// AssistantConfig tunes the question pipeline.
type AssistantConfig struct {
	MaxQuestionLength int `yaml:"max_question_length" env:"ASSISTANT_MAX_QUESTION_LENGTH" env-default:"2000"`
	// MaxPromptTokens rejects schema descriptions estimated above this size.
	MaxPromptTokens int `yaml:"max_prompt_tokens" env:"ASSISTANT_MAX_PROMPT_TOKENS" env-default:"12000"`
	MaxTables       int `yaml:"max_tables" env:"ASSISTANT_MAX_TABLES" env-default:"50"`
	// Narrative enables a completion-written summary of result rows.
	Narrative bool `yaml:"narrative" env:"ASSISTANT_NARRATIVE" env-default:"true"`
	// ShowSQL includes the executed statement in responses.
	ShowSQL bool `yaml:"show_sql" env:"ASSISTANT_SHOW_SQL" env-default:"true"`
}

// SecurityConfig holds the configurable sensitive-data patterns and the
// confirmation signing key.
type SecurityConfig struct {
	// BlockedPatternsStr is a comma-separated list of case-insensitive regexes
	// screened against question text and generated SQL.
	BlockedPatternsStr string `yaml:"blocked_patterns" env:"SECURITY_BLOCKED_PATTERNS" env-default:""`
	// BlockedColumnsStr is a comma-separated list of column names stripped from results.
	BlockedColumnsStr      string `yaml:"blocked_columns" env:"SECURITY_BLOCKED_COLUMNS" env-default:""`
	ConfirmationSecret     string `yaml:"-" env:"CONFIRMATION_SECRET"` // Secret - not in YAML
	ConfirmationTTLMinutes int    `yaml:"confirmation_ttl_minutes" env:"CONFIRMATION_TTL_MINUTES" env-default:"10"`

	BlockedPatterns []string `yaml:"-"`
	BlockedColumns  []string `yaml:"-"`
}

// PlatformConfig points at the host site's resource API used to apply
// confirmed create/update/delete operations.
type PlatformConfig struct {
	BaseURL        string `yaml:"base_url" env:"PLATFORM_BASE_URL" env-default:""`
	Token          string `yaml:"-" env:"PLATFORM_TOKEN"` // Secret - not in YAML
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"PLATFORM_TIMEOUT_SECONDS" env-default:"15"`
}

// IsConfigured reports whether the mutation channel is available.
func (p *PlatformConfig) IsConfigured() bool {
	return p.BaseURL != ""
}

// Load reads configuration from config.yaml with environment variable overrides.
// When config.yaml is absent, configuration comes from the environment alone.
func Load(version string) (*Config, error) {
	return LoadFile("config.yaml", version)
}

// LoadFile is Load with an explicit path.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, statErr := os.Stat(path); statErr == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(statErr, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, statErr)
	}

	cfg.parseComplexFields()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() {
	c.Tenant.SharedSuffixes = splitList(c.Tenant.SharedSuffixesStr)
	c.Security.BlockedPatterns = splitList(c.Security.BlockedPatternsStr)
	c.Security.BlockedColumns = splitList(c.Security.BlockedColumnsStr)
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	c.Datasource.Type = strings.ToLower(strings.TrimSpace(c.Datasource.Type))
}

func (c *Config) validate() error {
	if c.Tenant.BasePrefix == "" {
		return fmt.Errorf("tenant.base_prefix is required")
	}
	if c.Tenant.MultiTenant && (c.Tenant.TenantID < 1 || c.Tenant.NetworkID < 1) {
		return fmt.Errorf("tenant ids must be positive, got network=%d tenant=%d", c.Tenant.NetworkID, c.Tenant.TenantID)
	}
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unsupported llm.provider %q", c.LLM.Provider)
	}
	if c.Auth.EnableVerification && c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required when auth verification is enabled")
	}
	return nil
}

// splitList parses "a, b,,c" into [a b c].
func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
