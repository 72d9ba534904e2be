package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	ld "github.com/launchdarkly/go-server-sdk/v7"
	"github.com/learnly/mono-repo/backend/shared/go-utils"
)

// Config holds all application configuration, including secrets, flags, etc.
type Config struct {
	OrganizationName  string
	AppName           string
	Env               string
	AppPort           string
	AppUrl            string
	DBUrl             string
	RedisURL          string
	TokenStoreBackend string
	SigningKey        utils.SigningKey
	TokenTTL          time.Duration
	TokenIssuer       string
	TokenAudience     string
	BlacklistEnabled  bool
	ResetTokenTTL     time.Duration
	PasswordMinLength int
	SendGridAPIKey    string
	SendGridFromEmail string
	ShutdownTimeout   time.Duration
	TrustedProxyHops  int

	LoginLimitPerIPPerWindow  int
	EmailLimitPerIPPerHour    int
	EmailLimitPerEmailPerHour int
	GlobalEmailLimitPerHour   int
	RateLimitWindow           time.Duration

	// Static flags fetched once from LaunchDarkly
	LDFlag_SendgridSandboxMode bool
	LDFlag_ShortTokenTTL       bool
	LDFlag_ExposeResetTokens   bool
	LDFlag_CORSHighSecurity    bool
}

// Constants for time-based configuration defaults.
const (
	OrganizationName       = utils.OrganizationName
	TestShortTokenExpiry   = 3 * time.Second
	TestShortResetTokenTTL = 5 * time.Second
	LDConnectionTimeout    = 5 * time.Second
	TestShortGlobalLimit   = 50
)

// Global compile-time overrides.
var (
	AppName             = "auth-service"
	LDServerContextKind = "service"
)

// envConfig is the raw environment surface. Flag fallbacks apply only when
// LD_SDK_KEY is unset.
type envConfig struct {
	Env                string        `env:"ENV,required,notEmpty"`
	AppPort            string        `env:"APP_PORT" envDefault:"8080"`
	AppUrl             string        `env:"APP_URL_FROM_ANYWHERE,required,notEmpty"`
	DBUrl              string        `env:"DB_URL,required,notEmpty"`
	RedisURL           string        `env:"REDIS_URL"`
	TokenStoreBackend  string        `env:"TOKEN_STORE_BACKEND" envDefault:"identity"`
	SigningKeyBase64   string        `env:"JWT_SIGNING_KEY_BASE64,required,notEmpty,unset"`
	TokenTTL           time.Duration `env:"TOKEN_TTL" envDefault:"4h"`
	TokenIssuer        string        `env:"TOKEN_ISSUER"`
	TokenAudience      string        `env:"TOKEN_AUDIENCE"`
	BlacklistEnabled   bool          `env:"BLACKLIST_ENABLED" envDefault:"true"`
	ResetTokenTTL      time.Duration `env:"RESET_TOKEN_TTL" envDefault:"1h"`
	PasswordMinLength  int           `env:"PASSWORD_MIN_LENGTH" envDefault:"8"`
	SendGridAPIKey     string        `env:"SENDGRID_API_KEY,unset"`
	SendGridFromEmail  string        `env:"SENDGRID_FROM_EMAIL" envDefault:"no-reply@learnly.app"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	TrustedProxyHops   int           `env:"TRUSTED_PROXY_HOPS" envDefault:"0"`
	LDSDKKey           string        `env:"LD_SDK_KEY,unset"`
	LDServerContextKey string        `env:"LD_SERVER_CONTEXT_KEY"`

	LoginLimitPerIPPerWindow  int           `env:"LOGIN_LIMIT_PER_IP" envDefault:"30"`
	EmailLimitPerIPPerHour    int           `env:"EMAIL_LIMIT_PER_IP_PER_HOUR" envDefault:"50"`
	EmailLimitPerEmailPerHour int           `env:"EMAIL_LIMIT_PER_EMAIL_PER_HOUR" envDefault:"5"`
	GlobalEmailLimitPerHour   int           `env:"GLOBAL_EMAIL_LIMIT_PER_HOUR" envDefault:"2000"`
	RateLimitWindow           time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1h"`

	SendgridSandboxMode bool `env:"SENDGRID_SANDBOX_MODE" envDefault:"false"`
	ShortTokenTTL       bool `env:"SHORT_TOKEN_TTL" envDefault:"false"`
	ExposeResetTokens   bool `env:"EXPOSE_RESET_TOKENS" envDefault:"false"`
	CORSHighSecurity    bool `env:"CORS_HIGH_SECURITY" envDefault:"true"`
}

// staticFlags are the LaunchDarkly flags read once at startup.
type staticFlags struct {
	SendgridSandboxMode bool
	ShortTokenTTL       bool
	ExposeResetTokens   bool
	CORSHighSecurity    bool
}

// flagSource lets tests stand in for LaunchDarkly.
type flagSource func(e envConfig) (staticFlags, error)

// LoadConfig reads the environment (and .env in development), fetches the
// static LaunchDarkly flags and returns a *Config. Any problem is fatal.
func LoadConfig() *Config {
	if AppName == "" {
		utils.Logger.Fatal("AppName was not overridden with ldflags at build time (or is empty)")
	}
	utils.Logger.Info("Loading config for app: ", AppName)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		utils.Logger.WithError(err).Warn("Failed to read .env file")
	}

	cfg, err := load(fetchLaunchDarklyFlags)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Invalid configuration")
	}
	utils.Logger.Debugf("App can be accessed at: %s", cfg.AppUrl)
	return cfg
}

func load(flags flagSource) (*Config, error) {
	var e envConfig
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	key, err := utils.ParseSigningKey(e.SigningKeyBase64)
	if err != nil {
		return nil, fmt.Errorf("JWT_SIGNING_KEY_BASE64: %w", err)
	}

	switch e.TokenStoreBackend {
	case "identity", "cache":
	default:
		return nil, fmt.Errorf("TOKEN_STORE_BACKEND must be identity or cache, got %q", e.TokenStoreBackend)
	}
	if e.TokenStoreBackend == "cache" && e.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required when TOKEN_STORE_BACKEND=cache")
	}
	if e.TokenTTL <= 0 {
		return nil, errors.New("TOKEN_TTL must be positive")
	}
	if e.TrustedProxyHops < 0 {
		return nil, errors.New("TRUSTED_PROXY_HOPS must not be negative")
	}
	if e.PasswordMinLength < 1 {
		return nil, errors.New("PASSWORD_MIN_LENGTH must be at least 1")
	}
	if e.TokenIssuer == "" {
		e.TokenIssuer = utils.DefaultTokenIssuer
	}
	if e.TokenAudience == "" {
		e.TokenAudience = utils.DefaultTokenAudience
	}

	f, err := flags(e)
	if err != nil {
		return nil, err
	}

	tokenTTL := e.TokenTTL
	resetTTL := e.ResetTokenTTL
	globalEmailLimit := e.GlobalEmailLimitPerHour
	if f.ShortTokenTTL {
		tokenTTL = TestShortTokenExpiry
		resetTTL = TestShortResetTokenTTL
		globalEmailLimit = TestShortGlobalLimit
	}

	return &Config{
		OrganizationName:          OrganizationName,
		AppName:                   AppName,
		Env:                       e.Env,
		AppPort:                   e.AppPort,
		AppUrl:                    e.AppUrl,
		DBUrl:                     e.DBUrl,
		RedisURL:                  e.RedisURL,
		TokenStoreBackend:         e.TokenStoreBackend,
		SigningKey:                key,
		TokenTTL:                  tokenTTL,
		TokenIssuer:               e.TokenIssuer,
		TokenAudience:             e.TokenAudience,
		BlacklistEnabled:          e.BlacklistEnabled,
		ResetTokenTTL:             resetTTL,
		PasswordMinLength:         e.PasswordMinLength,
		SendGridAPIKey:            e.SendGridAPIKey,
		SendGridFromEmail:         e.SendGridFromEmail,
		ShutdownTimeout:           e.ShutdownTimeout,
		TrustedProxyHops:          e.TrustedProxyHops,
		LoginLimitPerIPPerWindow:  e.LoginLimitPerIPPerWindow,
		EmailLimitPerIPPerHour:    e.EmailLimitPerIPPerHour,
		EmailLimitPerEmailPerHour: e.EmailLimitPerEmailPerHour,
		GlobalEmailLimitPerHour:   globalEmailLimit,
		RateLimitWindow:           e.RateLimitWindow,

		LDFlag_SendgridSandboxMode: f.SendgridSandboxMode,
		LDFlag_ShortTokenTTL:       f.ShortTokenTTL,
		LDFlag_ExposeResetTokens:   f.ExposeResetTokens,
		LDFlag_CORSHighSecurity:    f.CORSHighSecurity,
	}, nil
}

func fetchLaunchDarklyFlags(e envConfig) (staticFlags, error) {
	fallback := staticFlags{
		SendgridSandboxMode: e.SendgridSandboxMode,
		ShortTokenTTL:       e.ShortTokenTTL,
		ExposeResetTokens:   e.ExposeResetTokens,
		CORSHighSecurity:    e.CORSHighSecurity,
	}
	if e.LDSDKKey == "" {
		utils.Logger.Info("LD_SDK_KEY not set; using flag values from the environment")
		return fallback, nil
	}

	ldClient, err := ld.MakeClient(e.LDSDKKey, LDConnectionTimeout)
	if err != nil {
		return staticFlags{}, fmt.Errorf("create LaunchDarkly client: %w", err)
	}
	defer ldClient.Close()
	if !ldClient.Initialized() {
		return staticFlags{}, errors.New("LaunchDarkly client failed to initialize")
	}

	contextKey := e.LDServerContextKey
	if contextKey == "" {
		contextKey = AppName + "-" + e.Env
	}
	context := ldcontext.NewWithKind(ldcontext.Kind(LDServerContextKind), contextKey)

	var f staticFlags
	for _, b := range []struct {
		name string
		dst  *bool
		def  bool
	}{
		{"sendgrid_sandbox_mode", &f.SendgridSandboxMode, fallback.SendgridSandboxMode},
		{"short_token_ttl", &f.ShortTokenTTL, fallback.ShortTokenTTL},
		{"expose_reset_tokens", &f.ExposeResetTokens, fallback.ExposeResetTokens},
		{"cors_high_security", &f.CORSHighSecurity, fallback.CORSHighSecurity},
	} {
		v, err := ldClient.BoolVariation(b.name, context, b.def)
		if err != nil {
			return staticFlags{}, fmt.Errorf("retrieve %s flag: %w", b.name, err)
		}
		utils.Logger.Debugf("%s flag: %t", b.name, v)
		*b.dst = v
	}
	return f, nil
}

// Close cleans up any resources used by Config.
func (c *Config) Close() {
}
