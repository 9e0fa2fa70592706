package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agendadigital/agenda-platform/internal/tenancy"
)

// Environment selects between the parallel backend credential sets.
type Environment string

const (
	EnvTest       Environment = "test"
	EnvProduction Environment = "production"
)

// TenantConfig is the raw per-tenant block read from the environment.
type TenantConfig struct {
	ID             string
	Base           string
	DisplayName    string
	HistoryKey     string
	SecretaryPhone string
	NotifyEmail    string
	Gateway        tenancy.GatewayCredentials
}

// Config holds application configuration. It is assembled once at process
// start and injected into constructors; nothing reads mutable globals.
type Config struct {
	Port               string
	Env                Environment
	LogLevel           string
	LogFormat          string
	CORSAllowedOrigins []string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	StaffJWTSecret string

	GatewayBaseURL string
	GatewayTimeout time.Duration

	GeminiAPIKey        string
	GeminiModelID       string
	GeminiBackupModelID string

	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	Tenants []TenantConfig
}

// Load reads configuration from environment variables.
func Load() *Config {
	env := EnvTest
	if strings.ToLower(getEnv("APP_ENV", "test")) == "production" {
		env = EnvProduction
	}

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                env,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		CORSAllowedOrigins: splitAndTrim(getEnv("CORS_ALLOWED_ORIGINS", "")),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       redisDBFor(env),

		StaffJWTSecret: getEnv("STAFF_JWT_SECRET", ""),

		GatewayBaseURL: getEnv("WHATSAPP_GATEWAY_BASE_URL", ""),
		GatewayTimeout: getEnvAsDuration("WHATSAPP_GATEWAY_TIMEOUT", 10*time.Second),

		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:       getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		GeminiBackupModelID: getEnv("GEMINI_BACKUP_MODEL_ID", ""),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Agenda Digital"),
	}

	cfg.Tenants = loadTenants(env)
	return cfg
}

// loadTenants builds the per-tenant blocks. TENANT_IDS lists the tenant ids;
// each tenant then has a TENANT_<KEY>_* family of variables. The defaults
// mirror the two historical tenants: a clinic group indexed by physical unit
// and a clinic indexed by physician.
func loadTenants(env Environment) []TenantConfig {
	ids := splitAndTrim(getEnv("TENANT_IDS", "drm,oft45"))

	defaults := map[string]TenantConfig{
		"drm":   {ID: "drm", Base: "DRM", DisplayName: "DRM", HistoryKey: "historicoDaConversa"},
		"oft45": {ID: "oft45", Base: "OFT/45", DisplayName: "OftalmoDay Tijuca", HistoryKey: "oft45HistoricoDaConversa"},
	}

	tenants := make([]TenantConfig, 0, len(ids))
	for _, id := range ids {
		tc, ok := defaults[id]
		if !ok {
			tc = TenantConfig{ID: id}
		}
		key := envKey(id)
		tc.Base = getEnv("TENANT_"+key+"_BASE", tc.Base)
		tc.DisplayName = getEnv("TENANT_"+key+"_NAME", tc.DisplayName)
		tc.HistoryKey = getEnv("TENANT_"+key+"_HISTORY_KEY", tc.HistoryKey)
		tc.SecretaryPhone = getEnv("TENANT_"+key+"_SECRETARY_PHONE", "")
		tc.NotifyEmail = getEnv("TENANT_"+key+"_NOTIFY_EMAIL", "")
		tc.Gateway = gatewayFor(env, key)
		tenants = append(tenants, tc)
	}
	return tenants
}

// gatewayFor picks the outbound-gateway credential set. The test environment
// shares one sandbox instance across tenants; production has one instance
// per tenant.
func gatewayFor(env Environment, tenantKey string) tenancy.GatewayCredentials {
	if env != EnvProduction {
		return tenancy.GatewayCredentials{
			InstanceID:  getEnv("GATEWAY_TEST_INSTANCE_ID", ""),
			Token:       getEnv("GATEWAY_TEST_TOKEN", ""),
			ClientToken: getEnv("GATEWAY_TEST_CLIENT_TOKEN", ""),
		}
	}
	return tenancy.GatewayCredentials{
		InstanceID:  getEnv("GATEWAY_"+tenantKey+"_INSTANCE_ID", ""),
		Token:       getEnv("GATEWAY_"+tenantKey+"_TOKEN", ""),
		ClientToken: getEnv("GATEWAY_"+tenantKey+"_CLIENT_TOKEN", getEnv("GATEWAY_CLIENT_TOKEN", "")),
	}
}

// Registry resolves the tenant blocks into a tenancy registry, fixing each
// tenant's indexing mode exactly once.
func (c *Config) Registry() (*tenancy.Registry, error) {
	tenants := make([]tenancy.Tenant, 0, len(c.Tenants))
	for _, tc := range c.Tenants {
		tenants = append(tenants, tenancy.Tenant{
			ID:             tc.ID,
			Base:           tc.Base,
			Mode:           tenancy.ModeFromBase(tc.Base),
			DisplayName:    tc.DisplayName,
			HistoryKey:     tc.HistoryKey,
			SecretaryPhone: tc.SecretaryPhone,
			NotifyEmail:    tc.NotifyEmail,
			Gateway:        tc.Gateway,
		})
	}
	reg, err := tenancy.NewRegistry(tenants)
	if err != nil {
		return nil, fmt.Errorf("config: build tenant registry: %w", err)
	}
	return reg, nil
}

// redisDBFor keeps test and production ledgers in separate logical databases
// on a shared Redis, unless REDIS_DB overrides the split.
func redisDBFor(env Environment) int {
	if v := getEnv("REDIS_DB", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	if env == EnvProduction {
		return 0
	}
	return 1
}

func envKey(id string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", "/", "_").Replace(id))
}

func splitAndTrim(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
