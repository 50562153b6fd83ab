package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/tradexpert/whatsnew-admin/pkg/logger"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Upstream  UpstreamConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Keycloak  KeycloakConfig
	RateLimit RateLimitConfig
	MinIO     MinIOConfig
	Drafts    DraftsConfig
	News      NewsConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	LogFormat    string
	// AddScreenURL and ManageScreenURL are the landing page links.
	AddScreenURL    string
	ManageScreenURL string
}

// UpstreamConfig points at the platform REST API the screens read and write.
type UpstreamConfig struct {
	BaseURL   string
	ListPath  string
	AdminPath string
	Timeout   time.Duration
	// JWTSecret signs a short-lived service token when set.
	JWTSecret string
	JWTTTL    time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

type KeycloakConfig struct {
	URL          string
	Realm        string
	ClientID     string
	ClientSecret string
	// AdminRole is the realm role required on /api; empty accepts any valid token.
	AdminRole string
	// AllowInsecure accepts unsigned tokens (integration environments only).
	AllowInsecure bool
}

// Issuer returns the realm issuer URL, or URL itself when no realm is set.
func (k KeycloakConfig) Issuer() string {
	if k.Realm == "" {
		return k.URL
	}
	return strings.TrimRight(k.URL, "/") + "/realms/" + k.Realm
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type DraftsConfig struct {
	// Store is one of memory, mongo, redis.
	Store        string
	TTL          time.Duration
	HistoryLimit int
}

type NewsConfig struct {
	Feeds        []string
	Limit        int
	FetchTimeout time.Duration
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5010")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("LOG_FORMAT", "text")
	viper.SetDefault("ADD_SCREEN_URL", "/swagger/index.html")
	viper.SetDefault("MANAGE_SCREEN_URL", "/swagger/index.html")
	viper.SetDefault("UPSTREAM_BASE_URL", "https://stage.api.tradexpert.ai")
	viper.SetDefault("UPSTREAM_LIST_PATH", "/api/v1/user/whatsnew")
	viper.SetDefault("UPSTREAM_ADMIN_PATH", "/api/v1/admin/whatsnew")
	viper.SetDefault("UPSTREAM_TIMEOUT", 15)
	viper.SetDefault("UPSTREAM_JWT_TTL", 5)
	viper.SetDefault("MONGODB_DATABASE", "whatsnew_admin")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("RATE_LIMIT_ENABLED", false)
	viper.SetDefault("RATE_LIMIT_USE_REDIS", false)
	viper.SetDefault("RATE_LIMIT_RPS", 10.0)
	viper.SetDefault("RATE_LIMIT_BURST", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	viper.SetDefault("MINIO_BUCKET", "whatsnew-archive")
	viper.SetDefault("DRAFT_STORE", "memory")
	viper.SetDefault("DRAFT_TTL_MINUTES", 120)
	viper.SetDefault("DRAFT_HISTORY_LIMIT", 50)
	viper.SetDefault("NEWS_FEED_LIMIT", 10)
	viper.SetDefault("NEWS_FETCH_TIMEOUT", 10)

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			LogFormat:    viper.GetString("LOG_FORMAT"),

			AddScreenURL:    viper.GetString("ADD_SCREEN_URL"),
			ManageScreenURL: viper.GetString("MANAGE_SCREEN_URL"),
		},
		Upstream: UpstreamConfig{
			BaseURL:   strings.TrimRight(viper.GetString("UPSTREAM_BASE_URL"), "/"),
			ListPath:  viper.GetString("UPSTREAM_LIST_PATH"),
			AdminPath: viper.GetString("UPSTREAM_ADMIN_PATH"),
			Timeout:   time.Duration(viper.GetInt("UPSTREAM_TIMEOUT")) * time.Second,
			JWTSecret: os.Getenv("UPSTREAM_JWT_SECRET"),
			JWTTTL:    time.Duration(viper.GetInt("UPSTREAM_JWT_TTL")) * time.Minute,
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Keycloak: KeycloakConfig{
			URL:           viper.GetString("KEYCLOAK_URL"),
			Realm:         viper.GetString("KEYCLOAK_REALM"),
			ClientID:      viper.GetString("KEYCLOAK_CLIENT_ID"),
			ClientSecret:  viper.GetString("KEYCLOAK_CLIENT_SECRET"),
			AdminRole:     viper.GetString("KEYCLOAK_ADMIN_ROLE"),
			AllowInsecure: viper.GetBool("ALLOW_INSECURE_TOKEN"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		MinIO: MinIOConfig{
			Endpoint:  viper.GetString("MINIO_ENDPOINT"),
			AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:    viper.GetBool("MINIO_USE_SSL"),
			Bucket:    viper.GetString("MINIO_BUCKET"),
		},
		Drafts: DraftsConfig{
			Store:        strings.ToLower(viper.GetString("DRAFT_STORE")),
			TTL:          time.Duration(viper.GetInt("DRAFT_TTL_MINUTES")) * time.Minute,
			HistoryLimit: viper.GetInt("DRAFT_HISTORY_LIMIT"),
		},
		News: NewsConfig{
			Feeds:        splitList(viper.GetString("NEWS_FEEDS")),
			Limit:        viper.GetInt("NEWS_FEED_LIMIT"),
			FetchTimeout: time.Duration(viper.GetInt("NEWS_FETCH_TIMEOUT")) * time.Second,
		},
	}

	// Basic validation
	if cfg.Upstream.JWTSecret == "" {
		logger.Warn("UPSTREAM_JWT_SECRET is not set; upstream requests are sent without a service token")
	}
	switch cfg.Drafts.Store {
	case "memory", "mongo", "redis":
	default:
		logger.Warnf("unknown DRAFT_STORE %q, using memory", cfg.Drafts.Store)
		cfg.Drafts.Store = "memory"
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
