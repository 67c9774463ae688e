package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	LogLevel    string
	CORSOrigins string

	DatabaseURL string
	RedisURL    string
	RedisPrefix string
	NATSURL     string

	JWTSecret string

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	MaxUploadSizeMB        int

	DirectoryCacheTTL time.Duration
	CommentReadTTL    time.Duration
	LockTTL           time.Duration
	LockTimeout       time.Duration
	Timezone          string
	Location          *time.Location

	ReminderSchedule string

	RateLimitMax    int
	RateLimitWindow time.Duration

	SeedEnabled bool
	SeedToken   string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsProduction reports whether the service runs in production mode.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Load reads configuration values from ACTIONLOG_* environment variables and an optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ACTIONLOG")
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Action Log API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("cors.origins", "*")
	v.SetDefault("redis.prefix", "actionlog")
	v.SetDefault("cloudinary.folder", "actionlog/attachments")
	v.SetDefault("upload.max_size_mb", 10)
	v.SetDefault("directory.cache_ttl", "5m")
	v.SetDefault("comments.read_ttl", "720h")
	v.SetDefault("lock.ttl", "10s")
	v.SetDefault("lock.timeout", "5s")
	v.SetDefault("timezone", "UTC")
	v.SetDefault("reminder.schedule", "30 8 * * *")
	v.SetDefault("rate_limit.max", 30)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("seed.enabled", true)

	durations := map[string]*time.Duration{}
	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 strings.ToLower(v.GetString("app.env")),
		AppPort:                v.GetString("app.port"),
		LogLevel:               strings.ToLower(v.GetString("log.level")),
		CORSOrigins:            v.GetString("cors.origins"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		RedisPrefix:            v.GetString("redis.prefix"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		MaxUploadSizeMB:        v.GetInt("upload.max_size_mb"),
		Timezone:               v.GetString("timezone"),
		ReminderSchedule:       strings.TrimSpace(v.GetString("reminder.schedule")),
		RateLimitMax:           v.GetInt("rate_limit.max"),
		SeedEnabled:            v.GetBool("seed.enabled"),
		SeedToken:              v.GetString("seed.token"),
	}
	durations["directory.cache_ttl"] = &cfg.DirectoryCacheTTL
	durations["comments.read_ttl"] = &cfg.CommentReadTTL
	durations["lock.ttl"] = &cfg.LockTTL
	durations["lock.timeout"] = &cfg.LockTimeout
	durations["rate_limit.window"] = &cfg.RateLimitWindow

	for key, target := range durations {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		*target = parsed
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	cfg.Location = location

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}
	if cfg.LockTimeout <= 0 || cfg.LockTTL <= 0 {
		return Config{}, fmt.Errorf("lock ttl and timeout must be positive")
	}
	if cfg.MaxUploadSizeMB <= 0 {
		cfg.MaxUploadSizeMB = 10
	}

	return cfg, nil
}
