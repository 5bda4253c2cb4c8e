package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	DBPath             string
	ServerPort         string
	LogLevel           string
	UpstreamURL        string
	LogoCDNURL         string
	PlaceholderLogoURL string
	// empty means upstream requests go out directly
	ProxyURL string
	CacheTTL time.Duration
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		DBPath:             getEnv("DB_PATH", "kanaliiga.db"),
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		UpstreamURL:        strings.TrimRight(getEnv("UPSTREAM_URL", "https://kanastats.com"), "/"),
		LogoCDNURL:         strings.TrimRight(getEnv("LOGO_CDN_URL", "https://kanastats.s3-eu-west-1.amazonaws.com/teamlogos"), "/"),
		PlaceholderLogoURL: getEnv("PLACEHOLDER_LOGO_URL", "https://kanastats.com/images/newLogo4.webp"),
		ProxyURL:           getEnv("PROXY_URL", ""),
	}

	ttl, err := time.ParseDuration(getEnv("CACHE_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}
	cfg.CacheTTL = ttl

	if u, err := url.Parse(cfg.UpstreamURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid UPSTREAM_URL %q", cfg.UpstreamURL)
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("upstream_url", cfg.UpstreamURL).
		Bool("proxied", cfg.ProxyURL != "").
		Dur("cache_ttl", cfg.CacheTTL).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var Module = fx.Provide(Load)
