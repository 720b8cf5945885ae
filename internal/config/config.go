package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Snippet delete policies.
const (
	SnippetPolicyRestrict = "restrict"
	SnippetPolicyNullify  = "nullify"
)

// DefaultSessionSecret is only meant for local development.
const DefaultSessionSecret = "sitepages-dev-secret"

// ErrInsecureSessionSecret is returned by CheckSessionSecret.
var ErrInsecureSessionSecret = errors.New("SESSION_SECRET must be set to a non-default value when GIN_MODE=release")

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr          string        `env:"LISTEN_ADDR"`
	Port                string        `env:"PORT" envDefault:"8080"`
	DatabasePath        string        `env:"DATABASE_PATH" envDefault:"sitepages.db"`
	SessionSecret       string        `env:"SESSION_SECRET" envDefault:"sitepages-dev-secret"`
	GinMode             string        `env:"GIN_MODE" envDefault:"release"`
	UploadDir           string        `env:"UPLOAD_DIR" envDefault:"media"`
	UploadURLPath       string        `env:"UPLOAD_URL_PATH" envDefault:"/media"`
	SiteBaseURL         string        `env:"SITE_BASE_URL" envDefault:"http://localhost:8080"`
	SuperRootUserName   string        `env:"SUPER_ROOT_USER_NAME"`
	SuperRootPassword   string        `env:"SUPER_ROOT_PASSWORD"`
	LogLevel            string        `env:"LOG_LEVEL" envDefault:"info"`
	LogDevelopment      bool          `env:"LOG_DEVELOPMENT" envDefault:"false"`
	RedisURL            string        `env:"REDIS_URL"`
	CacheTTL            time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	CacheMaxEntries     int           `env:"CACHE_MAX_ENTRIES" envDefault:"1000"`
	SnippetDeletePolicy string        `env:"SNIPPET_DELETE_POLICY" envDefault:"restrict"`
}

// Load 从环境变量读取应用配置，并为缺失项提供默认值。
// 当前目录存在 .env 文件时会先加载它，已有的环境变量不会被覆盖。
func Load() (AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return AppConfig{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads the configuration from the process environment only.
func Parse() (AppConfig, error) {
	cfg, err := env.ParseAs[AppConfig]()
	if err != nil {
		return AppConfig{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c *AppConfig) normalize() error {
	c.Port = strings.TrimSpace(c.Port)
	if c.Port == "" {
		c.Port = "8080"
	}
	c.ListenAddr = strings.TrimSpace(c.ListenAddr)
	if c.ListenAddr == "" {
		c.ListenAddr = fmt.Sprintf(":%s", c.Port)
	}

	if strings.TrimSpace(c.UploadURLPath) == "" {
		c.UploadURLPath = "/media"
	}
	c.UploadURLPath = "/" + strings.Trim(strings.TrimSpace(c.UploadURLPath), "/")
	if c.UploadURLPath == "/" {
		return errors.New("UPLOAD_URL_PATH must not be the site root")
	}
	c.SiteBaseURL = strings.TrimRight(strings.TrimSpace(c.SiteBaseURL), "/")

	c.SnippetDeletePolicy = strings.ToLower(strings.TrimSpace(c.SnippetDeletePolicy))
	switch c.SnippetDeletePolicy {
	case "":
		c.SnippetDeletePolicy = SnippetPolicyRestrict
	case SnippetPolicyRestrict, SnippetPolicyNullify:
	default:
		return fmt.Errorf("invalid SNIPPET_DELETE_POLICY %q (want %s or %s)",
			c.SnippetDeletePolicy, SnippetPolicyRestrict, SnippetPolicyNullify)
	}
	return nil
}

// UseRedisCache reports whether page views are cached in Redis.
func (c AppConfig) UseRedisCache() bool {
	return strings.TrimSpace(c.RedisURL) != ""
}

// UsesDefaultSessionSecret reports whether cookies are signed with an empty
// or built-in secret.
func (c AppConfig) UsesDefaultSessionSecret() bool {
	secret := strings.TrimSpace(c.SessionSecret)
	return secret == "" || secret == DefaultSessionSecret
}

// CheckSessionSecret rejects the development secret in release mode.
func (c AppConfig) CheckSessionSecret() error {
	if c.UsesDefaultSessionSecret() && strings.EqualFold(strings.TrimSpace(c.GinMode), "release") {
		return ErrInsecureSessionSecret
	}
	return nil
}
