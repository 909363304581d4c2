package config

import (
	"fmt"
	"strings"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Configはアプリ全体の設定
type Config struct {
	// サーバーポート
	Port string `env:"PORT" envDefault:"8080" validate:"required,numeric"`

	//DATABASE_URLがあれば最優先
	DatabaseURL      string `env:"DATABASE_URL"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"postgres"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"app"`
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432" validate:"min=1,max=65535"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	//セッションcookieの署名と有効期限
	SessionSecret string        `env:"SESSION_SECRET" validate:"required,min=16"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h" validate:"gt=0"`
	CookieSecure  bool          `env:"COOKIE_SECURE" envDefault:"true"`

	//Google OAuth。PublicBaseURLからcallback URLを組み立てる
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID" validate:"required"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET" validate:"required"`
	PublicBaseURL      string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080" validate:"required,url"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"https://localhost:7085"`

	//0なら無効
	RateLimitPerSec float64 `env:"RATE_LIMIT_PER_SECOND" envDefault:"20" validate:"gte=0"`

	MaxImageBytes   int64         `env:"MAX_IMAGE_BYTES" envDefault:"2097152" validate:"gt=0"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	GoEnv    string `env:"GO_ENV" envDefault:"dev" validate:"oneof=dev test prod"`
}

// Loadは.env（あれば）と環境変数から読む
func Load(envFiles ...string) (Config, error) {
	// .envは無くてもよい
	_ = godotenv.Load(envFiles...)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// IsProd は本番かどうか
func (c Config) IsProd() bool {
	return c.GoEnv == "prod"
}

// Addr は ":8080" 形式
func (c Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// DSN はgorm(postgres)の接続文字列
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

// GoogleRedirectURL はOAuthのcallback URL（固定パス）
func (c Config) GoogleRedirectURL() string {
	return strings.TrimRight(c.PublicBaseURL, "/") + "/api/login/signin-google"
}
