package config

import (
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort        string `env:"HTTP_PORT" envDefault:"8080"`
	AppEnv          string `env:"APP_ENV" envDefault:"development"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL     string `env:"DATABASE_URL,required,notEmpty"`
	DBRunMigrations bool   `env:"DB_RUN_MIGRATIONS" envDefault:"true"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"Hey! Chat"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	JWTSecret            string `env:"JWT_SECRET"`
	JWTAccessSecret      string `env:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret     string `env:"JWT_REFRESH_SECRET"`
	JWTMode              string `env:"JWT_MODE" envDefault:"pair"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"15"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"10080"`
	JWTSingleTTLMinutes  int    `env:"JWT_SINGLE_TTL_MINUTES" envDefault:"60"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	OTPResendWindowMinutes int `env:"OTP_RESEND_WINDOW_MINUTES" envDefault:"10"`
	OTPResendMax           int `env:"OTP_RESEND_MAX" envDefault:"3"`

	S3Region        string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint      string `env:"S3_ENDPOINT"`
	S3Bucket        string `env:"S3_BUCKET"`
	S3AccessKey     string `env:"S3_ACCESS_KEY"`
	S3SecretKey     string `env:"S3_SECRET_KEY"`
	S3PublicBaseURL string `env:"S3_PUBLIC_BASE_URL"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate revisa combinaciones que env no puede expresar con tags.
func (c *Config) Validate() error {
	switch c.JWTMode {
	case "pair", "single":
	default:
		return errors.New("JWT_MODE must be pair or single")
	}
	if c.AccessSecret() == "" {
		return errors.New("JWT_SECRET or JWT_ACCESS_SECRET is required")
	}
	if c.JWTMode == "pair" && c.RefreshSecret() == "" {
		return errors.New("JWT_SECRET or JWT_REFRESH_SECRET is required")
	}
	return nil
}

// AccessSecret devuelve el secreto de access tokens, con fallback a JWT_SECRET.
func (c *Config) AccessSecret() string {
	if s := strings.TrimSpace(c.JWTAccessSecret); s != "" {
		return s
	}
	return strings.TrimSpace(c.JWTSecret)
}

// RefreshSecret devuelve el secreto de refresh tokens, con fallback a JWT_SECRET.
func (c *Config) RefreshSecret() string {
	if s := strings.TrimSpace(c.JWTRefreshSecret); s != "" {
		return s
	}
	return strings.TrimSpace(c.JWTSecret)
}

// AccessTTL devuelve la vida del access token segun el modo de sesion.
func (c *Config) AccessTTL() time.Duration {
	if c.JWTMode == "single" {
		return time.Duration(c.JWTSingleTTLMinutes) * time.Minute
	}
	return time.Duration(c.JWTAccessTTLMinutes) * time.Minute
}

// MediaEnabled indica si hay un bucket configurado para imagenes de perfil.
func (c *Config) MediaEnabled() bool {
	return strings.TrimSpace(c.S3Bucket) != ""
}
