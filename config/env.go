package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Env holds deployment settings and secrets read from the environment.
type Env struct {
	ListenAddr    string        `env:"LIONTECH_ADDR" envDefault:":8080"`
	PublicURL     string        `env:"LIONTECH_PUBLIC_URL" envDefault:"http://localhost:8080"`
	SettingsPath  string        `env:"LIONTECH_SETTINGS" envDefault:"./liontech.yaml"`
	Debug         bool          `env:"LIONTECH_DEBUG"`
	DBDriver      string        `env:"LIONTECH_DB_DRIVER" envDefault:"sqlite3"`
	DBDSN         string        `env:"LIONTECH_DB_DSN" envDefault:"./liontech.db"`
	JWTSecret     string        `env:"LIONTECH_JWT_SECRET"`
	SessionTTL    time.Duration `env:"LIONTECH_SESSION_TTL" envDefault:"12h"`
	SecureCookies bool          `env:"LIONTECH_SECURE_COOKIES"`
	// Addresses or CIDR ranges of reverse proxies allowed to set
	// X-Forwarded-For.
	TrustedProxies []string `env:"LIONTECH_TRUSTED_PROXIES" envSeparator:","`

	PaymentBaseURL       string `env:"PAYMENT_BASE_URL" envDefault:"https://api.mercadopago.com"`
	PaymentAccessToken   string `env:"PAYMENT_ACCESS_TOKEN"`
	PaymentWebhookSecret string `env:"PAYMENT_WEBHOOK_SECRET"`

	WhatsAppBaseURL  string `env:"WHATSAPP_BASE_URL"`
	WhatsAppAPIKey   string `env:"WHATSAPP_API_KEY"`
	WhatsAppInstance string `env:"WHATSAPP_INSTANCE" envDefault:"liontech"`

	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"local"`
	StorageDir     string `env:"STORAGE_DIR" envDefault:"./data"`
	S3Bucket       string `env:"S3_BUCKET"`
	S3Region       string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint     string `env:"S3_ENDPOINT"`
	S3AccessKey    string `env:"S3_ACCESS_KEY"`
	S3SecretKey    string `env:"S3_SECRET_KEY"`
	S3PathStyle    bool   `env:"S3_PATH_STYLE"`
	S3PublicURL    string `env:"S3_PUBLIC_URL"`

	ChromePath string `env:"CHROME_PATH"`
}

// LoadEnv reads an optional .env file and parses the environment.
func LoadEnv(dotenvFiles ...string) (Env, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Env{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse environment: %w", err)
	}
	if e.JWTSecret == "" {
		return Env{}, fmt.Errorf("LIONTECH_JWT_SECRET is required")
	}
	if e.StorageBackend == "s3" && e.S3Bucket == "" {
		return Env{}, fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=s3")
	}
	return e, nil
}
