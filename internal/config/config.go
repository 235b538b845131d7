package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
)

type Config struct {
	Port   string `env:"PORT" envDefault:"8080"`
	AppEnv string `env:"APP_ENV" envDefault:"development"`

	DBUser                 string `env:"DB_USER,required"`
	DBPassword             string `env:"DB_PASSWORD,required"`
	DBHost                 string `env:"DB_HOST,required"` // e.g. tcp(host:3306) or unix(/cloudsql/instance)
	DBName                 string `env:"DB_NAME,required"`
	DBPort                 string `env:"DB_PORT" envDefault:"3306"`
	InstanceConnectionName string `env:"INSTANCE_CONNECTION_NAME"`

	FirebaseProjectID string `env:"FIREBASE_PROJECT_ID"`

	PaymentProvider     string `env:"PAYMENT_PROVIDER" envDefault:"stripe"`
	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	PaymentCurrency     string `env:"PAYMENT_CURRENCY" envDefault:"usd"`
	CheckoutSuccessURL  string `env:"CHECKOUT_SUCCESS_URL" envDefault:"http://localhost:3000/orders/success"`
	CheckoutCancelURL   string `env:"CHECKOUT_CANCEL_URL" envDefault:"http://localhost:3000/orders/cancel"`

	SMTPHost string `env:"SMTP_HOST"`
	SMTPPort string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser string `env:"SMTP_USER"`
	SMTPPass string `env:"SMTP_PASS"`
	SMTPFrom string `env:"SMTP_FROM"`

	KafkaBrokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaOrderTopic string   `env:"KAFKA_ORDER_TOPIC" envDefault:"order-events"`

	StorageBucket          string `env:"STORAGE_BUCKET"`
	StorageCredentialsFile string `env:"STORAGE_CREDENTIALS_FILE"`
	GeminiModel            string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	GeminiEnabled          bool   `env:"GEMINI_ENABLED" envDefault:"false"`

	CronSecret        string        `env:"CRON_SECRET"`
	ReminderLead      time.Duration `env:"REMINDER_LEAD" envDefault:"24h"`
	ReminderFinalLead time.Duration `env:"REMINDER_FINAL_LEAD" envDefault:"3h"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	cfg.PaymentProvider = strings.ToLower(strings.TrimSpace(cfg.PaymentProvider))
	return &cfg, nil
}

// PaymentsEnabled reports whether reservations should open a checkout with the gateway.
func (c *Config) PaymentsEnabled() bool {
	return c.PaymentProvider == "stripe" && c.StripeSecretKey != ""
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
