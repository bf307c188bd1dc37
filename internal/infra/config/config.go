package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"hotelbooking/internal/infra/payments/momo"
)

// Config aggregates application configuration loaded from the environment,
// an optional .env file and an optional config.yaml.
type Config struct {
	Env                string
	HTTPAddr           string
	StoreDriver        string
	DatabaseURL        string
	MongoURI           string
	MongoDB            string
	KafkaBrokers       []string
	KafkaTopicPrefix   string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	JWTSecret          string
	JWTIssuer          string
	Currency           string
	PriceTolerance     int64
	PaymentWindow      time.Duration
	ReconcileSchedule  string
	RateLimitPerMin    int
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration
	StripeSecretKey    string
	RoomFixtures       string
	Momo               momo.Config
}

var ErrInvalidConfig = errors.New("config: invalid configuration")

// Load reads configuration. Values in the process environment win over
// .env, which wins over config.yaml.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read config file: %w", err)
		}
	}
	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("STORE_DRIVER", "memory")
	v.SetDefault("MONGO_DB", "hotelbooking")
	v.SetDefault("KAFKA_TOPIC_PREFIX", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_ISSUER", "hotelbooking")
	v.SetDefault("CURRENCY", "VND")
	v.SetDefault("PRICE_TOLERANCE", 1000)
	v.SetDefault("PAYMENT_WINDOW", "15m")
	v.SetDefault("RECONCILE_SCHEDULE", "*/5 * * * *")
	v.SetDefault("RATE_LIMIT_PER_MIN", 120)
	v.SetDefault("OUTBOX_POLL_INTERVAL", "500ms")
	v.SetDefault("RETRY_BACKOFF", "1s,5s,30s")
	v.SetDefault("MOMO_ENDPOINT", "https://test-payment.momo.vn")
	v.SetDefault("MOMO_REQUEST_TYPE", "captureWallet")
	v.SetDefault("MOMO_TIMEOUT", "30s")
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Env:               v.GetString("APP_ENV"),
		HTTPAddr:          v.GetString("HTTP_ADDR"),
		StoreDriver:       strings.ToLower(v.GetString("STORE_DRIVER")),
		DatabaseURL:       v.GetString("DATABASE_URL"),
		MongoURI:          v.GetString("MONGO_URI"),
		MongoDB:           v.GetString("MONGO_DB"),
		KafkaTopicPrefix:  v.GetString("KAFKA_TOPIC_PREFIX"),
		RedisAddr:         v.GetString("REDIS_ADDR"),
		RedisPassword:     v.GetString("REDIS_PASSWORD"),
		RedisDB:           v.GetInt("REDIS_DB"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		JWTIssuer:         v.GetString("JWT_ISSUER"),
		Currency:          strings.ToUpper(v.GetString("CURRENCY")),
		PriceTolerance:    v.GetInt64("PRICE_TOLERANCE"),
		ReconcileSchedule: v.GetString("RECONCILE_SCHEDULE"),
		RateLimitPerMin:   v.GetInt("RATE_LIMIT_PER_MIN"),
		StripeSecretKey:   v.GetString("STRIPE_SECRET_KEY"),
		RoomFixtures:      v.GetString("ROOM_FIXTURES"),
		Momo: momo.Config{
			PartnerCode: v.GetString("MOMO_PARTNER_CODE"),
			AccessKey:   v.GetString("MOMO_ACCESS_KEY"),
			SecretKey:   v.GetString("MOMO_SECRET_KEY"),
			Endpoint:    v.GetString("MOMO_ENDPOINT"),
			RedirectURL: v.GetString("MOMO_REDIRECT_URL"),
			IPNURL:      v.GetString("MOMO_IPN_URL"),
			RequestType: v.GetString("MOMO_REQUEST_TYPE"),
		},
	}
	brokers := strings.TrimSpace(v.GetString("KAFKA_BROKERS"))
	if brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	var err error
	if cfg.PaymentWindow, err = parseDuration(v, "PAYMENT_WINDOW"); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = parseDuration(v, "OUTBOX_POLL_INTERVAL"); err != nil {
		return Config{}, err
	}
	if cfg.Momo.Timeout, err = parseDuration(v, "MOMO_TIMEOUT"); err != nil {
		return Config{}, err
	}
	for _, raw := range strings.Split(v.GetString("RETRY_BACKOFF"), ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("%w: RETRY_BACKOFF component %q: %v", ErrInvalidConfig, raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case "memory":
	case "postgres", "sqlite":
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL is required for store driver %s", ErrInvalidConfig, c.StoreDriver)
		}
	default:
		return fmt.Errorf("%w: unknown STORE_DRIVER %q", ErrInvalidConfig, c.StoreDriver)
	}
	if c.PriceTolerance < 0 {
		return fmt.Errorf("%w: PRICE_TOLERANCE must not be negative", ErrInvalidConfig)
	}
	if c.PaymentWindow <= 0 {
		return fmt.Errorf("%w: PAYMENT_WINDOW must be positive", ErrInvalidConfig)
	}
	if c.Env != "dev" && c.JWTSecret == "" {
		return fmt.Errorf("%w: JWT_SECRET is required outside dev", ErrInvalidConfig)
	}
	return nil
}

// MomoEnabled reports whether wallet credentials were supplied.
func (c Config) MomoEnabled() bool {
	return c.Momo.PartnerCode != "" && c.Momo.SecretKey != ""
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s duration: %v", ErrInvalidConfig, key, err)
	}
	return d, nil
}
