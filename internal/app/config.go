package app

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/yungbote/coursemarket-backend/internal/data/db"
	"github.com/yungbote/coursemarket-backend/internal/domain/billing"
	"github.com/yungbote/coursemarket-backend/internal/observability"
	"github.com/yungbote/coursemarket-backend/internal/platform/envutil"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/platform/payments"
)

const (
	ProcessorMock     = "mock"
	ProcessorMidtrans = "midtrans"
)

type Config struct {
	Port           string
	AllowedOrigins []string
	RequestTimeout time.Duration

	DB db.Config

	JWTSecretKey   string
	AccessTokenTTL time.Duration

	Rates              billing.Rates
	Processor          string
	ProcessorTimeout   time.Duration
	Mock               payments.MockConfig
	Midtrans           payments.MidtransConfig
	AsyncSideEffects   bool
	ExpirySweepSpec    string
	ExpirySweepTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	MetricsAddr string
	Otel        observability.OtelConfig
}

// LoadEnvFiles reads .env when present. Real environment variables win.
func LoadEnvFiles(log *logger.Logger) {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file loaded", "error", err)
	}
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:           envutil.String("PORT", "8080"),
		AllowedOrigins: splitList(envutil.String("CORS_ALLOWED_ORIGINS", "")),
		RequestTimeout: envutil.Duration("HTTP_REQUEST_TIMEOUT", 30*time.Second),

		DB: db.Config{
			Driver:           envutil.String("DB_DRIVER", db.DriverPostgres),
			PostgresHost:     envutil.String("POSTGRES_HOST", "localhost"),
			PostgresPort:     envutil.String("POSTGRES_PORT", "5432"),
			PostgresUser:     envutil.String("POSTGRES_USER", "postgres"),
			PostgresPassword: envutil.String("POSTGRES_PASSWORD", ""),
			PostgresName:     envutil.String("POSTGRES_NAME", "coursemarket"),
			PostgresSSLMode:  envutil.String("POSTGRES_SSLMODE", "disable"),
			SQLitePath:       envutil.String("SQLITE_PATH", "coursemarket.db"),
			MaxOpenConns:     envutil.Int("DB_MAX_OPEN_CONNS", 20),
			SlowThreshold:    envutil.Duration("DB_SLOW_THRESHOLD", time.Second),
		},

		JWTSecretKey:   envutil.String("JWT_SECRET_KEY", ""),
		AccessTokenTTL: envutil.Duration("ACCESS_TOKEN_TTL", time.Hour),

		Rates:            loadRates(log),
		Processor:        strings.ToLower(envutil.String("PAYMENT_PROCESSOR", ProcessorMock)),
		ProcessorTimeout: envutil.Duration("PAYMENT_PROCESSOR_TIMEOUT", 5*time.Second),
		Mock: payments.MockConfig{
			ChargeLatency:  envutil.Duration("MOCK_CHARGE_LATENCY", 100*time.Millisecond),
			RefundLatency:  envutil.Duration("MOCK_REFUND_LATENCY", 100*time.Millisecond),
			DeclineRefunds: envutil.Bool("MOCK_DECLINE_REFUNDS", false),
		},
		Midtrans: payments.MidtransConfig{
			ServerKey:  envutil.String("MIDTRANS_SERVER_KEY", ""),
			Production: envutil.Bool("MIDTRANS_PRODUCTION", false),
		},
		AsyncSideEffects:   envutil.Bool("ASYNC_SIDE_EFFECTS", true),
		ExpirySweepSpec:    envutil.String("EXPIRY_SWEEP_SCHEDULE", "@every 1h"),
		ExpirySweepTimeout: envutil.Duration("EXPIRY_SWEEP_TIMEOUT", 10*time.Minute),

		RedisAddr:     envutil.String("REDIS_ADDR", ""),
		RedisPassword: envutil.String("REDIS_PASSWORD", ""),
		RedisDB:       envutil.Int("REDIS_DB", 0),
		RedisChannel:  envutil.String("REDIS_CHANNEL", "coursemarket.events"),

		MetricsAddr: envutil.String("METRICS_ADDR", ""),
		Otel: observability.OtelConfig{
			Enabled:     envutil.Bool("OTEL_ENABLED", false),
			ServiceName: envutil.String("OTEL_SERVICE_NAME", "coursemarket"),
			Environment: envutil.String("APP_ENV", "development"),
			Version:     envutil.String("APP_VERSION", "dev"),
			Endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", true),
			Headers:     envutil.String("OTEL_EXPORTER_OTLP_HEADERS", ""),
			SampleRatio: envutil.Float("OTEL_SAMPLER_RATIO", 1),
		},
	}

	if cfg.JWTSecretKey == "" {
		log.Warn("JWT_SECRET_KEY not set; using an insecure development secret")
		cfg.JWTSecretKey = "dev-insecure-secret"
	}
	switch cfg.Processor {
	case ProcessorMock, ProcessorMidtrans:
	default:
		log.Warn("unknown PAYMENT_PROCESSOR; falling back to mock", "value", cfg.Processor)
		cfg.Processor = ProcessorMock
	}
	return cfg
}

func loadRates(log *logger.Logger) billing.Rates {
	rates := billing.DefaultRates()
	fee := envutil.Float("PAYMENT_FEE_RATE", rates.Fee.InexactFloat64())
	tax := envutil.Float("PAYMENT_TAX_RATE", rates.Tax.InexactFloat64())
	if fee < 0 || tax < 0 || fee+tax >= 1 {
		log.Warn("invalid payment rates; using defaults", "fee", fee, "tax", tax)
		return rates
	}
	return billing.Rates{Fee: decimal.NewFromFloat(fee), Tax: decimal.NewFromFloat(tax)}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
