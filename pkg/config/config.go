package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Kafka        KafkaConfig
	Outbox       OutboxConfig
	Fulfillment  FulfillmentConfig
	MelhorEnvio  MelhorEnvioConfig
	MercadoPago  MercadoPagoConfig
	Tracing      TracingConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var err error
	err = multierr.Append(err, c.DB.ensureDSN())
	err = multierr.Append(err, c.Fulfillment.validate())
	err = multierr.Append(err, c.MelhorEnvio.validate())
	err = multierr.Append(err, c.Outbox.validate())
	return err
}

type AppConfig struct {
	Env          string `envconfig:"LIVEBAG_APP_ENV" required:"true"`
	Port         string `envconfig:"LIVEBAG_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LIVEBAG_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LIVEBAG_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"LIVEBAG_CORS_ALLOWED_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LIVEBAG_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LIVEBAG_DB_DSN"`
	Driver string `envconfig:"LIVEBAG_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LIVEBAG_DB_HOST"`
	LegacyPort     int    `envconfig:"LIVEBAG_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LIVEBAG_DB_USER"`
	LegacyPassword string `envconfig:"LIVEBAG_DB_PASSWORD"`
	LegacyName     string `envconfig:"LIVEBAG_DB_NAME"`
	LegacySSLMode  string `envconfig:"LIVEBAG_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LIVEBAG_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LIVEBAG_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LIVEBAG_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LIVEBAG_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"LIVEBAG_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LIVEBAG_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LIVEBAG_REDIS_ADDR"`
	Password     string        `envconfig:"LIVEBAG_REDIS_PASSWORD"`
	DB           int           `envconfig:"LIVEBAG_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LIVEBAG_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LIVEBAG_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LIVEBAG_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LIVEBAG_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LIVEBAG_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the shared secret used to verify operator tokens issued by
// the identity service.
type JWTConfig struct {
	Secret            string        `envconfig:"LIVEBAG_JWT_SECRET" required:"true"`
	Issuer            string        `envconfig:"LIVEBAG_JWT_ISSUER" required:"true"`
	ExpirationMinutes int           `envconfig:"LIVEBAG_JWT_EXPIRATION_MINUTES" default:"60"`
	Audience          string        `envconfig:"LIVEBAG_JWT_AUDIENCE"`
	Leeway            time.Duration `envconfig:"LIVEBAG_JWT_LEEWAY" default:"30s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LIVEBAG_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"LIVEBAG_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LIVEBAG_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"LIVEBAG_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"LIVEBAG_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	BagsTopic         string `envconfig:"LIVEBAG_PUBSUB_BAGS_TOPIC" default:"livebag-bag-events"`
	NotificationTopic string `envconfig:"LIVEBAG_PUBSUB_NOTIFICATION_TOPIC" default:"livebag-notification-events"`
}

type KafkaConfig struct {
	Brokers []string `envconfig:"LIVEBAG_KAFKA_BROKERS"`
	Topic   string   `envconfig:"LIVEBAG_KAFKA_TOPIC" default:"livebag.bag-events"`
}

type OutboxConfig struct {
	Sink           string `envconfig:"LIVEBAG_OUTBOX_SINK" default:"pubsub"`
	BatchSize      int    `envconfig:"LIVEBAG_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"LIVEBAG_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"LIVEBAG_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int    `envconfig:"LIVEBAG_OUTBOX_RETENTION_DAYS" default:"30"`
}

func (o OutboxConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(o.Sink)) {
	case "", OutboxSinkPubSub, OutboxSinkKafka:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvOutboxSink, OutboxSinkPubSub, OutboxSinkKafka)
	}
}

// SinkName normalizes the configured publisher sink.
func (o OutboxConfig) SinkName() string {
	sink := strings.ToLower(strings.TrimSpace(o.Sink))
	if sink == "" {
		return OutboxSinkPubSub
	}
	return sink
}

type FulfillmentConfig struct {
	CourierFee string `envconfig:"LIVEBAG_FULFILLMENT_COURIER_FEE" default:"10.00"`
}

func (f FulfillmentConfig) validate() error {
	if _, err := decimal.NewFromString(strings.TrimSpace(f.CourierFee)); err != nil {
		return fmt.Errorf("%s must be a decimal amount: %w", EnvCourierFee, err)
	}
	return nil
}

// CourierFeeAmount returns the flat courier fee. Invalid values are rejected
// by Load, so callers receive zero only for hand-built configs.
func (f FulfillmentConfig) CourierFeeAmount() decimal.Decimal {
	fee, err := decimal.NewFromString(strings.TrimSpace(f.CourierFee))
	if err != nil {
		return decimal.Zero
	}
	return fee
}

type MelhorEnvioConfig struct {
	Token        string        `envconfig:"LIVEBAG_MELHOR_ENVIO_TOKEN"`
	BaseURL      string        `envconfig:"LIVEBAG_MELHOR_ENVIO_BASE_URL" default:"https://melhorenvio.com.br/api/v2"`
	UserAgent    string        `envconfig:"LIVEBAG_MELHOR_ENVIO_USER_AGENT" default:"livebag-backend (suporte@livebag.com.br)"`
	Timeout      time.Duration `envconfig:"LIVEBAG_MELHOR_ENVIO_TIMEOUT" default:"30s"`
	ServiceID    int           `envconfig:"LIVEBAG_MELHOR_ENVIO_SERVICE_ID" default:"1"`
	Platform     string        `envconfig:"LIVEBAG_MELHOR_ENVIO_PLATFORM" default:"livebag"`
	WalletURL    string        `envconfig:"LIVEBAG_MELHOR_ENVIO_WALLET_URL" default:"https://melhorenvio.com.br/painel/carteira"`
	PrintURLBase string        `envconfig:"LIVEBAG_MELHOR_ENVIO_PRINT_URL_BASE" default:"https://melhorenvio.com.br/imprimir"`

	SenderName        string `envconfig:"LIVEBAG_SENDER_NAME"`
	SenderPhone       string `envconfig:"LIVEBAG_SENDER_PHONE"`
	SenderEmail       string `envconfig:"LIVEBAG_SENDER_EMAIL"`
	SenderDocument    string `envconfig:"LIVEBAG_SENDER_DOCUMENT"`
	SenderPostalCode  string `envconfig:"LIVEBAG_SENDER_POSTAL_CODE"`
	SenderStreet      string `envconfig:"LIVEBAG_SENDER_STREET"`
	SenderNumber      string `envconfig:"LIVEBAG_SENDER_NUMBER"`
	SenderComplement  string `envconfig:"LIVEBAG_SENDER_COMPLEMENT"`
	SenderDistrict    string `envconfig:"LIVEBAG_SENDER_DISTRICT"`
	SenderCity        string `envconfig:"LIVEBAG_SENDER_CITY"`
	SenderStateAbbrev string `envconfig:"LIVEBAG_SENDER_STATE"`
}

// Enabled reports whether label purchasing is configured at all.
func (m MelhorEnvioConfig) Enabled() bool {
	return strings.TrimSpace(m.Token) != ""
}

func (m MelhorEnvioConfig) validate() error {
	if !m.Enabled() {
		return nil
	}
	if n := len(digitsOnly(m.SenderDocument)); n != 11 {
		return fmt.Errorf("%s must have 11 digits when %s is set, got %d", EnvSenderDocument, EnvMelhorEnvioToken, n)
	}
	if len(digitsOnly(m.SenderPostalCode)) != 8 {
		return fmt.Errorf("%s must have 8 digits when %s is set", EnvSenderPostalCode, EnvMelhorEnvioToken)
	}
	return nil
}

type MercadoPagoConfig struct {
	AccessToken string        `envconfig:"LIVEBAG_MERCADO_PAGO_ACCESS_TOKEN"`
	BaseURL     string        `envconfig:"LIVEBAG_MERCADO_PAGO_BASE_URL" default:"https://api.mercadopago.com"`
	Timeout     time.Duration `envconfig:"LIVEBAG_MERCADO_PAGO_TIMEOUT" default:"15s"`
}

type TracingConfig struct {
	Enabled        bool    `envconfig:"LIVEBAG_TRACING_ENABLED" default:"false"`
	JaegerEndpoint string  `envconfig:"LIVEBAG_TRACING_JAEGER_ENDPOINT" default:"http://localhost:14268/api/traces"`
	SampleRatio    float64 `envconfig:"LIVEBAG_TRACING_SAMPLE_RATIO" default:"1"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"LIVEBAG_CRON_INTERVAL" default:"15m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	var missing []string
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}
	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
