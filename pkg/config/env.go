package config

const EnvPrefix = "LIVEBAG"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	OutboxSinkPubSub = "pubsub"
	OutboxSinkKafka  = "kafka"
)

const (
	EnvAppEnv      = "LIVEBAG_APP_ENV"
	EnvPort        = "LIVEBAG_APP_PORT"
	EnvDBDSN       = "LIVEBAG_DB_DSN"
	EnvDBHost      = "LIVEBAG_DB_HOST"
	EnvDBUser      = "LIVEBAG_DB_USER"
	EnvDBName      = "LIVEBAG_DB_NAME"
	EnvRedisURL    = "LIVEBAG_REDIS_URL"
	EnvJWTSecret   = "LIVEBAG_JWT_SECRET"
	EnvJWTIssuer   = "LIVEBAG_JWT_ISSUER"
	EnvOutboxSink  = "LIVEBAG_OUTBOX_SINK"
	EnvKafkaBroker = "LIVEBAG_KAFKA_BROKERS"

	EnvCourierFee       = "LIVEBAG_FULFILLMENT_COURIER_FEE"
	EnvMelhorEnvioToken = "LIVEBAG_MELHOR_ENVIO_TOKEN"
	EnvSenderDocument   = "LIVEBAG_SENDER_DOCUMENT"
	EnvSenderPostalCode = "LIVEBAG_SENDER_POSTAL_CODE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
