package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable consumed by the service.
	EnvPrefix = "INTERPRETZ"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv = "INTERPRETZ_APP_ENV"
	EnvDBDSN  = "INTERPRETZ_DB_DSN"
	EnvDBHost = "INTERPRETZ_DB_HOST"
	EnvDBUser = "INTERPRETZ_DB_USER"
	EnvDBName = "INTERPRETZ_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	Engine       EngineConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"INTERPRETZ_APP_ENV" required:"true"`
	Port         string `envconfig:"INTERPRETZ_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"INTERPRETZ_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"INTERPRETZ_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"INTERPRETZ_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"INTERPRETZ_DB_DSN"`
	Driver string `envconfig:"INTERPRETZ_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"INTERPRETZ_DB_HOST"`
	LegacyPort     int    `envconfig:"INTERPRETZ_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"INTERPRETZ_DB_USER"`
	LegacyPassword string `envconfig:"INTERPRETZ_DB_PASSWORD"`
	LegacyName     string `envconfig:"INTERPRETZ_DB_NAME"`
	LegacySSLMode  string `envconfig:"INTERPRETZ_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"INTERPRETZ_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"INTERPRETZ_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"INTERPRETZ_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"INTERPRETZ_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"INTERPRETZ_REDIS_URL" required:"true"`
	Address      string        `envconfig:"INTERPRETZ_REDIS_ADDR"`
	Password     string        `envconfig:"INTERPRETZ_REDIS_PASSWORD"`
	DB           int           `envconfig:"INTERPRETZ_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"INTERPRETZ_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"INTERPRETZ_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"INTERPRETZ_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"INTERPRETZ_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"INTERPRETZ_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"INTERPRETZ_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"INTERPRETZ_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"INTERPRETZ_JWT_EXPIRATION_MINUTES" default:"60"`
}

// RateLimitConfig throttles mutating engine routes. Zero limits disable the
// corresponding counter.
type RateLimitConfig struct {
	Window        time.Duration `envconfig:"INTERPRETZ_RATE_LIMIT_WINDOW" default:"1m"`
	IPLimit       int           `envconfig:"INTERPRETZ_RATE_LIMIT_IP" default:"120"`
	OperatorLimit int           `envconfig:"INTERPRETZ_RATE_LIMIT_OPERATOR" default:"60"`
}

// EngineConfig tunes the assignment pipeline. The commit timeout is short on
// purpose: scoring is lock-free and only the final commit holds a transaction.
type EngineConfig struct {
	CommitTimeout       time.Duration `envconfig:"INTERPRETZ_ENGINE_COMMIT_TIMEOUT" default:"5s"`
	CommitMaxCandidates int           `envconfig:"INTERPRETZ_ENGINE_COMMIT_MAX_CANDIDATES" default:"3"`
	CommitRetryBackoff  time.Duration `envconfig:"INTERPRETZ_ENGINE_COMMIT_RETRY_BACKOFF" default:"200ms"`

	PoolBatchLimit  int `envconfig:"INTERPRETZ_ENGINE_POOL_BATCH_LIMIT" default:"100"`
	PoolMaxAttempts int `envconfig:"INTERPRETZ_ENGINE_POOL_MAX_ATTEMPTS" default:"5"`

	WorkerIntervalNormal  time.Duration `envconfig:"INTERPRETZ_ENGINE_WORKER_INTERVAL_NORMAL" default:"15m"`
	WorkerIntervalUrgent  time.Duration `envconfig:"INTERPRETZ_ENGINE_WORKER_INTERVAL_URGENT" default:"5m"`
	WorkerIntervalBalance time.Duration `envconfig:"INTERPRETZ_ENGINE_WORKER_INTERVAL_BALANCE" default:"30m"`

	NewInterpreterGraceDays int `envconfig:"INTERPRETZ_ENGINE_NEW_INTERPRETER_GRACE_DAYS" default:"14"`
}

// WorkerInterval returns the pool worker cadence for the given mode name.
func (e EngineConfig) WorkerInterval(mode string) time.Duration {
	switch strings.ToUpper(strings.TrimSpace(mode)) {
	case "URGENT":
		return e.WorkerIntervalUrgent
	case "BALANCE":
		return e.WorkerIntervalBalance
	default:
		return e.WorkerIntervalNormal
	}
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"INTERPRETZ_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"INTERPRETZ_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"INTERPRETZ_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"INTERPRETZ_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"INTERPRETZ_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	AssignmentsTopic        string `envconfig:"INTERPRETZ_PUBSUB_ASSIGNMENTS_TOPIC" default:"itz-assignment-events"`
	AssignmentsSubscription string `envconfig:"INTERPRETZ_PUBSUB_ASSIGNMENTS_SUBSCRIPTION"`
	OperationsTopic         string `envconfig:"INTERPRETZ_PUBSUB_OPERATIONS_TOPIC" default:"itz-operation-events"`
	OperationsSubscription  string `envconfig:"INTERPRETZ_PUBSUB_OPERATIONS_SUBSCRIPTION"`
}

type BigQueryConfig struct {
	Dataset            string `envconfig:"INTERPRETZ_BIGQUERY_DATASET" default:"interpretz"`
	AssignmentLogTable string `envconfig:"INTERPRETZ_BIGQUERY_ASSIGNMENT_LOG_TABLE" default:"assignment_logs"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"INTERPRETZ_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"INTERPRETZ_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"INTERPRETZ_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
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
