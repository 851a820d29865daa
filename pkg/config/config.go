package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App                 AppConfig
	DB                  DBConfig
	Redis               RedisConfig
	JWT                 JWTConfig
	Dispatch            DispatchConfig
	OTP                 OTPConfig
	Mail                MailConfig
	Telegram            TelegramConfig
	Notify              NotifyConfig
	GCP                 GCPConfig
	PubSub              PubSubConfig
	Cron                CronConfig
	Eventing            EventingConfig
	AccountOtpRateLimit AccountOtpRateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Dispatch.Location(); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", EnvDispatchTimezone, err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"FOODWAY_APP_ENV" required:"true"`
	Port         string   `envconfig:"FOODWAY_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"FOODWAY_LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"FOODWAY_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"FOODWAY_LOG_WARN_STACK" default:"false"`
	ServiceToken string   `envconfig:"FOODWAY_SERVICE_TOKEN"`
	CORSOrigins  []string `envconfig:"FOODWAY_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"FOODWAY_DB_DSN"`
	Driver string `envconfig:"FOODWAY_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"FOODWAY_DB_HOST"`
	Port     int    `envconfig:"FOODWAY_DB_PORT" default:"5432"`
	User     string `envconfig:"FOODWAY_DB_USER"`
	Password string `envconfig:"FOODWAY_DB_PASSWORD"`
	Name     string `envconfig:"FOODWAY_DB_NAME"`
	SSLMode  string `envconfig:"FOODWAY_DB_SSLMODE" default:"disable"`

	AutoMigrate bool `envconfig:"FOODWAY_AUTO_MIGRATE" default:"false"`

	MaxOpenConns    int           `envconfig:"FOODWAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FOODWAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FOODWAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FOODWAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"FOODWAY_DB_SLOW_QUERY_THRESHOLD" default:"200ms"`
}

func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"FOODWAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FOODWAY_REDIS_ADDR"`
	Password     string        `envconfig:"FOODWAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"FOODWAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FOODWAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FOODWAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FOODWAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FOODWAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FOODWAY_REDIS_WRITE_TIMEOUT" default:"5s"`

	// Namespace prefixes every key so environments can share one instance.
	Namespace string `envconfig:"FOODWAY_REDIS_NAMESPACE" default:"fw"`
}

type JWTConfig struct {
	Secret            string `envconfig:"FOODWAY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FOODWAY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"FOODWAY_JWT_EXPIRATION_MINUTES" default:"720"`
	// Audience is checked only when set.
	Audience string        `envconfig:"FOODWAY_JWT_AUDIENCE"`
	Leeway   time.Duration `envconfig:"FOODWAY_JWT_LEEWAY" default:"30s"`
}

type DispatchConfig struct {
	StoreDriver     string        `envconfig:"FOODWAY_DISPATCH_STORE" default:"sql"`
	DispatchTTL     time.Duration `envconfig:"FOODWAY_DISPATCH_TTL" default:"45m"`
	Timezone        string        `envconfig:"FOODWAY_DISPATCH_TIMEZONE" default:"Asia/Kolkata"`
	BrokerBuffer    int           `envconfig:"FOODWAY_DISPATCH_BROKER_BUFFER" default:"64"`
	TombstoneTTL    time.Duration `envconfig:"FOODWAY_DISPATCH_TOMBSTONE_TTL" default:"10m"`
	DutyStoreDriver string        `envconfig:"FOODWAY_DISPATCH_DUTY_STORE" default:"redis"`
	DutyTTL         time.Duration `envconfig:"FOODWAY_DISPATCH_DUTY_TTL" default:"12h"`
	SessionFrameRPS float64       `envconfig:"FOODWAY_DISPATCH_SESSION_FRAME_RPS" default:"5"`
}

// Location resolves the operating timezone used for delivery reporting.
func (d DispatchConfig) Location() (*time.Location, error) {
	if strings.TrimSpace(d.Timezone) == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(d.Timezone)
}

type OTPConfig struct {
	StoreDriver     string        `envconfig:"FOODWAY_OTP_STORE" default:"redis"`
	Length          int           `envconfig:"FOODWAY_OTP_LENGTH" default:"6"`
	AccountWindow   time.Duration `envconfig:"FOODWAY_OTP_ACCOUNT_WINDOW" default:"5m"`
	DeliveryWindow  time.Duration `envconfig:"FOODWAY_OTP_DELIVERY_WINDOW" default:"2h"`
	MaxAttempts     int           `envconfig:"FOODWAY_OTP_MAX_ATTEMPTS" default:"5"`
	LogCodesInDev   bool          `envconfig:"FOODWAY_OTP_LOG_CODES_IN_DEV" default:"true"`
	RedisWatchRetry int           `envconfig:"FOODWAY_OTP_REDIS_WATCH_RETRIES" default:"5"`
}

type MailConfig struct {
	Host     string `envconfig:"FOODWAY_SMTP_HOST"`
	Port     int    `envconfig:"FOODWAY_SMTP_PORT" default:"587"`
	Username string `envconfig:"FOODWAY_SMTP_USER"`
	Password string `envconfig:"FOODWAY_SMTP_PASS"`
	From     string `envconfig:"FOODWAY_SMTP_FROM"`
}

func (m MailConfig) Enabled() bool {
	return strings.TrimSpace(m.Host) != "" && strings.TrimSpace(m.From) != ""
}

type TelegramConfig struct {
	BotToken string `envconfig:"FOODWAY_TELEGRAM_BOT_TOKEN"`
	Debug    bool   `envconfig:"FOODWAY_TELEGRAM_DEBUG" default:"false"`
}

func (t TelegramConfig) Enabled() bool {
	return strings.TrimSpace(t.BotToken) != ""
}

type NotifyConfig struct {
	QueueSize   int           `envconfig:"FOODWAY_NOTIFY_QUEUE_SIZE" default:"256"`
	Workers     int           `envconfig:"FOODWAY_NOTIFY_WORKERS" default:"4"`
	SendTimeout time.Duration `envconfig:"FOODWAY_NOTIFY_SEND_TIMEOUT" default:"10s"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"FOODWAY_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	Enabled            bool          `envconfig:"FOODWAY_PUBSUB_ENABLED" default:"false"`
	OrdersSubscription string        `envconfig:"FOODWAY_PUBSUB_ORDERS_SUBSCRIPTION" default:"foodway-orders-dispatch"`
	MaxOutstanding     int           `envconfig:"FOODWAY_PUBSUB_MAX_OUTSTANDING" default:"32"`
	HandlerTimeout     time.Duration `envconfig:"FOODWAY_PUBSUB_HANDLER_TIMEOUT" default:"30s"`
	NumGoroutines      int           `envconfig:"FOODWAY_PUBSUB_NUM_GOROUTINES" default:"2"`
	MaxExtension       time.Duration `envconfig:"FOODWAY_PUBSUB_MAX_EXTENSION" default:"10m"`
}

type CronConfig struct {
	Interval           time.Duration `envconfig:"FOODWAY_CRON_INTERVAL" default:"1m"`
	LockTTL            time.Duration `envconfig:"FOODWAY_CRON_LOCK_TTL" default:"50s"`
	AssignmentSchedule string        `envconfig:"FOODWAY_CRON_ASSIGNMENT_EXPIRY_SCHEDULE" default:"*/1 * * * *"`
	OTPSweepSchedule   string        `envconfig:"FOODWAY_CRON_OTP_SWEEP_SCHEDULE" default:"*/10 * * * *"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"FOODWAY_EVENTING_IDEMPOTENCY_TTL" default:"72h"`
}

type AccountOtpRateLimitConfig struct {
	Window     time.Duration `envconfig:"FOODWAY_OTP_RATE_LIMIT_WINDOW" default:"10m"`
	EmailLimit int           `envconfig:"FOODWAY_OTP_RATE_LIMIT_EMAIL_LIMIT" default:"3"`
	IPLimit    int           `envconfig:"FOODWAY_OTP_RATE_LIMIT_IP_LIMIT" default:"20"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = "file:foodway.db?cache=shared"
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
