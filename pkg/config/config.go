package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App         AppConfig
	DB          DBConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Password    PasswordConfig
	Gateway     GatewayConfig
	Mail        MailConfig
	Sweeper     SweeperConfig
	Permissions PermissionsConfig
	AuthLimit   AuthRateLimitConfig
	PubSub      PubSubConfig
	Outbox      OutboxConfig

	FeatureFlags FeatureFlags
}

type FeatureFlags struct {
	AutoMigrate bool `envconfig:"CAMPUSDESK_FEATURE_AUTO_MIGRATE" default:"false"`
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
	Env          string `envconfig:"CAMPUSDESK_APP_ENV" required:"true"`
	Port         string `envconfig:"CAMPUSDESK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CAMPUSDESK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CAMPUSDESK_LOG_WARN_STACK" default:"false"`
	BaseURL      string `envconfig:"CAMPUSDESK_APP_BASE_URL" default:"http://localhost:8080"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CAMPUSDESK_DB_DSN"`
	Driver string `envconfig:"CAMPUSDESK_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"CAMPUSDESK_DB_HOST"`
	Port     int    `envconfig:"CAMPUSDESK_DB_PORT" default:"5432"`
	User     string `envconfig:"CAMPUSDESK_DB_USER"`
	Password string `envconfig:"CAMPUSDESK_DB_PASSWORD"`
	Name     string `envconfig:"CAMPUSDESK_DB_NAME"`
	SSLMode  string `envconfig:"CAMPUSDESK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CAMPUSDESK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CAMPUSDESK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CAMPUSDESK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CAMPUSDESK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CAMPUSDESK_REDIS_URL"`
	Address      string        `envconfig:"CAMPUSDESK_REDIS_ADDRESS"`
	Password     string        `envconfig:"CAMPUSDESK_REDIS_PASSWORD"`
	DB           int           `envconfig:"CAMPUSDESK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CAMPUSDESK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CAMPUSDESK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CAMPUSDESK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CAMPUSDESK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CAMPUSDESK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CAMPUSDESK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CAMPUSDESK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CAMPUSDESK_JWT_EXPIRATION_MINUTES" default:"720"`
}

// TokenTTL returns the access token lifetime.
func (j JWTConfig) TokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"CAMPUSDESK_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"CAMPUSDESK_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"CAMPUSDESK_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"CAMPUSDESK_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"CAMPUSDESK_ARGON_KEY_LEN" default:"32"`
}

// GatewayConfig carries the bank payment gateway contract: merchant identity,
// the shared secrets for URL encryption and callback signatures, and the
// response code the gateway sends on a captured payment.
type GatewayConfig struct {
	MerchantID     string `envconfig:"CAMPUSDESK_GATEWAY_MERCHANT_ID"`
	SubMerchantID  string `envconfig:"CAMPUSDESK_GATEWAY_SUB_MERCHANT_ID"`
	AESKey         string `envconfig:"CAMPUSDESK_GATEWAY_AES_KEY"`
	HMACSecret     string `envconfig:"CAMPUSDESK_GATEWAY_HMAC_SECRET"`
	BaseURL        string `envconfig:"CAMPUSDESK_GATEWAY_BASE_URL"`
	ReturnURL      string `envconfig:"CAMPUSDESK_GATEWAY_RETURN_URL"`
	SuccessCode    string `envconfig:"CAMPUSDESK_GATEWAY_SUCCESS_CODE" default:"E000"`
	PaymentModeAll string `envconfig:"CAMPUSDESK_GATEWAY_PAYMENT_MODE" default:"9"`
}

type MailConfig struct {
	ProviderURL string `envconfig:"CAMPUSDESK_MAIL_PROVIDER_URL"`
	APIToken    string `envconfig:"CAMPUSDESK_MAIL_API_TOKEN"`
	FromAddress string `envconfig:"CAMPUSDESK_MAIL_FROM"`
	ReplyTo     string `envconfig:"CAMPUSDESK_MAIL_REPLY_TO"`
}

// SweeperConfig controls the payment-delay job: carts stuck awaiting payment
// past DelayDays are cancelled; carts inside the window get a reminder.
type SweeperConfig struct {
	DelayDays int           `envconfig:"CAMPUSDESK_SWEEPER_PAYMENT_DELAY_DAYS" default:"7"`
	Interval  time.Duration `envconfig:"CAMPUSDESK_SWEEPER_INTERVAL" default:"24h"`
	LockKey   string        `envconfig:"CAMPUSDESK_SWEEPER_LOCK_KEY" default:"campusdesk:sweeper:lock"`
	LockTTL   time.Duration `envconfig:"CAMPUSDESK_SWEEPER_LOCK_TTL" default:"25h"`
}

// AuthRateLimitConfig throttles the anonymous auth endpoints per client IP.
type AuthRateLimitConfig struct {
	LoginWindow    time.Duration `envconfig:"CAMPUSDESK_AUTH_LOGIN_WINDOW" default:"1m"`
	LoginLimit     int64         `envconfig:"CAMPUSDESK_AUTH_LOGIN_LIMIT" default:"10"`
	RegisterWindow time.Duration `envconfig:"CAMPUSDESK_AUTH_REGISTER_WINDOW" default:"1h"`
	RegisterLimit  int64         `envconfig:"CAMPUSDESK_AUTH_REGISTER_LIMIT" default:"20"`
}

type PermissionsConfig struct {
	GrantsPath string `envconfig:"CAMPUSDESK_PERMISSIONS_GRANTS_PATH" default:"configs/grants.json"`
}

type PubSubConfig struct {
	ProjectID                string `envconfig:"CAMPUSDESK_PUBSUB_PROJECT_ID"`
	NotificationTopic        string `envconfig:"CAMPUSDESK_PUBSUB_NOTIFICATION_TOPIC" default:"cd-notification-events"`
	NotificationSubscription string `envconfig:"CAMPUSDESK_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"cd-notification-mailer"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CAMPUSDESK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CAMPUSDESK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CAMPUSDESK_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range requiredDBEnvVars {
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
