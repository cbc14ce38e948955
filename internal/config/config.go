package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration for the api server.
// Values come from config/<name>.yaml with SHOREWATCH_* env overrides;
// DSN-style secrets (DB_URL, REDIS_URL) stay in the environment and are
// read by the infrastructure constructors directly.
type Config struct {
	Server    Server
	Auth      Auth
	Messaging Messaging
	Logger    Logger
}

type Server struct {
	Port            string
	AllowedOrigins  []string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type Auth struct {
	JWTSecret string
	Issuer    string
}

type Messaging struct {
	PageSize      int           // default GET /messages page size
	SubscribeWait time.Duration // reconciler grace period before degrading
	PollInterval  time.Duration // degraded-mode backfill interval
	NotifyQueue   string        // asynq queue name for recipient notifications
}

type Logger struct {
	Development bool
	Level       string
}

func Load(filename string) (*viper.Viper, error) {
	v := viper.New()

	v.SetConfigName(filename)
	v.SetConfigType("yaml")
	v.AddConfigPath("config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SHOREWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Defaults plus env are enough to run; a config file is optional.
			return v, nil
		}
		return nil, err
	}
	return v, nil
}

func Parse(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowedorigins", []string{"*"})
	v.SetDefault("server.requesttimeout", 3*time.Second)
	v.SetDefault("server.shutdowntimeout", 10*time.Second)
	v.SetDefault("messaging.pagesize", 50)
	v.SetDefault("messaging.subscribewait", 3*time.Second)
	v.SetDefault("messaging.pollinterval", 2*time.Second)
	v.SetDefault("messaging.notifyqueue", "messaging")
	v.SetDefault("logger.development", false)
	v.SetDefault("logger.level", "info")
}
