package configs

import (
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	config *Config
	once   sync.Once
)

type Config struct {
	Viper *viper.Viper
}

// GetConfig loads the process configuration once.
func GetConfig() *Config {
	once.Do(func() {
		if err := godotenv.Load(); err != nil {
			log.Println("GetConfig - no .env file loaded")
		}
		var err error
		config, err = NewConfig("")
		if err != nil {
			log.Fatalf("GetConfig - failed to load config: %v", err)
		}
	})
	return config
}

// NewConfig builds a configuration from defaults, an optional config file
// and SYNCBOARD_ prefixed environment variables. An empty path searches
// ./config.yaml and ./configs/config.yaml.
func NewConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("syncboard")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}
	return &Config{Viper: v}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.rate_burst", 40)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "syncboard")
	v.SetDefault("database.ssl", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("database.dsn", "syncboard.db")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("relay.broker", "local")
	v.SetDefault("relay.instance_id", "")
	v.SetDefault("relay.send_buffer", 256)
	v.SetDefault("relay.rate_limit", 60)
	v.SetDefault("relay.rate_burst", 120)
	v.SetDefault("relay.chat_history_limit", 50)
	v.SetDefault("relay.job_timeout", 5*time.Second)
	v.SetDefault("relay.job_queue", 1024)

	v.SetDefault("minio.enabled", false)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "board-snapshots")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration_time", 86400)
}
