package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/weiawesome/wes-io-live/livestream-service/internal/store"
	pkgconfig "github.com/weiawesome/wes-io-live/livestream-service/pkg/config"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/database"
	pkglog "github.com/weiawesome/wes-io-live/livestream-service/pkg/log"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/pubsub"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/storage"
)

type Config struct {
	Server    ServerConfig
	Redis     store.RedisConfig
	PubSub    pubsub.Config `mapstructure:"pubsub"`
	Database  database.Config
	Auth      AuthConfig
	Room      RoomConfig
	Cleanup   CleanupConfig
	Archive   ArchiveConfig
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Log       pkglog.Config
}

type ServerConfig struct {
	Host       string
	Port       int
	InstanceID string `mapstructure:"instance_id"`
}

type AuthConfig struct {
	PublicKeyPath string `mapstructure:"public_key_path"`
	Issuer        string `mapstructure:"issuer"`
	// DevTokens issues locally signed tokens when no public key is set.
	DevTokens bool `mapstructure:"dev_tokens"`
}

type RoomConfig struct {
	WSEndpoint string `mapstructure:"ws_endpoint"`
	// PresenceTTL bounds presence index entries; zero keeps them until unregistered.
	PresenceTTL time.Duration `mapstructure:"presence_ttl"`
}

type CleanupConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	EndedRetention time.Duration `mapstructure:"ended_retention"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	Concurrency    int           `mapstructure:"concurrency"`
}

// ArchiveConfig controls the snapshot written before a room is reclaimed.
type ArchiveConfig struct {
	Enabled bool                `mapstructure:"enabled"`
	Driver  string              `mapstructure:"driver"`
	Local   storage.LocalConfig `mapstructure:"local"`
	S3      storage.S3Config    `mapstructure:"s3"`
}

// Storage returns the backend settings for storage.New.
func (c ArchiveConfig) Storage() storage.Config {
	return storage.Config{Driver: c.Driver, Local: c.Local, S3: c.S3}
}

type WebSocketConfig struct {
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	WriteWait       time.Duration `mapstructure:"write_wait"`
	PongWait        time.Duration `mapstructure:"pong_wait"`
	PingPeriod      time.Duration `mapstructure:"ping_period"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
	SendBufferSize  int           `mapstructure:"send_buffer_size"`
}

// Defaults for the cleanup sweep.
const (
	DefaultCleanupInterval = 10 * time.Minute
	DefaultEndedRetention  = 24 * time.Hour
	DefaultIdleTimeout     = 6 * time.Hour
)

func Load() (*Config, error) {
	return LoadFrom("./config")
}

// LoadFrom reads config.yaml from dir, then applies defaults and env vars.
func LoadFrom(dir string) (*Config, error) {
	v, err := pkgconfig.Load(dir, "config")
	if err != nil {
		return nil, err
	}

	setDefaults(v)
	if err := pkgconfig.BindEnvs(v, envBindings); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Cleanup.Interval = pkgconfig.Duration(v, "cleanup.interval", DefaultCleanupInterval)
	cfg.Cleanup.EndedRetention = pkgconfig.Duration(v, "cleanup.ended_retention", DefaultEndedRetention)
	cfg.Cleanup.IdleTimeout = pkgconfig.Duration(v, "cleanup.idle_timeout", DefaultIdleTimeout)
	if cfg.Cleanup.Concurrency <= 0 {
		cfg.Cleanup.Concurrency = 8
	}

	if cfg.Server.InstanceID == "" {
		cfg.Server.InstanceID = pkgconfig.GetEnv("HOSTNAME", "livestream-local")
	}
	cfg.PubSub.Kafka.InstanceID = cfg.Server.InstanceID
	cfg.Log.InstanceID = cfg.Server.InstanceID

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.instance_id", "")

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.key_prefix", store.DefaultPrefix)

	def := pubsub.DefaultConfig()
	v.SetDefault("pubsub.driver", def.Driver)
	v.SetDefault("pubsub.redis.address", def.Redis.Address)
	v.SetDefault("pubsub.redis.pool_size", def.Redis.PoolSize)
	v.SetDefault("pubsub.redis.read_timeout", def.Redis.ReadTimeout)
	v.SetDefault("pubsub.redis.write_timeout", def.Redis.WriteTimeout)
	v.SetDefault("pubsub.kafka.brokers", def.Kafka.Brokers)
	v.SetDefault("pubsub.kafka.group_id", def.Kafka.GroupID)
	v.SetDefault("pubsub.kafka.partitions", def.Kafka.Partitions)
	v.SetDefault("pubsub.kafka.topics", def.Kafka.Topics)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "livestream")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "./data/livestream.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("auth.public_key_path", "")
	v.SetDefault("auth.issuer", "wes-io-live")
	v.SetDefault("auth.dev_tokens", false)

	v.SetDefault("room.ws_endpoint", "/ws")
	v.SetDefault("room.presence_ttl", "0s")

	v.SetDefault("cleanup.interval", DefaultCleanupInterval.String())
	v.SetDefault("cleanup.ended_retention", DefaultEndedRetention.String())
	v.SetDefault("cleanup.idle_timeout", DefaultIdleTimeout.String())
	v.SetDefault("cleanup.concurrency", 8)

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.driver", storage.DriverLocal)
	v.SetDefault("archive.local.base_path", "./data/archive")
	v.SetDefault("archive.s3.region", "us-east-1")
	v.SetDefault("archive.s3.bucket", "")
	v.SetDefault("archive.s3.endpoint", "")
	v.SetDefault("archive.s3.access_key_id", "")
	v.SetDefault("archive.s3.secret_access_key", "")
	v.SetDefault("archive.s3.use_path_style", false)

	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.ping_period", "54s")
	v.SetDefault("websocket.max_message_size", 64*1024)
	v.SetDefault("websocket.send_buffer_size", 256)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "livestream-service")
}

var envBindings = map[string]string{
	"server.port":             "PORT",
	"server.instance_id":      "INSTANCE_ID",
	"redis.address":           "REDIS_ADDRESS",
	"redis.password":          "REDIS_PASSWORD",
	"redis.db":                "REDIS_DB",
	"redis.key_prefix":        "REDIS_KEY_PREFIX",
	"pubsub.driver":           "PUBSUB_DRIVER",
	"pubsub.redis.address":    "PUBSUB_REDIS_ADDRESS",
	"pubsub.kafka.brokers":    "KAFKA_BROKERS",
	"pubsub.kafka.group_id":   "KAFKA_GROUP_ID",
	"database.driver":         "DB_DRIVER",
	"database.host":           "DB_HOST",
	"database.port":           "DB_PORT",
	"database.user":           "DB_USER",
	"database.password":       "DB_PASSWORD",
	"database.dbname":         "DB_NAME",
	"database.sslmode":        "DB_SSLMODE",
	"database.file_path":      "DB_FILE_PATH",
	"auth.public_key_path":    "JWT_PUBLIC_KEY_PATH",
	"auth.issuer":             "JWT_ISSUER",
	"auth.dev_tokens":         "AUTH_DEV_TOKENS",
	"room.presence_ttl":       "PRESENCE_TTL",
	"cleanup.interval":        "CLEANUP_INTERVAL",
	"cleanup.ended_retention": "CLEANUP_ENDED_RETENTION",
	"cleanup.idle_timeout":    "CLEANUP_IDLE_TIMEOUT",
	"cleanup.concurrency":     "CLEANUP_CONCURRENCY",
	"log.level":               "LOG_LEVEL",
	"log.pretty":              "LOG_PRETTY",

	"archive.enabled":              "ARCHIVE_ENABLED",
	"archive.driver":               "ARCHIVE_DRIVER",
	"archive.local.base_path":      "ARCHIVE_LOCAL_PATH",
	"archive.s3.endpoint":          "ARCHIVE_S3_ENDPOINT",
	"archive.s3.region":            "ARCHIVE_S3_REGION",
	"archive.s3.bucket":            "ARCHIVE_S3_BUCKET",
	"archive.s3.access_key_id":     "AWS_ACCESS_KEY_ID",
	"archive.s3.secret_access_key": "AWS_SECRET_ACCESS_KEY",
}
