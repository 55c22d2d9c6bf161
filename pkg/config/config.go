package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

// AppConfig holds the complete configuration for the lifeline binaries.
type AppConfig struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	ServiceName string         `mapstructure:"service_name"`
	HTTPAddr    string         `mapstructure:"http_addr"`
	MetricsAddr string         `mapstructure:"metrics_addr"`
	Store       string         `mapstructure:"store"`
	MongoDB     MongoConfig    `mapstructure:"mongodb"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Kafka       KafkaConfig    `mapstructure:"kafka"`
	Postgres    PostgresConfig `mapstructure:"postgres"`
	Economy     EconomyConfig  `mapstructure:"economy"`
	Syncer      SyncerConfig   `mapstructure:"syncer"`
}

type MongoConfig struct {
	URI              string        `mapstructure:"uri"`
	Database         string        `mapstructure:"database"`
	Collection       string        `mapstructure:"collection"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

// RedisConfig configures the ranking window cache. An empty Addr disables it.
type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	RankingTTL time.Duration `mapstructure:"ranking_ttl"`
}

// KafkaConfig configures the player event stream. No brokers disables publishing.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type PostgresConfig struct {
	URI      string `mapstructure:"uri"`
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

// EconomyConfig tunes the life economy and ranking.
type EconomyConfig struct {
	DefaultMaxLife        int    `mapstructure:"default_max_life"`
	DefaultRefillInterval int    `mapstructure:"default_refill_interval"` // seconds
	CommitAttempts        int    `mapstructure:"commit_attempts"`
	NicknamePrefix        string `mapstructure:"nickname_prefix"`
	NicknameAttempts      int    `mapstructure:"nickname_attempts"`
	RankingWindow         int    `mapstructure:"ranking_window"`
	RankingTopK           int    `mapstructure:"ranking_top_k"`
	CohortMarker          string `mapstructure:"cohort_marker"`
}

type SyncerConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	WorkerCount   int           `mapstructure:"worker_count"`
}

// Load loads configuration from an optional file and the environment.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	// AutomaticEnv only covers keys viper already knows about; nested keys without a default
	// need an explicit binding for Unmarshal to see them.
	for _, key := range []string{
		"mongodb.uri", "mongodb.database", "mongodb.collection",
		"redis.addr", "redis.password", "redis.db", "redis.ranking_ttl",
		"kafka.brokers", "kafka.topic", "kafka.group_id",
		"postgres.uri", "postgres.max_conns", "postgres.min_conns",
		"economy.cohort_marker", "economy.nickname_prefix",
	} {
		_ = v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	}

	var config AppConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// KAFKA_BROKERS arrives as one comma-separated string.
	if brokers := v.GetString("kafka.brokers"); brokers != "" {
		config.Kafka.Brokers = splitList(brokers)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("service_name", "lifeline")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("store", StoreMongo)

	v.SetDefault("mongodb.database", "lifeline")
	v.SetDefault("mongodb.collection", "players")
	v.SetDefault("mongodb.connect_timeout", 10*time.Second)
	v.SetDefault("mongodb.operation_timeout", 5*time.Second)

	v.SetDefault("redis.ranking_ttl", 15*time.Second)

	v.SetDefault("kafka.topic", "player-events")
	v.SetDefault("kafka.group_id", "progress-syncer")

	v.SetDefault("postgres.max_conns", 20)
	v.SetDefault("postgres.min_conns", 2)

	v.SetDefault("economy.default_max_life", 5)
	v.SetDefault("economy.default_refill_interval", 900)
	v.SetDefault("economy.commit_attempts", 5)
	v.SetDefault("economy.nickname_prefix", "Player")
	v.SetDefault("economy.nickname_attempts", 10)
	v.SetDefault("economy.ranking_window", 200)
	v.SetDefault("economy.ranking_top_k", 50)
	v.SetDefault("economy.cohort_marker", "ranked")

	v.SetDefault("syncer.batch_size", 500)
	v.SetDefault("syncer.flush_interval", time.Second)
	v.SetDefault("syncer.worker_count", 4)
}

// Validate checks the settings every binary relies on.
func (c *AppConfig) Validate() error {
	if c.ServiceName == "" {
		return errors.New("service_name is required")
	}
	switch c.Store {
	case StoreMemory:
	case StoreMongo:
		if c.MongoDB.URI == "" {
			return errors.New("mongodb.uri is required")
		}
		if c.MongoDB.Database == "" {
			return errors.New("mongodb.database is required")
		}
		if c.MongoDB.Collection == "" {
			return errors.New("mongodb.collection is required")
		}
	default:
		return errors.New("store must be mongo or memory")
	}
	if c.Economy.DefaultMaxLife <= 0 {
		return errors.New("economy.default_max_life must be positive")
	}
	if c.Economy.DefaultRefillInterval <= 0 {
		return errors.New("economy.default_refill_interval must be positive")
	}
	if c.Economy.CommitAttempts < 1 {
		return errors.New("economy.commit_attempts must be at least 1")
	}
	if c.Economy.NicknameAttempts < 1 {
		return errors.New("economy.nickname_attempts must be at least 1")
	}
	if c.Economy.RankingTopK < 1 || c.Economy.RankingWindow < c.Economy.RankingTopK {
		return errors.New("economy.ranking_window must be at least economy.ranking_top_k")
	}
	return nil
}

// ValidateSyncer checks the extra settings the progress syncer needs.
func (c *AppConfig) ValidateSyncer() error {
	if len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required")
	}
	if c.Kafka.Topic == "" {
		return errors.New("kafka.topic is required")
	}
	if c.Postgres.URI == "" {
		return errors.New("postgres.uri is required")
	}
	if c.Syncer.WorkerCount < 1 || c.Syncer.BatchSize < 1 {
		return errors.New("syncer.worker_count and syncer.batch_size must be positive")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
