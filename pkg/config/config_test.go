package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() AppConfig {
	return AppConfig{
		ServiceName: "lifeline",
		Store:       StoreMongo,
		MongoDB: MongoConfig{
			URI:        "mongodb://localhost:27017",
			Database:   "lifeline",
			Collection: "players",
		},
		Economy: EconomyConfig{
			DefaultMaxLife:        5,
			DefaultRefillInterval: 900,
			CommitAttempts:        5,
			NicknameAttempts:      10,
			RankingWindow:         200,
			RankingTopK:           50,
		},
	}
}

func TestConfigValidation(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("valid config passes validation", prop.ForAll(
		func(serviceName, uri, db, coll string) bool {
			cfg := validConfig()
			cfg.ServiceName = serviceName
			cfg.MongoDB = MongoConfig{URI: uri, Database: db, Collection: coll}
			return cfg.Validate() == nil
		},
		gen.Identifier(),
		gen.Identifier(),
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.Property("ranking window smaller than top-k is rejected", prop.ForAll(
		func(topK, shortBy int) bool {
			cfg := validConfig()
			cfg.Economy.RankingTopK = topK
			cfg.Economy.RankingWindow = topK - shortBy
			return cfg.Validate() != nil
		},
		gen.IntRange(1, 500),
		gen.IntRange(1, 50),
	))

	properties.Property("non-positive economy defaults are rejected", prop.ForAll(
		func(maxLife int) bool {
			cfg := validConfig()
			cfg.Economy.DefaultMaxLife = maxLife
			return cfg.Validate() != nil
		},
		gen.IntRange(-10, 0),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestMemoryStoreSkipsMongoSettings(t *testing.T) {
	cfg := validConfig()
	cfg.Store = StoreMemory
	cfg.MongoDB = MongoConfig{}
	assert.NoError(t, cfg.Validate())

	cfg.Store = "sqlite"
	assert.Error(t, cfg.Validate())
}

func TestValidateSyncer(t *testing.T) {
	cfg := validConfig()
	assert.Error(t, cfg.ValidateSyncer())

	cfg.Kafka = KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "player-events"}
	cfg.Postgres.URI = "postgres://localhost:5432/lifeline"
	cfg.Syncer = SyncerConfig{BatchSize: 100, WorkerCount: 2, FlushInterval: time.Second}
	assert.NoError(t, cfg.ValidateSyncer())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("ECONOMY_COHORT_MARKER", "season3")
	t.Setenv("ECONOMY_RANKING_TOP_K", "10")
	t.Setenv("REDIS_RANKING_TTL", "30s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "lifeline", cfg.ServiceName)
	assert.Equal(t, StoreMongo, cfg.Store)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoDB.URI)
	assert.Equal(t, "players", cfg.MongoDB.Collection)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "season3", cfg.Economy.CohortMarker)
	assert.Equal(t, 10, cfg.Economy.RankingTopK)
	assert.Equal(t, 200, cfg.Economy.RankingWindow)
	assert.Equal(t, 5, cfg.Economy.DefaultMaxLife)
	assert.Equal(t, 900, cfg.Economy.DefaultRefillInterval)
	assert.Equal(t, 30*time.Second, cfg.Redis.RankingTTL)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lifeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store: memory
economy:
  default_max_life: 7
  nickname_prefix: Hero
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 7, cfg.Economy.DefaultMaxLife)
	assert.Equal(t, "Hero", cfg.Economy.NicknamePrefix)
}

func TestLoadConfigRejectsMissingURI(t *testing.T) {
	t.Setenv("STORE", StoreMongo)
	t.Setenv("MONGODB_URI", "")

	_, err := Load("")
	assert.Error(t, err)
}
