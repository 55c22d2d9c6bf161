// Package bootstrap turns an AppConfig into the live dependencies the binaries share.
package bootstrap

import (
	"context"
	"fmt"

	"lifeline/internal/nickname"
	"lifeline/internal/player"
	"lifeline/internal/ranking"
	"lifeline/pkg/cache"
	"lifeline/pkg/clock"
	"lifeline/pkg/config"
	"lifeline/pkg/events"
	"lifeline/pkg/logger"
	"lifeline/pkg/producer"
	"lifeline/pkg/server"
	"lifeline/pkg/store"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultEnvPaths are tried in order by LoadEnv.
var DefaultEnvPaths = []string{".env", "../.env", "../../.env"}

// LoadEnv loads the first readable dotenv file and returns its path, or "" when none exists.
// Variables already set in the process win over the file.
func LoadEnv(paths ...string) string {
	if len(paths) == 0 {
		paths = DefaultEnvPaths
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err == nil {
			return path
		}
	}
	return ""
}

// Logger builds the process logger for one binary.
func Logger(cfg *config.AppConfig, service string) (*logger.Logger, error) {
	if service == "" {
		service = cfg.ServiceName
	}
	return logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
		ServiceName: service,
	})
}

// OpenStore connects the configured record store.
func OpenStore(ctx context.Context, cfg *config.AppConfig, c clock.Clock) (store.RecordStore, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return store.NewMemoryStore(c), nil
	case config.StoreMongo:
		// NewMongoStore pings and creates the indexes before returning.
		s, err := store.NewMongoStore(ctx, store.MongoConfig{
			URI:              cfg.MongoDB.URI,
			Database:         cfg.MongoDB.Database,
			Collection:       cfg.MongoDB.Collection,
			ConnectTimeout:   cfg.MongoDB.ConnectTimeout,
			OperationTimeout: cfg.MongoDB.OperationTimeout,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// RankingCache returns the Redis window cache, or nils when Redis is not configured.
func RankingCache(cfg config.RedisConfig) (*cache.RedisWindowCache, *redis.Client) {
	if cfg.Addr == "" || cfg.RankingTTL <= 0 {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return cache.NewRedisWindowCache(client, "lifeline:ranking:", cfg.RankingTTL), client
}

// Publisher returns a Kafka event publisher, or Discard when no brokers are configured.
func Publisher(cfg config.KafkaConfig, l *logger.Logger) events.Publisher {
	if len(cfg.Brokers) == 0 {
		l.Info("kafka brokers not configured, player events are discarded")
		return events.Discard{}
	}
	p := producer.NewKafkaProducer(producer.Config{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
	})
	l.Info("publishing player events", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))
	return events.NewKafkaPublisher(l, p)
}

// Services bundles the domain services behind the API and the CLI.
type Services struct {
	Store     store.RecordStore
	Players   *player.Service
	Rankings  *ranking.Service
	Publisher events.Publisher
	Checks    map[string]server.Check

	redis *redis.Client
}

// NewServices wires the player and ranking services over an open store.
func NewServices(cfg *config.AppConfig, s store.RecordStore, c clock.Clock, l *logger.Logger) *Services {
	econ := cfg.Economy
	nicknames := nickname.New(s, c, l,
		nickname.WithPrefix(econ.NicknamePrefix),
		nickname.WithAttempts(econ.NicknameAttempts))

	pub := Publisher(cfg.Kafka, l)
	players := player.NewService(s, nicknames, pub, c, l, player.Config{
		Defaults: player.Defaults{
			MaxLife:        econ.DefaultMaxLife,
			RefillInterval: econ.DefaultRefillInterval,
			Life:           econ.DefaultMaxLife,
		},
		CommitAttempts: econ.CommitAttempts,
	})

	checks := map[string]server.Check{"store": s.Ping}
	windowCache, client := RankingCache(cfg.Redis)
	var wc cache.WindowCache
	if windowCache != nil {
		wc = windowCache
		checks["redis"] = windowCache.Ping
	}
	rankings := ranking.NewService(s, wc, l, ranking.Options{
		Window:       econ.RankingWindow,
		TopK:         econ.RankingTopK,
		CohortMarker: econ.CohortMarker,
	})

	return &Services{
		Store:     s,
		Players:   players,
		Rankings:  rankings,
		Publisher: pub,
		Checks:    checks,
		redis:     client,
	}
}

// Close releases the publisher, the cache client and the store.
func (s *Services) Close(ctx context.Context) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	keep(s.Publisher.Close())
	if s.redis != nil {
		keep(s.redis.Close())
	}
	keep(s.Store.Close(ctx))
	return firstErr
}
