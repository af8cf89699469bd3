package main

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/robertarktes/gigconnect/internal/adapters/memory"
	mongoadapter "github.com/robertarktes/gigconnect/internal/adapters/mongo"
	"github.com/robertarktes/gigconnect/internal/adapters/postgres"
	redisadapter "github.com/robertarktes/gigconnect/internal/adapters/redis"
	"github.com/robertarktes/gigconnect/internal/config"
	"github.com/robertarktes/gigconnect/internal/domain"
	httphandler "github.com/robertarktes/gigconnect/internal/http"
	"github.com/robertarktes/gigconnect/internal/idempotency"
	"github.com/robertarktes/gigconnect/internal/observability"
	"github.com/robertarktes/gigconnect/internal/ratelimit"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type dependencies struct {
	relationships domain.RelationshipStore
	gigs          domain.GigStore
	bookmarks     domain.BookmarkStore
	directory     domain.ProfileDirectory
	logs          httphandler.RelationshipLog
	limiter       ratelimit.Limiter
	idempotency   idempotency.Store
	checks        map[string]httphandler.Checker
	closers       []func()
}

func (d *dependencies) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// connect opens the configured backends. Redis and MongoDB are optional; without them the api
// falls back to in-process limiter, idempotency and directory implementations.
func connect(ctx context.Context, cfg *config.Config, logger observability.Logger) (*dependencies, error) {
	d := &dependencies{checks: map[string]httphandler.Checker{}}

	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "connect postgres")
		}
		d.closers = append(d.closers, pool.Close)
		repo := postgres.NewRepository(pool)
		d.relationships, d.gigs, d.bookmarks = repo, repo, repo
		d.checks["postgres"] = repo.Ping
	default:
		store := memory.NewStore()
		d.relationships, d.gigs, d.bookmarks = store, store, store
		d.logs = relationshipLog(cfg.StoreDriver, store, nil)
		logger.Warn("using the in-memory store; data is lost on restart")
	}

	if cfg.MongoURI != "" {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			d.close()
			return nil, errors.Wrap(err, "connect mongo")
		}
		d.closers = append(d.closers, func() { _ = client.Disconnect(context.Background()) })
		db := client.Database(cfg.MongoDatabase)
		d.directory = mongoadapter.NewDirectory(db, logger)
		d.logs = relationshipLog(cfg.StoreDriver, d.logs, mongoadapter.NewRelationshipLog(db, logger))
		d.checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) }
	} else {
		logger.Warn("MONGO_URI not set; profile directory is empty")
		d.directory = memory.NewDirectory()
	}
	if d.logs == nil {
		d.close()
		return nil, errors.New("MONGO_URI is required for the relationship log with the postgres store")
	}

	if cfg.RedisAddr != "" {
		client := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
		d.closers = append(d.closers, func() { _ = client.Close() })
		cache := redisadapter.NewCache(client)
		d.directory = redisadapter.NewCachedDirectory(cache, d.directory, cfg.ProfileCacheTTL, logger)
		d.limiter = ratelimit.NewRateLimiter(cache)
		d.idempotency = redisadapter.NewIdempotency(client)
		d.checks["redis"] = cache.Ping
	} else {
		logger.Warn("REDIS_ADDR not set; rate limits and idempotency keys are per process")
		d.limiter = ratelimit.NewLocalLimiter()
		d.idempotency = idempotency.NewMemoryStore()
	}

	return d, nil
}

// relationshipLog picks the log the export reads. Only the postgres store feeds the mongo log,
// through the outbox and the audit worker; the memory store keeps its own events.
func relationshipLog(driver string, local, mongoLog httphandler.RelationshipLog) httphandler.RelationshipLog {
	if driver == config.StoreDriverPostgres {
		return mongoLog
	}
	return local
}
