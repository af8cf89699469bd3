package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	mongoadapter "github.com/robertarktes/gigconnect/internal/adapters/mongo"
	"github.com/robertarktes/gigconnect/internal/adapters/rabbit"
	"github.com/robertarktes/gigconnect/internal/audit"
	"github.com/robertarktes/gigconnect/internal/config"
	"github.com/robertarktes/gigconnect/internal/observability"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := observability.SetupOTel(ctx, cfg, "gigconnect-audit-worker")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel(context.Background())

	logger := observability.NewLogger(cfg.LogLevel)

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	logs := mongoadapter.NewRelationshipLog(mongoClient.Database(cfg.MongoDatabase), logger)
	if err := logs.EnsureIndexes(ctx); err != nil {
		log.Fatalf("failed to create relationship log indexes: %v", err)
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	consumer, err := rabbit.NewConsumer(conn, cfg.AuditQueue, audit.RoutingPatterns...)
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}
	defer consumer.Close()

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		log.Fatalf("failed to start consuming: %v", err)
	}

	worker := audit.NewWorker(logs, logger.WithField("queue", cfg.AuditQueue))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx, deliveries) })
	g.Go(func() error { return observability.ServeMetrics(gctx, cfg.MetricsAddr, logger) })

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("audit worker stopped with error")
		return
	}
	logger.Info("shutdown audit worker")
}
