package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/lijuuu/CTFArenaService/internal/config"
	"github.com/lijuuu/CTFArenaService/internal/logging"
)

const mongoConnectTimeout = 10 * time.Second

// InitMongo connects to the standings archive.
func InitMongo(ctx context.Context, cfg *config.Config, log logging.Logger) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(cfg.MongoURL).
		SetAppName("ctf-arena").
		SetMaxPoolSize(4).
		SetServerSelectionTimeout(mongoConnectTimeout)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	log.Info(ctx, "connected to mongo", "db", cfg.MongoDB)
	return client, nil
}
