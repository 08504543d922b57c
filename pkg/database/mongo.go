package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type MongoConfig struct {
	URI          string
	DBName       string
	MaxPoolSize  int
	ConnectRetry int
}

// NewMongoDatabase connects with a bounded number of retries and verifies
// the connection with a ping before handing it out. Change streams require
// a replica set; a standalone server fails at Watch time, not here.
func NewMongoDatabase(cfg MongoConfig) (*mongo.Database, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(uint64(cfg.MaxPoolSize))

	var client *mongo.Client
	var err error
	attempts := cfg.ConnectRetry
	if attempts < 1 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, err = mongo.Connect(ctx, opts)
		if err == nil {
			err = client.Ping(ctx, readpref.Primary())
		}
		cancel()
		if err == nil {
			return client.Database(cfg.DBName), nil
		}
		log.Printf("Mongo connect attempt %d/%d failed: %v", i+1, attempts, err)
		time.Sleep(2 * time.Second)
	}

	return nil, fmt.Errorf("unable to connect to MongoDB after %d attempts: %w", attempts, err)
}
