package main

import (
	"context"
	"log"

	"campus-market-be/internal/bootstrap"
	"campus-market-be/internal/config"
	"campus-market-be/internal/server"
	"campus-market-be/internal/tracer"
	"campus-market-be/pkg/database"
)

func main() {
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	cfg := config.Load()

	db, err := database.NewMongoDatabase(database.MongoConfig{
		URI:          cfg.Database.MongoURI,
		DBName:       cfg.Database.MongoDBName,
		MaxPoolSize:  cfg.Database.MaxPoolSize,
		ConnectRetry: cfg.Database.ConnectRetry,
	})
	if err != nil {
		log.Panicf("Unable to connect to MongoDB: %v", err)
	}

	container := bootstrap.NewContainer(db, cfg)
	defer func() {
		if container.NatsPublisher != nil {
			container.NatsPublisher.Close()
		}
		_ = container.Logger.Sync()
	}()

	srv := server.New(cfg, container)

	log.Fatal(srv.Run())
}
