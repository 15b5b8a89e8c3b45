package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/RichardKnop/machinery/v1"
	machineryconfig "github.com/RichardKnop/machinery/v1/config"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"micro-twitter/api"
	"micro-twitter/auth"
	"micro-twitter/config"
	"micro-twitter/feed"
	"micro-twitter/hub"
	"micro-twitter/logger"
	"micro-twitter/storage"
	"micro-twitter/toggle"
)

func startMachinery(cfg *config.Config) (*machinery.Server, error) {
	var cnf = &machineryconfig.Config{
		Broker:          "redis://" + cfg.RedisURL,
		DefaultQueue:    "machinery_tasks",
		ResultBackend:   "redis://" + cfg.RedisURL,
		ResultsExpireIn: 3600,
		Redis: &machineryconfig.RedisConfig{
			MaxIdle:                3,
			IdleTimeout:            240,
			ReadTimeout:            15,
			WriteTimeout:           15,
			ConnectTimeout:         15,
			NormalTasksPollPeriod:  1000,
			DelayedTasksPollPeriod: 500,
		},
	}
	return machinery.NewServer(cnf)
}

func main() {
	logger.InitLogger()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	mserver, err := startMachinery(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("failed to start task queue")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURL))
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to mongo")
	}
	store := storage.NewMongoStorage(client.Database(cfg.MongoDBName))
	if err := store.EnsureIndexes(ctx); err != nil {
		logrus.WithError(err).Fatal("failed to ensure indexes")
	}

	engine := toggle.NewEngine(store, mserver)
	err = mserver.RegisterTasks(map[string]interface{}{
		toggle.RepairFollowTask: engine.RepairFollow,
	})
	if err != nil {
		logrus.WithError(err).Fatal("failed to register tasks")
	}

	if cfg.AppMode != "SERVER" {
		worker := mserver.NewWorker("machinery_worker", 10)
		if err := worker.Launch(); err != nil {
			logrus.WithError(err).Fatal("worker stopped")
		}
		return
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
	handler := &api.HTTPHandler{
		Storage: store,
		Feed:    feed.NewService(store, feed.NewRedisCache(rdb)),
		Toggle:  engine,
		Hub:     hub.New(),
		Auth:    auth.NewService(store, []byte(cfg.JWTSecret)),
	}

	srv := &http.Server{
		Handler:      api.NewRouter(handler),
		Addr:         fmt.Sprintf("0.0.0.0:%s", cfg.ServerPort),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
	logrus.WithField("addr", srv.Addr).Info("server listening")
	logrus.Fatal(srv.ListenAndServe())
}
