package main

import (
	"context"
	"database/sql"
	"os/signal"
	"syscall"
	"time"

	"qms-data/internal/archive"
	"qms-data/internal/config"
	"qms-data/internal/database"
	"qms-data/internal/events"
	httpapi "qms-data/internal/http"
	"qms-data/internal/logger"
	"qms-data/internal/repository"
	"qms-data/internal/service"
	"qms-data/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "qms-data")
	if err != nil {
		log, _ = zap.NewProduction()
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional Postgres; without it every collection lives in memory.
	var db *sql.DB
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(ctx, &cfg.Database); err != nil {
			log.Warn("DB enabled but connection failed, falling back to memory store", zap.Error(err))
		} else if err := database.Migrate(ctx, d); err != nil {
			log.Warn("DB migration failed, falling back to memory store", zap.Error(err))
			_ = database.Close(d)
		} else {
			db = d
			log.Info("DB enabled for qms-data")
		}
	}
	st := repository.NewMemoryStore()
	if db != nil {
		st = repository.NewPostgresStore(db)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Warn("Redis enabled but unreachable, falling back", zap.Error(err))
			_ = redisClient.Close()
			redisClient = nil
		}
		pingCancel()
	}

	var kv store.KV = store.NewMemoryKV()
	switch {
	case redisClient != nil:
		kv = store.NewRedisKV(redisClient)
	case db != nil:
		kv = store.NewPostgresKV(db)
	}

	var (
		reader     events.Reader
		publishers events.Multi
	)
	if redisClient != nil {
		stream := events.NewRedisStream(redisClient, cfg.Redis.Stream, 10000)
		reader = stream
		publishers = append(publishers, stream)
	} else {
		memLog := events.NewMemoryLog(1000)
		reader = memLog
		publishers = append(publishers, memLog)
	}
	var mqttClient *events.MQTTClient
	if cfg.MQTT.Enabled {
		if c, err := events.NewMQTTClient(&cfg.MQTT); err != nil {
			log.Warn("MQTT enabled but connection failed, notifications disabled", zap.Error(err))
		} else {
			mqttClient = c
			publishers = append(publishers, events.NewMQTTNotifier(c, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS))
			log.Info("MQTT notifications enabled", zap.String("broker", cfg.MQTT.Broker))
		}
	}

	opts := service.Options{
		AutoAssignTraining: cfg.Workflow.AutoAssignTraining,
		TrainingDueDays:    cfg.Workflow.TrainingDueDays,
		KV:                 kv,
	}
	// a typed nil *S3Archive must not reach the interface
	if arc, err := archive.NewS3Archive(ctx, &cfg.S3); err != nil {
		log.Warn("S3 archive unavailable", zap.Error(err))
	} else if arc != nil {
		opts.Archive = arc
		log.Info("Backup archive enabled", zap.String("bucket", cfg.S3.Bucket))
	}

	svc := service.New(service.Deps{Store: st, Events: publishers, Logger: log}, opts)

	if cfg.Workflow.SeedDemo {
		if err := repository.SeedDemo(ctx, st, time.Now().UTC()); err != nil {
			log.Warn("Demo seed failed", zap.Error(err))
		}
	}

	router := httpapi.NewRouter(log)
	router.RegisterAPI(svc, reader)
	router.RegisterDoctorRoutes(httpapi.NewDoctorHandler(db, redisClient, log))

	srv := service.NewServer(cfg.HTTP.Addr, router, log)
	if err := srv.Run(ctx); err != nil {
		log.Error("HTTP server stopped", zap.Error(err))
	}

	if mqttClient != nil {
		mqttClient.Disconnect()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if db != nil {
		_ = database.Close(db)
	}
}
