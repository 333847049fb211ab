package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Chrolemist/scrumpoker/internal/cache"
	"github.com/Chrolemist/scrumpoker/internal/config"
	"github.com/Chrolemist/scrumpoker/internal/service"
	"github.com/Chrolemist/scrumpoker/internal/store"
	"github.com/Chrolemist/scrumpoker/internal/transport/rest"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	roomStore, cleanup := buildStore(ctx, cfg)
	defer cleanup()

	snapshots := buildSnapshotCache(ctx, cfg)

	roomSvc := service.NewRoomService(roomStore, snapshots)

	router := rest.NewRouter(&rest.Container{RoomService: roomSvc})

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		logrus.WithField("port", cfg.HTTPPort).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("listen and serve")
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Fatal("server forced to shutdown")
	}

	logrus.Info("server exited")
}

func buildStore(ctx context.Context, cfg *config.Config) (store.RoomStore, func()) {
	switch cfg.StoreBackend {
	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			logrus.WithError(err).Fatal("connect to MongoDB")
		}
		if err := client.Ping(connectCtx, nil); err != nil {
			logrus.WithError(err).Fatal("ping MongoDB")
		}
		logrus.Info("connected to MongoDB")
		cleanup := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			client.Disconnect(disconnectCtx)
		}
		return store.NewMongoStore(client.Database(cfg.MongoDB)), cleanup
	case "file":
		logrus.WithField("path", cfg.RoomsFile).Info("using file-backed room store")
		return store.NewFileStore(cfg.RoomsFile), func() {}
	default:
		logrus.Info("using in-memory room store")
		return store.NewMemoryStore(), func() {}
	}
}

func buildSnapshotCache(ctx context.Context, cfg *config.Config) cache.SnapshotCache {
	if cfg.RedisAddr == "" {
		return cache.NewMemorySnapshotCache()
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		logrus.WithError(err).Fatal("ping Redis")
	}
	logrus.Info("connected to Redis")
	return cache.NewSnapshotCache(rdb)
}
