package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/PetoAdam/homenavi/arm-bridge/internal/armbridge"
	"github.com/PetoAdam/homenavi/arm-bridge/internal/auth"
	"github.com/PetoAdam/homenavi/arm-bridge/internal/component"
	"github.com/PetoAdam/homenavi/arm-bridge/internal/config"
	"github.com/PetoAdam/homenavi/arm-bridge/internal/httpapi"
	"github.com/PetoAdam/homenavi/arm-bridge/internal/mqtt"
	"github.com/PetoAdam/homenavi/arm-bridge/internal/observability"
	"github.com/PetoAdam/homenavi/arm-bridge/internal/realtime"
	"github.com/PetoAdam/homenavi/arm-bridge/internal/recorder"
	"github.com/PetoAdam/homenavi/arm-bridge/internal/retention"
	"github.com/PetoAdam/homenavi/arm-bridge/internal/status"
	"github.com/PetoAdam/homenavi/arm-bridge/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel, cfg.LogFile)

	shutdownObs, promHandler, tracer := observability.SetupObservability("arm-bridge")
	defer shutdownObs()

	var apiOpts []httpapi.Option

	mq, err := mqtt.Connect(cfg.MQTTBrokerURL, cfg.MQTTClientID, cfg.MQTTCAFile)
	if err != nil {
		slog.Error("mqtt connect failed", "error", err)
		os.Exit(1)
	}
	defer mq.Close()

	if cfg.JWTPublicKeyPath != "" {
		pub, err := auth.LoadRSAPublicKey(cfg.JWTPublicKeyPath)
		if err != nil {
			slog.Error("jwt key load failed", "error", err)
			os.Exit(1)
		}
		apiOpts = append(apiOpts, httpapi.WithAuth(auth.Require(pub, "resident")))
	}

	hub := realtime.NewHub()
	recOpts := []recorder.Option{recorder.WithBroadcaster(hub)}

	var rdb *redis.Client
	if cfg.CacheEnabled() {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			slog.Error("redis init failed", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		cache := store.NewStateCache(rdb)
		recOpts = append(recOpts, recorder.WithCache(cache))
		apiOpts = append(apiOpts, httpapi.WithCache(cache))
	} else {
		slog.Info("state cache disabled", "reason", "REDIS_ADDR empty")
	}

	var prune *retention.Job
	if cfg.Postgres.Enabled() {
		db, err := store.OpenPostgres(cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.DBName, cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.SSLMode)
		if err != nil {
			slog.Error("db connect failed", "error", err)
			os.Exit(1)
		}
		repo, err := store.New(db)
		if err != nil {
			slog.Error("db migrate failed", "error", err)
			os.Exit(1)
		}
		recOpts = append(recOpts, recorder.WithHistory(repo))
		apiOpts = append(apiOpts, httpapi.WithHistory(repo))
		prune, err = retention.New(repo, cfg.Retention, cfg.PruneSchedule)
		if err != nil {
			slog.Error("retention init failed", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("history disabled", "reason", "POSTGRES_HOST empty")
	}

	manager := component.NewManager()
	arms := make([]*armbridge.Arm, 0, len(cfg.Arms))
	files := make(map[string]string, len(cfg.Arms))
	announced := make([]status.Arm, 0, len(cfg.Arms))
	for _, ac := range cfg.Arms {
		arm := armbridge.NewFromArg(ac.TaskArg)
		arm.Bridge().UseTransport(mq)
		arm.Bridge().SetQueueSize(cfg.QueueSize)
		if err := manager.Add(arm); err != nil {
			slog.Error("add arm failed", "arm", ac.Name, "error", err)
			os.Exit(1)
		}
		arms = append(arms, arm)
		files[ac.Name] = ac.ConfigFile
		announced = append(announced, status.Arm{
			Name:      ac.Name,
			Interface: ac.Name,
			Commands:  []string{armbridge.CommandGetStateJointDesired},
			Topics:    []string{armbridge.Topic(ac.Name)},
		})
	}
	if err := manager.Add(recorder.New(cfg.RecordPeriod, cfg.ArmNames(), manager, recOpts...)); err != nil {
		slog.Error("add recorder failed", "error", err)
		os.Exit(1)
	}
	if err := manager.Configure(files); err != nil {
		slog.Error("configure failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.Start(ctx); err != nil {
		slog.Error("component start failed", "error", err)
		os.Exit(1)
	}

	announcer := status.New(mq, status.Config{BridgeID: cfg.BridgeID, Version: cfg.Version, Arms: announced})
	announcer.Start(ctx)

	if prune != nil {
		prune.Start()
	}

	api := httpapi.New(manager, arms, append(apiOpts, httpapi.WithStream(hub))...)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promHandler)
	mux.Handle("/", api.Handler())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           middleware.RequestID(observability.WrapHandler(tracer, "arm-bridge", mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
			cancel()
		}
	}()
	slog.Info("arm-bridge started", "port", cfg.Port, "bridge_id", cfg.BridgeID, "arms", cfg.ArmNames())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
		slog.Info("shutdown requested")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	if prune != nil {
		prune.Stop()
	}
	announcer.Stop()
	manager.Stop()
	cancel()
	slog.Info("arm-bridge stopped")
}

// setupLogging logs to stdout and, when file is set, to a rotated log file.
func setupLogging(level, file string) {
	lvl := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	var out io.Writer = os.Stdout
	if file != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     14,
			Compress:   true,
		})
	}
	h := slog.NewTextHandler(out, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
}
