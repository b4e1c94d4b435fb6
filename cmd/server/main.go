package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/npezzotti/gosocial/internal/api"
	"github.com/npezzotti/gosocial/internal/chat"
	"github.com/npezzotti/gosocial/internal/config"
	"github.com/npezzotti/gosocial/internal/database"
	"github.com/npezzotti/gosocial/internal/docstore"
	"github.com/npezzotti/gosocial/internal/objstore"
	"github.com/npezzotti/gosocial/internal/rooms"
	"github.com/npezzotti/gosocial/internal/server"
	"github.com/npezzotti/gosocial/internal/stats"
)

func main() {
	logger := log.New(os.Stderr, "[gosocial] ", log.LstdFlags)

	if err := config.LoadDotEnv(".env"); err != nil {
		logger.Fatal("load .env:", err)
	}

	var params config.Params
	params.RegisterFlags(flag.CommandLine)
	flag.Parse()

	cfg, err := config.NewConfig(params)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgGoSocialRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Println("db close:", err)
		}
	}()

	if err := database.Migrate(dbConn.DB()); err != nil {
		logger.Fatal("db migrate:", err)
	}

	docs, err := docstore.NewRedisMessageStore(cfg.RedisURL)
	if err != nil {
		logger.Fatal("message store:", err)
	}
	defer docs.Close()

	initCtx, cancelInit := context.WithTimeout(context.Background(), 10*time.Second)
	objects, err := objstore.NewMinioObjectStore(initCtx, objstore.Options{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Bucket:    cfg.S3.Bucket,
		UseSSL:    cfg.S3.UseSSL,
		PublicURL: cfg.S3.PublicURL,
	})
	cancelInit()
	if err != nil {
		logger.Fatal("object store:", err)
	}

	local := rooms.NewLocal(logger)
	var roomManager rooms.Manager = local
	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL, nats.Name("gosocial"))
		if err != nil {
			logger.Fatal("nats connect:", err)
		}
		defer nc.Drain()

		fanout, err := rooms.NewNatsFanout(nc, local, logger)
		if err != nil {
			logger.Fatal("nats fanout:", err)
		}
		defer fanout.Close()

		roomManager = fanout
		logger.Printf("relaying room events over nats at %s", cfg.NatsURL)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	svc := chat.NewService(chat.Options{
		DB:              dbConn,
		Docs:            docs,
		Objects:         objects,
		Rooms:           roomManager,
		Stats:           statsUpdater,
		Logger:          logger,
		MaxUploadSize:   cfg.MaxUploadSize,
		UploadURLExpiry: cfg.UploadURLExpiry,
	})

	chatServer := server.NewChatServer(logger, svc, statsUpdater, server.Options{
		Workers:   cfg.Workers,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
	})

	srv := api.NewGoSocialApp(mux, logger, chatServer, dbConn, docs, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", cfg.ServerAddr)
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Println("HTTP server shutdown:", err)
	}

	logger.Println("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Println("chat server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
