package main

import (
	"context"
	"flag"
	"log"
	"mime"
	"os"
	"os/signal"
	"syscall"

	"vodmill/internal/config"
	"vodmill/internal/daemon"
	"vodmill/internal/encoding"
	"vodmill/internal/jobs"
	"vodmill/internal/logging"
	"vodmill/internal/notify"
	"vodmill/internal/offload"
	"vodmill/internal/workflow"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults to ~/.config/vodmill/config.toml)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_ = mime.AddExtensionType(".m3u8", "application/vnd.apple.mpegurl")
	_ = mime.AddExtensionType(".ts", "video/mp2t")

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := jobs.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		os.Exit(1)
	}

	uploader, err := offload.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("configure offload", logging.Error(err))
		os.Exit(1)
	}

	driver := encoding.NewDriver(cfg, nil, logger)
	hub := notify.NewHub()
	manager := workflow.NewManager(cfg, store, driver, uploader, hub, logger)

	d, err := daemon.New(cfg, store, manager, hub, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("vodmilld shutting down")
}
