package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"live-transcription-engine/internal/app"
	"live-transcription-engine/internal/config"
)

func main() {
	configFile := flag.String("config", "", "Path to YAML config file (env vars used when empty)")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configFile != "" {
		cfg, err = config.LoadFile(*configFile)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	} else {
		cfg = config.Load()
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize engine: %v", err)
	}

	application.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	application.Shutdown(ctx)
}
