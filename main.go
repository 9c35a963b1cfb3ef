package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/voxanet/adwin/internal/app"
	"github.com/voxanet/adwin/internal/config"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	configPath := flag.String("config", "adwin.toml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if _, statErr := os.Stat(*configPath); os.IsNotExist(statErr) {
		if err := cfg.Save(*configPath); err != nil {
			log.Printf("Warning: could not save default config: %v", err)
		} else {
			log.Printf("Created default config at: %s", *configPath)
		}
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("adwin starting...")
	if err := a.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
