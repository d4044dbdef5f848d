package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"billdesk/cmd"
	"billdesk/internal/config"
	"billdesk/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		// Config is unusable; fall back to the default logger to report it
		if setupErr := logger.Setup(logger.DefaultConfig()); setupErr != nil {
			log.Fatalf("Failed to initialize logger: %v", setupErr)
		}
		log := logger.WithComponent("main")
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	log := logger.WithComponent("main")
	log.Debug().Str("driver", cfg.DBDriver).Msg("Starting billdesk")

	cmd.Execute(cfg)
}
