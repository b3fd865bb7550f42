package main

import (
	"log"

	"github.com/joho/godotenv"
	"pricewatch/cmd"
	"pricewatch/internal/config"
	"pricewatch/internal/logger"
)

func main() {
	// a missing .env is normal in deployments that set the environment directly
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		// commands report the configuration error themselves
		if err := logger.Setup(logger.DefaultConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	} else if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	cmd.Execute()
}
