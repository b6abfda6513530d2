package main

import (
	"flag"
	"log"

	"invoice-printer-bridge/internal/config"
	"invoice-printer-bridge/internal/httpapi"
	"invoice-printer-bridge/internal/logging"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML config file")
	envPath := flag.String("env", ".env", "path to an optional .env file")
	flag.Parse()

	if err := config.LoadEnv(*envPath); err != nil {
		log.Fatalf("env error: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.New(cfg.Logging.FilePath, cfg.Logging.ConsoleVerbose)
	if err != nil {
		log.Fatalf("logging error: %v", err)
	}
	defer logger.Close()

	srv := httpapi.NewServer(cfg, *configPath, logger)
	if err := srv.Run(); err != nil {
		logger.Error("server stopped: %v", err)
		log.Fatal(err)
	}
}
