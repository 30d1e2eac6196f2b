package main

import (
	"flag"
	"log"
	"os"

	"LedgerCast/internal/di"
	"LedgerCast/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s clickhouse=%s redis=%s", cfg.Environment, cfg.ClickHouse.Host, cfg.Redis.Addr)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	log.Printf("kafka: brokers=%v ingest_topic=%s", cfg.Kafka.Brokers, cfg.Kafka.IngestTopic)

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
