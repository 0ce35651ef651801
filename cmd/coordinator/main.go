package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/rawblock/trade-surveillance-engine/internal/config"
	"github.com/rawblock/trade-surveillance-engine/internal/coordinator"
	"github.com/rawblock/trade-surveillance-engine/internal/ioadapters"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: loading configuration: %v", err)
	}

	requireURL(cfg.LayeringWorkerURL, "layering_worker_url")
	requireURL(cfg.WashTradingWorkerURL, "wash_trading_worker_url")
	requireURL(cfg.AggregatorURL, "aggregator_url")

	inputFile, err := os.Open(cfg.InputDir + "/events.csv")
	if err != nil {
		log.Fatalf("FATAL: opening input file: %v", err)
	}
	defer inputFile.Close()

	reader := ioadapters.NewCSVEventReader(inputFile)
	events, err := reader.ReadEvents()
	if err != nil {
		log.Fatalf("FATAL: reading events: %v", err)
	}

	timeout := cfg.AlgorithmTimeout()
	runCfg := coordinator.RunConfig{
		RequestID: requestID(),
		Events:    events,
		Workers: []coordinator.WorkerSpec{
			{Name: "layering", Client: coordinator.NewWorkerClient(cfg.LayeringWorkerURL, cfg.APIKey, timeout)},
			{Name: "wash_trading", Client: coordinator.NewWorkerClient(cfg.WashTradingWorkerURL, cfg.APIKey, timeout)},
		},
		Aggregator: coordinator.NewAggregatorClient(cfg.AggregatorURL, cfg.APIKey, timeout),
		Retry: coordinator.RetryPolicy{
			MaxRetries:  cfg.MaxRetries,
			BackoffBase: cfg.RetryBackoffBaseSeconds,
		},
	}

	summary, err := coordinator.Run(context.Background(), runCfg)
	if err != nil {
		log.Fatalf("FATAL: run failed: %v", err)
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	os.Stdout.Write(out)
	os.Stdout.Write([]byte("\n"))
}

func requireURL(url, name string) {
	if url == "" {
		log.Fatalf("FATAL: %s is required", name)
	}
}

// requestID prefers an externally supplied id (set by whatever triggers
// a run) and falls back to a freshly generated one so a bare invocation
// still gets a unique idempotency key.
func requestID() string {
	if id := os.Getenv("REQUEST_ID"); id != "" {
		return id
	}
	return uuid.NewString()
}
