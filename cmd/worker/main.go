package main

import (
	"flag"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/trade-surveillance-engine/internal/config"
	"github.com/rawblock/trade-surveillance-engine/internal/domain"
	"github.com/rawblock/trade-surveillance-engine/internal/layering"
	"github.com/rawblock/trade-surveillance-engine/internal/washtrading"
	"github.com/rawblock/trade-surveillance-engine/internal/worker"
)

func main() {
	algorithm := flag.String("algorithm", "layering", "which detector this worker hosts: layering or wash_trading")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: loading configuration: %v", err)
	}

	var detector worker.Detector
	switch *algorithm {
	case "layering":
		detector = layering.New(domain.DefaultDetectionConfig())
	case "wash_trading":
		detector = washtrading.New(domain.DefaultWashTradingConfig())
	default:
		log.Fatalf("FATAL: unknown -algorithm %q (want layering or wash_trading)", *algorithm)
	}

	svc := worker.New(worker.Config{
		ServiceName: *algorithm,
		Detector:    detector,
		CacheSize:   cfg.CacheSize,
	})

	limiter := worker.NewRateLimiter(cfg.RateLimitPerMinute)

	engine := gin.Default()
	protected := engine.Group("/")
	protected.Use(
		worker.AdmissionMiddleware(cfg.MaxRequestBytes()),
		limiter.Middleware(),
		worker.AuthMiddleware(cfg.APIKey),
	)
	svc.Register(protected, engine)

	log.Printf("worker (%s) listening on %s", *algorithm, cfg.ListenAddr)
	if err := engine.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("FATAL: worker server exited: %v", err)
	}
}
