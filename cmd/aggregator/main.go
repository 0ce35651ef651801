package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/trade-surveillance-engine/internal/aggregator"
	"github.com/rawblock/trade-surveillance-engine/internal/auditlog"
	"github.com/rawblock/trade-surveillance-engine/internal/config"
	"github.com/rawblock/trade-surveillance-engine/internal/dashboard"
	"github.com/rawblock/trade-surveillance-engine/internal/ioadapters"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: loading configuration: %v", err)
	}

	var audit *auditlog.Store
	if cfg.DatabaseURL != "" {
		audit, err = auditlog.Connect(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: audit database unavailable, continuing without run-audit persistence: %v", err)
			audit = nil
		} else {
			defer audit.Close()
			if err := audit.InitSchema(context.Background()); err != nil {
				log.Printf("Warning: audit schema init failed: %v", err)
			}
		}
	}

	hub := dashboard.NewHub()

	outputDir := cfg.OutputDir
	policy := aggregator.Policy{ValidationStrict: cfg.ValidationStrict, AllowPartialResults: cfg.AllowPartialResults}

	svc := aggregator.New(policy, func(requestID string, result aggregator.Result) {
		startedAt := time.Now()
		hub.BroadcastFindings(requestID, result.Findings)

		if err := writeArtefacts(outputDir, cfg, result); err != nil {
			log.Printf("aggregator: writing output artefacts for %s failed: %v", requestID, err)
		}

		if audit != nil {
			_ = audit.Record(context.Background(), auditlog.Run{
				RequestID:      requestID,
				StartedAt:      startedAt,
				FinishedAt:     time.Now(),
				Status:         string(result.Status),
				FailedServices: result.FailedServices,
				MergedCount:    len(result.Findings),
			})
		}
	})

	engine := gin.Default()
	svc.Register(engine)
	engine.GET("/v1/stream", hub.Subscribe)

	log.Printf("aggregator listening on %s", cfg.ListenAddr)
	if err := engine.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("FATAL: aggregator server exited: %v", err)
	}
}

func writeArtefacts(outputDir string, cfg *config.Config, result aggregator.Result) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}

	summaryFile, err := os.Create(outputDir + "/summary.csv")
	if err != nil {
		return err
	}
	defer summaryFile.Close()

	logFile, err := os.Create(outputDir + "/detection_log.csv")
	if err != nil {
		return err
	}
	defer logFile.Close()

	writer := ioadapters.NewCSVResultWriter(ioadapters.CSVResultWriterConfig{
		SummaryWriter: summaryFile,
		LogWriter:     logFile,
		Pseudonymize:  cfg.PseudonymizationEnabled,
		Salt:          cfg.PseudonymizationSalt,
	})

	if err := writer.WriteSummary(result.Findings); err != nil {
		return err
	}
	return writer.WriteDetectionLog(result.Findings)
}
