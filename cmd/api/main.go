package main

import (
	"log"

	"battforge/adapters/llm"
	"battforge/adapters/physics"
	"battforge/adapters/postgres"
	"battforge/app"
	"battforge/internal/api"
	"battforge/internal/config"
	"battforge/ports"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Startup] invalid configuration: %v", err)
	}

	var classifier ports.SemanticClassifierPort
	if c := llm.NewGeminiClassifier(cfg.AI); c != nil {
		classifier = c
		log.Printf("[Startup] semantic classifier enabled (model %s)", cfg.AI.GeminiModel)
	} else {
		log.Printf("[Startup] semantic classifier disabled, deterministic mapping only")
	}

	var physicsPort ports.PhysicsReferencePort
	if p := physics.NewTwinClient(cfg.Physics); p != nil {
		physicsPort = p
		log.Printf("[Startup] physics reference enabled (%s)", cfg.Physics.BaseURL)
	}

	history, err := postgres.NewHistoryRepository(cfg.Database.URL)
	if err != nil {
		log.Fatalf("[Startup] history database unavailable: %v", err)
	}
	if history == nil {
		log.Printf("[Startup] history persistence disabled")
	}

	analysis := app.NewAnalysisService(classifier, physicsPort)
	batch := app.NewBatchService(analysis)

	server := api.NewServer(analysis, batch, history, cfg.Server.GinMode)
	if err := server.Start(":" + cfg.Server.Port); err != nil {
		log.Fatalf("[Startup] server failed: %v", err)
	}
}
