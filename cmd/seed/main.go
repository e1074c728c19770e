package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"inkwell/backend/internal/config"
	"inkwell/backend/internal/logging"
	"inkwell/backend/internal/repository"
	"inkwell/backend/internal/services"
	"inkwell/backend/internal/workflows"
)

// Seeds the database with a ready-to-run essay workflow for local development.
func main() {
	ctx := context.Background()
	logger := logging.NewLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pool.Close()

	store := repository.NewPostgresWorkflowStore(pool)
	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Skip seeding if a workflow with the seed name already exists.
	existing, _, err := store.ListWorkflows(ctx, nil, 0, 0)
	if err != nil {
		log.Fatalf("Failed to list existing workflows: %v", err)
	}
	const seedName = "Essay Writer"
	for _, w := range existing {
		if w.Name == seedName {
			logger.Info("Skipping existing workflow", "name", seedName, "id", w.ID)
			logger.Info("Seeding complete!")
			return
		}
	}

	svc := services.NewWorkflowService(store, logger)
	workflow, err := workflows.CreateEssayWorkflow(ctx, svc,
		"Write a 1500-word argumentative essay on whether cities should ban private cars from downtown cores",
		map[string]any{
			"word_count":     1500,
			"essay_type":     "argumentative",
			"citation_style": "MLA",
		},
	)
	if err != nil {
		log.Fatalf("Failed to create essay workflow: %v", err)
	}

	logger.Info("Seeded workflow", "name", workflow.Name, "id", workflow.ID, "steps", len(workflow.Steps))
	logger.Info("Seeding complete!")
}
