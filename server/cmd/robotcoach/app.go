package main

import (
	"database/sql"
	"fmt"
	"log"

	"robot-coach/server/internal/config"
	"robot-coach/server/internal/evaluation"
	"robot-coach/server/internal/orchestrator"
	"robot-coach/server/internal/phase"
	"robot-coach/server/internal/rules"
	"robot-coach/server/internal/session"
	"robot-coach/server/internal/storage"
	"robot-coach/server/internal/timeline"
)

// app 汇总按配置构建出的组件。
type app struct {
	db         *sql.DB
	sessions   session.Store
	timeline   timeline.Store
	catalog    *rules.Catalog
	classifier *evaluation.Classifier
}

func (a *app) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *app) orchestrator(cfg *config.Config) *orchestrator.Orchestrator {
	return orchestrator.New(a.sessions, a.timeline, nil).
		WithCatalog(a.catalog).
		WithMachine(phase.NewMachine(cfg.Machine.MaxSuccessSteps, cfg.Machine.MaxEscalations)).
		WithClassifier(a.classifier)
}

func buildApp(cfg *config.Config) (*app, error) {
	a := &app{}

	catalog := rules.Default()
	if cfg.Paths.Rules != "" {
		c, err := rules.LoadFile(cfg.Paths.Rules)
		if err != nil {
			return nil, fmt.Errorf("load rules: %w", err)
		}
		catalog = c
	}
	a.catalog = catalog
	log.Printf("[App] 📚 Rule catalog: %d rules, %d triggers", catalog.Len(), len(catalog.Triggers()))

	var scenarios []evaluation.Scenario
	if cfg.Paths.Scenarios != "" {
		s, err := evaluation.LoadScenarios(cfg.Paths.Scenarios)
		if err != nil {
			return nil, fmt.Errorf("load scenarios: %w", err)
		}
		scenarios = s
	}
	a.classifier = evaluation.NewClassifier(scenarios, cfg.Classifier)

	switch cfg.Storage.Driver {
	case "sqlite":
		db, err := storage.Open(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.db = db
		a.sessions = session.NewSQLiteStore(db)
		a.timeline = timeline.NewSQLiteStore(db)
		log.Printf("[App] 💾 SQLite storage: %s", cfg.Storage.Path)
	default:
		a.sessions = session.NewInMemoryStore()
		a.timeline = timeline.NewInMemoryStore()
		log.Printf("[App] 💾 In-memory storage (data is lost on restart)")
	}
	return a, nil
}
