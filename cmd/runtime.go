package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"github.com/exportwise/advisor-cli/internal/learning"
	"github.com/exportwise/advisor-cli/internal/model"
	"github.com/exportwise/advisor-cli/internal/monitoring"
	"github.com/exportwise/advisor-cli/internal/pattern"
	"github.com/exportwise/advisor-cli/internal/similarity"
	"github.com/exportwise/advisor-cli/internal/store"
)

// runtime wires the store, repositories, pattern stores and learning engine
// for one command invocation.
type runtime struct {
	Store      store.Store
	Exports    *pattern.ExportStore
	Regulatory *pattern.RegulatoryStore
	Learning   *learning.Engine
	Metrics    *monitoring.Metrics
	Registry   *prometheus.Registry
}

// initRuntime opens the configured store backend and assembles the core.
func initRuntime(ctx context.Context) (*runtime, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "memory":
		st = store.NewMemory()
	default:
		err = eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	registry := prometheus.NewRegistry()
	metrics := monitoring.New(registry)

	engine := similarity.NewEngine(cfg.Similarity)

	exportRepo := pattern.NewMemoryRepository(model.PatternKindExportStrategy, st)
	exportRepo.Initialize(ctx)
	regRepo := pattern.NewMemoryRepository(model.PatternKindRegulatory, st)
	regRepo.Initialize(ctx)

	exports := pattern.NewExportStore(exportRepo, st, engine, metrics)
	regulatory := pattern.NewRegulatoryStore(regRepo, st, st, engine, metrics)
	learner := learning.NewEngine(exports, regulatory, st, metrics)

	return &runtime{
		Store:      st,
		Exports:    exports,
		Regulatory: regulatory,
		Learning:   learner,
		Metrics:    metrics,
		Registry:   registry,
	}, nil
}

// Close releases backend resources.
func (r *runtime) Close() {
	_ = r.Store.Close()
}
