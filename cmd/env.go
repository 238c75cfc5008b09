package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/mida-project/mission-cli/internal/normalize"
	"github.com/mida-project/mission-cli/internal/pipeline"
	"github.com/mida-project/mission-cli/internal/resolve"
	"github.com/mida-project/mission-cli/internal/source"
	"github.com/mida-project/mission-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "data/missions.db"
		}
		st, err := store.NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initSources() []source.Source {
	var sources []source.Source
	if cfg.Sources.RawDir != "" {
		sources = append(sources, source.NewDir(cfg.Sources.RawDir))
	}
	if cfg.Sources.Sheet.Path != "" {
		sources = append(sources, source.NewSheet(
			cfg.Sources.Sheet.Path, cfg.Sources.Sheet.SheetName, cfg.Sources.Sheet.SkipRows))
	}
	for _, f := range cfg.Sources.Feeds {
		sources = append(sources, source.NewFeed(
			f.SourceID, f.URL, time.Duration(f.TimeoutSecs)*time.Second, f.RatePerSec))
	}
	return sources
}

func initReconciler(st store.Store) (*pipeline.Reconciler, error) {
	registry, err := normalize.LoadRegistry(cfg.Sources.AdaptersPath)
	if err != nil {
		return nil, err
	}
	rcfg := resolve.Config{
		MatchThreshold:  cfg.Resolve.MatchThreshold,
		AmbiguityMargin: cfg.Resolve.AmbiguityMargin,
	}
	if rcfg.MatchThreshold == 0 {
		rcfg = resolve.DefaultConfig()
	}
	return pipeline.New(st, normalize.New(registry), rcfg), nil
}
