package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wnv-cli/internal/cartography"
	"github.com/sells-group/wnv-cli/internal/config"
	"github.com/sells-group/wnv-cli/internal/db"
	"github.com/sells-group/wnv-cli/internal/fetcher"
	"github.com/sells-group/wnv-cli/internal/geospatial"
	"github.com/sells-group/wnv-cli/internal/pipeline"
	"github.com/sells-group/wnv-cli/internal/store"
	"github.com/sells-group/wnv-cli/pkg/geocode"
)

// pipelineEnv holds the workspace pool, run history and the assembled pipeline.
type pipelineEnv struct {
	Pool      *pgxpool.Pool
	Workspace *geospatial.Workspace
	Store     store.Store // nil when history is disabled
	Pipeline  *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
	if pe.Pool != nil {
		pe.Pool.Close()
	}
}

// initWorkspace connects to PostGIS. Connection failure is fatal for every
// command that needs the workspace.
func initWorkspace(ctx context.Context) (*pgxpool.Pool, *geospatial.Workspace, error) {
	pool, err := db.Connect(ctx, cfg.Workspace.DatabaseURL)
	if err != nil {
		return nil, nil, eris.Wrap(err, "connect workspace")
	}
	ws, err := geospatial.NewWorkspace(pool, cfg.Workspace.Schema)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pool, ws, nil
}

// initStore opens the run history database, or returns nil when disabled.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	if c.History.Path == "" {
		return nil, nil
	}
	st, err := store.NewSQLite(c.History.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate history")
	}
	return st, nil
}

// newGeocoder builds the configured geocoding client.
func newGeocoder(c *config.Config) (geocode.Client, error) {
	return geocode.New(c.Geocoder.Provider, c.Geocoder.PrefixURL,
		geocode.WithTimeout(time.Duration(c.Geocoder.TimeoutSecs)*time.Second),
		geocode.WithRateLimit(c.Geocoder.RateLimit),
	)
}

// newExtractor builds the sheet downloader.
func newExtractor(c *config.Config) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    c.Sheet.UserAgent,
		Timeout:      time.Duration(c.Sheet.TimeoutSecs) * time.Second,
		PreviewChars: c.Sheet.PreviewChars,
	})
}

// initPipeline connects the workspace, opens history and assembles the
// pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	gc, err := newGeocoder(cfg)
	if err != nil {
		return nil, err
	}

	pool, ws, err := initWorkspace(ctx)
	if err != nil {
		return nil, err
	}
	env := &pipelineEnv{Pool: pool, Workspace: ws}

	renderer := &cartography.PDFRenderer{PageSize: cfg.Map.PageSize, Orientation: cfg.Map.Orientation}
	env.Pipeline = pipeline.New(cfg, newExtractor(cfg), gc, ws, renderer)

	st, err := initStore(ctx, cfg)
	if err != nil {
		zap.L().Warn("run history unavailable, continuing without it", zap.Error(err))
	} else if st != nil {
		env.Store = st
		env.Pipeline.SetRecorder(st)
	}
	return env, nil
}
