// Package pipeline wires extract, transform and load with the fixed analysis
// chain and records the outcome of every step.
package pipeline

import (
	"context"

	"github.com/sells-group/wnv-cli/internal/cartography"
	"github.com/sells-group/wnv-cli/internal/fetcher"
	"github.com/sells-group/wnv-cli/internal/geospatial"
	"github.com/sells-group/wnv-cli/internal/model"
)

// SpatialBackend is the set of workspace operations the pipeline needs.
// *geospatial.Workspace implements it against PostGIS.
type SpatialBackend interface {
	Exists(ctx context.Context, layer string) (bool, error)
	Drop(ctx context.Context, layer string) error
	CreatePointDataset(ctx context.Context, layer string, srid int) error
	AddField(ctx context.Context, layer string, field geospatial.Field) error
	Insert(ctx context.Context, layer string, f geospatial.Feature) error

	Buffer(ctx context.Context, in, out string, distanceFeet float64, dissolve bool) error
	Erase(ctx context.Context, base, erase, out string) error
	SpatialJoin(ctx context.Context, target, join, out string, opts geospatial.JoinOptions) error
	Count(ctx context.Context, layer string, pred *geospatial.Predicate) (int64, error)
	CopyWhere(ctx context.Context, in, out string, pred geospatial.Predicate) error
	FieldValues(ctx context.Context, layer, field string) ([]string, error)
	Features(ctx context.Context, layer string, pred *geospatial.Predicate) ([]geospatial.Feature, error)
}

var _ SpatialBackend = (*geospatial.Workspace)(nil)

// Extractor downloads the source sheet. A nil payload means nothing was received.
type Extractor interface {
	Extract(ctx context.Context, url string) *fetcher.Payload
}

var _ Extractor = (*fetcher.HTTPFetcher)(nil)

// MapRenderer writes a styled map document to a file.
type MapRenderer interface {
	Render(ctx context.Context, doc *cartography.Document, src cartography.FeatureSource, path string) error
}

var _ MapRenderer = (*cartography.PDFRenderer)(nil)

// RunRecorder persists runs and step results. store.Store implements it.
type RunRecorder interface {
	CreateRun(ctx context.Context, subtitle string) (*model.Run, error)
	RecordStep(ctx context.Context, runID string, step model.StepResult) error
	FinishRun(ctx context.Context, runID string, result *model.RunResult) error
}
