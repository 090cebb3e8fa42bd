package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/wnv-cli/internal/fetcher"
	"github.com/sells-group/wnv-cli/internal/geospatial"
	"github.com/sells-group/wnv-cli/pkg/geocode"
)

// Source sheet columns composed into the geocoder input.
const (
	ColAddress = "Address"
	ColCity    = "City"
	ColState   = "State"
	ColZIP     = "ZIP"
)

// LoadResult counts what FeatureSink.Load did.
type LoadResult struct {
	Records  int
	Inserted int
	Missed   int
}

// FeatureSink geocodes records into a single point dataset, replacing it on every load.
type FeatureSink struct {
	backend  SpatialBackend
	geocoder geocode.Client
	layer    string
	field    string
	srid     int
}

// NewFeatureSink creates a sink writing to layer with one text attribute field.
func NewFeatureSink(backend SpatialBackend, gc geocode.Client, layer, field string, srid int) *FeatureSink {
	return &FeatureSink{
		backend:  backend,
		geocoder: gc,
		layer:    layer,
		field:    field,
		srid:     srid,
	}
}

// AddressOf builds the geocoder input from a record's Address, City, State and ZIP columns.
func AddressOf(r fetcher.Record) geocode.AddressInput {
	return geocode.AddressInput{
		Street:  r.Get(ColAddress),
		City:    r.Get(ColCity),
		State:   r.Get(ColState),
		ZipCode: r.Get(ColZIP),
	}
}

// Load replaces the dataset and inserts one point per geocoded record.
// Misses and per-record failures are logged and skipped.
func (s *FeatureSink) Load(ctx context.Context, records []fetcher.Record) (LoadResult, error) {
	log := zap.L().With(zap.String("layer", s.layer))
	res := LoadResult{Records: len(records)}

	if len(records) == 0 {
		log.Info("sink: no records to load")
		return res, nil
	}

	exists, err := s.backend.Exists(ctx, s.layer)
	if err != nil {
		return res, eris.Wrapf(err, "sink: check %s", s.layer)
	}
	if exists {
		if err := s.backend.Drop(ctx, s.layer); err != nil {
			return res, eris.Wrapf(err, "sink: drop %s", s.layer)
		}
		log.Info("sink: deleted existing dataset")
	}
	if err := s.backend.CreatePointDataset(ctx, s.layer, s.srid); err != nil {
		return res, eris.Wrapf(err, "sink: create %s", s.layer)
	}
	if err := s.backend.AddField(ctx, s.layer, geospatial.Field{Name: s.field, Type: geospatial.FieldText}); err != nil {
		return res, eris.Wrapf(err, "sink: add field %s", s.field)
	}

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "sink: load interrupted")
		}

		addr := AddressOf(rec)
		full := addr.OneLine()

		result, err := s.geocoder.Geocode(ctx, addr)
		if err != nil {
			log.Warn("sink: geocode failed, skipping", zap.Int("row", i+1), zap.String("address", full), zap.Error(err))
			res.Missed++
			continue
		}
		if result == nil || !result.Matched {
			log.Info("sink: address not found, skipping", zap.Int("row", i+1), zap.String("address", full))
			res.Missed++
			continue
		}

		pt := geom.NewPointFlat(geom.XY, []float64{result.Longitude, result.Latitude}).SetSRID(s.srid)
		feature := geospatial.Feature{
			Geom:  pt,
			Attrs: map[string]any{s.field: full},
		}
		if err := s.backend.Insert(ctx, s.layer, feature); err != nil {
			log.Warn("sink: insert failed, skipping", zap.Int("row", i+1), zap.String("address", full), zap.Error(err))
			res.Missed++
			continue
		}
		res.Inserted++
	}

	log.Info("sink: load complete",
		zap.Int("records", res.Records),
		zap.Int("inserted", res.Inserted),
		zap.Int("missed", res.Missed),
	)
	return res, nil
}
