package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/wnv-cli/internal/cartography"
	"github.com/sells-group/wnv-cli/internal/fetcher"
	"github.com/sells-group/wnv-cli/internal/geospatial"
	"github.com/sells-group/wnv-cli/internal/model"
	"github.com/sells-group/wnv-cli/pkg/geocode"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// fakeBackend keeps layers in memory and records every call by operation name.
type fakeBackend struct {
	layers map[string][]geospatial.Feature
	values map[string][]string
	fail   map[string]error
	panics map[string]bool
	count  int64
	calls  []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		layers: map[string][]geospatial.Feature{},
		values: map[string][]string{},
		fail:   map[string]error{},
		panics: map[string]bool{},
	}
}

func (f *fakeBackend) call(op string, args ...any) error {
	f.calls = append(f.calls, fmt.Sprintf("%s %v", op, args))
	if f.panics[op] {
		panic(op + " exploded")
	}
	return f.fail[op]
}

func (f *fakeBackend) called(op string) int {
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, op+" ") {
			n++
		}
	}
	return n
}

func (f *fakeBackend) Exists(_ context.Context, layer string) (bool, error) {
	if err := f.call("Exists", layer); err != nil {
		return false, err
	}
	_, ok := f.layers[layer]
	return ok, nil
}

func (f *fakeBackend) Drop(_ context.Context, layer string) error {
	if err := f.call("Drop", layer); err != nil {
		return err
	}
	delete(f.layers, layer)
	return nil
}

func (f *fakeBackend) CreatePointDataset(_ context.Context, layer string, srid int) error {
	if err := f.call("CreatePointDataset", layer, srid); err != nil {
		return err
	}
	f.layers[layer] = []geospatial.Feature{}
	return nil
}

func (f *fakeBackend) AddField(_ context.Context, layer string, field geospatial.Field) error {
	return f.call("AddField", layer, field.Name, field.Type)
}

func (f *fakeBackend) Insert(_ context.Context, layer string, feat geospatial.Feature) error {
	if err := f.call("Insert", layer); err != nil {
		return err
	}
	f.layers[layer] = append(f.layers[layer], feat)
	return nil
}

func (f *fakeBackend) produce(op, out string, args ...any) error {
	if err := f.call(op, args...); err != nil {
		return err
	}
	if _, ok := f.layers[out]; !ok {
		f.layers[out] = []geospatial.Feature{}
	}
	return nil
}

func (f *fakeBackend) Buffer(_ context.Context, in, out string, feet float64, dissolve bool) error {
	return f.produce("Buffer", out, in, out, feet, dissolve)
}

func (f *fakeBackend) Erase(_ context.Context, base, erase, out string) error {
	return f.produce("Erase", out, base, erase, out)
}

func (f *fakeBackend) SpatialJoin(_ context.Context, target, join, out string, opts geospatial.JoinOptions) error {
	return f.produce("SpatialJoin", out, target, join, out, opts.CountField, opts.KeepCommon)
}

func (f *fakeBackend) Count(_ context.Context, layer string, pred *geospatial.Predicate) (int64, error) {
	if err := f.call("Count", layer, pred.String()); err != nil {
		return 0, err
	}
	return f.count, nil
}

func (f *fakeBackend) CopyWhere(_ context.Context, in, out string, pred geospatial.Predicate) error {
	return f.produce("CopyWhere", out, in, out, pred.String())
}

func (f *fakeBackend) FieldValues(_ context.Context, layer, field string) ([]string, error) {
	if err := f.call("FieldValues", layer, field); err != nil {
		return nil, err
	}
	return f.values[layer], nil
}

func (f *fakeBackend) Features(_ context.Context, layer string, _ *geospatial.Predicate) ([]geospatial.Feature, error) {
	if err := f.call("Features", layer); err != nil {
		return nil, err
	}
	return f.layers[layer], nil
}

// fakeGeocoder answers from a map keyed by the one-line address.
type fakeGeocoder struct {
	mu      sync.Mutex
	results map[string]*geocode.Result
	errs    map[string]error
	seen    []string
}

func (g *fakeGeocoder) Geocode(_ context.Context, addr geocode.AddressInput) (*geocode.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	line := addr.OneLine()
	g.seen = append(g.seen, line)
	if err, ok := g.errs[line]; ok {
		return nil, err
	}
	if r, ok := g.results[line]; ok {
		return r, nil
	}
	return &geocode.Result{Matched: false}, nil
}

type fakeExtractor struct {
	payload *fetcher.Payload
	urls    []string
}

func (e *fakeExtractor) Extract(_ context.Context, url string) *fetcher.Payload {
	e.urls = append(e.urls, url)
	return e.payload
}

type fakeRenderer struct {
	docs  []*cartography.Document
	paths []string
	err   error
}

func (r *fakeRenderer) Render(_ context.Context, doc *cartography.Document, _ cartography.FeatureSource, path string) error {
	r.docs = append(r.docs, doc)
	r.paths = append(r.paths, path)
	return r.err
}

type fakeRecorder struct {
	created  []string
	steps    []model.StepResult
	finished *model.RunResult
	failAll  bool
}

var errRecorder = errors.New("history unavailable")

func (r *fakeRecorder) CreateRun(_ context.Context, subtitle string) (*model.Run, error) {
	if r.failAll {
		return nil, errRecorder
	}
	r.created = append(r.created, subtitle)
	return &model.Run{ID: "run-1", Subtitle: subtitle, Status: model.RunStatusRunning}, nil
}

func (r *fakeRecorder) RecordStep(_ context.Context, _ string, step model.StepResult) error {
	if r.failAll {
		return errRecorder
	}
	r.steps = append(r.steps, step)
	return nil
}

func (r *fakeRecorder) FinishRun(_ context.Context, _ string, result *model.RunResult) error {
	if r.failAll {
		return errRecorder
	}
	r.finished = result
	return nil
}
