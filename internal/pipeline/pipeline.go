package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/wnv-cli/internal/config"
	"github.com/sells-group/wnv-cli/internal/fetcher"
	"github.com/sells-group/wnv-cli/internal/model"
	"github.com/sells-group/wnv-cli/pkg/geocode"
)

// RunOptions selects which stages a run performs.
type RunOptions struct {
	Subtitle     string
	SkipETL      bool
	SkipAnalysis bool
	SkipMap      bool
}

// Pipeline orchestrates ETL followed by the analysis chain.
type Pipeline struct {
	cfg       *config.Config
	extractor Extractor
	sink      *FeatureSink
	analysis  *Analysis
	recorder  RunRecorder
}

// New creates a Pipeline. renderer may be nil to disable map export.
func New(
	cfg *config.Config,
	extractor Extractor,
	gc geocode.Client,
	backend SpatialBackend,
	renderer MapRenderer,
) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		extractor: extractor,
		sink:      NewFeatureSink(backend, gc, cfg.Layers.AvoidPoints, cfg.Sink.AddressField, cfg.Sink.SRID),
		analysis:  NewAnalysis(cfg, backend, renderer),
	}
}

// SetRecorder enables run history.
func (p *Pipeline) SetRecorder(r RunRecorder) {
	p.recorder = r
}

// Run executes the selected stages. Step failures are contained in the result;
// Run itself never fails.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) *model.RunResult {
	result := &model.RunResult{Subtitle: opts.Subtitle, Matches: -1}

	if p.recorder != nil {
		run, err := p.recorder.CreateRun(ctx, opts.Subtitle)
		if err != nil {
			zap.L().Warn("pipeline: failed to record run", zap.Error(err))
		} else {
			result.ID = run.ID
		}
	}
	if result.ID == "" {
		result.ID = uuid.New().String()
	}

	log := zap.L().With(zap.String("run_id", result.ID))
	log.Info("pipeline: starting", zap.String("subtitle", opts.Subtitle),
		zap.Bool("etl", !opts.SkipETL), zap.Bool("analysis", !opts.SkipAnalysis))

	var steps []Step
	if !opts.SkipETL {
		steps = append(steps, Step{Name: StepETL, Run: func(ctx context.Context) (string, error) {
			return p.etl(ctx, result)
		}})
	}
	if !opts.SkipAnalysis {
		steps = append(steps, p.analysis.Steps(opts.Subtitle, opts.SkipMap)...)
	}

	runner := &Runner{
		Policy: p.cfg.Analysis.FailurePolicy,
		OnStep: func(st model.StepResult) {
			if p.recorder == nil {
				return
			}
			if err := p.recorder.RecordStep(ctx, result.ID, st); err != nil {
				log.Warn("pipeline: failed to record step", zap.String("step", st.Name), zap.Error(err))
			}
		},
	}
	result.Steps = runner.Execute(ctx, steps)

	if !opts.SkipAnalysis {
		result.Matches = p.analysis.Matches()
		result.Outputs = p.analysis.Outputs()
	}

	if p.recorder != nil {
		// Record the outcome even when the run context was canceled.
		if err := p.recorder.FinishRun(context.WithoutCancel(ctx), result.ID, result); err != nil {
			log.Warn("pipeline: failed to finish run record", zap.Error(err))
		}
	}

	log.Info("pipeline: finished",
		zap.String("status", string(result.Status())),
		zap.Strings("failed", result.Failed()),
		zap.Int("loaded", result.Loaded),
		zap.Int64("matches", result.Matches),
		zap.Strings("outputs", result.Outputs),
	)
	return result
}

// etl extracts the sheet, parses it and loads the geocoded points.
// A missing payload or an empty sheet ends the stage without error.
func (p *Pipeline) etl(ctx context.Context, result *model.RunResult) (string, error) {
	payload := p.extractor.Extract(ctx, p.cfg.Sheet.RemoteURL)
	if payload == nil {
		zap.L().Warn("pipeline: no data received, skipping load")
		return "no data received", nil
	}

	records := fetcher.Transform(payload, p.cfg.Sheet.Format)
	result.Records = len(records)
	if len(records) == 0 {
		zap.L().Warn("pipeline: no records parsed, skipping load")
		return "no records", nil
	}

	loaded, err := p.sink.Load(ctx, records)
	result.Loaded = loaded.Inserted
	result.Missed = loaded.Missed
	if err != nil {
		return "", err
	}
	return formatLoad(loaded), nil
}

func formatLoad(r LoadResult) string {
	return fmt.Sprintf("%d of %d records geocoded", r.Inserted, r.Records)
}
