package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wnv-cli/internal/config"
	"github.com/sells-group/wnv-cli/internal/model"
)

// Step is one named unit of work. Run returns a short detail line for the log.
type Step struct {
	Name string
	// Needs lists steps that must succeed first under the skip_dependents policy.
	Needs []string
	// Diagnostic steps always run regardless of Needs.
	Diagnostic bool
	// Skip, when set, records the step as skipped with this reason without running it.
	Skip string
	Run  func(ctx context.Context) (string, error)
}

// Runner executes steps in order, containing every failure.
type Runner struct {
	Policy string
	// OnStep is called after each step with its result.
	OnStep func(model.StepResult)
}

// Execute runs steps sequentially and returns one result per step.
func (r *Runner) Execute(ctx context.Context, steps []Step) []model.StepResult {
	results := make([]model.StepResult, 0, len(steps))
	status := make(map[string]model.StepStatus, len(steps))

	for _, st := range steps {
		res := r.runOne(ctx, st, status)
		status[st.Name] = res.Status
		results = append(results, res)
		if r.OnStep != nil {
			r.OnStep(res)
		}
	}
	return results
}

func (r *Runner) runOne(ctx context.Context, st Step, status map[string]model.StepStatus) model.StepResult {
	log := zap.L().With(zap.String("step", st.Name))

	if st.Skip != "" {
		log.Info("step: skipped", zap.String("reason", st.Skip))
		return model.StepResult{Name: st.Name, Status: model.StepStatusSkipped, Error: st.Skip}
	}
	if err := ctx.Err(); err != nil {
		log.Warn("step: skipped, run canceled")
		return model.StepResult{Name: st.Name, Status: model.StepStatusSkipped, Error: err.Error()}
	}
	if r.Policy != config.PolicyContinue && !st.Diagnostic {
		if unmet := unmetNeeds(st.Needs, status); len(unmet) > 0 {
			reason := "dependency not satisfied: " + strings.Join(unmet, ", ")
			log.Warn("step: skipped", zap.String("reason", reason))
			return model.StepResult{Name: st.Name, Status: model.StepStatusSkipped, Error: reason}
		}
	}

	start := time.Now()
	detail, err := safeRun(ctx, st)
	duration := time.Since(start).Milliseconds()

	res := model.StepResult{Name: st.Name, Duration: duration}
	if err != nil {
		res.Status = model.StepStatusFailed
		res.Error = err.Error()
		log.Error("step: failed", zap.Int64("duration_ms", duration), zap.Error(err))
		return res
	}

	res.Status = model.StepStatusOK
	if detail != "" {
		res.Metadata = map[string]any{"detail": detail}
	}
	log.Info("step: complete", zap.String("detail", detail), zap.Int64("duration_ms", duration))
	return res
}

// unmetNeeds returns the needs that ran and did not succeed. Steps that were
// never part of the run do not block.
func unmetNeeds(needs []string, status map[string]model.StepStatus) []string {
	var unmet []string
	for _, n := range needs {
		if s, ok := status[n]; ok && s != model.StepStatusOK {
			unmet = append(unmet, fmt.Sprintf("%s %s", n, s))
		}
	}
	return unmet
}

func safeRun(ctx context.Context, st Step) (detail string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = eris.Errorf("pipeline: step %s panicked: %v", st.Name, p)
		}
	}()
	if st.Run == nil {
		return "", eris.Errorf("pipeline: step %s has no action", st.Name)
	}
	return st.Run(ctx)
}
