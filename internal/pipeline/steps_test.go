package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/wnv-cli/internal/config"
	"github.com/sells-group/wnv-cli/internal/model"
)

func okStep(name string, ran *[]string, needs ...string) Step {
	return Step{Name: name, Needs: needs, Run: func(context.Context) (string, error) {
		*ran = append(*ran, name)
		return name + " done", nil
	}}
}

func failStep(name string, ran *[]string, needs ...string) Step {
	return Step{Name: name, Needs: needs, Run: func(context.Context) (string, error) {
		*ran = append(*ran, name)
		return "", errors.New(name + " broke")
	}}
}

func statuses(results []model.StepResult) map[string]model.StepStatus {
	out := make(map[string]model.StepStatus, len(results))
	for _, r := range results {
		out[r.Name] = r.Status
	}
	return out
}

func TestRunner_SkipDependents(t *testing.T) {
	var ran []string
	diag := okStep("diag", &ran)
	diag.Diagnostic = true
	diag.Needs = []string{"a"}

	r := &Runner{Policy: config.PolicySkipDependents}
	results := r.Execute(context.Background(), []Step{
		failStep("a", &ran),
		okStep("b", &ran, "a"),
		okStep("c", &ran, "b"),
		diag,
		okStep("d", &ran),
	})

	assert.Equal(t, []string{"a", "diag", "d"}, ran)
	assert.Equal(t, map[string]model.StepStatus{
		"a":    model.StepStatusFailed,
		"b":    model.StepStatusSkipped,
		"c":    model.StepStatusSkipped,
		"diag": model.StepStatusOK,
		"d":    model.StepStatusOK,
	}, statuses(results))
	assert.Equal(t, "a broke", results[0].Error)
	assert.Contains(t, results[1].Error, "a failed")
	assert.Contains(t, results[2].Error, "b skipped")
}

func TestRunner_ContinuePolicyRunsEverything(t *testing.T) {
	var ran []string
	r := &Runner{Policy: config.PolicyContinue}
	results := r.Execute(context.Background(), []Step{
		failStep("a", &ran),
		okStep("b", &ran, "a"),
		failStep("c", &ran, "b"),
	})

	assert.Equal(t, []string{"a", "b", "c"}, ran)
	assert.Equal(t, model.StepStatusOK, results[1].Status)
	assert.Equal(t, model.StepStatusFailed, results[2].Status)
}

func TestRunner_RecoversPanic(t *testing.T) {
	var ran []string
	r := &Runner{Policy: config.PolicySkipDependents}
	results := r.Execute(context.Background(), []Step{
		{Name: "boom", Run: func(context.Context) (string, error) { panic("nil layer") }},
		okStep("after", &ran),
	})

	require.Len(t, results, 2)
	assert.Equal(t, model.StepStatusFailed, results[0].Status)
	assert.Contains(t, results[0].Error, "nil layer")
	assert.Equal(t, model.StepStatusOK, results[1].Status)
}

func TestRunner_ExplicitSkipAndMissingAction(t *testing.T) {
	var ran []string
	r := &Runner{}
	results := r.Execute(context.Background(), []Step{
		{Name: "map", Skip: "map export disabled", Run: func(context.Context) (string, error) {
			ran = append(ran, "map")
			return "", nil
		}},
		{Name: "empty"},
	})

	assert.Empty(t, ran)
	assert.Equal(t, model.StepStatusSkipped, results[0].Status)
	assert.Equal(t, "map export disabled", results[0].Error)
	assert.Equal(t, model.StepStatusFailed, results[1].Status)
}

func TestRunner_CanceledContextSkipsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var ran []string
	r := &Runner{}
	results := r.Execute(ctx, []Step{
		{Name: "first", Run: func(context.Context) (string, error) {
			ran = append(ran, "first")
			cancel()
			return "", nil
		}},
		okStep("second", &ran),
	})

	assert.Equal(t, []string{"first"}, ran)
	assert.Equal(t, model.StepStatusSkipped, results[1].Status)
}

func TestRunner_OnStepAndDetail(t *testing.T) {
	var ran []string
	var seen []string
	r := &Runner{OnStep: func(s model.StepResult) { seen = append(seen, s.Name) }}
	results := r.Execute(context.Background(), []Step{okStep("a", &ran), failStep("b", &ran)})

	assert.Equal(t, []string{"a", "b"}, seen)
	assert.Equal(t, "a done", results[0].Metadata["detail"])
	assert.Nil(t, results[1].Metadata)
}
