package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunResultStatus(t *testing.T) {
	tests := []struct {
		name  string
		steps []StepResult
		want  RunStatus
	}{
		{"no steps", nil, RunStatusComplete},
		{"all ok", []StepResult{{Name: "etl", Status: StepStatusOK}, {Name: "buffer", Status: StepStatusOK}}, RunStatusComplete},
		{"skipped only", []StepResult{{Name: "etl", Status: StepStatusOK}, {Name: "export_map", Status: StepStatusSkipped}}, RunStatusComplete},
		{"one failed", []StepResult{{Name: "etl", Status: StepStatusOK}, {Name: "buffer", Status: StepStatusFailed}}, RunStatusPartial},
		{"all failed", []StepResult{{Name: "etl", Status: StepStatusFailed}}, RunStatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &RunResult{Steps: tt.steps}
			assert.Equal(t, tt.want, r.Status())
		})
	}
}

func TestRunResultStepLookup(t *testing.T) {
	r := &RunResult{Steps: []StepResult{
		{Name: "buffer", Status: StepStatusFailed, Error: "boom"},
		{Name: "erase", Status: StepStatusSkipped},
	}}
	s := r.Step("buffer")
	if assert.NotNil(t, s) {
		assert.Equal(t, "boom", s.Error)
	}
	assert.Nil(t, r.Step("style_map"))
	assert.Equal(t, []string{"buffer"}, r.Failed())
}
