// Package model defines the run records shared by the pipeline, the history
// store and the CLI.
package model

import "time"

// RunStatus represents the overall state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusPartial  RunStatus = "partial" // finished with at least one failed step
	RunStatusFailed   RunStatus = "failed"
)

// StepStatus represents the outcome of a single ETL or analysis step.
type StepStatus string

const (
	StepStatusOK      StepStatus = "ok"
	StepStatusFailed  StepStatus = "failed"
	StepStatusSkipped StepStatus = "skipped"
)

// Run is one invocation of the pipeline.
type Run struct {
	ID         string     `json:"id"`
	Subtitle   string     `json:"subtitle"`
	Status     RunStatus  `json:"status"`
	Result     *RunResult `json:"result,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// StepResult holds the outcome of a pipeline step.
type StepResult struct {
	Name     string         `json:"name"`
	Status   StepStatus     `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RunResult summarizes a finished run.
type RunResult struct {
	ID       string       `json:"id"`
	Subtitle string       `json:"subtitle"`
	Records  int          `json:"records"`
	Loaded   int          `json:"loaded"`
	Missed   int          `json:"missed"`
	Matches  int64        `json:"matches"`
	Outputs  []string     `json:"outputs,omitempty"`
	Steps    []StepResult `json:"steps"`
}

// Step returns the named step result, or nil.
func (r *RunResult) Step(name string) *StepResult {
	for i := range r.Steps {
		if r.Steps[i].Name == name {
			return &r.Steps[i]
		}
	}
	return nil
}

// Failed lists the names of failed steps.
func (r *RunResult) Failed() []string {
	var out []string
	for _, s := range r.Steps {
		if s.Status == StepStatusFailed {
			out = append(out, s.Name)
		}
	}
	return out
}

// Status derives the run status from the step outcomes.
func (r *RunResult) Status() RunStatus {
	failed := len(r.Failed())
	switch {
	case failed == 0:
		return RunStatusComplete
	case failed == len(r.Steps):
		return RunStatusFailed
	default:
		return RunStatusPartial
	}
}
