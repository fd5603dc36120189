package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/abdul-hamid-achik/suiterun/packages/core/runner"
)

// ResultsFileName is the report written into the report directory
const ResultsFileName = "results.json"

// JSONReport is the serialized form of a run. Durations are milliseconds.
type JSONReport struct {
	RunID       string        `json:"runId"`
	Environment string        `json:"environment,omitempty"`
	Complete    bool          `json:"complete"`
	Success     bool          `json:"success"`
	StartedAt   time.Time     `json:"startedAt"`
	EndedAt     time.Time     `json:"endedAt"`
	ReportDir   string        `json:"reportDir,omitempty"`
	Summary     JSONSummary   `json:"summary"`
	Features    []JSONFeature `json:"features"`
}

type JSONSummary struct {
	Total     int     `json:"total"`
	Passed    int     `json:"passed"`
	Failed    int     `json:"failed"`
	Skipped   int     `json:"skipped"`
	Errors    int     `json:"errors"`
	Threads   int     `json:"threads"`
	Duration  float64 `json:"duration"`
	WallClock float64 `json:"wallClock"`
	P50       float64 `json:"p50"`
	P95       float64 `json:"p95"`
	P99       float64 `json:"p99"`
}

type JSONFeature struct {
	Name       string     `json:"name"`
	Path       string     `json:"path,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	Status     string     `json:"status"`
	Fatal      bool       `json:"fatal,omitempty"`
	StartedAt  time.Time  `json:"startedAt,omitzero"`
	Duration   float64    `json:"duration"`
	Error      string     `json:"error,omitempty"`
	SkipReason string     `json:"skipReason,omitempty"`
	Steps      []JSONStep `json:"steps,omitempty"`
}

type JSONStep struct {
	Name     string  `json:"name"`
	Status   string  `json:"status"`
	Duration float64 `json:"duration"`
	Output   string  `json:"output,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// NewJSONReport converts a result into its serialized form
func NewJSONReport(result *runner.Result) *JSONReport {
	report := &JSONReport{
		RunID:       result.RunID,
		Environment: result.Environment,
		Complete:    result.Complete,
		Success:     result.Success(),
		StartedAt:   result.StartedAt,
		EndedAt:     result.EndedAt,
		ReportDir:   result.ReportDir,
		Summary: JSONSummary{
			Total:     result.Total,
			Passed:    result.Passed,
			Failed:    result.Failed,
			Skipped:   result.Skipped,
			Errors:    result.Errors,
			Threads:   result.ThreadCount,
			Duration:  millis(result.Duration),
			WallClock: millis(result.WallClock),
			P50:       millis(result.P50),
			P95:       millis(result.P95),
			P99:       millis(result.P99),
		},
		Features: make([]JSONFeature, 0, len(result.Outcomes)),
	}

	for _, o := range result.Outcomes {
		feat := JSONFeature{
			Name:       o.Feature,
			Path:       o.Path,
			Tags:       o.Tags,
			Status:     string(o.Status),
			Fatal:      o.Fatal,
			StartedAt:  o.Started,
			Duration:   millis(o.Duration),
			Error:      o.Error(),
			SkipReason: o.SkipReason,
		}
		for _, st := range o.Steps {
			step := JSONStep{
				Name:     st.Name,
				Status:   string(st.Status),
				Duration: millis(st.Duration),
				Output:   st.Output,
			}
			if st.Err != nil {
				step.Error = st.Err.Error()
			}
			feat.Steps = append(feat.Steps, step)
		}
		report.Features = append(report.Features, feat)
	}
	return report
}

// WriteResultsFile writes the JSON report to dir/results.json and returns the path
func WriteResultsFile(dir string, result *runner.Result) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating report dir: %w", err)
	}
	data, err := json.MarshalIndent(NewJSONReport(result), "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, ResultsFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// JSONFormatter formats the run as a JSON report
type JSONFormatter struct {
	writer io.Writer
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResult(result *runner.Result) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(NewJSONReport(result))
}

func (f *JSONFormatter) FormatError(err error) {
	_ = json.NewEncoder(f.writer).Encode(map[string]string{"error": err.Error()})
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}
