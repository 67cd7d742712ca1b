package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/24601/agent-deep-research/internal/gemini"
)

// summaryPreviewLimit caps the report excerpt embedded in the compact
// summary so the whole JSON line stays small enough to log or pipe.
const summaryPreviewLimit = 200

// bundleDirIDLength is how much of the interaction ID names the bundle
// directory.
const bundleDirIDLength = 12

// Summary is the compact machine-readable result printed on stdout after a
// report is written. Single-file exports carry no output directory.
type Summary struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	OutputDir       string `json:"output_dir,omitempty"`
	ReportFile      string `json:"report_file"`
	ReportSizeBytes int    `json:"report_size_bytes"`
	Preview         string `json:"summary"`
	DurationSeconds *int64 `json:"duration_seconds,omitempty"`
}

type stepRecord struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

type interactionRecord struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	OutputCount int          `json:"outputCount"`
	Outputs     []stepRecord `json:"outputs"`
}

type metadataRecord struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	ReportFile      string `json:"report_file"`
	ReportSizeBytes int    `json:"report_size_bytes"`
	OutputCount     int    `json:"output_count"`
	SourceCount     int    `json:"source_count"`
	DurationSeconds *int64 `json:"duration_seconds,omitempty"`
}

// WriteFile writes the report text verbatim to path.
func WriteFile(path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// WriteReport writes the report text to path and returns the compact
// summary for it. durationSeconds is optional; pass nil when the caller did
// not time the run.
func WriteReport(path, id, status, text string, durationSeconds *int64) (*Summary, error) {
	if err := WriteFile(path, text); err != nil {
		return nil, err
	}
	return &Summary{
		ID:              id,
		Status:          statusOrUnknown(status),
		ReportFile:      path,
		ReportSizeBytes: len(text),
		Preview:         Preview(text, summaryPreviewLimit),
		DurationSeconds: durationSeconds,
	}, nil
}

// WriteBundle exports a finished interaction as a structured directory under
// baseDir and returns the compact summary describing it. durationSeconds is
// optional; pass nil when the caller did not time the run. Re-running into
// the same directory overwrites the artifacts.
func WriteBundle(baseDir, id string, in *gemini.Interaction, reportText string, durationSeconds *int64) (*Summary, error) {
	dir := filepath.Join(baseDir, "research-"+shortID(id, bundleDirIDLength))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	reportPath := filepath.Join(dir, "report.md")
	if err := WriteFile(reportPath, reportText); err != nil {
		return nil, err
	}

	status := statusOrUnknown(in.Status)

	outputs := make([]stepRecord, len(in.Outputs))
	for i, step := range in.Outputs {
		outputs[i] = stepRecord{Index: i, Text: step.Text}
	}
	if err := writeJSON(filepath.Join(dir, "interaction.json"), interactionRecord{
		ID:          id,
		Status:      status,
		OutputCount: len(outputs),
		Outputs:     outputs,
	}); err != nil {
		return nil, err
	}

	sources := ExtractSources(in.Outputs)
	if err := writeJSON(filepath.Join(dir, "sources.json"), sources); err != nil {
		return nil, err
	}

	if err := writeJSON(filepath.Join(dir, "metadata.json"), metadataRecord{
		ID:              id,
		Status:          status,
		ReportFile:      reportPath,
		ReportSizeBytes: len(reportText),
		OutputCount:     len(outputs),
		SourceCount:     len(sources),
		DurationSeconds: durationSeconds,
	}); err != nil {
		return nil, err
	}

	return &Summary{
		ID:              id,
		Status:          status,
		OutputDir:       dir,
		ReportFile:      reportPath,
		ReportSizeBytes: len(reportText),
		Preview:         Preview(reportText, summaryPreviewLimit),
		DurationSeconds: durationSeconds,
	}, nil
}

// Preview flattens text to a single trimmed line of at most limit
// characters, appending an ellipsis when anything was cut.
func Preview(text string, limit int) string {
	cut := TruncateRunes(text, limit)
	flat := strings.TrimSpace(strings.ReplaceAll(cut, "\n", " "))
	if len([]rune(text)) > limit {
		flat += "..."
	}
	return flat
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func statusOrUnknown(status string) string {
	if status == "" {
		return "unknown"
	}
	return status
}

func shortID(id string, n int) string {
	if len(id) > n {
		return id[:n]
	}
	return id
}
