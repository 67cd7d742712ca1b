package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/24601/agent-deep-research/internal/gemini"
)

func TestWriteBundle(t *testing.T) {
	base := t.TempDir()
	in := &gemini.Interaction{
		ID:     "abcdef123456789",
		Status: "completed",
		Outputs: []gemini.OutputStep{
			{Text: "reading https://example.com/one and https://example.com/two"},
			{},
			{Text: "final: https://example.com/one stays deduplicated"},
		},
	}
	reportText := "# Findings\n\n" + strings.Repeat("All signal, no noise. ", 20)
	duration := int64(247)

	summary, err := WriteBundle(base, in.ID, in, reportText, &duration)
	require.NoError(t, err)

	wantDir := filepath.Join(base, "research-abcdef123456")
	assert.Equal(t, wantDir, summary.OutputDir)

	raw, err := os.ReadFile(filepath.Join(wantDir, "report.md"))
	require.NoError(t, err)
	assert.Equal(t, reportText, string(raw))

	var irec interactionRecord
	decodeJSONFile(t, filepath.Join(wantDir, "interaction.json"), &irec)
	assert.Equal(t, in.ID, irec.ID)
	assert.Equal(t, "completed", irec.Status)
	assert.Equal(t, 3, irec.OutputCount)
	require.Len(t, irec.Outputs, 3)
	assert.Equal(t, stepRecord{Index: 1, Text: ""}, irec.Outputs[1], "textless steps are preserved")

	var sources []string
	decodeJSONFile(t, filepath.Join(wantDir, "sources.json"), &sources)
	want := []string{"https://example.com/one", "https://example.com/two"}
	if diff := cmp.Diff(want, sources); diff != "" {
		t.Errorf("sources mismatch (-want +got):\n%s", diff)
	}

	var meta map[string]any
	decodeJSONFile(t, filepath.Join(wantDir, "metadata.json"), &meta)
	assert.Equal(t, float64(len(reportText)), meta["report_size_bytes"])
	assert.Equal(t, float64(3), meta["output_count"])
	assert.Equal(t, float64(2), meta["source_count"])
	assert.Equal(t, float64(247), meta["duration_seconds"])

	require.NotNil(t, summary.DurationSeconds)
	assert.Equal(t, int64(247), *summary.DurationSeconds)
	assert.Equal(t, len(reportText), summary.ReportSizeBytes)
	assert.True(t, strings.HasSuffix(summary.Preview, "..."), "long reports get an ellipsis")
	assert.NotContains(t, summary.Preview, "\n", "previews are single-line")
}

func TestWriteBundleWithoutDuration(t *testing.T) {
	base := t.TempDir()
	in := &gemini.Interaction{ID: "xyz", Outputs: []gemini.OutputStep{{Text: "short"}}}

	summary, err := WriteBundle(base, in.ID, in, "short", nil)
	require.NoError(t, err)
	assert.Equal(t, "unknown", summary.Status, "missing status renders as unknown")
	assert.Nil(t, summary.DurationSeconds)

	var meta map[string]any
	decodeJSONFile(t, filepath.Join(summary.OutputDir, "metadata.json"), &meta)
	assert.NotContains(t, meta, "duration_seconds")

	data, err := json.Marshal(summary)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "duration_seconds")
}

func TestWriteBundleShortID(t *testing.T) {
	base := t.TempDir()
	in := &gemini.Interaction{ID: "ab", Status: "completed"}

	summary, err := WriteBundle(base, in.ID, in, "text", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "research-ab"), summary.OutputDir)
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	text := "# Findings\n\n" + strings.Repeat("Single file exports keep the full summary. ", 10)
	duration := int64(93)

	summary, err := WriteReport(path, "abc123", "completed", text, &duration)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, text, string(raw))

	assert.Equal(t, "abc123", summary.ID)
	assert.Equal(t, "completed", summary.Status)
	assert.Equal(t, path, summary.ReportFile)
	assert.Equal(t, len(text), summary.ReportSizeBytes)
	assert.True(t, strings.HasSuffix(summary.Preview, "..."), "long reports get an ellipsis")
	assert.NotContains(t, summary.Preview, "\n", "previews are single-line")
	require.NotNil(t, summary.DurationSeconds)
	assert.Equal(t, int64(93), *summary.DurationSeconds)

	data, err := json.Marshal(summary)
	require.NoError(t, err)

	var keys map[string]any
	require.NoError(t, json.Unmarshal(data, &keys))
	for _, k := range []string{"id", "status", "report_file", "report_size_bytes", "summary", "duration_seconds"} {
		assert.Contains(t, keys, k)
	}
	assert.NotContains(t, keys, "output_dir", "single-file summaries have no bundle directory")
}

func TestWriteReportWithoutDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")

	summary, err := WriteReport(path, "xyz", "", "short", nil)
	require.NoError(t, err)
	assert.Equal(t, "unknown", summary.Status, "missing status renders as unknown")
	assert.Equal(t, "short", summary.Preview)

	data, err := json.Marshal(summary)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "duration_seconds")
}

func TestPreview(t *testing.T) {
	t.Run("short text unchanged", func(t *testing.T) {
		assert.Equal(t, "hello world", Preview("hello world", 200))
	})

	t.Run("newlines flattened", func(t *testing.T) {
		assert.Equal(t, "a b c", Preview("a\nb\nc", 200))
	})

	t.Run("exact limit keeps no ellipsis", func(t *testing.T) {
		text := strings.Repeat("x", 200)
		assert.Equal(t, text, Preview(text, 200))
	})

	t.Run("over limit gains ellipsis", func(t *testing.T) {
		text := strings.Repeat("x", 201)
		got := Preview(text, 200)
		assert.Len(t, got, 203)
		assert.True(t, strings.HasSuffix(got, "..."))
	})

	t.Run("trimmed before ellipsis", func(t *testing.T) {
		text := strings.Repeat("y", 199) + "\n" + strings.Repeat("z", 50)
		got := Preview(text, 200)
		assert.Equal(t, strings.Repeat("y", 199), strings.TrimSuffix(got, "..."))
	})
}

func TestSummaryJSONShape(t *testing.T) {
	duration := int64(12)
	summary := &Summary{
		ID:              "abc",
		Status:          "completed",
		OutputDir:       "out/research-abc",
		ReportFile:      "out/research-abc/report.md",
		ReportSizeBytes: 5,
		Preview:         "short",
		DurationSeconds: &duration,
	}

	data, err := json.Marshal(summary)
	require.NoError(t, err)

	var keys map[string]any
	require.NoError(t, json.Unmarshal(data, &keys))
	for _, k := range []string{"id", "status", "output_dir", "report_file", "report_size_bytes", "summary", "duration_seconds"} {
		assert.Contains(t, keys, k)
	}
	assert.Less(t, len(data), 500, "compact summaries stay pipe-friendly")
}

func decodeJSONFile(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), data[len(data)-1], "json artifacts end with a newline")
	require.NoError(t, json.Unmarshal(data, v))
}
