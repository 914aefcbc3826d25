package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techopsonedev/onedev/apimodels"
	"github.com/techopsonedev/onedev/internal/analyzer"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "onedevctl dev\n", out)
}

func TestGenerateWritesFiles(t *testing.T) {
	color.NoColor = true
	t.Chdir(t.TempDir())
	dir := filepath.Join(t.TempDir(), "out")

	out, err := execute(t, `{"Unit Tests": ["pytest"], "Deploy": ["aws-lambda"]}`,
		"generate", "--tools", "-", "--name", "shop", "--framework", "flask", "--output", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Generated pipeline for shop")
	assert.Contains(t, out, "AWS_ACCESS_KEY_ID")

	yml, err := os.ReadFile(filepath.Join(dir, ".gitlab-ci.yml"))
	require.NoError(t, err)
	assert.Contains(t, string(yml), "unit_tests:")
	assert.Contains(t, string(yml), "deploy_staging:")

	readme, err := os.ReadFile(filepath.Join(dir, "README.md"))
	require.NoError(t, err)
	assert.Contains(t, string(readme), "LAMBDA_FUNCTION_NAME")
}

func TestGenerateRequiresFlags(t *testing.T) {
	_, err := execute(t, "", "generate", "--tools", "-")
	assert.Error(t, err)
}

func TestGenerateRejectsNonObject(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := execute(t, `["pytest"]`, "generate", "--tools", "-", "--name", "shop", "--output", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse tool selection")
}

func TestAnalyzeRejectsUnknownFormat(t *testing.T) {
	_, err := execute(t, "", "analyze", "--project", "shop", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestWriteFileRemovesPartialReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")

	err := writeFile(path, func(w io.Writer) error {
		_, _ = w.Write([]byte("%PDF-1.3\n"))
		return errors.New("font missing")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render report: font missing")
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "partial report should be removed")

	require.NoError(t, writeFile(path, func(w io.Writer) error {
		_, err := w.Write([]byte("%PDF-1.3\n"))
		return err
	}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3\n", string(data))
}

func TestPrintSummary(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	printSummary(&buf, analyzer.Summary{
		Result: apimodels.AnalysisResult{
			PipelineID:     "77",
			StagesAnalyzed: []string{"unit-tests", "security"},
			TotalLogFiles:  2,
			TestsExecuted:  12,
			Failures:       1,
			S3Location:     "s3://onedev-pipeline-logs/projects/shop/pipelines/77",
			Suggestions:    []apimodels.Suggestion{{Category: "Security", Recommendation: "Pin dependencies"}},
		},
		Failure: &analyzer.Failure{Reason: analyzer.ReasonNoLogs, Err: errors.New("empty")},
	})

	out := buf.String()
	assert.Contains(t, out, "Pipeline 77")
	assert.Contains(t, out, "Demo data: no_logs")
	assert.Contains(t, out, "Stages: unit-tests, security")
	assert.Contains(t, out, "Failures detected: 1")
	assert.Contains(t, out, "1. Security\n   Pin dependencies\n")
}
