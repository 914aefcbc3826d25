package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/techopsonedev/onedev/apimodels"
	"github.com/techopsonedev/onedev/internal/analyzer"
	"github.com/techopsonedev/onedev/internal/config"
	"github.com/techopsonedev/onedev/internal/report"
)

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Summarize the logs of a pipeline run",
		Args:  cobra.NoArgs,
		RunE:  runAnalyze,
	}

	flags := cmd.Flags()
	addRunFlags(cmd)
	flags.String("format", formatPretty, "output format (pretty|json)")
	flags.Bool("strict", false, "fail instead of printing demo data when the analysis cannot run")

	return cmd
}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write the analysis of a pipeline run as a PDF",
		Args:  cobra.NoArgs,
		RunE:  runReport,
	}

	addRunFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "PDF file to write (default onedev-<group>-analysis-report-<project>.pdf)")
	cmd.Flags().Bool("strict", false, "fail instead of rendering demo data when the analysis cannot run")

	return cmd
}

func addRunFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("project", "p", "", "project name the logs were uploaded under")
	flags.String("pipeline", "latest", "pipeline id")
	_ = cmd.MarkFlagRequired("project")
}

// summarize runs the analysis behind a spinner.
func summarize(cmd *cobra.Command, cfg *config.Config) (analyzer.Summary, error) {
	project, _ := cmd.Flags().GetString("project")
	pipelineID, _ := cmd.Flags().GetString("pipeline")
	strict, _ := cmd.Flags().GetBool("strict")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond)
	s.Writer = cmd.ErrOrStderr()
	s.Suffix = fmt.Sprintf(" Analyzing logs of %s pipeline %s...", project, pipelineID)
	s.Start()

	a, _ := analyzer.NewFromConfig(ctx, cfg)
	summary := a.Summarize(ctx, project, pipelineID)
	s.Stop()

	if !summary.Live() && strict {
		return summary, fmt.Errorf("analysis failed: %w", summary.Failure)
	}
	return summary, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	format = strings.ToLower(format)
	if format != formatPretty && format != formatJSON {
		return fmt.Errorf("unsupported format %q", format)
	}

	cfg, cleanup, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := summarize(cmd, cfg)
	if err != nil {
		return err
	}

	if format == formatJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary.Result)
	}
	printSummary(cmd.OutOrStdout(), summary)
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, cleanup, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := summarize(cmd, cfg)
	if err != nil {
		return err
	}

	project, _ := cmd.Flags().GetString("project")
	path, _ := cmd.Flags().GetString("output")
	if path == "" {
		path = fmt.Sprintf("%s-%s-analysis-report-%s.pdf", strings.ToLower(cfg.Report.Product), cfg.GitLab.GroupPath, project)
	}

	renderer := report.NewRenderer(&cfg.Report, cfg.GitLab.GroupDisplayName)
	if err := writeFile(path, func(w io.Writer) error {
		return renderer.Render(w, summary.Result, project)
	}); err != nil {
		return err
	}

	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ Report written to %s\n", path)
	return nil
}

// writeFile creates path and fills it with write. The file is removed when
// either step fails so no truncated report is left behind.
func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("render report: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("close report file: %w", err)
	}
	return nil
}

func printSummary(w io.Writer, summary analyzer.Summary) {
	r := summary.Result
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)

	fmt.Fprintln(w)
	cyan.Fprintf(w, "Pipeline %s\n", r.PipelineID)
	if !summary.Live() {
		yellow.Fprintf(w, "! Demo data: %s\n", summary.Failure.Reason)
	}
	fmt.Fprintf(w, "Logs: %s (%d files)\n", r.S3Location, r.TotalLogFiles)
	if len(r.StagesAnalyzed) > 0 {
		fmt.Fprintf(w, "Stages: %s\n", strings.Join(r.StagesAnalyzed, ", "))
	}
	fmt.Fprintf(w, "Tests executed: %d\n", r.TestsExecuted)
	if r.Failures > 0 {
		red.Fprintf(w, "✗ Failures detected: %d\n", r.Failures)
	} else {
		green.Fprintln(w, "✓ No failures detected")
	}

	fmt.Fprintln(w)
	cyan.Fprintln(w, "Suggestions")
	for i, s := range r.Suggestions {
		printSuggestion(w, i+1, s)
	}
}

func printSuggestion(w io.Writer, n int, s apimodels.Suggestion) {
	fmt.Fprintf(w, "%d. %s\n", n, color.New(color.Bold).Sprint(s.Category))
	for _, line := range report.Wrap(s.Recommendation, 76) {
		fmt.Fprintf(w, "   %s\n", line)
	}
}
