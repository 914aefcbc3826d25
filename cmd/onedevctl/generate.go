package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/techopsonedev/onedev/internal/pipeline"
	"github.com/techopsonedev/onedev/internal/readme"
	"github.com/techopsonedev/onedev/internal/tools"
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write .gitlab-ci.yml and README.md for a tool selection",
		Long: `Generate reads a tool selection as a JSON object mapping category names to
tool ids, e.g. {"Unit Tests": ["pytest"], "Deploy": ["aws-lambda"]}, and writes
the pipeline definition and README into the output directory.`,
		Args: cobra.NoArgs,
		RunE: runGenerate,
	}

	flags := cmd.Flags()
	flags.StringP("tools", "t", "", "JSON file with the tool selection (- for stdin)")
	flags.StringP("name", "n", "", "project name")
	flags.String("language", "python", "project language")
	flags.String("framework", "", "project framework")
	flags.String("python-version", "", "Python version of the pipeline image")
	flags.StringP("output", "o", ".", "directory the files are written to")
	_ = cmd.MarkFlagRequired("tools")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, cleanup, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	flags := cmd.Flags()
	toolsFile, _ := flags.GetString("tools")
	name, _ := flags.GetString("name")
	language, _ := flags.GetString("language")
	framework, _ := flags.GetString("framework")
	pythonVersion, _ := flags.GetString("python-version")
	outDir, _ := flags.GetString("output")

	sel, err := readSelection(cmd, toolsFile)
	if err != nil {
		return err
	}

	def := pipeline.NewBuilder(&cfg.Pipeline, &cfg.Storage, cfg.GitLab.GroupDisplayName).Build(sel, pythonVersion)
	yml, err := def.YAML()
	if err != nil {
		return fmt.Errorf("render pipeline: %w", err)
	}
	doc, err := readme.NewGenerator(&cfg.GitLab, &cfg.Storage, &cfg.Pipeline).Render(name, language, framework, sel)
	if err != nil {
		return fmt.Errorf("render readme: %w", err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for file, content := range map[string][]byte{
		".gitlab-ci.yml": yml,
		"README.md":      []byte(doc),
	} {
		path := filepath.Join(outDir, file)
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	out := cmd.OutOrStdout()
	green := color.New(color.FgGreen)
	green.Fprintf(out, "✓ Generated pipeline for %s in %s\n", name, outDir)
	fmt.Fprintf(out, "  Jobs: %v\n", def.JobNames())
	if secrets := tools.NewDeployment(sel).Secrets(); len(secrets) > 0 {
		yellow := color.New(color.FgYellow)
		yellow.Fprintf(out, "  Configure these CI/CD variables: %v\n", secrets)
	}
	return nil
}

func readSelection(cmd *cobra.Command, path string) (tools.Selection, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read tool selection: %w", err)
	}
	return tools.ParseSelection(data)
}
