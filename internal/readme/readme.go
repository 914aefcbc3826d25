// Package readme renders the README.md committed next to a generated pipeline.
package readme

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/techopsonedev/onedev/internal/config"
	"github.com/techopsonedev/onedev/internal/tools"
)

const notConfigured = "None configured"

var readmeTemplate = template.Must(template.New("readme").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(`# {{.Project}}

> **Generated by OneDev** - CI/CD Automation Platform
> **Group**: {{.Group}}

## Overview

This project was automatically configured with a complete CI/CD pipeline using OneDev. The setup includes automated testing, code quality checks, security scanning, and S3 logs integration for AI analysis.

**Project Location**: {{.Group}} Group ({{.GroupPath}})

## Technology Stack

- **Language**: {{.Language}}
- **Framework**: {{.Framework}}
- **CI/CD**: GitLab CI with automated testing and manual deployment
- **Group**: {{.Group}}
- **AI Analysis**: improvement suggestions generated from the S3 pipeline logs

## Quick Start

### Prerequisites
- Python {{.PythonVersion}}+
- Git
- Virtual environment (recommended)
- AWS CLI (for deployment)

### Setup
` + "```bash" + `
# Clone the repository
git clone {{.CloneURL}}
cd {{.Project}}

# Create virtual environment
python -m venv venv
source venv/bin/activate  # On Windows: venv\Scripts\activate

# Install dependencies
pip install -r requirements.txt

# Run your application
python main.py
` + "```" + `

## CI/CD Pipeline

### Automated Testing (on every commit)
{{- range .Stages}}
- **{{.Label}}**: {{join .Tools ", "}}
{{- end}}

### Manual Deployment
- Tests run automatically on every push
- Deployment requires manual approval
- Click "Deploy" in GitLab when ready
- Production environment protection
{{- if .DeployDescription}}
- Custom deployment: {{.DeployDescription}}
{{- end}}

### S3 Logs Integration

This project is configured to upload pipeline logs to S3 for AI analysis:

- **S3 Bucket**: {{.Bucket}}
- **Logs Location**: {{.LogsLocation}}/[PIPELINE_ID]/
- **AI Analysis**: the OneDev analyzer reads the logs from S3 and suggests improvements

#### Required CI/CD Variables

Add these variables to your GitLab CI/CD Variables:
{{- range .Secrets}}
- ` + "`{{.Key}}`" + `: {{.Value}}
{{- end}}
{{- if .Placeholders}}

The pipeline defines these deployment variables with defaults you can override:
{{- range .Placeholders}}
- ` + "`{{.Key}}`" + `: ` + "`{{.Value}}`" + `
{{- end}}
{{- end}}

## Development Workflow

1. **Develop**: Write code and tests
2. **Push**: Commit triggers automatic testing
3. **Review**: Check test results and quality reports
4. **Deploy**: Manual deployment when ready
5. **Analyze**: Review AI suggestions from S3 logs

## Selected Tools & Configuration

This project is configured with the following tools:
{{if .Categories}}
{{- range .Categories}}
### {{.Name}}
{{- if .Description}}
{{.Description}}
{{- else}}
{{- range .Tools}}
- {{.}}
{{- end}}
{{- end}}
{{end}}
{{- else}}
### No specific tools selected
- Basic pipeline configuration generated
{{end}}
## Support

For support with this OneDev-generated project:
- **Technical Issues**: Create an issue in this repository
- **OneDev Platform**: Contact the {{.Group}} team
- **AWS Configuration**: Check AWS documentation

---

**Generated by OneDev**
*{{.Group}} Group | Generated on {{.Generated}} | Pipeline ready for {{.Project}}*
`))

type stageLine struct {
	Label string
	Tools []string
}

type categoryBlock struct {
	Name        string
	Tools       []string
	Description string
}

type readmeData struct {
	Project           string
	Group             string
	GroupPath         string
	Language          string
	Framework         string
	PythonVersion     string
	CloneURL          string
	Bucket            string
	LogsLocation      string
	Stages            []stageLine
	DeployDescription string
	Secrets           []tools.Variable
	Placeholders      []tools.Variable
	Categories        []categoryBlock
	Generated         string
}

// Generator renders project READMEs.
type Generator struct {
	gitlab  *config.GitLabConfig
	storage *config.StorageConfig
	python  string
	now     func() time.Time
}

func NewGenerator(gitlab *config.GitLabConfig, storage *config.StorageConfig, pipeline *config.PipelineConfig) *Generator {
	return &Generator{
		gitlab:  gitlab,
		storage: storage,
		python:  pipeline.PythonVersion,
		now:     time.Now,
	}
}

// WithClock replaces the clock used for the generation footer.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Render builds the README for project.
func (g *Generator) Render(project, lang, framework string, sel tools.Selection) (string, error) {
	title := cases.Title(language.English)

	fw := "None (pure Python)"
	if f := strings.TrimSpace(framework); f != "" && !strings.EqualFold(f, "none") {
		fw = title.String(f)
	}
	if strings.TrimSpace(lang) == "" {
		lang = "python"
	}

	deployment := tools.NewDeployment(sel)
	data := readmeData{
		Project:           project,
		Group:             g.gitlab.GroupDisplayName,
		GroupPath:         g.gitlab.GroupPath,
		Language:          title.String(lang),
		Framework:         fw,
		PythonVersion:     g.python,
		CloneURL:          g.gitlab.CloneURL(project),
		Bucket:            g.storage.Bucket,
		LogsLocation:      "s3://" + g.storage.Bucket + "/projects/" + project + "/pipelines",
		DeployDescription: tools.OneLine(deployment.Description),
		Secrets:           g.secrets(deployment),
		Placeholders:      deployment.Variables(),
		Generated:         g.now().Format("2006-01-02 at 15:04"),
	}

	for _, s := range []struct{ label, category string }{
		{"Unit Tests", tools.CategoryUnitTests},
		{"End-to-End Tests", tools.CategoryE2ETests},
		{"Code Quality", tools.CategoryCodeQuality},
		{"Security Scans", tools.CategorySecurity},
	} {
		data.Stages = append(data.Stages, stageLine{Label: s.label, Tools: listOrNone(sel, s.category)})
	}
	deployTools := deployment.Tools
	if len(deployTools) == 0 {
		deployTools = []string{notConfigured}
	}
	data.Stages = append(data.Stages, stageLine{Label: "Deployment", Tools: deployTools})

	for _, c := range sel {
		block := categoryBlock{Name: c.Name, Tools: c.Tools}
		if c.Name == tools.CategoryCustomDescription {
			block.Description = tools.OneLine(strings.Join(c.Tools, " "))
			if block.Description == "" {
				block.Description = "No description provided"
			}
		}
		data.Categories = append(data.Categories, block)
	}

	var buf bytes.Buffer
	if err := readmeTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render README: %w", err)
	}
	return buf.String(), nil
}

func (g *Generator) secrets(d tools.Deployment) []tools.Variable {
	out := []tools.Variable{
		{Key: "AWS_ACCESS_KEY_ID", Value: "Your AWS access key"},
		{Key: "AWS_SECRET_ACCESS_KEY", Value: "Your AWS secret key"},
		{Key: "AWS_DEFAULT_REGION", Value: g.storage.Region},
	}
	for _, s := range d.Secrets() {
		if s == "AWS_ACCESS_KEY_ID" || s == "AWS_SECRET_ACCESS_KEY" {
			continue
		}
		out = append(out, tools.Variable{Key: s, Value: "required by the selected deployment"})
	}
	return out
}

func listOrNone(sel tools.Selection, category string) []string {
	ids, ok := sel.Get(category)
	if !ok || len(ids) == 0 {
		return []string{notConfigured}
	}
	return ids
}
