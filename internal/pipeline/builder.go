// Package pipeline builds .gitlab-ci.yml definitions from a tool selection.
package pipeline

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/techopsonedev/onedev/internal/config"
	"github.com/techopsonedev/onedev/internal/tools"
)

// Builder turns tool selections into pipeline definitions. It holds no state
// besides configuration and is safe for concurrent use.
type Builder struct {
	cfg     *config.PipelineConfig
	storage *config.StorageConfig
	group   string
}

func NewBuilder(cfg *config.PipelineConfig, storage *config.StorageConfig, group string) *Builder {
	return &Builder{cfg: cfg, storage: storage, group: group}
}

// Build assembles the definition for sel. An empty pythonVersion falls back to
// the configured default.
func (b *Builder) Build(sel tools.Selection, pythonVersion string) *Definition {
	if pythonVersion = strings.TrimSpace(pythonVersion); pythonVersion == "" {
		pythonVersion = b.cfg.PythonVersion
	}

	def := &Definition{
		Image:  "python:" + pythonVersion,
		Stages: []string{StageTest, StageUploadLogs, StageDeploy},
		Variables: []tools.Variable{
			{Key: "PIP_CACHE_DIR", Value: "$CI_PROJECT_DIR/.cache/pip"},
			{Key: "AWS_DEFAULT_REGION", Value: b.storage.Region},
			{Key: "S3_BUCKET", Value: b.storage.Bucket},
			{Key: "LOGS_PREFIX", Value: "projects/$CI_PROJECT_NAME/pipelines/$CI_PIPELINE_ID"},
		},
		CachePaths: []string{".cache/pip", "venv/"},
		BeforeScript: []string{
			"python" + pythonVersion + " -V",
			"pip install virtualenv",
			"virtualenv venv",
			"source venv/bin/activate",
			"[ -f requirements.txt ] && pip install -r requirements.txt || echo 'No requirements.txt found'",
		},
		Tags: append([]string(nil), b.cfg.RunnerTags...),
	}

	deployment := tools.NewDeployment(sel)
	emitted := make(map[tools.Kind]bool)
	var created []string

	for _, c := range sel {
		kind, ok := tools.KindOf(c.Name)
		if !ok {
			if c.Name != tools.CategoryCustomDescription {
				slog.Debug("Skipping unknown tool category", "category", c.Name)
			}
			continue
		}
		if emitted[kind] {
			continue
		}
		emitted[kind] = true

		var job Job
		if kind == tools.KindDeploy {
			selected := b.recognize(kind, "deployment", deployment.Tools)
			if len(selected) == 0 {
				continue
			}
			job = b.categoryJob(kind, selected, deployment.Description)
			def.Variables = mergeVariables(def.Variables, deployment.Variables())
		} else {
			job = b.categoryJob(kind, b.recognize(kind, c.Name, c.Tools), "")
		}
		def.Jobs = append(def.Jobs, job)
		created = append(created, job.Name)
	}

	def.Jobs = append(def.Jobs, b.uploadAllLogs(created), b.deployProduction())

	slog.Debug("Generated pipeline definition",
		"jobs", def.JobNames(),
		"tools", sel.Count(),
		"group", b.group,
	)
	return def
}

// recognize resolves ids to catalog tools, dropping unknown and repeated ids.
func (b *Builder) recognize(kind tools.Kind, category string, ids []string) []tools.Tool {
	var out []tools.Tool
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		t, ok := tools.Lookup(kind, id)
		if !ok {
			slog.Warn("Ignoring unknown tool", "category", category, "tool", id)
			continue
		}
		out = append(out, t)
	}
	return out
}

func (b *Builder) categoryJob(kind tools.Kind, selected []tools.Tool, description string) Job {
	info := kind.Info()
	log := info.LogPath()
	dir := "logs/" + info.LogDir

	script := []string{
		"source venv/bin/activate",
		"mkdir -p " + dir,
	}
	if pkgs := packages(selected); len(pkgs) > 0 {
		script = append(script, "pip install "+strings.Join(pkgs, " "))
	}
	script = append(script,
		fmt.Sprintf("echo 'Starting %s...' > %s", info.Title, log),
		fmt.Sprintf("echo 'Pipeline ID: '$CI_PIPELINE_ID >> %s", log),
		fmt.Sprintf("echo 'Project: '$CI_PROJECT_NAME >> %s", log),
		fmt.Sprintf("echo 'Commit: '$CI_COMMIT_SHA >> %s", log),
		fmt.Sprintf("echo 'Group: %s' >> %s", tools.ShellQuote(b.group), log),
		fmt.Sprintf("echo 'Timestamp: '$(date -Iseconds) >> %s", log),
		fmt.Sprintf("echo '---' >> %s", log),
	)

	frag := tools.Fragment{Log: log, Dir: info.LogDir, Description: description}
	for _, t := range selected {
		script = append(script, t.Lines(frag)...)
	}

	title := strings.ToLower(info.Title)
	return Job{
		Name:   info.Job,
		Stage:  StageTest,
		Script: script,
		AfterScript: []string{
			fmt.Sprintf("# Upload %s logs to S3", title),
			fmt.Sprintf("echo 'Uploading %s logs to S3...'", title),
			fmt.Sprintf("aws s3 cp %s/ s3://$S3_BUCKET/$LOGS_PREFIX/%s/ --recursive --region $AWS_DEFAULT_REGION || echo 'S3 upload failed'", dir, info.LogDir),
		},
		Artifacts: &Artifacts{
			When:     "always",
			ExpireIn: "1 week",
			Paths:    []string{dir + "/"},
		},
		AllowFailure: info.AllowFailure,
	}
}

func (b *Builder) uploadAllLogs(created []string) Job {
	const summary = "consolidated-logs/pipeline-summary.txt"
	return Job{
		Name:  JobUploadAllLogs,
		Stage: StageUploadLogs,
		Image: "amazon/aws-cli:latest",
		Script: []string{
			"echo 'Consolidating all pipeline logs...'",
			"mkdir -p consolidated-logs",
			"find . -name 'logs' -type d -exec cp -r {} consolidated-logs/ \\; 2>/dev/null || true",
			"echo 'Pipeline Summary' > " + summary,
			"echo 'Project: '$CI_PROJECT_NAME >> " + summary,
			fmt.Sprintf("echo 'Group: %s' >> %s", tools.ShellQuote(b.group), summary),
			"echo 'Pipeline ID: '$CI_PIPELINE_ID >> " + summary,
			"echo 'Commit: '$CI_COMMIT_SHA >> " + summary,
			"echo 'Branch: '$CI_COMMIT_REF_NAME >> " + summary,
			"echo 'Timestamp: '$(date -Iseconds) >> " + summary,
			"echo 'Jobs executed:' >> " + summary,
			fmt.Sprintf("echo '%s' >> %s", strings.Join(created, ", "), summary),
			"aws s3 sync consolidated-logs/ s3://$S3_BUCKET/$LOGS_PREFIX/consolidated/ --region $AWS_DEFAULT_REGION || echo 'S3 upload failed'",
			"echo 'All logs uploaded to S3 for AI analysis'",
		},
		Dependencies:    append([]string{}, created...),
		HasDependencies: true,
		When:            "always",
		Artifacts: &Artifacts{
			When:     "always",
			ExpireIn: "1 month",
			Paths:    []string{"consolidated-logs/"},
		},
	}
}

func (b *Builder) deployProduction() Job {
	url := "https://app-$CI_PROJECT_ID." + b.cfg.AppDomain
	return Job{
		Name:  JobDeployProduction,
		Stage: StageDeploy,
		When:  "manual",
		Only:  []string{"main"},
		Script: []string{
			"echo 'Production Deployment Starting...'",
			"echo 'Project: '$CI_PROJECT_NAME",
			fmt.Sprintf("echo 'Group: %s'", tools.ShellQuote(b.group)),
			"echo 'Pipeline ID: '$CI_PIPELINE_ID",
			"echo 'All logs are available in S3 for analysis'",
			"echo 'S3 Location: s3://$S3_BUCKET/$LOGS_PREFIX/'",
			"echo 'Deployment completed successfully!'",
			fmt.Sprintf("echo 'Application is now live at: https://app-'$CI_PROJECT_ID'.%s'", b.cfg.AppDomain),
		},
		Dependencies: []string{JobUploadAllLogs},
		Environment: &Environment{
			Name: "production",
			URL:  url,
		},
	}
}

// packages collects the pip packages of selected in first-seen order.
func packages(selected []tools.Tool) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range selected {
		for _, p := range t.Packages {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

// mergeVariables appends extra after base, keeping the first value of a key.
func mergeVariables(base, extra []tools.Variable) []tools.Variable {
	have := make(map[string]bool, len(base))
	for _, v := range base {
		have[v.Key] = true
	}
	for _, v := range extra {
		if !have[v.Key] {
			have[v.Key] = true
			base = append(base, v)
		}
	}
	return base
}
