package analyzer

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const promptTemplate = `Analyze these CI/CD pipeline logs and provide professional improvement suggestions.

Project: %s
Pipeline ID: %s
Stages: %s

Logs Analysis:
%s

Provide analysis in JSON format:
{
    "pipeline_id": %q,
    "stages_analyzed": [%s],
    "total_log_files": %d,
    "tests_executed": <number>,
    "failures": <number>,
    "suggestions": [
        {"category": "category_name", "recommendation": "specific_recommendation"}
    ]
}
`

func buildPrompt(project, pipeline string, stages []string, files int, logs string) string {
	quoted := make([]string, len(stages))
	for i, s := range stages {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf(promptTemplate,
		project, pipeline, strings.Join(stages, ", "),
		logs,
		pipeline, strings.Join(quoted, ", "), files,
	)
}

// stageNames lists stages in order of first appearance.
func stageNames(files []logFile) []string {
	var out []string
	seen := make(map[string]bool)
	for _, f := range files {
		if !seen[f.stage] {
			seen[f.stage] = true
			out = append(out, f.stage)
		}
	}
	return out
}

// consolidate renders files grouped by stage. Each file contributes at most
// perFile bytes and the document is capped at total bytes.
func consolidate(files []logFile, perFile, total int) string {
	byStage := make(map[string][]logFile)
	for _, f := range files {
		byStage[f.stage] = append(byStage[f.stage], f)
	}

	var b strings.Builder
	for _, stage := range stageNames(files) {
		fmt.Fprintf(&b, "\n=== %s STAGE ===\n", strings.ToUpper(stage))
		for _, f := range byStage[stage] {
			fmt.Fprintf(&b, "\n--- %s ---\n", f.name)
			b.WriteString(truncate(string(f.content), perFile))
			b.WriteByte('\n')
		}
	}
	return truncate(b.String(), total)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
