package apimodels

import "github.com/techopsonedev/onedev/internal/tools"

type AuthRequest struct {
	Token string `json:"token"`
}

type CreateProjectRequest struct {
	// Name is the project path inside the configured group
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Branch      string `json:"branch,omitempty"`
	Language    string `json:"language,omitempty"`
	Framework   string `json:"framework,omitempty"`
}

type GenerateRequest struct {
	ProjectID int    `json:"project_id"`
	Name      string `json:"name"`
	Language  string `json:"language,omitempty"`
	Framework string `json:"framework,omitempty"`
	Branch    string `json:"branch,omitempty"`

	// PythonVersion overrides pipeline.python_version when set
	PythonVersion string `json:"python_version,omitempty"`

	// Tools maps category names to tool ids, in the order the client sent them
	Tools tools.Selection `json:"tools"`
}

type TriggerRequest struct {
	ProjectID int    `json:"project_id"`
	Ref       string `json:"ref,omitempty"`
}

type AnalyzeRequest struct {
	PipelineID  string `json:"pipeline_id,omitempty"`
	ProjectName string `json:"project_name,omitempty"`

	// Strict reports upstream failures as errors instead of demo data
	Strict bool `json:"strict,omitempty"`
}
