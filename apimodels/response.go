package apimodels

import "github.com/techopsonedev/onedev/internal/tools"

// Suggestion is one improvement recommendation of an analysis.
type Suggestion struct {
	Category       string `json:"category" jsonschema:"minLength=1"`
	Recommendation string `json:"recommendation" jsonschema:"minLength=1"`
}

// AnalysisResult is the structured summary of one pipeline run's logs.
type AnalysisResult struct {
	PipelineID        string       `json:"pipeline_id"`
	StagesAnalyzed    []string     `json:"stages_analyzed"`
	TotalLogFiles     int          `json:"total_log_files"`
	TestsExecuted     int          `json:"tests_executed"`
	Failures          int          `json:"failures"`
	Suggestions       []Suggestion `json:"suggestions"`
	LogSource         string       `json:"log_source"`
	S3Location        string       `json:"s3_location"`
	AnalysisTimestamp string       `json:"analysis_timestamp"`
}

// Analysis is AnalysisResult as served over HTTP.
type Analysis struct {
	AnalysisResult
	ProjectID string `json:"project_id"`
	Group     string `json:"group"`

	// Mode is "live" for inference output and "demo" for the placeholder result.
	Mode           string `json:"mode"`
	FallbackReason string `json:"fallback_reason,omitempty"`
}

type AnalysisResponse struct {
	Success  bool     `json:"success"`
	Analysis Analysis `json:"analysis"`
}

type User struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type AuthResponse struct {
	Success bool `json:"success"`
	User    User `json:"user"`
}

type Project struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	CloneURL  string `json:"clone_url"`
	WebURL    string `json:"web_url"`
	GroupName string `json:"group_name"`
	GroupID   int    `json:"group_id"`
	Mode      string `json:"mode,omitempty"`
	Error     string `json:"error,omitempty"`
}

type ProjectResponse struct {
	Success bool    `json:"success"`
	Project Project `json:"project"`
}

type Commit struct {
	ID      string `json:"id"`
	ShortID string `json:"short_id"`
	Title   string `json:"title"`
	WebURL  string `json:"web_url"`
}

type GenerateResponse struct {
	Success        bool     `json:"success"`
	FilesGenerated []string `json:"files_generated"`
	Commit         *Commit  `json:"commit,omitempty"`
	Group          string   `json:"group"`
	S3Integration  bool     `json:"s3_integration"`
	S3Bucket       string   `json:"s3_bucket"`
	Message        string   `json:"message"`
}

// PreviewResponse carries the generated files without committing them.
type PreviewResponse struct {
	Success    bool              `json:"success"`
	Files      map[string]string `json:"files"`
	Jobs       []string          `json:"jobs"`
	Selection  tools.Selection   `json:"tools"`
	Deployment []string          `json:"deployment_tools"`
	Secrets    []string          `json:"required_variables"`
}

type Pipeline struct {
	ID     int    `json:"id"`
	Status string `json:"status"`
	Ref    string `json:"ref"`
	WebURL string `json:"web_url"`
}

type PipelineResponse struct {
	Success  bool     `json:"success"`
	Pipeline Pipeline `json:"pipeline"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	GitLab    HealthGitLab      `json:"gitlab"`
	Storage   HealthComponent   `json:"storage"`
	Inference HealthComponent   `json:"inference"`
	Features  map[string]string `json:"features,omitempty"`
}

type HealthGitLab struct {
	URL      string `json:"url"`
	Group    string `json:"group"`
	GroupID  int    `json:"group_id"`
	GroupURL string `json:"group_url"`
}

// HealthComponent reports whether a collaborator was initialized ("connected")
// or the service runs without it ("demo").
type HealthComponent struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}
