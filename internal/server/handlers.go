package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/techopsonedev/onedev/apimodels"
	"github.com/techopsonedev/onedev/internal/gitlab"
	"github.com/techopsonedev/onedev/internal/pipeline"
	"github.com/techopsonedev/onedev/internal/tools"
)

const (
	fileCI     = ".gitlab-ci.yml"
	fileReadme = "README.md"

	// demoProjectID identifies the placeholder project returned when creation fails.
	demoProjectID = 12345
	latest        = "latest"
)

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	var req apimodels.AuthRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		writeError(w, http.StatusBadRequest, "Token required")
		return
	}

	client, err := s.gitlab(req.Token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	user, err := client.ValidateToken(r.Context())
	if err != nil {
		slog.Warn("GitLab authentication failed", "error", err)
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	slog.Info("GitLab authentication succeeded", "username", user.Username)
	writeJSON(w, http.StatusOK, apimodels.AuthResponse{Success: true, User: *user})
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req apimodels.CreateProjectRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Project name required")
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authorization token required")
		return
	}

	slog.Info("Creating project",
		"name", req.Name,
		"group", s.cfg.GitLab.GroupPath,
		"language", req.Language,
		"framework", req.Framework,
	)

	project, err := s.createProject(r, token, req)
	if err != nil {
		if !s.cfg.Demo.Fallback || errors.Is(err, gitlab.ErrUnauthorized) {
			writeError(w, upstreamStatus(err), err.Error())
			return
		}
		slog.Warn("Project creation failed, answering with demo project", "name", req.Name, "error", err)
		project = &apimodels.Project{
			ID:        demoProjectID,
			Name:      req.Name,
			CloneURL:  s.cfg.GitLab.CloneURL(req.Name),
			WebURL:    s.cfg.GitLab.ProjectURL(req.Name),
			GroupName: s.cfg.GitLab.GroupPath,
			GroupID:   s.cfg.GitLab.GroupID,
			Mode:      StatusDemo,
			Error:     err.Error(),
		}
	}

	writeJSON(w, http.StatusOK, apimodels.ProjectResponse{Success: true, Project: *project})
}

func (s *Server) createProject(r *http.Request, token string, req apimodels.CreateProjectRequest) (*apimodels.Project, error) {
	client, err := s.gitlab(token)
	if err != nil {
		return nil, err
	}
	return client.CreateProject(r.Context(), req.Name, req.Description, req.Branch)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req apimodels.GenerateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ProjectID <= 0 {
		writeError(w, http.StatusBadRequest, "project_id required")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Project name required")
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authorization token required")
		return
	}

	slog.Info("Generating pipeline", "project", req.Name, "project_id", req.ProjectID, "categories", req.Tools.Names())

	_, files, err := s.generate(req)
	if err != nil {
		slog.Error("Pipeline generation failed", "project", req.Name, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	client, err := s.gitlab(token)
	if err != nil {
		writeError(w, upstreamStatus(err), err.Error())
		return
	}
	message := fmt.Sprintf("%s: Generated CI/CD pipeline for %s group with S3 logs integration", s.cfg.Report.Product, s.cfg.GitLab.GroupDisplayName)
	commit, err := client.CommitFiles(r.Context(), req.ProjectID, req.Branch, message, files)
	if err != nil {
		slog.Error("Commit of generated files failed", "project_id", req.ProjectID, "error", err)
		writeError(w, upstreamStatus(err), err.Error())
		return
	}

	slog.Info("Pipeline committed", "project_id", req.ProjectID, "commit", commit.ShortID)
	writeJSON(w, http.StatusOK, apimodels.GenerateResponse{
		Success:        true,
		FilesGenerated: []string{fileCI, fileReadme},
		Commit:         commit,
		Group:          s.cfg.GitLab.GroupDisplayName,
		S3Integration:  true,
		S3Bucket:       s.cfg.Storage.Bucket,
		Message:        fmt.Sprintf("Pipeline configured for %s group with S3 logs storage for AI analysis", s.cfg.GitLab.GroupDisplayName),
	})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req apimodels.GenerateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Project name required")
		return
	}

	def, files, err := s.generate(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	deployment := tools.NewDeployment(req.Tools)
	var deployIDs []string
	for _, t := range deployment.Recognized() {
		deployIDs = append(deployIDs, t.ID)
	}

	resp := apimodels.PreviewResponse{
		Success:    true,
		Files:      make(map[string]string, len(files)),
		Jobs:       def.JobNames(),
		Selection:  req.Tools,
		Deployment: deployIDs,
		Secrets:    deployment.Secrets(),
	}
	for _, f := range files {
		resp.Files[f.Path] = f.Content
	}
	writeJSON(w, http.StatusOK, resp)
}

// generate renders the pipeline definition and README for req.
func (s *Server) generate(req apimodels.GenerateRequest) (*pipeline.Definition, []gitlab.File, error) {
	def := s.builder.Build(req.Tools, req.PythonVersion)
	yml, err := def.YAML()
	if err != nil {
		return nil, nil, fmt.Errorf("render pipeline: %w", err)
	}
	doc, err := s.readme.Render(req.Name, req.Language, req.Framework, req.Tools)
	if err != nil {
		return nil, nil, fmt.Errorf("render readme: %w", err)
	}
	return def, []gitlab.File{
		{Path: fileCI, Content: string(yml)},
		{Path: fileReadme, Content: doc},
	}, nil
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req apimodels.TriggerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ProjectID <= 0 {
		writeError(w, http.StatusBadRequest, "project_id required")
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authorization token required")
		return
	}

	client, err := s.gitlab(token)
	if err != nil {
		writeError(w, upstreamStatus(err), err.Error())
		return
	}
	p, err := client.TriggerPipeline(r.Context(), req.ProjectID, req.Ref)
	if err != nil {
		slog.Error("Pipeline trigger failed", "project_id", req.ProjectID, "error", err)
		writeError(w, upstreamStatus(err), err.Error())
		return
	}

	slog.Info("Pipeline triggered", "project_id", req.ProjectID, "pipeline_id", p.ID)
	writeJSON(w, http.StatusOK, apimodels.PipelineResponse{Success: true, Pipeline: *p})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.Atoi(chi.URLParam(r, "projectID"))
	if err != nil || projectID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}
	var req apimodels.AnalyzeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.PipelineID == "" {
		req.PipelineID = latest
	}
	if req.ProjectName == "" {
		req.ProjectName = defaultProjectName(projectID)
	}

	summary := s.summarizer.Summarize(r.Context(), req.ProjectName, req.PipelineID)
	if !summary.Live() && (req.Strict || !s.cfg.Demo.Fallback) {
		writeError(w, http.StatusBadGateway, summary.Failure.Error())
		return
	}

	analysis := apimodels.Analysis{
		AnalysisResult: summary.Result,
		ProjectID:      strconv.Itoa(projectID),
		Group:          s.cfg.GitLab.GroupDisplayName,
		Mode:           "live",
	}
	if !summary.Live() {
		analysis.Mode = StatusDemo
		analysis.FallbackReason = string(summary.Failure.Reason)
	}

	slog.Info("Analysis served",
		"project", req.ProjectName,
		"pipeline", req.PipelineID,
		"mode", analysis.Mode,
		"tests", analysis.TestsExecuted,
		"failures", analysis.Failures,
	)
	writeJSON(w, http.StatusOK, apimodels.AnalysisResponse{Success: true, Analysis: analysis})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.Atoi(chi.URLParam(r, "projectID"))
	if err != nil || projectID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	summary := s.summarizer.Summarize(r.Context(), defaultProjectName(projectID), latest)
	if !summary.Live() && !s.cfg.Demo.Fallback {
		writeError(w, http.StatusBadGateway, summary.Failure.Error())
		return
	}

	var buf bytes.Buffer
	if err := s.report.Render(&buf, summary.Result, fmt.Sprintf("Project-%d", projectID)); err != nil {
		slog.Error("PDF rendering failed", "project_id", projectID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	filename := fmt.Sprintf("%s-%s-analysis-report-%d.pdf",
		strings.ToLower(s.cfg.Report.Product), s.cfg.GitLab.GroupPath, projectID)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("Writing PDF response failed", "project_id", projectID, "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	g := s.cfg.GitLab
	writeJSON(w, http.StatusOK, apimodels.HealthResponse{
		Status:    "healthy",
		Service:   s.cfg.Report.Product + " API",
		Version:   s.version,
		Timestamp: s.now().Format(time.RFC3339),
		GitLab: apimodels.HealthGitLab{
			URL:      g.BaseURL,
			Group:    g.GroupPath,
			GroupID:  g.GroupID,
			GroupURL: g.GroupURL(),
		},
		Storage: apimodels.HealthComponent{
			Name:   s.cfg.Storage.Bucket,
			Status: s.storage,
		},
		Inference: apimodels.HealthComponent{
			Name:   s.cfg.Inference.Provider + "/" + s.cfg.Inference.Model,
			Status: s.inference,
		},
		Features: map[string]string{
			"group":           fmt.Sprintf("All projects created in %s (ID %d)", g.GroupDisplayName, g.GroupID),
			"s3_logs":         "Pipeline logs stored under s3://" + s.cfg.Storage.Bucket + "/projects/",
			"ai_analysis":     "Log analysis via " + s.cfg.Inference.Provider,
			"demo_fallback":   strconv.FormatBool(s.cfg.Demo.Fallback),
			"manual_deploy":   "Production deployment is a manual job",
			"preview_changes": "Generated files can be previewed before committing",
		},
	})
}

func defaultProjectName(projectID int) string {
	return "project-" + strconv.Itoa(projectID)
}

// bearerToken extracts the caller's GitLab token from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	return token, token != ""
}

// upstreamStatus maps a collaborator error to the HTTP status reported to the caller.
func upstreamStatus(err error) int {
	if errors.Is(err, gitlab.ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	return http.StatusBadGateway
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Encoding response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apimodels.ErrorResponse{Error: msg})
}
