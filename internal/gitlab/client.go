// Package gitlab wraps the GitLab REST and GraphQL APIs used to bootstrap projects.
package gitlab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Khan/genqlient/graphql"
	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/techopsonedev/onedev/apimodels"
	"github.com/techopsonedev/onedev/internal/config"
)

// ErrUnauthorized is returned when GitLab rejects the caller's token.
var ErrUnauthorized = errors.New("gitlab rejected the token")

// APIError is a failed GitLab call.
type APIError struct {
	Op     string
	Status int // 0 when no response was received
	Err    error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("gitlab %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("gitlab %s: status %d: %v", e.Op, e.Status, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

func apiError(op string, resp *gl.Response, err error) error {
	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}
	if status == http.StatusUnauthorized {
		err = fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return &APIError{Op: op, Status: status, Err: err}
}

// File is one file of a multi-file commit.
type File struct {
	Path    string
	Content string
}

// Client performs GitLab calls on behalf of one caller token.
type Client struct {
	api *gl.Client
	gql graphql.Client
	cfg *config.GitLabConfig
}

// NewClient builds a client authenticating with token as a bearer credential.
func NewClient(token string, cfg *config.GitLabConfig) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthorized
	}

	httpClient := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &bearerTransport{token: token, base: http.DefaultTransport},
	}

	api, err := gl.NewOAuthClient(token,
		gl.WithBaseURL(cfg.BaseURL),
		gl.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		gl.WithoutRetries(),
	)
	if err != nil {
		return nil, fmt.Errorf("create gitlab client: %w", err)
	}

	return &Client{
		api: api,
		gql: graphql.NewClient(strings.TrimSuffix(cfg.BaseURL, "/")+"/api/graphql", httpClient),
		cfg: cfg,
	}, nil
}

// ValidateToken returns the user owning the token.
func (c *Client) ValidateToken(ctx context.Context) (*apimodels.User, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ValidateTimeout)
	defer cancel()

	u, resp, err := c.api.Users.CurrentUser(gl.WithContext(ctx))
	if err != nil {
		return nil, apiError("validate token", resp, err)
	}
	email := u.Email
	if email == "" {
		email = u.PublicEmail
	}
	return &apimodels.User{ID: u.ID, Name: u.Name, Username: u.Username, Email: email}, nil
}

// CreateProject creates name inside the configured group. Group access is
// verified first; a failed check is only logged.
func (c *Client) CreateProject(ctx context.Context, name, description, branch string) (*apimodels.Project, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if group, err := c.VerifyGroup(ctx); err != nil {
		slog.Warn("Could not verify group access", "group", c.cfg.GroupPath, "error", err)
	} else {
		slog.Debug("Group access verified", "group", group.FullPath, "id", group.ID)
	}

	if branch == "" {
		branch = c.cfg.DefaultBranch
	}
	if description == "" {
		description = fmt.Sprintf("Project generated by OneDev for the %s group", c.cfg.GroupDisplayName)
	}

	p, resp, err := c.api.Projects.CreateProject(&gl.CreateProjectOptions{
		Name:          gl.Ptr(name),
		Path:          gl.Ptr(config.ProjectPath(name)),
		Description:   gl.Ptr(description),
		NamespaceID:   gl.Ptr(c.cfg.GroupID),
		Visibility:    gl.Ptr(gl.VisibilityValue(c.cfg.Visibility)),
		DefaultBranch: gl.Ptr(branch),
	}, gl.WithContext(ctx))
	if err != nil {
		return nil, apiError("create project", resp, err)
	}

	slog.Info("Project created", "id", p.ID, "name", name, "group", c.cfg.GroupPath)
	return &apimodels.Project{
		ID:        p.ID,
		Name:      name,
		CloneURL:  c.cfg.CloneURL(name),
		WebURL:    c.cfg.ProjectURL(name),
		GroupName: c.cfg.GroupPath,
		GroupID:   c.cfg.GroupID,
	}, nil
}

// CommitFiles creates files on branch in a single commit.
func (c *Client) CommitFiles(ctx context.Context, projectID int, branch, message string, files []File) (*apimodels.Commit, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if branch == "" {
		branch = c.cfg.DefaultBranch
	}
	actions := make([]*gl.CommitActionOptions, 0, len(files))
	for _, f := range files {
		actions = append(actions, &gl.CommitActionOptions{
			Action:   gl.Ptr(gl.FileCreate),
			FilePath: gl.Ptr(f.Path),
			Content:  gl.Ptr(f.Content),
		})
	}

	commit, resp, err := c.api.Commits.CreateCommit(projectID, &gl.CreateCommitOptions{
		Branch:        gl.Ptr(branch),
		CommitMessage: gl.Ptr(message),
		Actions:       actions,
	}, gl.WithContext(ctx))
	if err != nil {
		return nil, apiError("create commit", resp, err)
	}
	return &apimodels.Commit{
		ID:      commit.ID,
		ShortID: commit.ShortID,
		Title:   commit.Title,
		WebURL:  commit.WebURL,
	}, nil
}

// TriggerPipeline starts a pipeline on ref.
func (c *Client) TriggerPipeline(ctx context.Context, projectID int, ref string) (*apimodels.Pipeline, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if ref == "" {
		ref = c.cfg.DefaultBranch
	}
	p, resp, err := c.api.Pipelines.CreatePipeline(projectID, &gl.CreatePipelineOptions{
		Ref: gl.Ptr(ref),
	}, gl.WithContext(ctx))
	if err != nil {
		return nil, apiError("trigger pipeline", resp, err)
	}
	return &apimodels.Pipeline{ID: p.ID, Status: p.Status, Ref: p.Ref, WebURL: p.WebURL}, nil
}

type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(req)
}
