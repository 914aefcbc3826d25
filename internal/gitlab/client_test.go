package gitlab

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techopsonedev/onedev/internal/config"
)

func testConfig(baseURL string) *config.GitLabConfig {
	return &config.GitLabConfig{
		BaseURL:          baseURL,
		GroupID:          110200461,
		GroupPath:        "techopsonedev",
		GroupDisplayName: "TechopsOneDev",
		SSHHost:          "gitlab.com",
		DefaultBranch:    "main",
		Visibility:       "private",
		Timeout:          5 * time.Second,
		ValidateTimeout:  5 * time.Second,
	}
}

type fakeGitLab struct {
	t          *testing.T
	project    map[string]any
	commit     map[string]any
	pipeline   map[string]any
	groupFound bool
}

func (f *fakeGitLab) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	assert.Equal(f.t, "Bearer glpat-test", r.Header.Get("Authorization"))
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/v4/user":
		_, _ = w.Write([]byte(`{"id": 7, "username": "ada", "name": "Ada Lovelace", "public_email": "ada@example.com"}`))
	case r.Method == http.MethodPost && r.URL.Path == "/api/graphql":
		if f.groupFound {
			_, _ = w.Write([]byte(`{"data": {"group": {"id": "gid://gitlab/Group/110200461", "name": "TechopsOneDev", "fullPath": "techopsonedev", "webUrl": "https://gitlab.com/techopsonedev"}}}`))
		} else {
			_, _ = w.Write([]byte(`{"data": {"group": null}}`))
		}
	case r.Method == http.MethodPost && r.URL.Path == "/api/v4/projects":
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&f.project))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 42, "name": "shop", "web_url": "https://gitlab.com/techopsonedev/shop"}`))
	case r.Method == http.MethodPost && r.URL.Path == "/api/v4/projects/42/repository/commits":
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&f.commit))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": "abc123def", "short_id": "abc123d", "title": "OneDev: pipeline", "web_url": "https://gitlab.com/techopsonedev/shop/-/commit/abc123def"}`))
	case r.Method == http.MethodPost && r.URL.Path == "/api/v4/projects/42/pipeline":
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&f.pipeline))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 900, "status": "created", "ref": "main", "web_url": "https://gitlab.com/techopsonedev/shop/-/pipelines/900"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "404 Not Found"}`))
	}
}

func newTestClient(t *testing.T, fake *fakeGitLab) *Client {
	t.Helper()
	fake.t = t
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := NewClient("glpat-test", testConfig(srv.URL))
	require.NoError(t, err)
	return c
}

func TestValidateToken(t *testing.T) {
	c := newTestClient(t, &fakeGitLab{})

	u, err := c.ValidateToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ada", u.Username)
	assert.Equal(t, "ada@example.com", u.Email)
}

func TestValidateTokenUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message": "401 Unauthorized"}`))
	}))
	defer srv.Close()

	c, err := NewClient("glpat-bad", testConfig(srv.URL))
	require.NoError(t, err)

	_, err = c.ValidateToken(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient("  ", testConfig("https://gitlab.com"))
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCreateProject(t *testing.T) {
	fake := &fakeGitLab{groupFound: true}
	c := newTestClient(t, fake)

	p, err := c.CreateProject(context.Background(), "shop", "", "")
	require.NoError(t, err)
	assert.Equal(t, 42, p.ID)
	assert.Equal(t, "git@gitlab.com:techopsonedev/shop.git", p.CloneURL)
	assert.True(t, strings.HasSuffix(p.WebURL, "/techopsonedev/shop"), p.WebURL)

	assert.Equal(t, "shop", fake.project["name"])
	assert.EqualValues(t, 110200461, fake.project["namespace_id"])
	assert.Equal(t, "private", fake.project["visibility"])
	assert.Equal(t, "main", fake.project["default_branch"])
}

func TestCreateProjectSlugsPath(t *testing.T) {
	fake := &fakeGitLab{groupFound: true}
	c := newTestClient(t, fake)

	p, err := c.CreateProject(context.Background(), "My Shop", "", "")
	require.NoError(t, err)
	assert.Equal(t, "My Shop", fake.project["name"])
	assert.Equal(t, "my-shop", fake.project["path"])
	assert.Equal(t, "git@gitlab.com:techopsonedev/my-shop.git", p.CloneURL)
	assert.True(t, strings.HasSuffix(p.WebURL, "/techopsonedev/my-shop"), p.WebURL)
}

func TestCreateProjectWithoutGroupAccess(t *testing.T) {
	c := newTestClient(t, &fakeGitLab{groupFound: false})

	_, err := c.VerifyGroup(context.Background())
	assert.Error(t, err)

	p, err := c.CreateProject(context.Background(), "shop", "demo", "develop")
	require.NoError(t, err, "group verification failures are only logged")
	assert.Equal(t, 42, p.ID)
}

func TestCommitFiles(t *testing.T) {
	fake := &fakeGitLab{}
	c := newTestClient(t, fake)

	commit, err := c.CommitFiles(context.Background(), 42, "", "OneDev: pipeline", []File{
		{Path: ".gitlab-ci.yml", Content: "stages: [test]\n"},
		{Path: "README.md", Content: "# shop\n"},
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123d", commit.ShortID)

	assert.Equal(t, "main", fake.commit["branch"])
	actions, ok := fake.commit["actions"].([]any)
	require.True(t, ok)
	require.Len(t, actions, 2)
	first := actions[0].(map[string]any)
	assert.Equal(t, "create", first["action"])
	assert.Equal(t, ".gitlab-ci.yml", first["file_path"])
}

func TestTriggerPipeline(t *testing.T) {
	fake := &fakeGitLab{}
	c := newTestClient(t, fake)

	p, err := c.TriggerPipeline(context.Background(), 42, "")
	require.NoError(t, err)
	assert.Equal(t, 900, p.ID)
	assert.Equal(t, "created", p.Status)
	assert.Equal(t, "main", fake.pipeline["ref"])
}

func TestUnknownProject(t *testing.T) {
	c := newTestClient(t, &fakeGitLab{})

	_, err := c.TriggerPipeline(context.Background(), 99, "main")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}
