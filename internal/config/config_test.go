package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:5000", cfg.Server.Addr())
	assert.Equal(t, "techopsonedev", cfg.GitLab.GroupPath)
	assert.Equal(t, 110200461, cfg.GitLab.GroupID)
	assert.Equal(t, 10*time.Second, cfg.GitLab.ValidateTimeout)
	assert.Equal(t, "onedev-pipeline-logs", cfg.Storage.Bucket)
	assert.Equal(t, ProviderBedrock, cfg.Inference.Provider)
	assert.Equal(t, int64(1500), cfg.Inference.MaxTokens)
	assert.InDelta(t, 0.3, cfg.Inference.Temperature, 1e-9)
	assert.Equal(t, []string{"docker", "linux"}, cfg.Pipeline.RunnerTags)
	assert.True(t, cfg.Demo.Fallback)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ONEDEV_SERVER_PORT", "8080")
	t.Setenv("ONEDEV_STORAGE_BUCKET", "ci-logs")
	t.Setenv("ONEDEV_INFERENCE_PROVIDER", "openai")
	t.Setenv("ONEDEV_INFERENCE_TIMEOUT", "12s")
	t.Setenv("ONEDEV_DEMO_FALLBACK", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "ci-logs", cfg.Storage.Bucket)
	assert.Equal(t, ProviderOpenAI, cfg.Inference.Provider)
	assert.Equal(t, 12*time.Second, cfg.Inference.Timeout)
	assert.False(t, cfg.Demo.Fallback)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	content := "gitlab:\n  group_path: platform\n  group_display_name: Platform\npipeline:\n  python_version: \"3.12\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "onedev.yaml"), []byte(content), 0o644))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "platform", cfg.GitLab.GroupPath)
	assert.Equal(t, "3.12", cfg.Pipeline.PythonVersion)
	assert.Equal(t, "https://gitlab.com/platform/demo", cfg.GitLab.ProjectURL("demo"))
	assert.Equal(t, "git@gitlab.com:platform/demo.git", cfg.GitLab.CloneURL("demo"))
}

func TestLoadConfigRejectsUnknownProvider(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ONEDEV_INFERENCE_PROVIDER", "llama")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `inference.provider "llama" is not supported`)
}

func TestStorageLocations(t *testing.T) {
	s := StorageConfig{Bucket: "logs"}
	assert.Equal(t, "projects/web/pipelines/42", s.LogsPrefix("web", "42"))
	assert.Equal(t, "s3://logs/projects/web/pipelines/42", s.LogsLocation("web", "42"))
}

func TestProjectPath(t *testing.T) {
	assert.Equal(t, "shop", ProjectPath("shop"))
	assert.Equal(t, "my-shop", ProjectPath("My Shop"))
	assert.Equal(t, "api_v2.web", ProjectPath("  API_v2.web "))
	assert.Equal(t, "caf-orders", ProjectPath("Café / Orders!"))

	g := GitLabConfig{BaseURL: "https://gitlab.com/", SSHHost: "gitlab.com", GroupPath: "platform"}
	assert.Equal(t, "https://gitlab.com/platform/my-shop", g.ProjectURL("My Shop"))
	assert.Equal(t, "git@gitlab.com:platform/my-shop.git", g.CloneURL("My Shop"))
}
