package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. ONEDEV_SERVER_PORT.
const EnvPrefix = "ONEDEV"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	GitLab    GitLabConfig    `mapstructure:"gitlab"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Inference InferenceConfig `mapstructure:"inference"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Report    ReportConfig    `mapstructure:"report"`
	Log       LogConfig       `mapstructure:"log"`
	Demo      DemoConfig      `mapstructure:"demo"`
}

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	Host           string        `mapstructure:"host"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	StaticDir      string        `mapstructure:"static_dir"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// GitLabConfig points at the GitLab instance and the group every project is created in.
type GitLabConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	GroupID          int           `mapstructure:"group_id"`
	GroupPath        string        `mapstructure:"group_path"`
	GroupDisplayName string        `mapstructure:"group_display_name"`
	SSHHost          string        `mapstructure:"ssh_host"`
	DefaultBranch    string        `mapstructure:"default_branch"`
	Visibility       string        `mapstructure:"visibility"`
	Timeout          time.Duration `mapstructure:"timeout"`
	ValidateTimeout  time.Duration `mapstructure:"validate_timeout"`
}

// StorageConfig describes the S3-compatible bucket the generated pipelines upload logs to.
type StorageConfig struct {
	Endpoint     string        `mapstructure:"endpoint"`
	Region       string        `mapstructure:"region"`
	Bucket       string        `mapstructure:"bucket"`
	AccessKey    string        `mapstructure:"access_key"`
	SecretKey    string        `mapstructure:"secret_key"`
	SessionToken string        `mapstructure:"session_token"`
	UseSSL       bool          `mapstructure:"use_ssl"`
	FetchWorkers int           `mapstructure:"fetch_workers"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type InferenceConfig struct {
	Provider    string        `mapstructure:"provider"`
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	Endpoint    string        `mapstructure:"endpoint"`
	APIVersion  string        `mapstructure:"api_version"`
	Region      string        `mapstructure:"region"`
	MaxTokens   int64         `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	TopP        float64       `mapstructure:"top_p"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type PipelineConfig struct {
	PythonVersion string   `mapstructure:"python_version"`
	AppDomain     string   `mapstructure:"app_domain"`
	RunnerTags    []string `mapstructure:"runner_tags"`
}

type AnalysisConfig struct {
	FilePrefixBytes int `mapstructure:"file_prefix_bytes"`
	MaxPromptBytes  int `mapstructure:"max_prompt_bytes"`
}

type ReportConfig struct {
	Product  string `mapstructure:"product"`
	WrapCols int    `mapstructure:"wrap_cols"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// DemoConfig controls whether upstream failures are answered with labeled placeholder data.
type DemoConfig struct {
	Fallback bool `mapstructure:"fallback"`
}

// Inference providers understood by llm.New.
const (
	ProviderBedrock = "bedrock"
	ProviderOpenAI  = "openai"
	ProviderAzure   = "azure"
	ProviderGemini  = "gemini"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("server.static_dir", "web/static")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("gitlab.base_url", "https://gitlab.com")
	v.SetDefault("gitlab.group_id", 110200461)
	v.SetDefault("gitlab.group_path", "techopsonedev")
	v.SetDefault("gitlab.group_display_name", "TechopsOneDev")
	v.SetDefault("gitlab.ssh_host", "gitlab.com")
	v.SetDefault("gitlab.default_branch", "main")
	v.SetDefault("gitlab.visibility", "private")
	v.SetDefault("gitlab.timeout", "30s")
	v.SetDefault("gitlab.validate_timeout", "10s")

	v.SetDefault("storage.endpoint", "s3.eu-west-3.amazonaws.com")
	v.SetDefault("storage.region", "eu-west-3")
	v.SetDefault("storage.bucket", "onedev-pipeline-logs")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.session_token", "")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.fetch_workers", 8)
	v.SetDefault("storage.timeout", "30s")

	v.SetDefault("inference.provider", ProviderBedrock)
	v.SetDefault("inference.model", "amazon.nova-pro-v1:0")
	v.SetDefault("inference.api_key", "")
	v.SetDefault("inference.endpoint", "")
	v.SetDefault("inference.api_version", "2024-06-01")
	v.SetDefault("inference.region", "eu-west-3")
	v.SetDefault("inference.max_tokens", 1500)
	v.SetDefault("inference.temperature", 0.3)
	v.SetDefault("inference.top_p", 0.9)
	v.SetDefault("inference.timeout", "30s")

	v.SetDefault("pipeline.python_version", "3.11")
	v.SetDefault("pipeline.app_domain", "onedev.com")
	v.SetDefault("pipeline.runner_tags", []string{"docker", "linux"})

	v.SetDefault("analysis.file_prefix_bytes", 1000)
	v.SetDefault("analysis.max_prompt_bytes", 4000)

	v.SetDefault("report.product", "OneDev")
	v.SetDefault("report.wrap_cols", 80)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", true)

	v.SetDefault("demo.fallback", true)
}

// LoadConfig reads .env (when present), an optional onedev.yaml and ONEDEV_* environment
// overrides, in increasing order of precedence.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("onedev")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Info("configuration loaded successfully", "config_file", v.ConfigFileUsed())
	return &cfg, nil
}

// Validate rejects configurations the components cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Port) == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if strings.TrimSpace(c.GitLab.BaseURL) == "" {
		errs = append(errs, errors.New("gitlab.base_url is required"))
	}
	if strings.TrimSpace(c.GitLab.GroupPath) == "" {
		errs = append(errs, errors.New("gitlab.group_path is required"))
	}
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		errs = append(errs, errors.New("storage.bucket is required"))
	}
	if c.Storage.FetchWorkers <= 0 {
		errs = append(errs, errors.New("storage.fetch_workers must be positive"))
	}
	switch c.Inference.Provider {
	case ProviderBedrock, ProviderOpenAI, ProviderAzure, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("inference.provider %q is not supported", c.Inference.Provider))
	}
	for name, d := range map[string]time.Duration{
		"gitlab.timeout":          c.GitLab.Timeout,
		"gitlab.validate_timeout": c.GitLab.ValidateTimeout,
		"storage.timeout":         c.Storage.Timeout,
		"inference.timeout":       c.Inference.Timeout,
		"server.request_timeout":  c.Server.RequestTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.Analysis.FilePrefixBytes <= 0 || c.Analysis.MaxPromptBytes <= 0 {
		errs = append(errs, errors.New("analysis limits must be positive"))
	}
	if c.Report.WrapCols <= 0 {
		errs = append(errs, errors.New("report.wrap_cols must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// GroupURL is the web URL of the configured GitLab group.
func (g GitLabConfig) GroupURL() string {
	return strings.TrimSuffix(g.BaseURL, "/") + "/" + g.GroupPath
}

// ProjectPath turns a project name into the URL path GitLab accepts: lower
// case, with every run of characters outside [a-z0-9._-] collapsed to "-".
func ProjectPath(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
			dash = false
		case !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.Trim(b.String(), "-._")
}

// ProjectURL is the web URL a project named name gets inside the group.
func (g GitLabConfig) ProjectURL(name string) string {
	return g.GroupURL() + "/" + ProjectPath(name)
}

// CloneURL is the SSH clone URL a project named name gets inside the group.
func (g GitLabConfig) CloneURL(name string) string {
	return fmt.Sprintf("git@%s:%s/%s.git", g.SSHHost, g.GroupPath, ProjectPath(name))
}

// LogsPrefix is the object key prefix of one pipeline run.
func (s StorageConfig) LogsPrefix(project, pipeline string) string {
	return fmt.Sprintf("projects/%s/pipelines/%s", project, pipeline)
}

// LogsLocation is the s3:// URI of one pipeline run's logs.
func (s StorageConfig) LogsLocation(project, pipeline string) string {
	return fmt.Sprintf("s3://%s/%s", s.Bucket, s.LogsPrefix(project, pipeline))
}
