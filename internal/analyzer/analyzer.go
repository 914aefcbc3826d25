package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/techopsonedev/onedev/apimodels"
	"github.com/techopsonedev/onedev/internal/config"
	"github.com/techopsonedev/onedev/internal/llm"
	"github.com/techopsonedev/onedev/internal/logstore"
)

// Store lists and reads the log objects a pipeline uploaded.
type Store interface {
	List(ctx context.Context, prefix string) ([]logstore.Object, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

type FailureReason string

const (
	ReasonStoreUnavailable     FailureReason = "store_unavailable"
	ReasonNoLogs               FailureReason = "no_logs"
	ReasonInferenceUnavailable FailureReason = "inference_unavailable"
	ReasonMalformedResponse    FailureReason = "malformed_response"
)

// Failure explains why a live analysis could not be produced.
type Failure struct {
	Reason FailureReason
	Err    error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Reason)
	}
	return fmt.Sprintf("%s: %v", f.Reason, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

func fail(reason FailureReason, err error) *Failure {
	return &Failure{Reason: reason, Err: err}
}

// Summary is either a live result or the fallback result plus the Failure that
// caused it.
type Summary struct {
	Result  apimodels.AnalysisResult
	Failure *Failure
}

// Live reports whether Result came from inference.
func (s Summary) Live() bool { return s.Failure == nil }

type Analyzer struct {
	store    Store
	provider llm.Provider
	cfg      *config.Config
	now      func() time.Time
}

// New builds an Analyzer. store and provider may be nil when the collaborator
// could not be initialized; Analyze then fails with the matching reason.
func New(store Store, provider llm.Provider, cfg *config.Config) *Analyzer {
	return &Analyzer{
		store:    store,
		provider: provider,
		cfg:      cfg,
		now:      time.Now,
	}
}

// logFile is one retrieved object.
type logFile struct {
	stage   string
	name    string
	content []byte
}

// Summarize runs Analyze and substitutes the fallback result on failure. It
// never returns an error.
func (a *Analyzer) Summarize(ctx context.Context, project, pipeline string) Summary {
	result, err := a.Analyze(ctx, project, pipeline)
	if err == nil {
		return Summary{Result: *result}
	}

	var f *Failure
	if !errors.As(err, &f) {
		f = fail(ReasonInferenceUnavailable, err)
	}
	slog.Warn("Log analysis degraded to fallback",
		"project", project,
		"pipeline", pipeline,
		"reason", f.Reason,
		"error", f.Err,
	)
	return Summary{Result: a.Fallback(project, pipeline), Failure: f}
}

// Analyze reads the logs of one pipeline run and asks the inference provider
// for a structured summary. Every error it returns is a *Failure.
func (a *Analyzer) Analyze(ctx context.Context, project, pipeline string) (*apimodels.AnalysisResult, error) {
	slog.Info("Starting log analysis", "project", project, "pipeline", pipeline)
	startTime := time.Now()

	files, err := a.retrieve(ctx, project, pipeline)
	if err != nil {
		return nil, err
	}
	stages := stageNames(files)

	prompt := buildPrompt(project, pipeline, stages, len(files),
		consolidate(files, a.cfg.Analysis.FilePrefixBytes, a.cfg.Analysis.MaxPromptBytes))

	if a.provider == nil {
		return nil, fail(ReasonInferenceUnavailable, errors.New("no inference provider configured"))
	}
	inferCtx, cancel := context.WithTimeout(ctx, a.cfg.Inference.Timeout)
	defer cancel()

	resp, err := a.provider.Complete(inferCtx, []llm.Message{llm.UserMessage(prompt)},
		llm.WithMaxTokens(a.cfg.Inference.MaxTokens),
		llm.WithTemperature(a.cfg.Inference.Temperature),
		llm.WithTopP(a.cfg.Inference.TopP),
	)
	if err != nil {
		return nil, fail(ReasonInferenceUnavailable, err)
	}

	reply, err := parseReply(resp.Content)
	if err != nil {
		slog.Debug("Unusable model reply", "provider", a.provider.Name(), "content", resp.Content)
		return nil, fail(ReasonMalformedResponse, err)
	}

	result := &apimodels.AnalysisResult{
		PipelineID:     pipeline,
		StagesAnalyzed: stages,
		TotalLogFiles:  len(files),
		TestsExecuted:  reply.TestsExecuted,
		Failures:       reply.Failures,
		Suggestions:    reply.Suggestions,
	}
	a.stamp(result, project, pipeline)

	slog.Info("Log analysis completed",
		"project", project,
		"pipeline", pipeline,
		"provider", a.provider.Name(),
		"files", len(files),
		"tokens", resp.Usage.TotalTokens,
		"duration", time.Since(startTime),
	)
	return result, nil
}

// Fallback is the fixed placeholder result with fresh location and timestamp.
func (a *Analyzer) Fallback(project, pipeline string) apimodels.AnalysisResult {
	result := apimodels.AnalysisResult{
		PipelineID:     pipeline,
		StagesAnalyzed: []string{"unit-tests", "code-quality", "security", "deploy"},
		TotalLogFiles:  12,
		TestsExecuted:  24,
		Failures:       2,
		Suggestions: []apimodels.Suggestion{
			{Category: "Unit Tests", Recommendation: "Add more edge case tests for better coverage"},
			{Category: "Code Quality", Recommendation: "Fix pylint warnings about unused variables"},
			{Category: "Security", Recommendation: "Update dependencies with known vulnerabilities"},
			{Category: "Deploy", Recommendation: "Add health checks after deployment"},
			{Category: "Performance", Recommendation: "Optimize Docker image size for faster deployments"},
		},
	}
	a.stamp(&result, project, pipeline)
	return result
}

func (a *Analyzer) stamp(result *apimodels.AnalysisResult, project, pipeline string) {
	location := a.cfg.Storage.LogsLocation(project, pipeline)
	result.S3Location = location
	result.LogSource = "S3: " + location
	result.AnalysisTimestamp = a.now().Format(time.RFC3339)
}

// retrieve lists the run's objects and fetches them concurrently. Results keep
// key order; individual fetch errors are logged and skipped.
func (a *Analyzer) retrieve(ctx context.Context, project, pipeline string) ([]logFile, error) {
	if a.store == nil {
		return nil, fail(ReasonStoreUnavailable, errors.New("no log store configured"))
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Storage.Timeout)
	defer cancel()

	prefix := a.cfg.Storage.LogsPrefix(project, pipeline)
	objects, err := a.store.List(ctx, prefix)
	if err != nil {
		return nil, fail(ReasonStoreUnavailable, err)
	}
	if len(objects) == 0 {
		return nil, fail(ReasonNoLogs, fmt.Errorf("no objects under %s", prefix))
	}

	contents := make([][]byte, len(objects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, a.cfg.Storage.FetchWorkers))
	for i, obj := range objects {
		g.Go(func() error {
			data, err := a.store.Get(gctx, obj.Key)
			if err != nil {
				slog.Warn("Skipping unreadable log object", "key", obj.Key, "error", err)
				return nil
			}
			contents[i] = data
			return nil
		})
	}
	_ = g.Wait()

	files := make([]logFile, 0, len(objects))
	for i, obj := range objects {
		if contents[i] == nil {
			continue
		}
		files = append(files, logFile{stage: obj.Stage(), name: obj.Name(), content: contents[i]})
	}
	if len(files) == 0 {
		return nil, fail(ReasonNoLogs, fmt.Errorf("none of the %d objects under %s could be read", len(objects), prefix))
	}
	return files, nil
}
