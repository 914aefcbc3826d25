package analyzer

import (
	"context"
	"log/slog"

	"github.com/techopsonedev/onedev/internal/config"
	"github.com/techopsonedev/onedev/internal/llm"
	"github.com/techopsonedev/onedev/internal/logstore"
)

// Collaborators reports which collaborators NewFromConfig could initialize.
type Collaborators struct {
	Store     bool
	Inference bool
}

// NewFromConfig connects the log store and inference provider named by cfg.
// A collaborator that fails to initialize is logged and left out; the
// Analyzer then degrades with the matching failure reason.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Analyzer, Collaborators) {
	var (
		store    Store
		provider llm.Provider
		ready    Collaborators
	)

	if s, err := logstore.New(&cfg.Storage); err != nil {
		slog.Warn("Log store unavailable, analysis will use demo data", "bucket", cfg.Storage.Bucket, "error", err)
	} else {
		store = s
		ready.Store = true
	}

	if p, err := llm.New(ctx, &cfg.Inference); err != nil {
		slog.Warn("Inference provider unavailable, analysis will use demo data", "provider", cfg.Inference.Provider, "error", err)
	} else {
		provider = p
		ready.Inference = true
	}

	return New(store, provider, cfg), ready
}
