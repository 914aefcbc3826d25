package llm

import (
	"context"
	"fmt"

	"github.com/techopsonedev/onedev/internal/config"
)

// New builds the provider selected by cfg.Provider.
func New(ctx context.Context, cfg *config.InferenceConfig) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderBedrock:
		return NewBedrock(ctx, cfg)
	case config.ProviderOpenAI, config.ProviderAzure:
		return NewOpenAI(cfg)
	case config.ProviderGemini:
		return NewGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown inference provider %q", cfg.Provider)
	}
}
