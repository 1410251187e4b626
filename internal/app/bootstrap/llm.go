package bootstrap

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/leasing-ai-platform/internal/config"
	"github.com/wolfman30/leasing-ai-platform/internal/conversation"
	"github.com/wolfman30/leasing-ai-platform/pkg/logging"
)

// BuildLLMClient returns the completion client named by LLM_PROVIDER, wrapped with
// LLM_FALLBACK when one is set. Closers for SDK clients that hold connections are
// returned alongside.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (conversation.LLMClient, []io.Closer, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var closers []io.Closer
	primary, closer, err := buildProvider(ctx, cfg.LLMProvider, cfg, awsCfg)
	if err != nil {
		return nil, nil, err
	}
	if closer != nil {
		closers = append(closers, closer)
	}

	fallbackName := strings.TrimSpace(cfg.LLMFallback)
	if fallbackName == "" || fallbackName == cfg.LLMProvider {
		logger.Info("llm client configured", "provider", providerName(cfg.LLMProvider))
		return primary, closers, nil
	}
	fallback, closer, err := buildProvider(ctx, fallbackName, cfg, awsCfg)
	if err != nil {
		logger.Warn("llm fallback unavailable; continuing without it", "fallback", fallbackName, "error", err)
		return primary, closers, nil
	}
	if closer != nil {
		closers = append(closers, closer)
	}
	logger.Info("llm client configured", "provider", providerName(cfg.LLMProvider), "fallback", fallbackName)
	return conversation.NewFallbackLLMClient(primary, fallback, logger), closers, nil
}

func buildProvider(ctx context.Context, name string, cfg *appconfig.Config, awsCfg *aws.Config) (conversation.LLMClient, io.Closer, error) {
	switch providerName(name) {
	case "stub":
		return conversation.NewStubLLMClient(), nil, nil
	case "bedrock":
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return nil, nil, fmt.Errorf("bootstrap: BEDROCK_MODEL_ID is required for the bedrock provider")
		}
		if awsCfg == nil {
			return nil, nil, fmt.Errorf("bootstrap: bedrock provider needs AWS config")
		}
		return conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(*awsCfg), cfg.BedrockModelID), nil, nil
	case "gemini":
		client, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: gemini provider: %w", err)
		}
		return client, client, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown llm provider %q", name)
	}
}

func providerName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "stub"
	}
	return name
}

// BuildRules turns the policy settings into conversation rules. Blank settings keep
// the defaults.
func BuildRules(cfg *appconfig.Config) (conversation.Rules, error) {
	rules := conversation.DefaultRules()
	if cfg == nil {
		return rules, nil
	}
	rules.Pipeline = conversation.DefaultPipeline(cfg.AskMoveInDate)
	if expr := strings.TrimSpace(cfg.CollectionPipeline); expr != "" {
		pipeline, err := conversation.ParsePipeline(expr)
		if err != nil {
			return rules, fmt.Errorf("bootstrap: COLLECTION_PIPELINE: %w", err)
		}
		rules.Pipeline = pipeline
	}
	if expr := strings.TrimSpace(cfg.LeadQualifyPolicy); expr != "" {
		policy, err := conversation.ParsePolicy(expr)
		if err != nil {
			return rules, fmt.Errorf("bootstrap: LEAD_QUALIFY_POLICY: %w", err)
		}
		rules.Qualify = policy
	}
	if expr := strings.TrimSpace(cfg.CompletePolicy); expr != "" {
		policy, err := conversation.ParsePolicy(expr)
		if err != nil {
			return rules, fmt.Errorf("bootstrap: COMPLETE_POLICY: %w", err)
		}
		rules.Complete = policy
	}
	return rules, nil
}
