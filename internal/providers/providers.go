package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"deepresearch/backend/internal/brave"
	"deepresearch/backend/internal/config"
	"deepresearch/backend/internal/gemini"
	"deepresearch/backend/internal/googlesearch"
	"deepresearch/backend/internal/grounding"
	"deepresearch/backend/internal/openaicompat"
	"deepresearch/backend/internal/research"
	"deepresearch/backend/internal/serpapi"
)

type Role string

const (
	RoleQueryGenerator Role = "query_generator"
	RoleReflection     Role = "reflection"
	RoleAnswer         Role = "answer"
)

var ErrUnsupportedProvider = errors.New("unsupported llm provider")

var apiKeyEnv = map[string]string{
	config.ProviderGemini:     "GEMINI_API_KEY",
	config.ProviderOpenAI:     "OPENAI_API_KEY",
	config.ProviderGrok:       "XAI_API_KEY",
	config.ProviderQwen:       "DASHSCOPE_API_KEY",
	config.ProviderOpenRouter: "OPENROUTER_API_KEY",
}

func SupportedProviders() []string {
	return config.SupportedProviders()
}

// CheckAvailability reports why provider cannot be used with cfg, or nil.
func CheckAvailability(cfg config.Config, provider string) error {
	provider = normalize(provider)
	envVar, ok := apiKeyEnv[provider]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedProvider, provider)
	}
	if apiKey(cfg, provider) == "" {
		return fmt.Errorf("%s provider requires %s", provider, envVar)
	}
	return nil
}

// AvailableSearchAPIs lists the ranked search providers cfg has credentials
// for, in fallback order.
func AvailableSearchAPIs(cfg config.Config) []string {
	available := make([]string, 0, 3)
	if cfg.GoogleAPIKey != "" && cfg.GoogleCX != "" {
		available = append(available, googlesearch.ProviderName)
	}
	if cfg.SerpAPIKey != "" {
		available = append(available, serpapi.ProviderName)
	}
	if cfg.BraveAPIKey != "" {
		available = append(available, brave.ProviderName)
	}
	return available
}

func ModelFor(cfg config.Config, role Role) string {
	switch role {
	case RoleReflection:
		return cfg.Models.Reflection
	case RoleAnswer:
		return cfg.Models.Answer
	default:
		return cfg.Models.QueryGenerator
	}
}

// NewGenerator returns the text generator for one role, retried up to
// cfg.LLMMaxRetries times on transient failures.
func NewGenerator(ctx context.Context, cfg config.Config, role Role, logger *zap.Logger) (research.TextGenerator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := CheckAvailability(cfg, cfg.LLMProvider); err != nil {
		return nil, err
	}
	model := ModelFor(cfg, role)
	if model == "" {
		return nil, fmt.Errorf("no %s model configured for %s", role, cfg.LLMProvider)
	}

	var generator research.TextGenerator
	if normalize(cfg.LLMProvider) == config.ProviderGemini {
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		generator = gemini.NewGenerator(client, model)
	} else {
		client := openaicompat.NewClient(endpoint(cfg, cfg.LLMProvider), http.DefaultClient)
		generator = openaicompat.NewGenerator(client, model)
	}
	return NewRetrying(generator, cfg.LLMMaxRetries, logger.With(zap.String("role", string(role)))), nil
}

// NewBackend picks the retrieval strategy for cfg. Gemini answers with
// native search grounding; every other provider summarizes ranked results.
func NewBackend(ctx context.Context, cfg config.Config, summarizer research.TextGenerator, cache redis.UniversalClient, logger *zap.Logger) (research.Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if normalize(cfg.LLMProvider) == config.ProviderGemini {
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		return research.NewGroundedBackend(gemini.NewGroundedSearcher(client, cfg.Models.QueryGenerator)), nil
	}

	chain, err := NewSearchChain(ctx, cfg, cache, logger)
	if err != nil {
		return nil, err
	}
	if chain.Len() == 0 {
		logger.Warn("no search api configured, answering from model knowledge")
		return research.NewRankedBackend(nil, summarizer, cfg.SearchResultsPerQuery), nil
	}
	return research.NewRankedBackend(chain, summarizer, cfg.SearchResultsPerQuery), nil
}

// NewSearchChain wires every configured ranked search provider in
// fallback order, each rate limited and optionally cached.
func NewSearchChain(ctx context.Context, cfg config.Config, cache redis.UniversalClient, logger *zap.Logger) (*grounding.Chain, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	wrap := func(provider grounding.Provider, isRateLimited func(error) bool) grounding.Provider {
		provider = grounding.NewRateLimited(provider, cfg.SearchMinInterval, isRateLimited)
		if cache != nil {
			provider = grounding.NewCached(provider, cache, cfg.SearchCacheTTL, logger)
		}
		return provider
	}

	var chain []grounding.Provider
	google, err := googlesearch.NewClient(ctx, cfg)
	switch {
	case errors.Is(err, googlesearch.ErrNotConfigured):
	case err != nil:
		return nil, err
	default:
		chain = append(chain, wrap(google, googlesearch.IsRateLimited))
	}
	if serp := serpapi.NewClient(cfg, nil); serp.Configured() {
		chain = append(chain, wrap(serp, serpapi.IsRateLimited))
	}
	if braveClient := brave.NewClient(cfg, nil); braveClient.Configured() {
		chain = append(chain, wrap(braveClient, brave.IsRateLimited))
	}
	return grounding.NewChain(logger, chain...), nil
}

// NewOrchestrator assembles a research.Orchestrator from configuration.
func NewOrchestrator(ctx context.Context, cfg config.Config, cache redis.UniversalClient, logger *zap.Logger) (research.Orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	queryWriter, err := NewGenerator(ctx, cfg, RoleQueryGenerator, logger)
	if err != nil {
		return research.Orchestrator{}, err
	}
	reflector, err := NewGenerator(ctx, cfg, RoleReflection, logger)
	if err != nil {
		return research.Orchestrator{}, err
	}
	answerer, err := NewGenerator(ctx, cfg, RoleAnswer, logger)
	if err != nil {
		return research.Orchestrator{}, err
	}
	backend, err := NewBackend(ctx, cfg, queryWriter, cache, logger)
	if err != nil {
		return research.Orchestrator{}, err
	}

	return research.NewOrchestrator(
		backend,
		research.NewQueryPlanner(queryWriter, logger),
		research.NewReflectionEngine(reflector),
		research.NewAnswerFinalizer(answerer),
		research.Config{
			InitialQueryCount:     cfg.NumberOfInitialQueries,
			MaxLoops:              cfg.MaxResearchLoops,
			MaxConcurrentSearches: cfg.MaxConcurrentSearches,
			ResultsPerQuery:       cfg.SearchResultsPerQuery,
			Timeout:               cfg.ResearchTimeout,
		},
		logger,
	), nil
}

func endpoint(cfg config.Config, provider string) openaicompat.Endpoint {
	provider = normalize(provider)
	out := openaicompat.Endpoint{Provider: provider, APIKey: apiKey(cfg, provider)}
	switch provider {
	case config.ProviderOpenAI:
		out.BaseURL = cfg.OpenAIBaseURL
	case config.ProviderGrok:
		out.BaseURL = cfg.XAIBaseURL
	case config.ProviderQwen:
		out.BaseURL = cfg.DashScopeBaseURL
	case config.ProviderOpenRouter:
		out.BaseURL = cfg.OpenRouterBaseURL
	}
	return out
}

func apiKey(cfg config.Config, provider string) string {
	switch provider {
	case config.ProviderGemini:
		return cfg.GeminiAPIKey
	case config.ProviderOpenAI:
		return cfg.OpenAIAPIKey
	case config.ProviderGrok:
		return cfg.XAIAPIKey
	case config.ProviderQwen:
		return cfg.DashScopeAPIKey
	case config.ProviderOpenRouter:
		return cfg.OpenRouterAPIKey
	}
	return ""
}

func normalize(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
