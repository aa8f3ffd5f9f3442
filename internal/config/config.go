package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderGrok       = "grok"
	ProviderQwen       = "qwen"
	ProviderOpenRouter = "openrouter"
)

const (
	defaultPort                   = "8080"
	defaultDatabaseURL            = "file:research.db"
	defaultProvider               = ProviderGrok
	defaultInitialQueries         = 3
	defaultMaxResearchLoops       = 2
	defaultMaxConcurrentSearches  = 4
	defaultLLMMaxRetries          = 2
	defaultSearchResultsPerQuery  = 10
	defaultResearchTimeoutSeconds = 180
	defaultSearchMinIntervalMS    = 0
	defaultSearchCacheTTLSeconds  = 3600
)

type RoleModels struct {
	QueryGenerator string
	Reflection     string
	Answer         string
}

var providerModels = map[string]RoleModels{
	ProviderGemini:     {QueryGenerator: "gemini-2.0-flash", Reflection: "gemini-2.5-flash-preview-04-17", Answer: "gemini-2.5-pro-preview-05-06"},
	ProviderOpenAI:     {QueryGenerator: "gpt-4o-mini", Reflection: "gpt-4o", Answer: "gpt-4o"},
	ProviderQwen:       {QueryGenerator: "qwen-plus", Reflection: "qwen-max", Answer: "qwen-max"},
	ProviderGrok:       {QueryGenerator: "grok-beta", Reflection: "grok-beta", Answer: "grok-beta"},
	ProviderOpenRouter: {QueryGenerator: "openrouter/free", Reflection: "openrouter/free", Answer: "openrouter/free"},
}

func SupportedProviders() []string {
	return []string{ProviderGemini, ProviderOpenAI, ProviderQwen, ProviderGrok, ProviderOpenRouter}
}

func DefaultModels(provider string) (RoleModels, bool) {
	models, ok := providerModels[strings.ToLower(strings.TrimSpace(provider))]
	return models, ok
}

type Config struct {
	Port              string
	Environment       string
	AllowedOrigins    []string
	DatabaseURL       string
	DatabaseAuthToken string

	LLMProvider            string
	Models                 RoleModels
	NumberOfInitialQueries int
	MaxResearchLoops       int
	MaxConcurrentSearches  int
	LLMMaxRetries          int
	SearchResultsPerQuery  int
	ResearchTimeout        time.Duration

	GeminiAPIKey      string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	XAIAPIKey         string
	XAIBaseURL        string
	DashScopeAPIKey   string
	DashScopeBaseURL  string
	OpenRouterAPIKey  string
	OpenRouterBaseURL string

	BraveAPIKey       string
	BraveBaseURL      string
	GoogleAPIKey      string
	GoogleCX          string
	SerpAPIKey        string
	SerpAPIBaseURL    string
	SearchMinInterval time.Duration
	RedisURL          string
	SearchCacheTTL    time.Duration

	LogLevel       string
	LogFormat      string
	MetricsEnabled bool
}

func (c Config) ListenAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Load reads defaults, an optional file named by RESEARCH_CONFIG, then the
// environment. Environment variables win.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := strings.TrimSpace(os.Getenv("RESEARCH_CONFIG")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		Port:              trimmed(v, "port"),
		Environment:       trimmed(v, "app_env"),
		AllowedOrigins:    parseList(trimmed(v, "cors_allowed_origins")),
		DatabaseURL:       trimmed(v, "database_url"),
		DatabaseAuthToken: trimmed(v, "database_auth_token"),

		LLMProvider:            strings.ToLower(trimmed(v, "llm_provider")),
		NumberOfInitialQueries: v.GetInt("number_of_initial_queries"),
		MaxResearchLoops:       v.GetInt("max_research_loops"),
		MaxConcurrentSearches:  v.GetInt("max_concurrent_searches"),
		LLMMaxRetries:          v.GetInt("llm_max_retries"),
		SearchResultsPerQuery:  v.GetInt("search_results_per_query"),
		ResearchTimeout:        time.Duration(v.GetInt("research_timeout_seconds")) * time.Second,

		GeminiAPIKey:      trimmed(v, "gemini_api_key"),
		OpenAIAPIKey:      trimmed(v, "openai_api_key"),
		OpenAIBaseURL:     trimmed(v, "openai_base_url"),
		XAIAPIKey:         trimmed(v, "xai_api_key"),
		XAIBaseURL:        trimmed(v, "xai_base_url"),
		DashScopeAPIKey:   trimmed(v, "dashscope_api_key"),
		DashScopeBaseURL:  trimmed(v, "dashscope_base_url"),
		OpenRouterAPIKey:  trimmed(v, "openrouter_api_key"),
		OpenRouterBaseURL: trimmed(v, "openrouter_base_url"),

		BraveAPIKey:       trimmed(v, "brave_api_key"),
		BraveBaseURL:      trimmed(v, "brave_base_url"),
		GoogleAPIKey:      trimmed(v, "google_api_key"),
		GoogleCX:          trimmed(v, "google_cx"),
		SerpAPIKey:        trimmed(v, "serpapi_api_key"),
		SerpAPIBaseURL:    trimmed(v, "serpapi_base_url"),
		SearchMinInterval: time.Duration(v.GetInt("search_min_interval_ms")) * time.Millisecond,
		RedisURL:          trimmed(v, "redis_url"),
		SearchCacheTTL:    time.Duration(v.GetInt("search_cache_ttl_seconds")) * time.Second,

		LogLevel:       strings.ToLower(trimmed(v, "log_level")),
		LogFormat:      strings.ToLower(trimmed(v, "log_format")),
		MetricsEnabled: v.GetBool("metrics_enabled"),
	}

	defaults, ok := DefaultModels(cfg.LLMProvider)
	if !ok {
		return Config{}, fmt.Errorf("LLM_PROVIDER %q is not supported (use one of %s)", cfg.LLMProvider, strings.Join(SupportedProviders(), ", "))
	}
	cfg.Models = RoleModels{
		QueryGenerator: firstNonEmpty(trimmed(v, "query_generator_model"), defaults.QueryGenerator),
		Reflection:     firstNonEmpty(trimmed(v, "reflection_model"), defaults.Reflection),
		Answer:         firstNonEmpty(trimmed(v, "answer_model"), defaults.Answer),
	}

	if len(cfg.AllowedOrigins) == 0 {
		return Config{}, errors.New("CORS_ALLOWED_ORIGINS must include at least one origin")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	if strings.HasPrefix(cfg.DatabaseURL, "libsql://") && cfg.DatabaseAuthToken == "" {
		return Config{}, errors.New("DATABASE_AUTH_TOKEN is required for libsql:// URLs")
	}
	if cfg.NumberOfInitialQueries < 1 {
		return Config{}, errors.New("NUMBER_OF_INITIAL_QUERIES must be > 0")
	}
	if cfg.MaxResearchLoops < 1 {
		return Config{}, errors.New("MAX_RESEARCH_LOOPS must be > 0")
	}
	if cfg.MaxConcurrentSearches < 1 {
		return Config{}, errors.New("MAX_CONCURRENT_SEARCHES must be > 0")
	}
	if cfg.LLMMaxRetries < 0 {
		return Config{}, errors.New("LLM_MAX_RETRIES must be >= 0")
	}
	if cfg.ResearchTimeout <= 0 {
		return Config{}, errors.New("RESEARCH_TIMEOUT_SECONDS must be > 0")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", defaultPort)
	v.SetDefault("app_env", "development")
	v.SetDefault("cors_allowed_origins", "http://localhost:5173,http://localhost:4173")
	v.SetDefault("database_url", defaultDatabaseURL)
	v.SetDefault("llm_provider", defaultProvider)
	v.SetDefault("number_of_initial_queries", defaultInitialQueries)
	v.SetDefault("max_research_loops", defaultMaxResearchLoops)
	v.SetDefault("max_concurrent_searches", defaultMaxConcurrentSearches)
	v.SetDefault("llm_max_retries", defaultLLMMaxRetries)
	v.SetDefault("search_results_per_query", defaultSearchResultsPerQuery)
	v.SetDefault("research_timeout_seconds", defaultResearchTimeoutSeconds)
	v.SetDefault("openai_base_url", "https://api.openai.com/v1")
	v.SetDefault("xai_base_url", "https://api.x.ai/v1")
	v.SetDefault("dashscope_base_url", "https://dashscope.aliyuncs.com/compatible-mode/v1")
	v.SetDefault("openrouter_base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("brave_base_url", "https://api.search.brave.com/res/v1")
	v.SetDefault("serpapi_base_url", "https://serpapi.com")
	v.SetDefault("search_min_interval_ms", defaultSearchMinIntervalMS)
	v.SetDefault("search_cache_ttl_seconds", defaultSearchCacheTTLSeconds)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("metrics_enabled", true)
}

func trimmed(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func parseList(raw string) []string {
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
