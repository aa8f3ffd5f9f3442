package research

import (
	"strings"
	"time"
)

type ModeProfile string

const (
	ModeQuick        ModeProfile = "quick"
	ModeStandard     ModeProfile = "standard"
	ModeDeepResearch ModeProfile = "deep_research"
)

const (
	defaultQuickQueries    = 1
	defaultQuickLoops      = 1
	defaultQuickTimeout    = 60 * time.Second
	defaultStandardTimeout = 180 * time.Second
	defaultDeepQueries     = 5
	defaultDeepLoops       = 4
	defaultDeepTimeout     = 600 * time.Second
)

func ParseMode(raw string) ModeProfile {
	switch ModeProfile(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeQuick:
		return ModeQuick
	case ModeDeepResearch, "deep":
		return ModeDeepResearch
	default:
		return ModeStandard
	}
}

func DefaultProfile(mode ModeProfile) Config {
	switch mode {
	case ModeQuick:
		return Config{
			InitialQueryCount:     defaultQuickQueries,
			MaxLoops:              defaultQuickLoops,
			MaxConcurrentSearches: defaultMaxConcurrentSearches,
			ResultsPerQuery:       defaultResultsPerQuery,
			Timeout:               defaultQuickTimeout,
		}
	case ModeDeepResearch:
		return Config{
			InitialQueryCount:     defaultDeepQueries,
			MaxLoops:              defaultDeepLoops,
			MaxConcurrentSearches: defaultMaxConcurrentSearches,
			ResultsPerQuery:       defaultResultsPerQuery,
			Timeout:               defaultDeepTimeout,
		}
	default:
		return Config{
			InitialQueryCount:     defaultInitialQueryCount,
			MaxLoops:              defaultMaxLoops,
			MaxConcurrentSearches: defaultMaxConcurrentSearches,
			ResultsPerQuery:       defaultResultsPerQuery,
			Timeout:               defaultStandardTimeout,
		}
	}
}

// ResolveProfile layers positive overrides on top of the mode defaults.
func ResolveProfile(mode ModeProfile, overrides Config) Config {
	resolved := DefaultProfile(mode)

	if overrides.InitialQueryCount > 0 {
		resolved.InitialQueryCount = overrides.InitialQueryCount
	}
	if overrides.MaxLoops > 0 {
		resolved.MaxLoops = overrides.MaxLoops
	}
	if overrides.MaxConcurrentSearches > 0 {
		resolved.MaxConcurrentSearches = overrides.MaxConcurrentSearches
	}
	if overrides.ResultsPerQuery > 0 {
		resolved.ResultsPerQuery = overrides.ResultsPerQuery
	}
	if overrides.Timeout > 0 {
		resolved.Timeout = overrides.Timeout
	}
	return resolved
}
