package research

import (
	"context"
	"time"
)

type StopReason string

const (
	StopReasonSufficient      StopReason = "sufficient"
	StopReasonMaxLoops        StopReason = "max_loops"
	StopReasonNoFollowups     StopReason = "no_followups"
	StopReasonReflectionError StopReason = "reflection_error"
	StopReasonTimeout         StopReason = "timeout"
	StopReasonError           StopReason = "error"
)

type FieldType string

const (
	FieldString     FieldType = "string"
	FieldBoolean    FieldType = "boolean"
	FieldStringList FieldType = "string_list"
)

type SchemaField struct {
	Name        string
	Type        FieldType
	Description string
}

// Schema describes the JSON object a structured generation must return.
// Every field is required.
type Schema struct {
	Name   string
	Fields []SchemaField
}

type GenerateRequest struct {
	Prompt      string
	Temperature float64
	// Schema is nil for free-form text.
	Schema *Schema
}

type TextGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type RankedSearcher interface {
	Search(ctx context.Context, query string, count int) ([]SearchResult, error)
}

type GroundingChunk struct {
	Reference string
	Label     string
}

// GroundingSupport ties a byte range of the answer text to the chunks backing it.
type GroundingSupport struct {
	StartIndex   int
	EndIndex     int
	ChunkIndices []int
}

type GroundedAnswer struct {
	Text     string
	Chunks   []GroundingChunk
	Supports []GroundingSupport
}

type GroundedSearcher interface {
	GroundedSearch(ctx context.Context, prompt string) (GroundedAnswer, error)
}

type Config struct {
	InitialQueryCount     int
	MaxLoops              int
	MaxConcurrentSearches int
	ResultsPerQuery       int
	Timeout               time.Duration
}

// Request overrides the orchestrator defaults for one run. Zero values keep
// the defaults.
type Request struct {
	Topic             string        `json:"topic"`
	InitialQueryCount int           `json:"initialQueryCount,omitempty"`
	MaxLoops          int           `json:"maxLoops,omitempty"`
	Timeout           time.Duration `json:"-"`
}

// RequestForMode fills the query count, loop bound and timeout from a mode
// profile, keeping any positive value already set on req.
func RequestForMode(req Request, mode ModeProfile) Request {
	profile := ResolveProfile(mode, Config{
		InitialQueryCount: req.InitialQueryCount,
		MaxLoops:          req.MaxLoops,
		Timeout:           req.Timeout,
	})
	req.InitialQueryCount = profile.InitialQueryCount
	req.MaxLoops = profile.MaxLoops
	req.Timeout = profile.Timeout
	return req
}

type Result struct {
	Topic       string     `json:"topic"`
	FinalText   string     `json:"finalText"`
	Sources     []Source   `json:"sources"`
	Queries     []Query    `json:"queries"`
	Loops       int        `json:"loops"`
	Evidence    int        `json:"evidenceCount"`
	Unavailable int        `json:"unavailableTasks"`
	Warnings    []string   `json:"warnings,omitempty"`
	StopReason  StopReason `json:"stopReason"`
	ElapsedMS   int64      `json:"elapsedMs"`
}
