package research

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	BackendGrounded = "grounded"
	BackendRanked   = "ranked"

	knowledgeBaseLabel     = "LLM Knowledge Base"
	knowledgeBaseReference = "No external search performed"
	knowledgeBaseSnippet   = "Response based on model training data"

	defaultResultsPerQuery = 10
)

var errEmptyRetrieval = errors.New("backend returned no text")

type TaskResult struct {
	QueryID     int
	Query       string
	Text        string
	Sources     []Source
	Unavailable bool
	Err         error
}

// Backend is one retrieval strategy. It is chosen once per session.
type Backend interface {
	Name() string
	Retrieve(ctx context.Context, query Query, registry *SourceRegistry) (TaskResult, error)
}

type RetrievalTask struct {
	Query    Query
	Backend  Backend
	Registry *SourceRegistry
}

// Run never fails: backend errors become an unavailable result so the rest
// of the batch is unaffected.
func (t RetrievalTask) Run(ctx context.Context) TaskResult {
	if t.Backend == nil {
		return degradedResult(t.Query, errors.New("retrieval backend unavailable"))
	}
	result, err := t.Backend.Retrieve(ctx, t.Query, t.Registry)
	if err != nil {
		return degradedResult(t.Query, err)
	}
	result.QueryID = t.Query.ID
	result.Query = t.Query.Text
	return result
}

func degradedResult(query Query, err error) TaskResult {
	var retrievalErr *RetrievalError
	if !errors.As(err, &retrievalErr) {
		err = &RetrievalError{Query: query.Text, Err: err}
	}
	return TaskResult{
		QueryID:     query.ID,
		Query:       query.Text,
		Unavailable: true,
		Err:         err,
	}
}

type GroundedBackend struct {
	searcher GroundedSearcher
	now      func() time.Time
}

func NewGroundedBackend(searcher GroundedSearcher) GroundedBackend {
	return GroundedBackend{searcher: searcher, now: time.Now}
}

func (GroundedBackend) Name() string { return BackendGrounded }

func (b GroundedBackend) Retrieve(ctx context.Context, query Query, registry *SourceRegistry) (TaskResult, error) {
	if b.searcher == nil {
		return TaskResult{}, errors.New("grounded searcher unavailable")
	}
	now := time.Now
	if b.now != nil {
		now = b.now
	}
	answer, err := b.searcher.GroundedSearch(ctx, buildWebSearchPrompt(query.Text, now()))
	if err != nil {
		return TaskResult{}, err
	}
	if strings.TrimSpace(answer.Text) == "" {
		return TaskResult{}, errEmptyRetrieval
	}

	registered := make(map[int]Source, len(answer.Chunks))
	touched := make([]Source, 0, len(answer.Chunks))
	tokenFor := func(chunkIndex int) string {
		if source, ok := registered[chunkIndex]; ok {
			return source.Token
		}
		if chunkIndex < 0 || chunkIndex >= len(answer.Chunks) {
			return ""
		}
		chunk := answer.Chunks[chunkIndex]
		if strings.TrimSpace(chunk.Reference) == "" {
			return ""
		}
		source, _ := registry.Register(chunk.Reference, chunk.Label, "")
		registered[chunkIndex] = source
		if !containsSource(touched, source.ID) {
			touched = append(touched, source)
		}
		return source.Token
	}

	markers := make([]citationMarker, 0, len(answer.Supports))
	for _, support := range answer.Supports {
		tokens := make([]string, 0, len(support.ChunkIndices))
		for _, idx := range support.ChunkIndices {
			if token := tokenFor(idx); token != "" {
				tokens = append(tokens, token)
			}
		}
		if len(tokens) == 0 {
			continue
		}
		markers = append(markers, citationMarker{Offset: support.EndIndex, Tokens: tokens})
	}

	return TaskResult{
		Text:    insertCitationMarkers(answer.Text, markers),
		Sources: touched,
	}, nil
}

type RankedBackend struct {
	searcher        RankedSearcher
	summarizer      TextGenerator
	resultsPerQuery int
	now             func() time.Time
}

func NewRankedBackend(searcher RankedSearcher, summarizer TextGenerator, resultsPerQuery int) RankedBackend {
	if resultsPerQuery < 1 {
		resultsPerQuery = defaultResultsPerQuery
	}
	return RankedBackend{
		searcher:        searcher,
		summarizer:      summarizer,
		resultsPerQuery: resultsPerQuery,
		now:             time.Now,
	}
}

func (RankedBackend) Name() string { return BackendRanked }

func (b RankedBackend) Retrieve(ctx context.Context, query Query, registry *SourceRegistry) (TaskResult, error) {
	if b.summarizer == nil {
		return TaskResult{}, errors.New("summarizer unavailable")
	}
	now := time.Now
	if b.now != nil {
		now = b.now
	}

	var results []SearchResult
	if b.searcher != nil {
		found, err := b.searcher.Search(ctx, query.Text, b.resultsPerQuery)
		if err != nil {
			return TaskResult{}, err
		}
		results = usableResults(found, b.resultsPerQuery)
	}
	if len(results) == 0 {
		return b.fromModelKnowledge(ctx, query, registry, now())
	}

	summary, err := b.summarizer.Generate(ctx, GenerateRequest{
		Prompt:      buildRankedSummaryPrompt(buildWebSearchPrompt(query.Text, now()), results),
		Temperature: 0,
	})
	if err != nil {
		return TaskResult{}, &GenerationError{Stage: "summarize", Err: err}
	}
	if strings.TrimSpace(summary) == "" {
		return TaskResult{}, errEmptyRetrieval
	}

	// The summary cites local 1-based result indices; registration happens
	// afterwards so each [i] can be rewritten to its registry token.
	mapping := make(map[int]string, len(results))
	sources := make([]Source, 0, len(results))
	for i, result := range results {
		source, _ := registry.Register(result.URL, result.Title, result.Snippet)
		mapping[i+1] = source.Token
		if !containsSource(sources, source.ID) {
			sources = append(sources, source)
		}
	}

	return TaskResult{
		Text:    remapLocalCitations(summary, mapping),
		Sources: sources,
	}, nil
}

func (b RankedBackend) fromModelKnowledge(ctx context.Context, query Query, registry *SourceRegistry, now time.Time) (TaskResult, error) {
	summary, err := b.summarizer.Generate(ctx, GenerateRequest{
		Prompt:      buildWebSearchPrompt(query.Text, now),
		Temperature: 0,
	})
	if err != nil {
		return TaskResult{}, &GenerationError{Stage: "summarize", Err: err}
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return TaskResult{}, errEmptyRetrieval
	}
	source, _ := registry.Register(knowledgeBaseReference, knowledgeBaseLabel, knowledgeBaseSnippet)
	return TaskResult{
		Text:    summary + " " + source.Token,
		Sources: []Source{source},
	}, nil
}

func usableResults(results []SearchResult, limit int) []SearchResult {
	out := make([]SearchResult, 0, len(results))
	seen := make(map[string]struct{}, len(results))
	for _, result := range results {
		link := strings.TrimSpace(result.URL)
		if _, err := validateResultURL(link); err != nil {
			continue
		}
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}
		result.URL = link
		out = append(out, result)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func containsSource(sources []Source, id int) bool {
	for _, source := range sources {
		if source.ID == id {
			return true
		}
	}
	return false
}
