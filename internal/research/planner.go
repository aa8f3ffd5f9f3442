package research

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	plannerTemperature = 1.0
	maxFollowupQueries = 3
)

var searchQueryListSchema = &Schema{
	Name: "SearchQueryList",
	Fields: []SchemaField{
		{Name: "query", Type: FieldStringList, Description: "A list of search queries to be used for web research."},
		{Name: "rationale", Type: FieldString, Description: "A brief explanation of why these queries are relevant to the research topic."},
	},
}

type searchQueryList struct {
	Query     []string `json:"query"`
	Rationale string   `json:"rationale"`
}

// QueryPlanner turns a topic into search queries. It never fails: any
// generation problem yields a batch holding only the topic.
type QueryPlanner struct {
	generator TextGenerator
	logger    *zap.Logger
	now       func() time.Time
}

func NewQueryPlanner(generator TextGenerator, logger *zap.Logger) QueryPlanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return QueryPlanner{generator: generator, logger: logger, now: time.Now}
}

func (p QueryPlanner) InitialBatch(ctx context.Context, topic string, count int) []string {
	if count < 1 {
		count = 1
	}
	queries, err := p.plan(ctx, buildQueryWriterPrompt(topic, count, p.clock()))
	if err != nil {
		return p.fallback(topic, err)
	}
	if len(queries) > count {
		queries = queries[:count]
	}
	return queries
}

func (p QueryPlanner) FollowupBatch(ctx context.Context, topic string, evidence []string, gap string) []string {
	queries, err := p.plan(ctx, buildFollowupPrompt(topic, evidence, gap, p.clock()))
	if err != nil {
		return p.fallback(topic, err)
	}
	if len(queries) > maxFollowupQueries {
		queries = queries[:maxFollowupQueries]
	}
	return queries
}

func (p QueryPlanner) plan(ctx context.Context, prompt string) ([]string, error) {
	if p.generator == nil {
		return nil, &PlanningError{Err: errors.New("query generator unavailable")}
	}
	var parsed searchQueryList
	if err := generateStructured(ctx, p.generator, prompt, plannerTemperature, searchQueryListSchema, &parsed); err != nil {
		return nil, &PlanningError{Err: err}
	}
	queries := dedupeQueries(parsed.Query)
	if len(queries) == 0 {
		return nil, &PlanningError{Err: errors.New("planner returned no queries")}
	}
	return queries, nil
}

func (p QueryPlanner) fallback(topic string, err error) []string {
	logger := p.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Warn("query planning fell back to topic", zap.Error(err))
	return []string{topic}
}

func (p QueryPlanner) clock() time.Time {
	if p.now == nil {
		return time.Now()
	}
	return p.now()
}

func generateStructured(ctx context.Context, generator TextGenerator, prompt string, temperature float64, schema *Schema, out any) error {
	raw, err := generator.Generate(ctx, GenerateRequest{
		Prompt:      prompt,
		Temperature: temperature,
		Schema:      schema,
	})
	if err != nil {
		return err
	}
	jsonRaw := extractJSONBlock(raw)
	if jsonRaw == "" {
		return errors.New("response did not include json")
	}
	return json.NewDecoder(strings.NewReader(jsonRaw)).Decode(out)
}

func dedupeQueries(queries []string) []string {
	if len(queries) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(queries))
	out := make([]string, 0, len(queries))
	for _, query := range queries {
		normalized := strings.Join(strings.Fields(strings.TrimSpace(query)), " ")
		if normalized == "" {
			continue
		}
		key := strings.ToLower(normalized)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

func extractJSONBlock(raw string) string {
	value := strings.TrimSpace(raw)
	if strings.HasPrefix(value, "{") && strings.HasSuffix(value, "}") {
		return value
	}
	start := strings.Index(value, "{")
	end := strings.LastIndex(value, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return strings.TrimSpace(value[start : end+1])
}
