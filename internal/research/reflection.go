package research

import (
	"context"
	"errors"
	"strings"
)

const reflectionTemperature = 1.0

var reflectionSchema = &Schema{
	Name: "Reflection",
	Fields: []SchemaField{
		{Name: "is_sufficient", Type: FieldBoolean, Description: "Whether the provided summaries are sufficient to answer the user's question."},
		{Name: "knowledge_gap", Type: FieldString, Description: "A description of what information is missing or needs clarification."},
		{Name: "follow_up_queries", Type: FieldStringList, Description: "A list of follow-up queries to address the knowledge gap."},
	},
}

type Reflection struct {
	Sufficient      bool     `json:"is_sufficient"`
	KnowledgeGap    string   `json:"knowledge_gap"`
	FollowupQueries []string `json:"follow_up_queries"`
}

type ReflectionEngine struct {
	generator TextGenerator
}

func NewReflectionEngine(generator TextGenerator) ReflectionEngine {
	return ReflectionEngine{generator: generator}
}

func (e ReflectionEngine) Evaluate(ctx context.Context, topic string, evidence []string) (Reflection, error) {
	if e.generator == nil {
		return Reflection{}, &ReflectionError{Err: errors.New("reflection generator unavailable")}
	}
	var reflection Reflection
	if err := generateStructured(ctx, e.generator, buildReflectionPrompt(topic, evidence), reflectionTemperature, reflectionSchema, &reflection); err != nil {
		return Reflection{}, &ReflectionError{Err: err}
	}
	reflection.KnowledgeGap = strings.TrimSpace(reflection.KnowledgeGap)
	reflection.FollowupQueries = dedupeQueries(reflection.FollowupQueries)
	if reflection.Sufficient {
		reflection.FollowupQueries = nil
	}
	return reflection, nil
}
