package research

import (
	"context"
	"errors"
	"strings"
	"time"
)

const answerTemperature = 0

type Answer struct {
	Text              string
	ReferencedSources []Source
}

type AnswerFinalizer struct {
	generator TextGenerator
	now       func() time.Time
}

func NewAnswerFinalizer(generator TextGenerator) AnswerFinalizer {
	return AnswerFinalizer{generator: generator, now: time.Now}
}

// Finalize writes the answer and expands short tokens to canonical
// references. Sources whose token the model did not reproduce verbatim are
// left out of the answer.
func (f AnswerFinalizer) Finalize(ctx context.Context, topic string, evidence []string, sources []Source) (Answer, error) {
	if f.generator == nil {
		return Answer{}, &GenerationError{Stage: "finalize", Err: errors.New("answer generator unavailable")}
	}
	now := time.Now()
	if f.now != nil {
		now = f.now()
	}
	text, err := f.generator.Generate(ctx, GenerateRequest{
		Prompt:      buildAnswerPrompt(topic, evidence, now),
		Temperature: answerTemperature,
	})
	if err != nil {
		return Answer{}, &GenerationError{Stage: "finalize", Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Answer{}, &GenerationError{Stage: "finalize", Err: errors.New("empty answer")}
	}

	expanded, referenced := expandCitations(text, sources)
	return Answer{Text: expanded, ReferencedSources: referenced}, nil
}
