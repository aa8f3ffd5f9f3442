package research

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerFinalizerExpandsAndDropsSources(t *testing.T) {
	registry := NewSourceRegistry()
	registry.Register("https://a.example", "A", "")
	registry.Register("https://b.example", "B", "")
	registry.Register("https://c.example", "C", "")

	var captured GenerateRequest
	generator := generatorFunc(func(_ context.Context, req GenerateRequest) (string, error) {
		captured = req
		return "Claim one [3]. Claim two [1]. Claim one again [3].", nil
	})

	answer, err := NewAnswerFinalizer(generator).Finalize(context.Background(), "topic", []string{"e1 [1]", "e2 [3]"}, registry.All())
	require.NoError(t, err)

	assert.Zero(t, captured.Temperature)
	assert.Nil(t, captured.Schema)
	assert.Contains(t, captured.Prompt, "e1 [1]\n---\n\ne2 [3]")
	assert.Equal(t, "Claim one https://c.example. Claim two https://a.example. Claim one again https://c.example.", answer.Text)
	require.Len(t, answer.ReferencedSources, 2)
	assert.Equal(t, "https://a.example", answer.ReferencedSources[0].Reference)
	assert.Equal(t, "https://c.example", answer.ReferencedSources[1].Reference)
}

func TestAnswerFinalizerFailureIsGenerationError(t *testing.T) {
	_, err := NewAnswerFinalizer(staticGenerator("", errors.New("timeout"))).Finalize(context.Background(), "topic", nil, nil)

	var generationErr *GenerationError
	require.ErrorAs(t, err, &generationErr)
	assert.Equal(t, "finalize", generationErr.Stage)

	_, err = NewAnswerFinalizer(staticGenerator("   ", nil)).Finalize(context.Background(), "topic", nil, nil)
	assert.Equal(t, KindGeneration, Kind(err))
}
