package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"deepresearch/backend/internal/research"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(context.Background(), "  ")
	require.True(t, errors.Is(err, ErrMissingAPIKey))
}

func TestResponseSchemaMarksEveryFieldRequired(t *testing.T) {
	schema := responseSchema(research.Schema{
		Name: "reflection",
		Fields: []research.SchemaField{
			{Name: "is_sufficient", Type: research.FieldBoolean},
			{Name: "knowledge_gap", Type: research.FieldString, Description: "What is missing"},
			{Name: "follow_up_queries", Type: research.FieldStringList},
		},
	})

	assert.Equal(t, genai.TypeObject, schema.Type)
	assert.Equal(t, []string{"is_sufficient", "knowledge_gap", "follow_up_queries"}, schema.Required)
	assert.Equal(t, genai.TypeBoolean, schema.Properties["is_sufficient"].Type)
	assert.Equal(t, "What is missing", schema.Properties["knowledge_gap"].Description)
	require.NotNil(t, schema.Properties["follow_up_queries"].Items)
	assert.Equal(t, genai.TypeArray, schema.Properties["follow_up_queries"].Type)
	assert.Equal(t, genai.TypeString, schema.Properties["follow_up_queries"].Items.Type)
}

func TestGroundedAnswerMapsChunksAndSupports(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText("Go 1.24 shipped in February.", genai.RoleModel),
			GroundingMetadata: &genai.GroundingMetadata{
				GroundingChunks: []*genai.GroundingChunk{
					{Web: &genai.GroundingChunkWeb{URI: "https://go.dev/blog/go1.24", Title: "go.dev"}},
					nil,
				},
				GroundingSupports: []*genai.GroundingSupport{
					{Segment: &genai.Segment{StartIndex: 0, EndIndex: 28}, GroundingChunkIndices: []int32{0, 1}},
					{Segment: nil, GroundingChunkIndices: []int32{0}},
					{Segment: &genai.Segment{EndIndex: 5}},
				},
			},
		}},
	}

	answer := groundedAnswer(resp)

	assert.Equal(t, "Go 1.24 shipped in February.", answer.Text)
	require.Len(t, answer.Chunks, 2)
	assert.Equal(t, "https://go.dev/blog/go1.24", answer.Chunks[0].Reference)
	assert.Equal(t, "go.dev", answer.Chunks[0].Label)
	assert.Empty(t, answer.Chunks[1].Reference)
	require.Len(t, answer.Supports, 1)
	assert.Equal(t, 28, answer.Supports[0].EndIndex)
	assert.Equal(t, []int{0, 1}, answer.Supports[0].ChunkIndices)
}

func TestGroundedAnswerWithoutMetadata(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText("plain", genai.RoleModel),
		}},
	}

	answer := groundedAnswer(resp)

	assert.Equal(t, "plain", answer.Text)
	assert.Empty(t, answer.Chunks)
	assert.Empty(t, answer.Supports)
	assert.Equal(t, research.GroundedAnswer{}, groundedAnswer(nil))
}
