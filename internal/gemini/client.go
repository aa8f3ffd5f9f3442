package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"deepresearch/backend/internal/metrics"
	"deepresearch/backend/internal/research"
)

const ProviderName = "gemini"

var ErrMissingAPIKey = errors.New("gemini api key is not configured")

type Client struct {
	models *genai.Models
}

func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{models: client.Models}, nil
}

func (c *Client) generate(ctx context.Context, model, prompt string, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	startedAt := time.Now()
	resp, err := c.models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
	metrics.RecordLLMCall(ProviderName, model, err, time.Since(startedAt))
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}
	return resp, nil
}

// Generator implements research.TextGenerator for one model.
type Generator struct {
	client *Client
	model  string
}

func NewGenerator(client *Client, model string) Generator {
	return Generator{client: client, model: strings.TrimSpace(model)}
}

func (g Generator) Generate(ctx context.Context, req research.GenerateRequest) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = responseSchema(*req.Schema)
	}
	resp, err := g.client.generate(ctx, g.model, req.Prompt, cfg)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// GroundedSearcher answers a prompt with the Google Search tool enabled and
// reports the grounding metadata alongside the text.
type GroundedSearcher struct {
	client *Client
	model  string
}

func NewGroundedSearcher(client *Client, model string) GroundedSearcher {
	return GroundedSearcher{client: client, model: strings.TrimSpace(model)}
}

func (s GroundedSearcher) GroundedSearch(ctx context.Context, prompt string) (research.GroundedAnswer, error) {
	resp, err := s.client.generate(ctx, s.model, prompt, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
		Tools:       []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	})
	if err != nil {
		return research.GroundedAnswer{}, err
	}
	return groundedAnswer(resp), nil
}

func groundedAnswer(resp *genai.GenerateContentResponse) research.GroundedAnswer {
	if resp == nil {
		return research.GroundedAnswer{}
	}
	answer := research.GroundedAnswer{Text: resp.Text()}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].GroundingMetadata == nil {
		return answer
	}
	meta := resp.Candidates[0].GroundingMetadata

	answer.Chunks = make([]research.GroundingChunk, len(meta.GroundingChunks))
	for i, chunk := range meta.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		answer.Chunks[i] = research.GroundingChunk{
			Reference: chunk.Web.URI,
			Label:     chunk.Web.Title,
		}
	}

	for _, support := range meta.GroundingSupports {
		if support == nil || support.Segment == nil || len(support.GroundingChunkIndices) == 0 {
			continue
		}
		indices := make([]int, 0, len(support.GroundingChunkIndices))
		for _, idx := range support.GroundingChunkIndices {
			indices = append(indices, int(idx))
		}
		answer.Supports = append(answer.Supports, research.GroundingSupport{
			StartIndex:   int(support.Segment.StartIndex),
			EndIndex:     int(support.Segment.EndIndex),
			ChunkIndices: indices,
		})
	}
	return answer
}

func responseSchema(schema research.Schema) *genai.Schema {
	out := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(schema.Fields)),
		Required:   make([]string, 0, len(schema.Fields)),
	}
	for _, field := range schema.Fields {
		property := &genai.Schema{Description: field.Description}
		switch field.Type {
		case research.FieldBoolean:
			property.Type = genai.TypeBoolean
		case research.FieldStringList:
			property.Type = genai.TypeArray
			property.Items = &genai.Schema{Type: genai.TypeString}
		default:
			property.Type = genai.TypeString
		}
		out.Properties[field.Name] = property
		out.Required = append(out.Required, field.Name)
	}
	return out
}
