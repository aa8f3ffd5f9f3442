package openaicompat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"deepresearch/backend/internal/metrics"
	"deepresearch/backend/internal/research"
)

const maxErrorBodyBytes = 8 * 1024

var ErrMissingAPIKey = errors.New("llm api key is not configured")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

type StreamRequest struct {
	Model          string
	Messages       []Message
	Temperature    float64
	ResponseFormat *ResponseFormat
}

type streamAPIRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
	Stream         bool            `json:"stream"`
	StreamOptions  *streamOptions  `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type streamAPIResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Endpoint names one OpenAI-compatible chat completions API.
type Endpoint struct {
	Provider string
	APIKey   string
	BaseURL  string
}

type Client struct {
	provider   string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(endpoint Endpoint, httpClient *http.Client) Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	provider := strings.TrimSpace(endpoint.Provider)
	if provider == "" {
		provider = "openai"
	}
	return Client{
		provider:   provider,
		apiKey:     strings.TrimSpace(endpoint.APIKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(endpoint.BaseURL), "/"),
		httpClient: httpClient,
	}
}

func (c Client) Provider() string { return c.provider }

func (c Client) StreamChatCompletion(
	ctx context.Context,
	req StreamRequest,
	onDelta func(string) error,
	onUsage func(Usage) error,
) error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}
	if strings.TrimSpace(req.Model) == "" {
		return errors.New("model is required")
	}
	if len(req.Messages) == 0 {
		return errors.New("messages are required")
	}

	payload, err := json.Marshal(streamAPIRequest{
		Model:          strings.TrimSpace(req.Model),
		Messages:       req.Messages,
		Temperature:    req.Temperature,
		ResponseFormat: req.ResponseFormat,
		Stream:         true,
		StreamOptions: &streamOptions{
			IncludeUsage: true,
		},
	})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", c.provider, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", c.provider, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request %s: %w", c.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &StatusError{
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") || !strings.HasPrefix(line, "data:") {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		if payload == "[DONE]" {
			return nil
		}

		var parsed streamAPIResponse
		if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
			continue
		}

		if parsed.Usage != nil && onUsage != nil {
			if err := onUsage(Usage{
				PromptTokens:     parsed.Usage.PromptTokens,
				CompletionTokens: parsed.Usage.CompletionTokens,
				TotalTokens:      parsed.Usage.TotalTokens,
			}); err != nil {
				return err
			}
		}

		if parsed.Error != nil && strings.TrimSpace(parsed.Error.Message) != "" {
			return errors.New(strings.TrimSpace(parsed.Error.Message))
		}

		for _, choice := range parsed.Choices {
			delta := choice.Delta.Content
			if delta == "" || onDelta == nil {
				continue
			}
			if err := onDelta(delta); err != nil {
				return err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s stream: %w", c.provider, err)
	}
	return nil
}

// StatusError is a non-2xx answer from the upstream API.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Retryable reports whether a later attempt could succeed.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Generator adapts a Client and model to research.TextGenerator.
type Generator struct {
	client Client
	model  string
}

func NewGenerator(client Client, model string) Generator {
	return Generator{client: client, model: strings.TrimSpace(model)}
}

func (g Generator) Generate(ctx context.Context, req research.GenerateRequest) (string, error) {
	prompt := req.Prompt
	var format *ResponseFormat
	if req.Schema != nil {
		prompt = prompt + "\n\n" + schemaInstructions(*req.Schema)
		format = &ResponseFormat{Type: "json_object"}
	}

	var out strings.Builder
	startedAt := time.Now()
	err := g.client.StreamChatCompletion(ctx, StreamRequest{
		Model:          g.model,
		Messages:       []Message{{Role: "user", Content: prompt}},
		Temperature:    req.Temperature,
		ResponseFormat: format,
	}, func(delta string) error {
		out.WriteString(delta)
		return nil
	}, nil)
	metrics.RecordLLMCall(g.client.provider, g.model, err, time.Since(startedAt))
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

func schemaInstructions(schema research.Schema) string {
	var b strings.Builder
	b.WriteString("Respond with a single JSON object and nothing else. It must contain exactly these keys:\n")
	for _, field := range schema.Fields {
		b.WriteString("- \"")
		b.WriteString(field.Name)
		b.WriteString("\" (")
		b.WriteString(jsonTypeName(field.Type))
		b.WriteString(")")
		if field.Description != "" {
			b.WriteString(": ")
			b.WriteString(field.Description)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func jsonTypeName(fieldType research.FieldType) string {
	switch fieldType {
	case research.FieldBoolean:
		return "boolean"
	case research.FieldStringList:
		return "array of strings"
	default:
		return "string"
	}
}
