package serpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"deepresearch/backend/internal/config"
	"deepresearch/backend/internal/research"
)

const (
	ProviderName      = "serpapi"
	maxErrorBodyBytes = 8 * 1024
	maxResultCount    = 10
)

var ErrMissingAPIKey = errors.New("serpapi api key is not configured")

type APIError struct {
	StatusCode int
	Message    string
}

func (e APIError) Error() string {
	return fmt.Sprintf("serpapi returned %d: %s", e.StatusCode, e.Message)
}

func IsRateLimited(err error) bool {
	var apiErr APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type searchResponse struct {
	Error          string          `json:"error"`
	OrganicResults []organicResult `json:"organic_results"`
}

type organicResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
}

func NewClient(cfg config.Config, httpClient *http.Client) Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return Client{
		apiKey:     strings.TrimSpace(cfg.SerpAPIKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.SerpAPIBaseURL), "/"),
		httpClient: httpClient,
	}
}

func (c Client) Name() string { return ProviderName }

func (c Client) Configured() bool { return c.apiKey != "" }

func (c Client) Search(ctx context.Context, query string, count int) ([]research.SearchResult, error) {
	if !c.Configured() {
		return nil, ErrMissingAPIKey
	}
	trimmedQuery := strings.TrimSpace(query)
	if trimmedQuery == "" {
		return nil, nil
	}
	if count <= 0 || count > maxResultCount {
		count = maxResultCount
	}

	endpoint, err := url.Parse(c.baseURL + "/search.json")
	if err != nil {
		return nil, fmt.Errorf("parse serpapi endpoint: %w", err)
	}
	params := endpoint.Query()
	params.Set("engine", "google")
	params.Set("q", trimmedQuery)
	params.Set("num", strconv.Itoa(count))
	params.Set("api_key", c.apiKey)
	endpoint.RawQuery = params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build serpapi request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request serpapi: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read serpapi response: %w", err)
	}

	var parsed searchResponse
	decodeErr := json.Unmarshal(body, &parsed)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		message := strings.TrimSpace(parsed.Error)
		if message == "" {
			message = strings.TrimSpace(string(body[:min(len(body), maxErrorBodyBytes)]))
		}
		return nil, APIError{StatusCode: resp.StatusCode, Message: message}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode serpapi response: %w", decodeErr)
	}
	// SerpAPI reports "no results" as a 200 with an error field.
	if parsed.Error != "" && len(parsed.OrganicResults) == 0 {
		if strings.Contains(strings.ToLower(parsed.Error), "hasn't returned any results") {
			return nil, nil
		}
		return nil, APIError{StatusCode: resp.StatusCode, Message: parsed.Error}
	}

	results := make([]research.SearchResult, 0, len(parsed.OrganicResults))
	for _, item := range parsed.OrganicResults {
		link := strings.TrimSpace(item.Link)
		if link == "" {
			continue
		}
		results = append(results, research.SearchResult{
			Title:   strings.TrimSpace(item.Title),
			URL:     link,
			Snippet: strings.TrimSpace(item.Snippet),
		})
		if len(results) >= count {
			break
		}
	}
	return results, nil
}
