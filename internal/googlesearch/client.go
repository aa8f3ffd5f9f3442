package googlesearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"deepresearch/backend/internal/config"
	"deepresearch/backend/internal/research"
)

const (
	ProviderName = "google"
	// The Custom Search JSON API returns at most 10 results per call.
	maxResultCount = 10
)

var ErrNotConfigured = errors.New("google custom search requires GOOGLE_API_KEY and GOOGLE_CX")

type Client struct {
	service *customsearch.Service
	cx      string
}

func NewClient(ctx context.Context, cfg config.Config, opts ...option.ClientOption) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.GoogleAPIKey)
	cx := strings.TrimSpace(cfg.GoogleCX)
	if apiKey == "" || cx == "" {
		return nil, ErrNotConfigured
	}
	service, err := customsearch.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create custom search service: %w", err)
	}
	return &Client{service: service, cx: cx}, nil
}

func (c *Client) Name() string { return ProviderName }

func (c *Client) Search(ctx context.Context, query string, count int) ([]research.SearchResult, error) {
	trimmedQuery := strings.TrimSpace(query)
	if trimmedQuery == "" {
		return nil, nil
	}
	if count <= 0 || count > maxResultCount {
		count = maxResultCount
	}

	resp, err := c.service.Cse.List().Cx(c.cx).Q(trimmedQuery).Num(int64(count)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("google custom search: %w", err)
	}

	results := make([]research.SearchResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item == nil || strings.TrimSpace(item.Link) == "" {
			continue
		}
		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = item.Link
		}
		results = append(results, research.SearchResult{
			Title:   title,
			URL:     strings.TrimSpace(item.Link),
			Snippet: strings.TrimSpace(item.Snippet),
		})
	}
	return results, nil
}

func IsRateLimited(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests
}
