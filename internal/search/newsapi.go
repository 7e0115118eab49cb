package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/mindclone/mindclone/internal/config"
)

const newsAPIBaseURL = "https://newsapi.org/v2/everything"

// NewsAPIClient queries the NewsAPI "everything" endpoint.
type NewsAPIClient struct {
	apiKey   string
	baseURL  string
	pageSize int
	lookback time.Duration
	client   *http.Client
}

// NewNewsAPIClient creates a NewsAPI client, reading the API key from the
// environment variable named in the config.
func NewNewsAPIClient(cfg config.NewsAPIConfig) *NewsAPIClient {
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 25
	}
	return &NewsAPIClient{
		apiKey:   os.Getenv(cfg.APIKeyEnv),
		baseURL:  newsAPIBaseURL,
		pageSize: pageSize,
		lookback: time.Duration(cfg.LookbackHours) * time.Hour,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// IsConfigured reports whether an API key is available.
func (c *NewsAPIClient) IsConfigured() bool {
	return c.apiKey != ""
}

type newsAPIResponse struct {
	Status   string           `json:"status"`
	Articles []newsAPIArticle `json:"articles"`
	Message  string           `json:"message"`
}

type newsAPIArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
}

// Search runs the query against NewsAPI, restricted to the lookback
// window. NewsAPI marks withdrawn stories with a "[Removed]" title; those
// are dropped.
func (c *NewsAPIClient) Search(ctx context.Context, query string) ([]Article, error) {
	if query == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("from", time.Now().UTC().Add(-c.lookback).Format("2006-01-02"))
	params.Set("language", "en")
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", strconv.Itoa(c.pageSize))

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building newsapi request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying newsapi: %w", err)
	}
	defer resp.Body.Close()

	var decoded newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding newsapi response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("newsapi returned %d: %s", resp.StatusCode, decoded.Message)
	}

	var articles []Article
	for _, a := range decoded.Articles {
		if a.Title == "" || a.Title == "[Removed]" || a.URL == "" {
			continue
		}
		articles = append(articles, Article{
			URL:         a.URL,
			Title:       a.Title,
			Summary:     a.Description,
			Source:      a.Source.Name,
			PublishedAt: parseNewsAPITime(a.PublishedAt),
		})
	}
	return articles, nil
}

func parseNewsAPITime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
