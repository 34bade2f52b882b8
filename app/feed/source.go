package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

var (
	ErrUnavailable = errors.New("feed unavailable")
	ErrMalformed   = errors.New("feed malformed")
)

// Source downloads and parses the configured feed.
type Source struct {
	feedConfig *Config
	httpClient *http.Client
	parser     *Parser
	userAgent  string
}

func NewSource(feedConfig *Config, httpClient *http.Client, parser *Parser, userAgent string) *Source {
	return &Source{
		feedConfig: feedConfig,
		httpClient: httpClient,
		parser:     parser,
		userAgent:  userAgent,
	}
}

// Fetch returns the candidate items in feed order. Transport failures wrap
// ErrUnavailable and parse failures wrap ErrMalformed.
func (s *Source) Fetch(ctx context.Context) ([]Item, error) {
	data, err := s.fetchFeed(ctx, s.feedConfig.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	metadata, items, err := s.parser.Run(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	slog.Debug("Feed fetched", "url", s.feedConfig.URL, "title", metadata.Title, "items", len(items))
	return items, nil
}

func (s *Source) fetchFeed(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.feedConfig.Settings.GetTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
