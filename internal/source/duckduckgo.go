package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/ironsheep/yail-server/internal/errors"
	"github.com/ironsheep/yail-server/internal/logger"
)

const (
	defaultDuckDuckGoURL = "https://duckduckgo.com"
	// DefaultSearchTimeout bounds a whole search, token and results included.
	DefaultSearchTimeout = 30 * time.Second
	// DefaultMaxResults caps the number of URLs one search returns.
	DefaultMaxResults = 100
)

var vqdPattern = regexp.MustCompile(`vqd=["']?([0-9-]+)`)

// DuckDuckGoSearcher finds images with DuckDuckGo's image search.
//
// A search is two requests: the HTML search page yields a vqd token, which
// then authorizes the i.js JSON endpoint that lists the results.
type DuckDuckGoSearcher struct {
	BaseURL    string
	Client     *http.Client
	Timeout    time.Duration
	MaxResults int
}

type ddgResults struct {
	Results []struct {
		Image string `json:"image"`
	} `json:"results"`
	Next string `json:"next"`
}

// NewDuckDuckGoSearcher returns a searcher with the default limits.
func NewDuckDuckGoSearcher() *DuckDuckGoSearcher {
	return &DuckDuckGoSearcher{
		BaseURL:    defaultDuckDuckGoURL,
		Client:     &http.Client{},
		Timeout:    DefaultSearchTimeout,
		MaxResults: DefaultMaxResults,
	}
}

// Search returns image URLs for terms. An empty result is reported as
// source.not_available.
func (s *DuckDuckGoSearcher) Search(ctx context.Context, terms string) ([]string, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	token, err := s.token(ctx, terms)
	if err != nil {
		return nil, err
	}

	limit := s.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}

	var urls []string
	next := s.resultsPath(terms, token)
	for next != "" && len(urls) < limit {
		page, err := s.page(ctx, next)
		if err != nil {
			if len(urls) > 0 {
				break
			}
			return nil, err
		}
		for _, r := range page.Results {
			if r.Image != "" && len(urls) < limit {
				urls = append(urls, r.Image)
			}
		}
		next = ""
		if page.Next != "" {
			next = "/" + strings.TrimPrefix(page.Next, "/") + "&vqd=" + url.QueryEscape(token)
		}
	}

	logger.Info("image search finished", "terms", terms, "results", len(urls))
	if len(urls) == 0 {
		return nil, apperrors.NotAvailable("no images found")
	}
	return urls, nil
}

func (s *DuckDuckGoSearcher) token(ctx context.Context, terms string) (string, error) {
	q := url.Values{"q": {terms}, "iax": {"images"}, "ia": {"images"}}
	body, err := s.get(ctx, "/?"+q.Encode())
	if err != nil {
		return "", err
	}
	m := vqdPattern.FindSubmatch(body)
	if m == nil {
		return "", apperrors.New(apperrors.CodeSourceUpstream, "image search returned no search token")
	}
	return string(m[1]), nil
}

func (s *DuckDuckGoSearcher) resultsPath(terms, token string) string {
	q := url.Values{
		"l":   {"us-en"},
		"o":   {"json"},
		"q":   {terms},
		"vqd": {token},
		"f":   {",,,,,"},
		"p":   {"1"},
	}
	return "/i.js?" + q.Encode()
}

func (s *DuckDuckGoSearcher) page(ctx context.Context, path string) (*ddgResults, error) {
	body, err := s.get(ctx, path)
	if err != nil {
		return nil, err
	}
	var out ddgResults
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeSourceUpstream, "image search returned malformed JSON", err)
	}
	return &out, nil
}

func (s *DuckDuckGoSearcher) get(ctx context.Context, path string) ([]byte, error) {
	base := strings.TrimRight(s.BaseURL, "/")
	if base == "" {
		base = defaultDuckDuckGoURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", base+"/")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, apperrors.Upstream("image search", unwrapURLError(ctx, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= badStatus {
		return nil, apperrors.Wrap(apperrors.CodeSourceUpstream, "image search failed", fmt.Errorf("HTTP %d", resp.StatusCode))
	}
	body, err := readLimited(resp.Body, 4<<20)
	if err != nil {
		return nil, apperrors.Upstream("image search", err)
	}
	return body, nil
}
