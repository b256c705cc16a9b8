package ingestion

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
	"time"
)

// ErrUnauthorized is returned when the catalog API rejects the credentials (401/403).
var ErrUnauthorized = errors.New("breed catalog rejected credentials")

// maxPages bounds pagination against an API that ignores the page parameter.
const maxPages = 1000

// StatusError is a non-2xx response other than an authentication failure.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("breed catalog returned status %d for %s: %s", e.StatusCode, e.URL, e.Body)
}

// BreedClient fetches the full breed collection as opaque JSON records.
type BreedClient interface {
	FetchBreeds(ctx context.Context) ([]json.RawMessage, error)
}

// HTTPBreedClient is an implementation of BreedClient using HTTP.
type HTTPBreedClient struct {
	BaseURL    string
	Endpoint   string
	APIKey     string // sent as x-api-key when set
	PageSize   int    // 0 fetches the collection in one request
	HttpClient *http.Client
}

// NewHTTPBreedClient creates a new client for the breed catalog.
func NewHTTPBreedClient(baseURL, endpoint, apiKey string, pageSize int, timeout time.Duration) *HTTPBreedClient {
	return &HTTPBreedClient{
		BaseURL:    baseURL,
		Endpoint:   endpoint,
		APIKey:     apiKey,
		PageSize:   pageSize,
		HttpClient: &http.Client{Timeout: timeout},
	}
}

// URL returns the collection URL without paging parameters.
func (c *HTTPBreedClient) URL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(c.Endpoint, "/")
}

// FetchBreeds returns every record of the collection, in API order.
func (c *HTTPBreedClient) FetchBreeds(ctx context.Context) ([]json.RawMessage, error) {
	if c.PageSize <= 0 {
		return c.fetchPage(ctx, c.URL())
	}

	var all []json.RawMessage
	for page := 0; page < maxPages; page++ {
		pageURL, err := c.pageURL(page)
		if err != nil {
			return nil, err
		}
		records, err := c.fetchPage(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		all = append(all, records...)
		if len(records) < c.PageSize {
			return all, nil
		}
	}
	return nil, fmt.Errorf("breed catalog pagination did not terminate after %d pages", maxPages)
}

func (c *HTTPBreedClient) pageURL(page int) (string, error) {
	u, err := url.Parse(c.URL())
	if err != nil {
		return "", fmt.Errorf("invalid breed catalog URL %s: %w", c.URL(), err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(c.PageSize))
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *HTTPBreedClient) fetchPage(ctx context.Context, target string) ([]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request to breed catalog: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("x-api-key", c.APIKey)
	}

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call breed catalog at %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: status %d for %s", ErrUnauthorized, resp.StatusCode, target)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{URL: target, StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var records []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode breed catalog response from %s as a JSON array: %w", target, err)
	}
	return records, nil
}
