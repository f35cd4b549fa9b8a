package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/schemaspectre/internal/models"
	"github.com/ppiankov/schemaspectre/pkg/config"
)

// GuidancePath is the collaborator endpoint that produces rationale and SQL
const GuidancePath = "/v1/recommendations/guidance"

// maxRetryAfter caps the Retry-After hint a server can impose
const maxRetryAfter = 30 * time.Second

// Client calls the rationale/SQL generation service. Each call is a single
// attempt; callers own timeouts and retries.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type guidanceResponse struct {
	Rationale string `json:"rationale"`
	SQL       string `json:"sql"`
}

// New builds a client from the collaborator settings.
func New(cfg config.Collaborator) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("generator base URL is empty")
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, fmt.Errorf("generator base URL %q must use http or https", base)
	}
	return &Client{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{},
	}, nil
}

// Generate asks the collaborator for guidance on one recommendation.
func (c *Client) Generate(ctx context.Context, gc models.GenerationContext) (models.Guidance, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(gc); err != nil {
		return models.Guidance{}, fmt.Errorf("failed to encode generation context: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+GuidancePath, &buf)
	if err != nil {
		return models.Guidance{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.Guidance{}, err
	}
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
	if readErr != nil {
		return models.Guidance{}, fmt.Errorf("failed to read generator response: %w", readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.Guidance{}, &HTTPError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
			RetryAfter: retryAfter(resp),
		}
	}

	var out guidanceResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return models.Guidance{}, fmt.Errorf("generator decode error: %w", err)
	}
	if strings.TrimSpace(out.Rationale) == "" {
		return models.Guidance{}, errors.New("generator returned an empty rationale")
	}
	return models.Guidance{Rationale: out.Rationale, SQL: out.SQL, Source: models.GuidanceGenerated}, nil
}

// HTTPError is a non-2xx response from the collaborator
type HTTPError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("generator http %d: %s", e.StatusCode, e.Body)
}

// HTTPStatusCode returns the response status.
func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// IsRetryableStatus reports whether a status code is worth another attempt.
func IsRetryableStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

// IsRetryable reports whether err is a transient collaborator failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return IsRetryableStatus(httpErr.StatusCode)
	}
	return false
}

// RetryAfterHint returns the server's requested delay, or 0.
func RetryAfterHint(err error) time.Duration {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.RetryAfter
	}
	return 0
}

func retryAfter(resp *http.Response) time.Duration {
	ra := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if ra == "" {
		return 0
	}
	secs, err := strconv.Atoi(ra)
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	return d
}
