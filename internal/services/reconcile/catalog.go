package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cinemarket/backoffice/internal/shared/domain/faults"
)

const maxBodySnippet = 220

// Snapshot is one movie as reported by the upstream catalog, normalized:
// a missing active flag defaults to true, a missing or non-positive
// version to 1.
type Snapshot struct {
	MovieID int64
	Title   string
	Price   float64
	Active  bool
	Version int64
}

// CatalogClient fetches the complete external catalog.
type CatalogClient interface {
	FetchAll(ctx context.Context) ([]Snapshot, error)
}

// HTTPCatalogClient pages through the catalog's read API. Any non-2xx
// status, non-JSON content type or empty/malformed body is a fatal fetch
// error; there is no partial-success handling.
type HTTPCatalogClient struct {
	client   *http.Client
	baseURL  string
	pageSize int
	logger   *slog.Logger
}

// NewHTTPCatalogClient creates a catalog client against baseURL.
func NewHTTPCatalogClient(client *http.Client, baseURL string, pageSize int, logger *slog.Logger) *HTTPCatalogClient {
	return &HTTPCatalogClient{
		client:   client,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		pageSize: pageSize,
		logger:   logger.With("component", "catalog-client"),
	}
}

type pageResponse struct {
	Items      []movieResponse `json:"items"`
	Total      int64           `json:"total"`
	TotalPages int             `json:"totalPages"`
	Page       int             `json:"page"`
	Size       int             `json:"size"`
}

type movieResponse struct {
	ID      *int64  `json:"id"`
	Title   string  `json:"title"`
	Price   float64 `json:"price"`
	Active  *bool   `json:"active"`
	Version *int64  `json:"version"`
}

// FetchAll pages until exhaustion. Duplicate ids across pages are merged
// last-writer-wins, preserving first-seen order.
func (c *HTTPCatalogClient) FetchAll(ctx context.Context) ([]Snapshot, error) {
	page := 0
	totalPages := 1

	var order []int64
	byID := make(map[int64]Snapshot)

	for page < totalPages {
		resp, err := c.fetchPage(ctx, page)
		if err != nil {
			return nil, err
		}
		if resp.Items == nil {
			return nil, faults.Transient("catalog page response has no items", nil)
		}

		for _, m := range resp.Items {
			if m.ID == nil {
				return nil, faults.Transient("catalog movie has no id", nil)
			}
			snap := Snapshot{
				MovieID: *m.ID,
				Title:   m.Title,
				Price:   m.Price,
				Active:  m.Active == nil || *m.Active,
				Version: 1,
			}
			if m.Version != nil && *m.Version > 0 {
				snap.Version = *m.Version
			}
			if _, seen := byID[snap.MovieID]; !seen {
				order = append(order, snap.MovieID)
			}
			byID[snap.MovieID] = snap
		}

		totalPages = resp.TotalPages
		if totalPages <= 0 {
			totalPages = 1
		}
		page++
	}

	snapshots := make([]Snapshot, 0, len(order))
	for _, id := range order {
		snapshots = append(snapshots, byID[id])
	}

	c.logger.Debug("fetched full catalog", "movies", len(snapshots), "pages", page)
	return snapshots, nil
}

func (c *HTTPCatalogClient) fetchPage(ctx context.Context, page int) (*pageResponse, error) {
	url := fmt.Sprintf("%s/movies?page=%d&size=%d&sort=id&asc=true", c.baseURL, page, c.pageSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, faults.Transient("failed to reach catalog", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, faults.Transient("failed to read catalog response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.fetchError("catalog responded with unexpected status", url, resp.StatusCode, body, nil)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "application/json") {
		return nil, c.fetchError("catalog responded with non-JSON content type "+contentType, url, resp.StatusCode, body, nil)
	}

	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, c.fetchError("catalog responded with an empty body", url, resp.StatusCode, body, nil)
	}

	var pr pageResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, c.fetchError("catalog responded with invalid JSON", url, resp.StatusCode, body, err)
	}

	return &pr, nil
}

func (c *HTTPCatalogClient) fetchError(msg, url string, status int, body []byte, err error) error {
	return faults.Transient(fmt.Sprintf("%s url=%s status=%d body=%s", msg, url, status, snippet(body)), err)
}

func snippet(body []byte) string {
	s := strings.Join(strings.Fields(string(body)), " ")
	if s == "" {
		return "<empty>"
	}
	if len(s) > maxBodySnippet {
		return s[:maxBodySnippet] + "..."
	}
	return s
}
