package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/collab-graph-service/internal/catalog"
	"github.com/helixir/collab-graph-service/internal/domain"
	"github.com/helixir/collab-graph-service/internal/observability"
)

const (
	// DefaultBaseURL is the default OpenAlex API base URL.
	DefaultBaseURL = "https://api.openalex.org"

	// MaxPerPage is the largest page size OpenAlex accepts.
	MaxPerPage = 200

	sourceName = "OpenAlex"

	workIDPrefix = "https://openalex.org/"

	endpointWorks        = "works"
	endpointInstitutions = "institutions"
)

// Config holds configuration for the OpenAlex client.
type Config struct {
	// BaseURL is the OpenAlex API base URL.
	// Defaults to https://api.openalex.org
	BaseURL string

	// Email is the contact email for the polite pool. When set it is sent as
	// the mailto query parameter and in the User-Agent.
	// See: https://docs.openalex.org/how-to-use-the-api/rate-limits-and-authentication
	Email string

	// Timeout is the request timeout.
	// Defaults to 30 seconds.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = catalog.DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = catalog.DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = catalog.DefaultBurstSize
	}
}

// userAgent builds the User-Agent string, with a mailto comment when an email is set.
func (c *Config) userAgent() string {
	if c.Email == "" {
		return catalog.DefaultUserAgent
	}
	return catalog.DefaultUserAgent + " (mailto:" + c.Email + ")"
}

// Client talks to the OpenAlex /works and /institutions endpoints.
type Client struct {
	config     Config
	httpClient *catalog.HTTPClient
	metrics    *observability.Metrics
}

// Ensure Client implements the catalog interfaces.
var (
	_ catalog.WorkPager           = (*Client)(nil)
	_ catalog.InstitutionSearcher = (*Client)(nil)
)

// New creates a new OpenAlex client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := catalog.NewHTTPClient(catalog.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		UserAgent: cfg.userAgent(),
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new OpenAlex client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *catalog.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// WithMetrics attaches request metrics to the client and returns it.
func (c *Client) WithMetrics(m *observability.Metrics) *Client {
	c.metrics = m
	return c
}

// FetchWorksPage retrieves one page of works affiliated with q.InstitutionID
// published on or after q.FromDate. Works come back in server order with
// institution IDs as the catalog returned them.
func (c *Client) FetchWorksPage(ctx context.Context, q catalog.WorksQuery) (*catalog.WorksPage, error) {
	worksURL, err := c.buildWorksURL(q)
	if err != nil {
		return nil, fmt.Errorf("building works URL: %w", err)
	}

	var worksResp WorksResponse
	if err := c.getJSON(ctx, endpointWorks, worksURL, &worksResp); err != nil {
		return nil, err
	}

	works := make([]domain.Work, 0, len(worksResp.Results))
	for i := range worksResp.Results {
		works = append(works, toDomainWork(&worksResp.Results[i]))
	}

	return &catalog.WorksPage{
		Works:      works,
		TotalCount: worksResp.Meta.Count,
	}, nil
}

// SearchInstitutions searches institutions by free-text name and returns up to
// limit candidates in relevance order. No results is an empty slice, not an error.
func (c *Client) SearchInstitutions(ctx context.Context, name string, limit int) ([]catalog.InstitutionMatch, error) {
	searchURL, err := c.buildInstitutionsURL(name, limit)
	if err != nil {
		return nil, fmt.Errorf("building institutions URL: %w", err)
	}

	var instResp InstitutionsResponse
	if err := c.getJSON(ctx, endpointInstitutions, searchURL, &instResp); err != nil {
		return nil, err
	}

	matches := make([]catalog.InstitutionMatch, 0, len(instResp.Results))
	for _, inst := range instResp.Results {
		matches = append(matches, catalog.InstitutionMatch{
			ID:          strings.TrimSpace(inst.ID),
			DisplayName: inst.DisplayName,
			CountryCode: inst.CountryCode,
			Type:        inst.Type,
		})
	}
	return matches, nil
}

// Name returns the human-readable name for this catalog.
func (c *Client) Name() string {
	return sourceName
}

// getJSON performs a single GET and decodes a 200 response into out.
// Every other status is returned as a domain.ExternalAPIError.
func (c *Client) getJSON(ctx context.Context, endpoint, rawURL string, out any) error {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure(endpoint, "transport")
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.recordFailure(endpoint, "http_"+strconv.Itoa(resp.StatusCode))
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return domain.NewExternalAPIError(
			sourceName,
			resp.StatusCode,
			strings.TrimSpace(string(body)),
			nil,
		)
	}

	// Limit body to 10MB to prevent resource exhaustion.
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(out); err != nil {
		c.recordFailure(endpoint, "decode")
		return fmt.Errorf("decoding response: %w", err)
	}

	if c.metrics != nil {
		c.metrics.RecordCatalogRequest(endpoint, time.Since(start).Seconds())
	}
	return nil
}

func (c *Client) recordFailure(endpoint, errorType string) {
	if c.metrics != nil {
		c.metrics.RecordCatalogRequestFailed(endpoint, errorType)
	}
}

// buildWorksURL constructs the /works list URL:
// filter=institutions.id:<id>,from_publication_date:<date>&per-page=N&page=P
func (c *Client) buildWorksURL(q catalog.WorksQuery) (string, error) {
	institutionID := domain.NormalizeInstitutionID(q.InstitutionID)
	if institutionID == "" {
		return "", domain.NewValidationError("institution_id", "must not be empty")
	}
	if q.Page < 1 {
		return "", domain.NewValidationError("page", "must be 1 or greater")
	}

	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = strings.TrimSuffix(baseURL.Path, "/") + "/works"

	// The filter takes the short form.
	filters := []string{"institutions.id:" + institutionID}
	if q.FromDate != "" {
		filters = append(filters, "from_publication_date:"+q.FromDate)
	}

	query := url.Values{}
	query.Set("filter", strings.Join(filters, ","))
	query.Set("per-page", strconv.Itoa(clampPerPage(q.PerPage)))
	query.Set("page", strconv.Itoa(q.Page))
	if c.config.Email != "" {
		query.Set("mailto", c.config.Email)
	}

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// buildInstitutionsURL constructs the /institutions search URL.
func (c *Client) buildInstitutionsURL(name string, limit int) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = strings.TrimSuffix(baseURL.Path, "/") + "/institutions"

	query := url.Values{}
	query.Set("search", name)
	query.Set("per-page", strconv.Itoa(clampPerPage(limit)))
	if c.config.Email != "" {
		query.Set("mailto", c.config.Email)
	}

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

func clampPerPage(n int) int {
	switch {
	case n <= 0:
		return 25
	case n > MaxPerPage:
		return MaxPerPage
	default:
		return n
	}
}

// toDomainWork keeps the authorship structure. Institution IDs stay in the
// catalog's form.
func toDomainWork(w *Work) domain.Work {
	out := domain.Work{
		ID:          strings.TrimPrefix(w.ID, workIDPrefix),
		Authorships: make([]domain.Authorship, 0, len(w.Authorships)),
	}
	for _, a := range w.Authorships {
		refs := make([]domain.InstitutionRef, 0, len(a.Institutions))
		for _, inst := range a.Institutions {
			refs = append(refs, domain.InstitutionRef{
				ID:          strings.TrimSpace(inst.ID),
				DisplayName: inst.DisplayName,
			})
		}
		out.Authorships = append(out.Authorships, domain.Authorship{Institutions: refs})
	}
	return out
}
