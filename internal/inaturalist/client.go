package inaturalist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"crittersync/internal/services"
)

// ErrNoMatch is returned when a search yields no taxon with the requested name.
var ErrNoMatch = errors.New("no matching taxon")

// Ancestor is one entry of a taxon's lineage, from kingdom downwards.
type Ancestor struct {
	ID                  int64  `json:"id"`
	Name                string `json:"name"`
	Rank                string `json:"rank"`
	PreferredCommonName string `json:"preferred_common_name"`
}

// Taxon is a single iNaturalist taxon record.
type Taxon struct {
	ID                  int64      `json:"id"`
	Name                string     `json:"name"`
	Rank                string     `json:"rank"`
	RankLevel           float64    `json:"rank_level"`
	PreferredCommonName string     `json:"preferred_common_name"`
	IconicTaxonName     string     `json:"iconic_taxon_name"`
	IsActive            bool       `json:"is_active"`
	MatchedTerm         string     `json:"matched_term"`
	AncestorIDs         []int64    `json:"ancestor_ids"`
	Ancestors           []Ancestor `json:"ancestors"`
}

// Response models the paginated taxa response.
type Response struct {
	TotalResults int     `json:"total_results"`
	Page         int     `json:"page"`
	PerPage      int     `json:"per_page"`
	Results      []Taxon `json:"results"`
}

// Searcher defines the taxa operations used by the taxonomy resolver.
type Searcher interface {
	SearchTaxa(ctx context.Context, query string) (*Response, error)
	GetTaxon(ctx context.Context, id int64) (*Taxon, error)
	LookupByScientificName(ctx context.Context, name string) (*Taxon, error)
}

// Client provides access to the iNaturalist API.
type Client struct {
	baseURL    string
	locale     string
	perPage    int
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ Searcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithRateLimit caps outgoing requests. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New creates an iNaturalist client. The default limiter allows one request per second.
func New(baseURL, locale string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("inaturalist base url required")
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		locale:     strings.TrimSpace(locale),
		perPage:    30,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// SearchTaxa performs a free-text taxa search. Inactive taxa are included so
// outdated names can still be matched.
func (c *Client) SearchTaxa(ctx context.Context, query string) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("per_page", strconv.Itoa(c.perPage))

	var payload Response
	if err := c.get(ctx, "/taxa", params, "taxa search", &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetTaxon fetches a taxon by ID, including its ancestors.
func (c *Client) GetTaxon(ctx context.Context, id int64) (*Taxon, error) {
	if id <= 0 {
		return nil, errors.New("taxon id must be positive")
	}
	var payload Response
	if err := c.get(ctx, fmt.Sprintf("/taxa/%d", id), url.Values{}, "taxon fetch", &payload); err != nil {
		return nil, err
	}
	if len(payload.Results) == 0 {
		return nil, fmt.Errorf("taxon %d: %w", id, ErrNoMatch)
	}
	taxon := payload.Results[0]
	return &taxon, nil
}

// LookupByScientificName searches for name and returns the taxon whose name
// matches it case-insensitively, with ancestors populated. Active taxa win over
// inactive ones; failing an exact name, an active taxon whose matched term is
// name (a synonym) is used. ErrNoMatch is returned when nothing matches.
func (c *Client) LookupByScientificName(ctx context.Context, name string) (*Taxon, error) {
	resp, err := c.SearchTaxa(ctx, name)
	if err != nil {
		return nil, err
	}
	match, ok := pickExact(resp.Results, name)
	if !ok {
		return nil, fmt.Errorf("%q: %w", strings.TrimSpace(name), ErrNoMatch)
	}
	if len(match.Ancestors) > 0 {
		return &match, nil
	}
	detailed, err := c.GetTaxon(ctx, match.ID)
	if err != nil {
		return nil, err
	}
	return detailed, nil
}

func pickExact(results []Taxon, name string) (Taxon, bool) {
	want := normalizeName(name)
	var inactive, synonym *Taxon
	for i := range results {
		candidate := &results[i]
		switch {
		case normalizeName(candidate.Name) == want:
			if candidate.IsActive {
				return *candidate, true
			}
			if inactive == nil {
				inactive = candidate
			}
		case candidate.IsActive && synonym == nil && normalizeName(candidate.MatchedTerm) == want:
			synonym = candidate
		}
	}
	if inactive != nil {
		return *inactive, true
	}
	if synonym != nil {
		return *synonym, true
	}
	return Taxon{}, false
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func (c *Client) get(ctx context.Context, path string, params url.Values, label string, out any) error {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse inaturalist url: %w", err)
	}
	if c.locale != "" {
		params.Set("locale", c.locale)
	}
	endpoint.RawQuery = params.Encode()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return services.Wrap(services.ErrTimeout, "inaturalist", label, fmt.Sprintf("latency=%v", latency), err)
		}
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail := fmt.Sprintf("inaturalist %s returned %d (latency=%v)", label, resp.StatusCode, latency)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return services.Wrap(services.ErrTransient, "inaturalist", label, detail, nil)
		}
		return errors.New(detail)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", label, err)
	}
	return nil
}
