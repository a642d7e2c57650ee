package google

import (
	"context"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://www.googleapis.com/customsearch/v1"

// Client performs Google Programmable Search (Custom Search JSON API) queries.
type Client interface {
	Search(ctx context.Context, query string, num int) (*SearchResponse, error)
}

// SearchResponse is the response from the Custom Search JSON API.
type SearchResponse struct {
	Items []Item `json:"items"`
}

// Item is a single search hit.
type Item struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Evidence flattens the hits into "title - snippet - link" lines.
func (r *SearchResponse) Evidence() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Items))
	for _, it := range r.Items {
		out = append(out, it.Title+" - "+it.Snippet+" - "+it.Link)
	}
	return out
}

// Option configures the client.
type Option func(*restyClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *restyClient) {
		c.baseURL = url
	}
}

// WithTimeout overrides the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *restyClient) {
		c.http.SetTimeout(d)
	}
}

type restyClient struct {
	apiKey  string
	cseID   string
	baseURL string
	http    *resty.Client
}

// NewClient creates a Custom Search client for the given engine.
func NewClient(apiKey, cseID string, opts ...Option) Client {
	c := &restyClient{
		apiKey:  apiKey,
		cseID:   cseID,
		baseURL: defaultBaseURL,
		http: resty.New().
			SetTimeout(10*time.Second).
			SetHeader("Accept", "application/json"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *restyClient) Search(ctx context.Context, query string, num int) (*SearchResponse, error) {
	if num <= 0 || num > 10 {
		num = 10
	}

	var result SearchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key": c.apiKey,
			"cx":  c.cseID,
			"q":   query,
			"num": strconv.Itoa(num),
		}).
		SetResult(&result).
		Get(c.baseURL)
	if err != nil {
		return nil, eris.Wrap(err, "google: send request")
	}

	if resp.IsError() {
		return nil, eris.Errorf("google: unexpected status %d: %s", resp.StatusCode(), resp.String())
	}

	return &result, nil
}
