// Package tavily provides the web search tool backed by the Tavily search API.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/agentstream/core"
	"github.com/hupe1980/agentstream/internal/util"
	"github.com/hupe1980/agentstream/tool"
)

// ToolName is the name under which the search tool is offered to the model.
const ToolName = "tavily_search"

const defaultBaseURL = "https://api.tavily.com"

// Result is a single search hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Options configure the search tool.
type Options struct {
	APIKey      string
	BaseURL     string
	MaxResults  int
	SearchDepth string // basic or advanced
	Timeout     time.Duration
	// RateLimit bounds outbound requests per second; zero disables limiting.
	RateLimit  rate.Limit
	Burst      int
	HTTPClient *http.Client
}

// Search is a tool.QueryTool issuing Tavily searches.
type Search struct {
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
	schema  map[string]any
}

type searchArgs struct {
	Query string `json:"query" description:"The search query to look up on the web"`
}

// New creates a search tool.
func New(optFns ...func(o *Options)) *Search {
	opts := Options{
		BaseURL:     defaultBaseURL,
		MaxResults:  4,
		SearchDepth: "basic",
		Timeout:     30 * time.Second,
		RateLimit:   5,
		Burst:       1,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	s := &Search{opts: opts, client: client, schema: util.CreateSchema(searchArgs{})}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(opts.RateLimit, burst)
	}
	return s
}

// Name implements tool.Tool.
func (s *Search) Name() string { return ToolName }

// Description implements tool.Tool.
func (s *Search) Description() string {
	return "Search the web for current information. Returns the most relevant results with title, url and content."
}

// Parameters implements tool.Tool.
func (s *Search) Parameters() map[string]any { return s.schema }

// Call implements tool.Tool.
func (s *Search) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	query := s.Query(args)
	if strings.TrimSpace(query) == "" {
		return nil, tool.NewToolError(ToolName, "query must not be empty", tool.CodeValidation)
	}
	toolCtx.LogDebug("tavily.search", "query", query, "invocation_id", toolCtx.InvocationID())
	results, err := s.Search(toolCtx.Context(), query)
	if err != nil {
		return nil, tool.WrapError(ToolName, tool.CodeExecution, err)
	}
	return results, nil
}

// Query implements tool.QueryTool.
func (s *Search) Query(args map[string]any) string {
	q, _ := args["query"].(string)
	return q
}

// URLs implements tool.QueryTool. Entries without a url are skipped.
func (s *Search) URLs(result any) []string {
	var urls []string
	switch rs := result.(type) {
	case []Result:
		for _, r := range rs {
			if r.URL != "" {
				urls = append(urls, r.URL)
			}
		}
	case []any:
		for _, r := range rs {
			if m, ok := r.(map[string]any); ok {
				if u, ok := m["url"].(string); ok && u != "" {
					urls = append(urls, u)
				}
			}
		}
	}
	return urls
}

type searchRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth,omitempty"`
}

type searchResponse struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
}

// Search runs a query against the Tavily API.
func (s *Search) Search(ctx context.Context, query string) ([]Result, error) {
	if s.opts.APIKey == "" {
		return nil, fmt.Errorf("tavily: missing api key")
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(searchRequest{Query: query, MaxResults: s.opts.MaxResults, SearchDepth: s.opts.SearchDepth})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.opts.BaseURL, "/")+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.opts.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tavily: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("tavily: decode response: %w", err)
	}
	if out.Results == nil {
		out.Results = []Result{}
	}
	return out.Results, nil
}

var _ tool.QueryTool = (*Search)(nil)
