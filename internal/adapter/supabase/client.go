// Package supabase is a thin PostgREST client for the Supabase tables
// backing users and shelters. It talks to the REST endpoint directly with
// the server-side secret key.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/lankasat/lankasat-live/internal/config"
)

// Client issues requests against a Supabase project's REST endpoint.
type Client struct {
	restURL    string
	key        string
	httpClient *http.Client
}

// NewClient creates a Supabase REST client using the secret key for full
// server-side access.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		restURL:    strings.TrimRight(cfg.SupabaseURL, "/") + "/rest/v1",
		key:        cfg.SupabaseSecretKey,
		httpClient: &http.Client{Timeout: cfg.SupabaseTimeout},
	}
}

// Table starts a query builder for the named table.
func (c *Client) Table(name string) *Query {
	return &Query{client: c, table: name, selectCols: "*"}
}

// Query builds one PostgREST request. Filter methods return the receiver
// for chaining.
type Query struct {
	client     *Client
	table      string
	selectCols string
	filters    []string
	orderBy    string
	limitVal   *int
	offsetVal  *int
	withCount  bool
}

// Select sets the returned columns.
func (q *Query) Select(columns string) *Query {
	q.selectCols = columns
	return q
}

// WithCount requests an exact row count alongside the results.
func (q *Query) WithCount() *Query {
	q.withCount = true
	return q
}

func (q *Query) filter(column, op string, value any) *Query {
	q.filters = append(q.filters, fmt.Sprintf("%s=%s.%v", column, op, value))
	return q
}

// Eq filters by equality.
func (q *Query) Eq(column string, value any) *Query { return q.filter(column, "eq", value) }

// Neq filters by inequality.
func (q *Query) Neq(column string, value any) *Query { return q.filter(column, "neq", value) }

// Gte filters by greater-or-equal.
func (q *Query) Gte(column string, value any) *Query { return q.filter(column, "gte", value) }

// Lte filters by less-or-equal.
func (q *Query) Lte(column string, value any) *Query { return q.filter(column, "lte", value) }

// Is filters with IS, for null checks: Is("added_by", "null").
func (q *Query) Is(column, value string) *Query { return q.filter(column, "is", value) }

// IsNot filters with IS NOT.
func (q *Query) IsNot(column, value string) *Query { return q.filter(column, "not.is", value) }

// Order sorts the results by column.
func (q *Query) Order(column string, desc bool) *Query {
	dir := "asc"
	if desc {
		dir = "desc"
	}
	q.orderBy = column + "." + dir
	return q
}

// Limit caps the number of returned rows.
func (q *Query) Limit(n int) *Query {
	q.limitVal = &n
	return q
}

// Range selects rows [start, end] inclusive, for pagination.
func (q *Query) Range(start, end int) *Query {
	limit := end - start + 1
	q.limitVal = &limit
	q.offsetVal = &start
	return q
}

func (q *Query) buildQuery(includeSelect bool) string {
	params := make([]string, 0, len(q.filters)+4)
	if includeSelect {
		params = append(params, "select="+url.QueryEscape(q.selectCols))
	}
	params = append(params, q.filters...)
	if q.orderBy != "" {
		params = append(params, "order="+q.orderBy)
	}
	if q.limitVal != nil {
		params = append(params, "limit="+strconv.Itoa(*q.limitVal))
	}
	if q.offsetVal != nil {
		params = append(params, "offset="+strconv.Itoa(*q.offsetVal))
	}
	if len(params) == 0 {
		return ""
	}
	return "?" + strings.Join(params, "&")
}

// Execute runs the query as a GET and decodes the rows into out (a pointer
// to a slice). Returns the exact total count when WithCount was set,
// otherwise -1.
func (q *Query) Execute(ctx context.Context, out any) (int, error) {
	headers := map[string]string{}
	if q.withCount {
		headers["Prefer"] = "count=exact"
	}

	resp, err := q.client.do(ctx, http.MethodGet, q.client.restURL+"/"+q.table+q.buildQuery(true), nil, headers)
	if err != nil {
		return -1, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return -1, err
	}

	count := -1
	if q.withCount {
		if cr := resp.Header.Get("Content-Range"); strings.Contains(cr, "/") {
			if n, err := strconv.Atoi(cr[strings.LastIndex(cr, "/")+1:]); err == nil {
				count = n
			}
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return count, fmt.Errorf("decode %s rows: %w", q.table, err)
		}
	}
	return count, nil
}

// Insert adds a row and decodes the created representation into out when
// non-nil.
func (q *Query) Insert(ctx context.Context, row, out any) error {
	return q.write(ctx, http.MethodPost, q.client.restURL+"/"+q.table, row, out)
}

// Update patches rows matching the filters and decodes the updated
// representation into out when non-nil.
func (q *Query) Update(ctx context.Context, changes, out any) error {
	return q.write(ctx, http.MethodPatch, q.client.restURL+"/"+q.table+q.buildQuery(false), changes, out)
}

// Delete removes rows matching the filters.
func (q *Query) Delete(ctx context.Context) error {
	return q.write(ctx, http.MethodDelete, q.client.restURL+"/"+q.table+q.buildQuery(false), nil, nil)
}

func (q *Query) write(ctx context.Context, method, reqURL string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s row: %w", q.table, err)
		}
		reader = bytes.NewReader(payload)
	}

	resp, err := q.client.do(ctx, method, reqURL, reader, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s rows: %w", q.table, err)
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, reqURL string, body io.Reader, extra map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("create supabase request: %w", err)
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")
	for k, v := range extra {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("supabase request: %w", err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("supabase error: status %d: %s", resp.StatusCode, body)
}
