package search

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"
)

// Client is a thin HTTP client for an Elasticsearch-compatible cluster.
type Client struct {
	BaseURL    string
	Username   string
	Password   string
	MaxSize    int
	HTTPClient *http.Client
}

func NewClient(baseURL, username, password string, maxSize int, timeout time.Duration) *Client {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &Client{
		BaseURL:  baseURL,
		Username: username,
		Password: password,
		MaxSize:  maxSize,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewBuffer(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Username != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, classify(err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, classify(err)
	}
	return respBytes, resp.StatusCode, nil
}

// Ping reports whether the cluster answers at all.
func (c *Client) Ping(ctx context.Context) error {
	_, status, err := c.do(ctx, "GET", "/", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: cluster returned status %d", ErrUnavailable, status)
	}
	return nil
}

// Info returns basic cluster identity from the root endpoint.
func (c *Client) Info(ctx context.Context) (*ClusterInfo, error) {
	respBytes, status, err := c.do(ctx, "GET", "/", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: cluster returned status %d", ErrUnavailable, status)
	}

	var raw struct {
		ClusterName string `json:"cluster_name"`
		ClusterUUID string `json:"cluster_uuid"`
		Version     struct {
			Number string `json:"number"`
		} `json:"version"`
	}
	if err := json.Unmarshal(respBytes, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal cluster info: %w", err)
	}
	return &ClusterInfo{
		Name:        raw.ClusterName,
		Version:     raw.Version.Number,
		ClusterUUID: raw.ClusterUUID,
	}, nil
}

// ListIndices returns the non-system indices of the cluster, sorted by name.
func (c *Client) ListIndices(ctx context.Context) ([]IndexInfo, error) {
	respBytes, status, err := c.do(ctx, "GET", "/_cat/indices?format=json", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: _cat/indices returned status %d", ErrUnavailable, status)
	}

	var raw []struct {
		Index     string `json:"index"`
		Health    string `json:"health"`
		Status    string `json:"status"`
		DocsCount string `json:"docs.count"`
		StoreSize string `json:"store.size"`
	}
	if err := json.Unmarshal(respBytes, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal indices: %w", err)
	}

	indices := make([]IndexInfo, 0, len(raw))
	for _, item := range raw {
		if len(item.Index) > 0 && item.Index[0] == '.' {
			continue // hidden/system index
		}
		docs, _ := strconv.ParseInt(item.DocsCount, 10, 64)
		indices = append(indices, IndexInfo{
			Name:      item.Index,
			Health:    item.Health,
			Status:    item.Status,
			DocsCount: docs,
			StoreSize: item.StoreSize,
		})
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i].Name < indices[j].Name })
	return indices, nil
}

// GetMapping returns the flattened field list of one index.
func (c *Client) GetMapping(ctx context.Context, index string) ([]FieldMapping, error) {
	respBytes, status, err := c.do(ctx, "GET", "/"+index+"/_mapping", nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, &BadQueryError{StatusCode: status, Reason: fmt.Sprintf("index %q not found", index)}
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: _mapping returned status %d", ErrUnavailable, status)
	}

	var raw map[string]struct {
		Mappings struct {
			Properties map[string]json.RawMessage `json:"properties"`
		} `json:"mappings"`
	}
	if err := json.Unmarshal(respBytes, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal mapping: %w", err)
	}

	var fields []FieldMapping
	for _, idx := range raw {
		fields = append(fields, flattenProperties("", idx.Mappings.Properties)...)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	return fields, nil
}

func flattenProperties(prefix string, props map[string]json.RawMessage) []FieldMapping {
	var out []FieldMapping
	for name, rawProp := range props {
		full := name
		if prefix != "" {
			full = prefix + "." + name
		}
		var prop struct {
			Type       string                     `json:"type"`
			Properties map[string]json.RawMessage `json:"properties"`
		}
		if err := json.Unmarshal(rawProp, &prop); err != nil {
			continue
		}
		if len(prop.Properties) > 0 {
			out = append(out, flattenProperties(full, prop.Properties)...)
			continue
		}
		if prop.Type == "" {
			prop.Type = "object"
		}
		out = append(out, FieldMapping{Name: full, Type: prop.Type})
	}
	return out
}

// Search executes a StructuredQuery. The result size is clamped to MaxSize
// before the request leaves the process; the caller's body is never written
// to, so a query shared through the cache survives execution unchanged. An
// explicit size of 0 (aggregation-only bodies) is sent as-is. Zero matches
// yield an empty ResultSet, not an error.
func (c *Client) Search(ctx context.Context, query *StructuredQuery) (*ResultSet, error) {
	body := c.requestBody(query)

	respBytes, status, err := c.do(ctx, "POST", "/"+query.Index+"/_search", body)
	if err != nil {
		return nil, err
	}
	if status >= 400 && status < 500 {
		return nil, &BadQueryError{StatusCode: status, Reason: extractReason(respBytes)}
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: _search returned status %d", ErrUnavailable, status)
	}

	var raw struct {
		Took     int64 `json:"took"`
		TimedOut bool  `json:"timed_out"`
		Hits     struct {
			Total totalHits `json:"total"`
			Hits  []Hit     `json:"hits"`
		} `json:"hits"`
		Aggregations map[string]json.RawMessage `json:"aggregations"`
	}
	if err := json.Unmarshal(respBytes, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal search response: %w", err)
	}

	return &ResultSet{
		Total:        raw.Hits.Total.Value,
		Hits:         raw.Hits.Hits,
		Aggregations: raw.Aggregations,
		TookMillis:   raw.Took,
		TimedOut:     raw.TimedOut,
	}, nil
}

// requestBody returns the body to send, overriding size only when it is
// missing or above MaxSize. The override goes into a shallow copy so the
// caller's map is not mutated.
func (c *Client) requestBody(query *StructuredQuery) map[string]interface{} {
	effective := -1
	switch {
	case !query.SizeSet():
		if !query.HasAggregation() {
			effective = 10
		}
	case query.Size() < 0:
		effective = 10
	case query.Size() > c.MaxSize:
		effective = c.MaxSize
	}
	if effective < 0 {
		return query.Body
	}

	body := make(map[string]interface{}, len(query.Body)+1)
	for k, v := range query.Body {
		body[k] = v
	}
	body["size"] = effective
	return body
}

// Count returns the number of documents matching the query body, or the
// whole index when body is nil.
func (c *Client) Count(ctx context.Context, index string, body map[string]interface{}) (int64, error) {
	var payload interface{}
	if body != nil {
		payload = body
	}
	respBytes, status, err := c.do(ctx, "POST", "/"+index+"/_count", payload)
	if err != nil {
		return 0, err
	}
	if status >= 400 && status < 500 {
		return 0, &BadQueryError{StatusCode: status, Reason: extractReason(respBytes)}
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("%w: _count returned status %d", ErrUnavailable, status)
	}

	var raw struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal(respBytes, &raw); err != nil {
		return 0, fmt.Errorf("unmarshal count response: %w", err)
	}
	return raw.Count, nil
}

// CreateIndex creates an index with the given mapping. An existing
// index is left untouched.
func (c *Client) CreateIndex(ctx context.Context, index string, mapping map[string]interface{}) error {
	_, status, err := c.do(ctx, "HEAD", "/"+index, nil)
	if err != nil {
		return err
	}
	if status == http.StatusOK {
		return nil
	}

	respBytes, status, err := c.do(ctx, "PUT", "/"+index, mapping)
	if err != nil {
		return err
	}
	if status >= 400 {
		return &BadQueryError{StatusCode: status, Reason: extractReason(respBytes)}
	}
	return nil
}

// DeleteIndex removes an index. A missing index is not an error.
func (c *Client) DeleteIndex(ctx context.Context, index string) error {
	respBytes, status, err := c.do(ctx, "DELETE", "/"+index, nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound || status < 400 {
		return nil
	}
	return &BadQueryError{StatusCode: status, Reason: extractReason(respBytes)}
}

// BulkIndex ingests documents through the _bulk endpoint and refreshes
// the index so they are immediately searchable.
func (c *Client) BulkIndex(ctx context.Context, index string, docs []map[string]interface{}) error {
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, doc := range docs {
		action, _ := json.Marshal(map[string]interface{}{
			"index": map[string]interface{}{"_index": index},
		})
		source, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal document: %w", err)
		}
		buf.Write(action)
		buf.WriteByte('\n')
		buf.Write(source)
		buf.WriteByte('\n')
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/_bulk", &buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	if c.Username != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return classify(err)
	}
	if resp.StatusCode >= 400 {
		return &BadQueryError{StatusCode: resp.StatusCode, Reason: extractReason(respBytes)}
	}

	var raw struct {
		Errors bool `json:"errors"`
	}
	if err := json.Unmarshal(respBytes, &raw); err == nil && raw.Errors {
		return fmt.Errorf("bulk ingest reported item failures")
	}

	_, _, err = c.do(ctx, "POST", "/"+index+"/_refresh", nil)
	return err
}

// extractReason pulls the human-readable reason out of an ES error body.
func extractReason(body []byte) string {
	var raw struct {
		Error struct {
			Type      string `json:"type"`
			Reason    string `json:"reason"`
			RootCause []struct {
				Reason string `json:"reason"`
			} `json:"root_cause"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &raw); err == nil {
		if len(raw.Error.RootCause) > 0 && raw.Error.RootCause[0].Reason != "" {
			return raw.Error.RootCause[0].Reason
		}
		if raw.Error.Reason != "" {
			return raw.Error.Reason
		}
	}
	if len(body) > 256 {
		body = body[:256]
	}
	return string(body)
}

func hashKey(raw []byte) string {
	sum := md5.Sum(raw)
	return hex.EncodeToString(sum[:])
}
