package search

import (
	"encoding/json"
	"fmt"
)

// StructuredQuery is an executable search request against a single index.
// Body holds the full Elasticsearch request body (query, aggs, sort, size).
type StructuredQuery struct {
	Index string                 `json:"index"`
	Body  map[string]interface{} `json:"body"`
}

// Size returns the requested result size, or 0 when the body does not set one.
func (q *StructuredQuery) Size() int {
	n, _ := q.size()
	return n
}

// SizeSet reports whether the body carries a size at all. An explicit
// size of 0 (aggregation-only bodies) is distinct from an absent size.
func (q *StructuredQuery) SizeSet() bool {
	_, set := q.size()
	return set
}

func (q *StructuredQuery) size() (int, bool) {
	if q.Body == nil {
		return 0, false
	}
	switch v := q.Body["size"].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

// SetSize overwrites the result size in the request body.
func (q *StructuredQuery) SetSize(n int) {
	if q.Body == nil {
		q.Body = map[string]interface{}{}
	}
	q.Body["size"] = n
}

// HasAggregation reports whether the body requests bucketed results.
func (q *StructuredQuery) HasAggregation() bool {
	if q.Body == nil {
		return false
	}
	if _, ok := q.Body["aggs"]; ok {
		return true
	}
	_, ok := q.Body["aggregations"]
	return ok
}

// Clone returns a deep copy. Queries are immutable once built; anything
// that needs a variant works on a clone, so a body can be shared through
// the cache without one execution leaking into another.
func (q *StructuredQuery) Clone() *StructuredQuery {
	if q == nil {
		return nil
	}
	clone := &StructuredQuery{Index: q.Index}
	if q.Body != nil {
		clone.Body = copyBody(q.Body)
	}
	return clone
}

func copyBody(src map[string]interface{}) map[string]interface{} {
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = copyValue(v)
	}
	return dst
}

func copyValue(v interface{}) interface{} {
	switch typed := v.(type) {
	case map[string]interface{}:
		return copyBody(typed)
	case []interface{}:
		out := make([]interface{}, len(typed))
		for i, item := range typed {
			out[i] = copyValue(item)
		}
		return out
	default:
		return typed
	}
}

// Fingerprint returns a stable hash key for the query, used by the cache layer.
func (q *StructuredQuery) Fingerprint() string {
	raw, err := json.Marshal(q)
	if err != nil {
		return fmt.Sprintf("%s:unhashable", q.Index)
	}
	return hashKey(raw)
}

// Hit is a single document returned by a search.
type Hit struct {
	ID     string                 `json:"_id"`
	Index  string                 `json:"_index"`
	Score  float64                `json:"_score"`
	Source map[string]interface{} `json:"_source"`
}

// ResultSet is the normalized outcome of executing a StructuredQuery.
// An empty result is a valid ResultSet, never an error.
type ResultSet struct {
	Total        int64                      `json:"total"`
	Hits         []Hit                      `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations,omitempty"`
	TookMillis   int64                      `json:"took_ms"`
	TimedOut     bool                       `json:"timed_out"`
}

// Empty reports whether the query matched nothing at all.
func (r *ResultSet) Empty() bool {
	return r.Total == 0 && len(r.Hits) == 0 && len(r.Aggregations) == 0
}

// IndexInfo describes one index visible through the cluster.
type IndexInfo struct {
	Name      string `json:"name"`
	Health    string `json:"health"`
	Status    string `json:"status"`
	DocsCount int64  `json:"docs_count"`
	StoreSize string `json:"store_size"`
}

// FieldMapping is a flattened view of one field in an index mapping.
type FieldMapping struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ClusterInfo is the subset of the root endpoint response we surface.
type ClusterInfo struct {
	Name        string `json:"cluster_name"`
	Version     string `json:"version"`
	ClusterUUID string `json:"cluster_uuid"`
}

// totalHits tolerates both the ES6 bare-integer form and the ES7+
// object form {"value": N, "relation": "eq"}.
type totalHits struct {
	Value    int64
	Relation string
}

func (t *totalHits) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		t.Value = n
		t.Relation = "eq"
		return nil
	}
	var obj struct {
		Value    int64  `json:"value"`
		Relation string `json:"relation"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	t.Value = obj.Value
	t.Relation = obj.Relation
	return nil
}
