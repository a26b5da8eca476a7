package viz

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"datachat-be/pkg/search"
)

// FieldClass buckets a field by how chart rules treat it.
type FieldClass string

const (
	ClassNumeric     FieldClass = "numeric"
	ClassCategorical FieldClass = "categorical"
	ClassTemporal    FieldClass = "temporal"
	ClassOther       FieldClass = "other"
)

// FieldProfile describes one field observed in the result sample.
type FieldProfile struct {
	Name        string     `json:"name"`
	Class       FieldClass `json:"class"`
	Cardinality int        `json:"cardinality"` // distinct values in the sample
	Monotonic   bool       `json:"monotonic"`   // temporal fields only: sample is time-ordered
}

// DataProfile is the deterministic classification of a ResultSet sample.
// Recomputed per ResultSet, never cached.
type DataProfile struct {
	Fields          []FieldProfile `json:"fields"`
	RowCount        int            `json:"row_count"`
	FromAggregation bool           `json:"from_aggregation"`

	// rows backing the profile, used for axis mapping and chart data
	rows []map[string]interface{}
}

func (p *DataProfile) fieldsOfClass(class FieldClass) []FieldProfile {
	var out []FieldProfile
	for _, f := range p.Fields {
		if f.Class == class {
			out = append(out, f)
		}
	}
	return out
}

func (p *DataProfile) HasClass(class FieldClass) bool {
	return len(p.fieldsOfClass(class)) > 0
}

func (p *DataProfile) NumericCount() int {
	return len(p.fieldsOfClass(ClassNumeric))
}

// Rows exposes the sampled rows the profile was built from.
func (p *DataProfile) Rows() []map[string]interface{} {
	return p.rows
}

// BuildProfile derives a DataProfile from a bounded sample of the result.
// Aggregation buckets take precedence over raw hits: a bucketed result is
// already the table the user asked for.
func BuildProfile(rs *search.ResultSet, sampleSize int) *DataProfile {
	if sampleSize <= 0 {
		sampleSize = 50
	}

	rows, fromAgg := extractRows(rs, sampleSize)
	profile := &DataProfile{
		RowCount:        len(rows),
		FromAggregation: fromAgg,
		rows:            rows,
	}
	if len(rows) == 0 {
		return profile
	}

	names := collectFieldNames(rows)
	for _, name := range names {
		profile.Fields = append(profile.Fields, profileField(name, rows))
	}
	return profile
}

// extractRows flattens the result into uniform rows. Buckets of the first
// terms/date_histogram aggregation become {key, doc_count, metric...} rows.
func extractRows(rs *search.ResultSet, sampleSize int) ([]map[string]interface{}, bool) {
	if len(rs.Aggregations) > 0 {
		// Deterministic order over aggregation names
		names := make([]string, 0, len(rs.Aggregations))
		for name := range rs.Aggregations {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if rows := bucketRows(rs.Aggregations[name], sampleSize); len(rows) > 0 {
				return rows, true
			}
		}
	}

	var rows []map[string]interface{}
	for i, hit := range rs.Hits {
		if i >= sampleSize {
			break
		}
		if hit.Source != nil {
			rows = append(rows, flattenSource("", hit.Source))
		}
	}
	return rows, false
}

func bucketRows(raw json.RawMessage, sampleSize int) []map[string]interface{} {
	var agg struct {
		Buckets []map[string]json.RawMessage `json:"buckets"`
	}
	if err := json.Unmarshal(raw, &agg); err != nil || len(agg.Buckets) == 0 {
		return nil
	}

	var rows []map[string]interface{}
	for i, bucket := range agg.Buckets {
		if i >= sampleSize {
			break
		}
		row := map[string]interface{}{}
		for field, rawVal := range bucket {
			switch field {
			case "key_as_string":
				var s string
				if json.Unmarshal(rawVal, &s) == nil {
					row["key"] = s
				}
			case "key":
				if _, exists := row["key"]; exists {
					continue // key_as_string already won
				}
				var v interface{}
				if json.Unmarshal(rawVal, &v) == nil {
					row["key"] = v
				}
			case "doc_count":
				var n float64
				if json.Unmarshal(rawVal, &n) == nil {
					row["doc_count"] = n
				}
			default:
				// Sub-metric like {"value": 42.5}
				var metric struct {
					Value *float64 `json:"value"`
				}
				if json.Unmarshal(rawVal, &metric) == nil && metric.Value != nil {
					row[field] = *metric.Value
				}
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows
}

func flattenSource(prefix string, source map[string]interface{}) map[string]interface{} {
	row := map[string]interface{}{}
	for key, value := range source {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := value.(map[string]interface{}); ok {
			for k, v := range flattenSource(full, nested) {
				row[k] = v
			}
			continue
		}
		row[full] = value
	}
	return row
}

func collectFieldNames(rows []map[string]interface{}) []string {
	seen := map[string]bool{}
	for _, row := range rows {
		for name := range row {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var temporalNameHints = []string{"date", "time", "timestamp", "_at", "day", "month", "year"}

func profileField(name string, rows []map[string]interface{}) FieldProfile {
	profile := FieldProfile{Name: name, Class: ClassOther}

	distinct := map[string]bool{}
	numeric := 0
	temporal := 0
	categorical := 0
	total := 0
	var times []time.Time

	for _, row := range rows {
		value, ok := row[name]
		if !ok || value == nil {
			continue
		}
		total++

		switch v := value.(type) {
		case float64:
			if nameLooksTemporal(name) {
				temporal++
				times = append(times, time.UnixMilli(int64(v)))
			} else {
				numeric++
			}
			distinct[formatKey(v)] = true
		case int, int64:
			numeric++
			distinct[formatKey(v)] = true
		case string:
			if ts, ok := parseTimestamp(v); ok {
				temporal++
				times = append(times, ts)
			} else {
				categorical++
			}
			distinct[v] = true
		case bool:
			categorical++
			distinct[formatKey(v)] = true
		}
	}

	profile.Cardinality = len(distinct)
	if total == 0 {
		return profile
	}

	// Majority vote over the observed values
	switch {
	case temporal*2 > total:
		profile.Class = ClassTemporal
		profile.Monotonic = isMonotonic(times)
	case numeric*2 > total:
		profile.Class = ClassNumeric
	case categorical*2 > total:
		profile.Class = ClassCategorical
	}
	return profile
}

func nameLooksTemporal(name string) bool {
	lower := strings.ToLower(name)
	for _, hint := range temporalNameHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"2006-01",
}

func parseTimestamp(value string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func isMonotonic(times []time.Time) bool {
	if len(times) < 2 {
		return false
	}
	for i := 1; i < len(times); i++ {
		if times[i].Before(times[i-1]) {
			return false
		}
	}
	return true
}

func formatKey(v interface{}) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}
