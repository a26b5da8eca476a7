package dto

type IndexResponse struct {
	Name      string `json:"name"`
	DocsCount int64  `json:"docs_count"`
	Health    string `json:"health"`
}

type MappingResponse struct {
	Index  string            `json:"index"`
	Fields map[string]string `json:"fields"`
}

type HealthResponse struct {
	Status string          `json:"status"`
	Checks map[string]bool `json:"checks"`
}

type InsightsResponse struct {
	SessionId       string         `json:"session_id"`
	TotalTurns      int            `json:"total_turns"`
	DominantPattern string         `json:"dominant_pattern,omitempty"`
	FavoriteChart   string         `json:"favorite_chart,omitempty"`
	PatternCounts   map[string]int `json:"pattern_counts,omitempty"`
	Suggestions     []string       `json:"suggestions,omitempty"`
}

type CacheStatsResponse struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

type MemoryStatsResponse struct {
	TotalRecords  int64            `json:"total_records"`
	RecordsByKind map[string]int64 `json:"records_by_kind"`
}

type QueryRequest struct {
	Index string                 `json:"index" validate:"required"`
	Body  map[string]interface{} `json:"body" validate:"required"`
	Size  int                    `json:"size,omitempty" validate:"omitempty,gte=0,lte=10000"`
}

type QueryResponse struct {
	Total        int64                    `json:"total"`
	Data         []map[string]interface{} `json:"data"`
	Aggregations interface{}              `json:"aggregations,omitempty"`
	TookMillis   int64                    `json:"took_ms"`
}

type SimilarQueryResponse struct {
	Document   string                 `json:"document"`
	Similarity float64                `json:"similarity"`
	IndexName  string                 `json:"index_name,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

type SuggestionsResponse struct {
	SessionId   string   `json:"session_id"`
	Suggestions []string `json:"suggestions"`
}

type FeedbackRequest struct {
	SessionId       string  `json:"session_id" validate:"required"`
	Satisfaction    float64 `json:"satisfaction" validate:"gte=0,lte=1"`
	ChartRating     float64 `json:"chart_rating" validate:"gte=0,lte=1"`
	ResponseQuality float64 `json:"response_quality" validate:"gte=0,lte=1"`
	Index           string  `json:"index,omitempty"`
}
