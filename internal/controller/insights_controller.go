package controller

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"datachat-be/internal/dto"
	"datachat-be/internal/pkg/serverutils"
	"datachat-be/internal/service"
	"datachat-be/pkg/agent/insight"
	"datachat-be/pkg/cache"
	"datachat-be/pkg/embedding"
	"datachat-be/pkg/memory"
)

// IInsightsController exposes per-session usage profiles, personalized
// suggestions and feedback, plus cache and memory statistics.
type IInsightsController interface {
	RegisterRoutes(r fiber.Router)
	ShowSessionInsights(ctx *fiber.Ctx) error
	ShowSuggestions(ctx *fiber.Ctx) error
	SubmitFeedback(ctx *fiber.Ctx) error
	ShowCacheStats(ctx *fiber.Ctx) error
	ShowMemoryStats(ctx *fiber.Ctx) error
	FindSimilarQueries(ctx *fiber.Ctx) error
}

type insightsController struct {
	chatService *service.ChatService
	queryCache  *cache.QueryCache
	memoryStore memory.Store
	embedder    embedding.EmbeddingProvider
	tracker     *insight.Tracker
}

func NewInsightsController(
	chatService *service.ChatService,
	queryCache *cache.QueryCache,
	memoryStore memory.Store,
	embedder embedding.EmbeddingProvider,
	tracker *insight.Tracker,
) IInsightsController {
	return &insightsController{
		chatService: chatService,
		queryCache:  queryCache,
		memoryStore: memoryStore,
		embedder:    embedder,
		tracker:     tracker,
	}
}

func (c *insightsController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/insights/v1")
	h.Get("session/:id", c.ShowSessionInsights)
	h.Get("suggestions/:id", c.ShowSuggestions)
	h.Post("feedback", c.SubmitFeedback)
	h.Get("cache", c.ShowCacheStats)
	h.Get("memory", c.ShowMemoryStats)
	h.Get("memory/similar", c.FindSimilarQueries)
}

func (c *insightsController) ShowSessionInsights(ctx *fiber.Ctx) error {
	id := ctx.Params("id")

	session, found, err := c.chatService.GetSession(ctx.Context(), id)
	if err != nil {
		return err
	}
	if !found {
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	}

	profile := insight.BuildProfile(session)

	counts := make(map[string]int, len(profile.PatternCounts))
	for pattern, n := range profile.PatternCounts {
		counts[string(pattern)] = n
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show insights", dto.InsightsResponse{
		SessionId:       session.ID,
		TotalTurns:      profile.TotalTurns,
		DominantPattern: string(profile.DominantPattern),
		FavoriteChart:   profile.FavoriteChart,
		PatternCounts:   counts,
		Suggestions:     insight.Suggestions(profile, nil),
	}))
}

// ShowSuggestions returns personalized suggestions from the session's
// accumulated profile, or the defaults for an unknown session.
func (c *insightsController) ShowSuggestions(ctx *fiber.Ctx) error {
	id := ctx.Params("id")
	return ctx.JSON(serverutils.SuccessResponse("Success show suggestions", dto.SuggestionsResponse{
		SessionId:   id,
		Suggestions: c.tracker.PersonalizedSuggestions(id),
	}))
}

// SubmitFeedback records an explicit rating onto the session's profile.
func (c *insightsController) SubmitFeedback(ctx *fiber.Ctx) error {
	var req dto.FeedbackRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := serverutils.ValidateRequest(&req); err != nil {
		return err
	}

	c.tracker.RecordFeedback(req.SessionId, insight.Feedback{
		Satisfaction:    req.Satisfaction,
		ChartRating:     req.ChartRating,
		ResponseQuality: req.ResponseQuality,
		IndexName:       req.Index,
	})
	return ctx.JSON(serverutils.SuccessResponse("Success record feedback", nil))
}

func (c *insightsController) ShowCacheStats(ctx *fiber.Ctx) error {
	stats := c.queryCache.Stats()
	return ctx.JSON(serverutils.SuccessResponse("Success show cache stats", stats))
}

func (c *insightsController) ShowMemoryStats(ctx *fiber.Ctx) error {
	if c.memoryStore == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "memory store not configured")
	}

	stats, err := c.memoryStore.Stats(ctx.Context())
	if err != nil {
		return err
	}

	byKind := make(map[string]int64, len(stats.Counts))
	for kind, n := range stats.Counts {
		byKind[string(kind)] = n
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show memory stats", dto.MemoryStatsResponse{
		TotalRecords:  stats.Total,
		RecordsByKind: byKind,
	}))
}

// FindSimilarQueries answers "what have I asked like this before" via
// the semantic memory's query-example collection.
func (c *insightsController) FindSimilarQueries(ctx *fiber.Ctx) error {
	if c.memoryStore == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "memory store not configured")
	}

	q := strings.TrimSpace(ctx.Query("q"))
	if q == "" {
		return fiber.NewError(fiber.StatusBadRequest, "query parameter q is required")
	}

	limit := queryInt(ctx, "limit", 5)
	if limit > 20 {
		limit = 20
	}
	threshold := queryFloat(ctx, "threshold", 0.7)
	if threshold < 0 {
		threshold = 0
	} else if threshold > 1 {
		threshold = 1
	}

	resp, err := c.embedder.Generate(q, "RETRIEVAL_QUERY")
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "embedding provider unavailable")
	}

	records, err := c.memoryStore.SearchSimilar(ctx.Context(), memory.KindQueryExample, resp.Embedding.Values, limit, threshold)
	if err != nil {
		return err
	}

	out := make([]dto.SimilarQueryResponse, 0, len(records))
	for _, scored := range records {
		out = append(out, dto.SimilarQueryResponse{
			Document:   scored.Record.Document,
			Similarity: scored.Similarity,
			IndexName:  scored.Record.IndexName,
			Payload:    scored.Record.Payload,
		})
	}
	return ctx.JSON(serverutils.SuccessResponse("Success find similar queries", out))
}

func queryInt(ctx *fiber.Ctx, key string, fallback int) int {
	raw := ctx.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func queryFloat(ctx *fiber.Ctx, key string, fallback float64) float64 {
	raw := ctx.Query(key)
	if raw == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return f
}
