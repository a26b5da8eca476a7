package controller

import (
	"github.com/gofiber/fiber/v2"

	"datachat-be/internal/dto"
	"datachat-be/internal/pkg/serverutils"
	"datachat-be/pkg/search"
)

type ISearchController interface {
	RegisterRoutes(r fiber.Router)
	ListIndices(ctx *fiber.Ctx) error
	ShowMapping(ctx *fiber.Ctx) error
	ShowCluster(ctx *fiber.Ctx) error
	ExecuteQuery(ctx *fiber.Ctx) error
}

type searchController struct {
	client *search.Client
}

func NewSearchController(client *search.Client) ISearchController {
	return &searchController{
		client: client,
	}
}

func (c *searchController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/search/v1")
	h.Get("indices", c.ListIndices)
	h.Get("indices/:index/mapping", c.ShowMapping)
	h.Get("cluster", c.ShowCluster)
	h.Post("query", c.ExecuteQuery)
}

func (c *searchController) ListIndices(ctx *fiber.Ctx) error {
	indices, err := c.client.ListIndices(ctx.Context())
	if err != nil {
		return err
	}

	out := make([]dto.IndexResponse, 0, len(indices))
	for _, idx := range indices {
		out = append(out, dto.IndexResponse{
			Name:      idx.Name,
			DocsCount: idx.DocsCount,
			Health:    idx.Health,
		})
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list indices", out))
}

func (c *searchController) ShowMapping(ctx *fiber.Ctx) error {
	index := ctx.Params("index")

	mappings, err := c.client.GetMapping(ctx.Context(), index)
	if err != nil {
		return err
	}

	fields := make(map[string]string, len(mappings))
	for _, m := range mappings {
		fields[m.Name] = m.Type
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show mapping", dto.MappingResponse{
		Index:  index,
		Fields: fields,
	}))
}

func (c *searchController) ShowCluster(ctx *fiber.Ctx) error {
	info, err := c.client.Info(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show cluster info", info))
}

// ExecuteQuery runs a caller-provided request body directly against one
// index. The client clamps the size, so a passthrough cannot exceed the
// configured result ceiling.
func (c *searchController) ExecuteQuery(ctx *fiber.Ctx) error {
	var req dto.QueryRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := serverutils.ValidateRequest(&req); err != nil {
		return err
	}

	query := &search.StructuredQuery{Index: req.Index, Body: req.Body}
	if req.Size > 0 {
		query = query.Clone()
		query.SetSize(req.Size)
	}

	result, err := c.client.Search(ctx.Context(), query)
	if err != nil {
		return err
	}

	data := make([]map[string]interface{}, 0, len(result.Hits))
	for _, hit := range result.Hits {
		data = append(data, hit.Source)
	}
	resp := dto.QueryResponse{
		Total:      result.Total,
		Data:       data,
		TookMillis: result.TookMillis,
	}
	if len(result.Aggregations) > 0 {
		resp.Aggregations = result.Aggregations
	}
	return ctx.JSON(serverutils.SuccessResponse("Success execute query", resp))
}
