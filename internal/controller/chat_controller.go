package controller

import (
	"github.com/gofiber/fiber/v2"

	"datachat-be/internal/dto"
	"datachat-be/internal/pkg/serverutils"
	"datachat-be/internal/service"
	"datachat-be/pkg/store"
)

// IChatController is the REST fallback surface for when the real-time
// channel is unavailable.
type IChatController interface {
	RegisterRoutes(r fiber.Router)
	SubmitTurn(ctx *fiber.Ctx) error
	ShowSession(ctx *fiber.Ctx) error
	DeleteSession(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService *service.ChatService
}

func NewChatController(chatService *service.ChatService) IChatController {
	return &chatController{
		chatService: chatService,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Post("", c.SubmitTurn)
	h.Get("session/:id", c.ShowSession)
	h.Delete("session/:id", c.DeleteSession)
}

func (c *chatController) SubmitTurn(ctx *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	session, _, err := c.chatService.ResolveSession(ctx.Context(), req.SessionId)
	if err != nil {
		return err
	}
	if req.Index != "" {
		session.ActiveIndex = req.Index
	}

	res, pipeErr := c.chatService.HandleTurn(ctx.Context(), session, req.Message, nil)
	if pipeErr != nil {
		return pipeErr
	}

	out := dto.ChatResponse{
		SessionId:   session.ID,
		Message:     res.Message,
		Reasoning:   res.Reasoning,
		ChartConfig: res.ChartConfig,
		Data:        res.Data,
		Insights:    res.Insights,
	}
	if res.Intent != nil {
		out.Intent = string(res.Intent.Pattern)
	}

	return ctx.JSON(serverutils.SuccessResponse("Turn completed", out))
}

func (c *chatController) ShowSession(ctx *fiber.Ctx) error {
	id := ctx.Params("id")

	session, found, err := c.chatService.GetSession(ctx.Context(), id)
	if err != nil {
		return err
	}
	if !found {
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show session", toSessionDTO(session)))
}

func (c *chatController) DeleteSession(ctx *fiber.Ctx) error {
	id := ctx.Params("id")

	if err := c.chatService.DeleteSession(ctx.Context(), id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success delete session", nil))
}

func toSessionDTO(session *store.Session) dto.SessionResponse {
	turns := make([]dto.TurnDTO, 0, len(session.Turns))
	for _, t := range session.Turns {
		turns = append(turns, dto.TurnDTO{
			Role:      t.Role,
			Content:   t.Content,
			Intent:    t.Intent,
			ChartType: t.ChartType,
			Timestamp: t.Timestamp,
		})
	}
	return dto.SessionResponse{
		Id:          session.ID,
		State:       session.State,
		ActiveIndex: session.ActiveIndex,
		Turns:       turns,
		CreatedAt:   session.CreatedAt,
		LastActive:  session.LastActiveAt,
	}
}
