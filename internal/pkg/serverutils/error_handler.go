package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"datachat-be/internal/pkg/logger"
	"datachat-be/pkg/agent"
)

// ErrorHandler translates pipeline errors into HTTP responses. It is
// installed as the fiber app's ErrorHandler.
func ErrorHandler(log logger.ILogger) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		var pipeErr *agent.PipelineError
		if errors.As(err, &pipeErr) {
			status := statusForCode(pipeErr.Code)
			if status >= fiber.StatusInternalServerError {
				log.Error("http", "request failed", map[string]interface{}{
					"path":  ctx.Path(),
					"code":  string(pipeErr.Code),
					"error": pipeErr.Error(),
				})
			}
			return ctx.Status(status).JSON(ErrorResponse(pipeErr.UserMessage()))
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Message))
		}

		log.Error("http", "unhandled error", map[string]interface{}{
			"path":  ctx.Path(),
			"error": err.Error(),
		})
		return ctx.Status(fiber.StatusInternalServerError).
			JSON(ErrorResponse("Something went wrong. Please try again."))
	}
}

func statusForCode(code agent.Code) int {
	switch code {
	case agent.CodeValidation:
		return fiber.StatusBadRequest
	case agent.CodeRateLimited:
		return fiber.StatusTooManyRequests
	case agent.CodeUpstreamTimeout:
		return fiber.StatusGatewayTimeout
	case agent.CodeUpstreamUnavailable:
		return fiber.StatusServiceUnavailable
	case agent.CodeSynthesis:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}
