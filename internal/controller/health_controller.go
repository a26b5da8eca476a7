package controller

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"

	"datachat-be/internal/dto"
	"datachat-be/internal/pkg/serverutils"
)

// Check reports reachability of one collaborator.
type Check func(ctx context.Context) error

type IHealthController interface {
	RegisterRoutes(r fiber.Router)
	Show(ctx *fiber.Ctx) error
}

type healthController struct {
	checks map[string]Check
}

// NewHealthController reports each collaborator independently, so one
// unreachable dependency does not mask the others.
func NewHealthController(checks map[string]Check) IHealthController {
	return &healthController{
		checks: checks,
	}
}

func (c *healthController) RegisterRoutes(r fiber.Router) {
	r.Get("/health", c.Show)
}

func (c *healthController) Show(ctx *fiber.Ctx) error {
	checkCtx, cancel := context.WithTimeout(ctx.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]bool, len(names))
	allUp := true
	for _, name := range names {
		err := c.checks[name](checkCtx)
		results[name] = err == nil
		if err != nil {
			allUp = false
		}
	}

	status := "ok"
	httpStatus := fiber.StatusOK
	if !allUp {
		status = "degraded"
		httpStatus = fiber.StatusServiceUnavailable
	}

	return ctx.Status(httpStatus).JSON(serverutils.SuccessResponse("Health check", dto.HealthResponse{
		Status: status,
		Checks: results,
	}))
}
