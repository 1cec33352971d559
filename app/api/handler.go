package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"docrag/app/agent"
	"docrag/store"
	"docrag/types"
)

const defaultHistoryLimit = 20

type QueryHandler struct {
	agent *agent.Agent
	store store.Storer
}

func NewQueryHandler(a *agent.Agent, s store.Storer) *QueryHandler {
	return &QueryHandler{
		agent: a,
		store: s,
	}
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var params types.QueryParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return types.NewValidationError(errors)
	}

	outcome := h.agent.ProcessQuery(c.UserContext(), params.Question)
	return c.JSON(outcome)
}

func (h *QueryHandler) HandleHistory(c *fiber.Ctx) error {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return ErrBadRequest()
		}
		limit = n
	}

	queries, err := h.store.RecentQueries(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return c.JSON(queries)
}
