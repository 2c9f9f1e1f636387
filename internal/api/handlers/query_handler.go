package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/policy-navigator/backend/internal/metrics"
	"github.com/policy-navigator/backend/internal/query"
	"github.com/policy-navigator/backend/internal/router"
	"github.com/policy-navigator/backend/internal/storage/models"
	"github.com/policy-navigator/backend/internal/storage/sqlite"
	"github.com/policy-navigator/backend/internal/synthesis"
	"github.com/policy-navigator/backend/pkg/logger"
)

type QueryHandler struct {
	engine *query.Engine
	db     *sqlite.Client
}

func NewQueryHandler(engine *query.Engine, db *sqlite.Client) *QueryHandler {
	return &QueryHandler{
		engine: engine,
		db:     db,
	}
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var req struct {
		Query   string   `json:"query"`
		Intents []string `json:"intents"`
		TopK    int      `json:"top_k"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	intents := make([]router.Intent, 0, len(req.Intents))
	for _, intent := range req.Intents {
		intents = append(intents, router.Intent(intent))
	}

	response, err := h.engine.Process(c.Context(), query.Request{
		Query:   req.Query,
		Intents: intents,
		TopK:    req.TopK,
	})
	if err != nil {
		switch {
		case errors.Is(err, router.ErrInvalidQuery):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Query is required",
			})
		case errors.Is(err, synthesis.ErrNoEvidence):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"query":   req.Query,
				"message": "No information available for this query.",
			})
		default:
			logger.Error("Failed to process query", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to process query",
			})
		}
	}

	return c.JSON(response)
}

func (h *QueryHandler) GetQueryHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)

	records, err := h.db.RecentQueries(limit)
	if err != nil {
		logger.Error("Failed to load query history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load query history",
		})
	}

	history := make([]fiber.Map, 0, len(records))
	for _, r := range records {
		history = append(history, fiber.Map{
			"id":          r.ID,
			"query":       r.QueryText,
			"intents":     r.Intents,
			"answer_text": r.AnswerText,
			"confidence":  r.Confidence,
			"degraded":    r.Degraded,
			"latency_ms":  r.LatencyMS,
			"created_at":  r.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"history": history,
	})
}

func (h *QueryHandler) SubmitFeedback(c *fiber.Ctx) error {
	var req struct {
		QueryID string `json:"query_id"`
		Helpful bool   `json:"helpful"`
		Comment string `json:"comment"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.QueryID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "query_id is required",
		})
	}

	err := h.db.InsertFeedback(&models.Feedback{
		QueryID:   req.QueryID,
		Helpful:   req.Helpful,
		Comment:   req.Comment,
		CreatedAt: time.Now(),
	})
	if err != nil {
		logger.Error("Failed to store feedback", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store feedback",
		})
	}

	metrics.UserSatisfaction.WithLabelValues(strconv.FormatBool(req.Helpful)).Inc()

	return c.JSON(fiber.Map{
		"message": "Feedback recorded",
	})
}
