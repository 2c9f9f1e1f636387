package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/policy-navigator/backend/internal/corpus"
	"github.com/policy-navigator/backend/internal/ingestion"
	"github.com/policy-navigator/backend/pkg/logger"
)

type DocumentHandler struct {
	processor *ingestion.Processor
	store     corpus.Store
}

func NewDocumentHandler(processor *ingestion.Processor, store corpus.Store) *DocumentHandler {
	return &DocumentHandler{
		processor: processor,
		store:     store,
	}
}

func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	var req struct {
		ID            string `json:"id"`
		Title         string `json:"title"`
		SourceType    string `json:"source_type"`
		EffectiveDate string `json:"effective_date"`
		Jurisdiction  string `json:"jurisdiction"`
		Text          string `json:"text"`
		HTML          string `json:"html"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Text == "" && req.HTML == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Document text or html is required",
		})
	}

	doc, err := h.processor.Ingest(c.Context(), ingestion.Request{
		ID:            req.ID,
		Title:         req.Title,
		SourceType:    req.SourceType,
		EffectiveDate: req.EffectiveDate,
		Jurisdiction:  req.Jurisdiction,
		Text:          req.Text,
		HTML:          req.HTML,
	})
	if err != nil {
		logger.Error("Failed to ingest document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to ingest document",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":          doc.ID,
		"title":       doc.Title,
		"source_type": doc.SourceType,
	})
}

func (h *DocumentHandler) GetDocument(c *fiber.Ctx) error {
	id := c.Params("id")

	doc, found, err := h.store.Get(c.Context(), id)
	if err != nil {
		logger.Error("Failed to load document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load document",
		})
	}
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Document not found",
		})
	}

	return c.JSON(fiber.Map{
		"id":             doc.ID,
		"title":          doc.Title,
		"source_type":    doc.SourceType,
		"effective_date": doc.EffectiveDate,
		"jurisdiction":   doc.Jurisdiction,
		"text":           doc.Text,
	})
}

func (h *DocumentHandler) CountDocuments(c *fiber.Ctx) error {
	count, err := h.store.Count(c.Context())
	if err != nil {
		logger.Error("Failed to count documents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to count documents",
		})
	}

	return c.JSON(fiber.Map{
		"count": count,
	})
}
