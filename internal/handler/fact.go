package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/angeloszaimis/cat-facts/internal/fact"
)

type FactService interface {
	Get(ctx context.Context, lang string) fact.Result
}

type FactHandler struct {
	service FactService
	logger  *slog.Logger
}

type factResponse struct {
	Fact string `json:"fact"`
}

func NewFactHandler(service FactService, logger *slog.Logger) *FactHandler {
	return &FactHandler{
		service: service,
		logger:  logger,
	}
}

// Get serves GET /fact?lang=<code>.
func (h *FactHandler) Get(c *gin.Context) {
	lang := c.DefaultQuery("lang", fact.DefaultLanguage)

	result := h.service.Get(c.Request.Context(), lang)

	h.logger.Debug("Fact served",
		slog.String("lang", lang),
		slog.Bool("translated", result.Translated),
		slog.Bool("fallback", result.Fallback),
		slog.String("request_id", RequestIDFrom(c)))

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, factResponse{Fact: result.Text})
}
