package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/angeloszaimis/cat-facts/internal/catimage"
)

type ImageResolver interface {
	Resolve(ctx context.Context) (*catimage.Candidate, error)
}

type ImageHandler struct {
	resolver ImageResolver
	redirect bool
	logger   *slog.Logger
}

// NewImageHandler returns a handler that streams the resolved image, or
// redirects to it when redirect is set.
func NewImageHandler(resolver ImageResolver, redirect bool, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{
		resolver: resolver,
		redirect: redirect,
		logger:   logger,
	}
}

// Get serves GET /catimg. Query parameters are ignored.
func (h *ImageHandler) Get(c *gin.Context) {
	noCache(c)

	candidate, err := h.resolver.Resolve(c.Request.Context())
	if err != nil {
		if !errors.Is(err, catimage.ErrNoImage) {
			h.logger.Info("Image resolution abandoned",
				slog.String("request_id", RequestIDFrom(c)),
				slog.Any("err", err))
		}
		c.Status(http.StatusNoContent)
		return
	}

	c.Header("X-Image-Tier", candidate.Tier)

	if h.redirect {
		c.Redirect(http.StatusFound, candidate.SourceURL)
		return
	}

	c.Data(http.StatusOK, candidate.ContentType, candidate.Body)
}

func noCache(c *gin.Context) {
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
}
