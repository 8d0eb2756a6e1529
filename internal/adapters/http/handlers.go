package http

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/parrot/core/internal/infrastructure/logger"
	"github.com/parrot/core/internal/ports"
)

// ConvertHandler exposes one-shot MML conversion as a JSON endpoint,
// registered ahead of the static catch-all.
type ConvertHandler struct {
	resolver  ports.Resolver
	converter ports.Converter
	logger    *logger.Logger
}

// NewConvertHandler creates a new convert handler
func NewConvertHandler(resolver ports.Resolver, converter ports.Converter, logger *logger.Logger) *ConvertHandler {
	return &ConvertHandler{
		resolver:  resolver,
		converter: converter,
		logger:    logger.WithComponent("api"),
	}
}

// Convert handles POST /api/convert
func (h *ConvertHandler) Convert(c echo.Context) error {
	var req ports.ConvertRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	root := h.resolver.Root()
	source := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(req.Path, "/")))
	if source != root && !strings.HasPrefix(source, root+string(filepath.Separator)) {
		return echo.NewHTTPError(http.StatusForbidden, "Path escapes the served root")
	}
	if filepath.Ext(source) != ".mml" {
		return echo.NewHTTPError(http.StatusBadRequest, "Path must name an .mml file")
	}

	html, err := h.converter.Convert(c.Request().Context(), source)
	if err != nil {
		h.logger.Errorw("On-demand conversion failed", "path", req.Path, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "MML conversion failed")
	}

	return c.JSON(http.StatusOK, ports.ConvertResponse{
		Path: req.Path,
		HTML: html,
	})
}
