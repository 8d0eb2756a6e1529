package http

import (
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/parrot/core/internal/domain/resource"
	"github.com/parrot/core/internal/infrastructure/logger"
	"github.com/parrot/core/internal/ports"
)

const htmlContentType = "text/html; charset=utf-8"

// StaticHandler is the tail of the request pipeline: it resolves the
// URL path to a filesystem target, runs MML conversion when needed, and
// is the single place that computes ETags and honors If-None-Match.
type StaticHandler struct {
	resolver  ports.Resolver
	converter ports.Converter
	chunkSize int
	logger    *logger.Logger
}

// NewStaticHandler creates a new static handler
func NewStaticHandler(resolver ports.Resolver, converter ports.Converter, chunkSize int, logger *logger.Logger) *StaticHandler {
	return &StaticHandler{
		resolver:  resolver,
		converter: converter,
		chunkSize: chunkSize,
		logger:    logger.WithComponent("static"),
	}
}

// Handle serves any request no registered route claimed.
func (h *StaticHandler) Handle(c echo.Context) error {
	target, err := h.resolver.Resolve(c.Request().URL.Path)
	switch {
	case errors.Is(err, resource.ErrForbidden):
		// Expected outcome, not an error condition.
		h.logger.Debugw("Path escapes served root", "path", c.Request().URL.Path)
		return c.String(http.StatusForbidden, "Forbidden")
	case errors.Is(err, resource.ErrNotFound):
		h.logger.Debugw("No matching file", "path", c.Request().URL.Path)
		return c.String(http.StatusNotFound, "Not Found")
	case err != nil:
		return err
	}

	switch target.Kind {
	case resource.KindDocument:
		return h.serveDocument(c, target.Path)
	case resource.KindListing:
		return h.serveListing(c, target.Path)
	default:
		return h.serveFile(c, target.Path)
	}
}

// serveDocument converts an MML source and serves the generated HTML.
func (h *StaticHandler) serveDocument(c echo.Context, sourcePath string) error {
	doc, err := h.converter.Convert(c.Request().Context(), sourcePath)
	if err != nil {
		return c.String(http.StatusInternalServerError, "MML conversion failed")
	}
	return h.respondGenerated(c, []byte(doc), sourcePath)
}

// serveListing renders a minimal HTML index for a directory without an
// index file. Subdirectories carry a trailing slash.
func (h *StaticHandler) serveListing(c echo.Context, dirPath string) error {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return fmt.Errorf("listing %s: %w", dirPath, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)

	// Anchor links at the listed directory: without the trailing slash
	// a bare entry name would resolve against the parent.
	base := c.Request().URL.Path
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	body := "<html><body><h1>Directory listing for " + html.EscapeString(c.Request().URL.Path) + "</h1><ul>"
	for _, name := range names {
		escaped := html.EscapeString(name)
		body += fmt.Sprintf(`<li><a href="%s">%s</a></li>`, html.EscapeString(base)+escaped, escaped)
	}
	body += "</ul></body></html>"

	return h.respondGenerated(c, []byte(body), dirPath)
}

// respondGenerated serves volatile HTML produced on this request.
// Clients must revalidate, but an unchanged source keeps yielding the
// same ETag, so revalidation stays cheap.
func (h *StaticHandler) respondGenerated(c echo.Context, body []byte, sourcePath string) error {
	etag := resource.ETag(body)

	modified, ok := resource.ModTime(sourcePath)
	if !ok {
		modified = time.Now()
	}

	header := c.Response().Header()
	header.Set(echo.HeaderContentType, htmlContentType)
	header.Set("ETag", etag)
	header.Set("Cache-Control", string(resource.CacheVolatile))
	header.Set("Last-Modified", modified.UTC().Format(http.TimeFormat))

	if validatorMatches(c, etag) {
		return c.NoContent(http.StatusNotModified)
	}
	return c.Blob(http.StatusOK, htmlContentType, body)
}

// serveFile serves static bytes, streamed in fixed-size chunks so large
// files never sit fully in memory.
func (h *StaticHandler) serveFile(c echo.Context, path string) error {
	etag, err := resource.ETagFromFile(path)
	if err != nil {
		// The file existed at resolution time; losing the race to a
		// concurrent delete is a 404, not a fault.
		if os.IsNotExist(err) {
			return c.String(http.StatusNotFound, "Not Found")
		}
		return fmt.Errorf("hashing %s: %w", path, err)
	}

	header := c.Response().Header()
	header.Set(echo.HeaderContentType, resource.GuessMIMEType(path))
	header.Set("ETag", etag)
	header.Set("Cache-Control", string(resource.CacheShortPublic))

	if validatorMatches(c, etag) {
		return c.NoContent(http.StatusNotModified)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil {
		header.Set(echo.HeaderContentLength, strconv.FormatInt(info.Size(), 10))
	}
	c.Response().WriteHeader(http.StatusOK)

	buf := make([]byte, h.chunkSize)
	if _, err := io.CopyBuffer(c.Response(), f, buf); err != nil {
		// Client went away mid-send; abort the copy and let the
		// deferred close release the handle.
		h.logger.Debugw("Aborted streaming send", "path", path, "error", err)
	}
	return nil
}

// validatorMatches reports whether the request presented the current
// entity tag. The comparison is strong and exact: no weak tags, no wildcard.
func validatorMatches(c echo.Context, etag string) bool {
	return c.Request().Header.Get("If-None-Match") == etag
}
