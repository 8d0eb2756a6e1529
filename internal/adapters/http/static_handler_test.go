package http

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parrot/core/internal/application/services"
	"github.com/parrot/core/internal/domain/resource"
	"github.com/parrot/core/internal/infrastructure/logger"
)

// stubConverter stands in for the external conversion unit with a
// fixed, known output.
type stubConverter struct {
	html string
	err  error
}

func (s stubConverter) Convert(ctx context.Context, mmlPath string) (string, error) {
	return s.html, s.err
}

func newRoot(t *testing.T) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return root
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newHandler(root string, listing bool, conv stubConverter) *StaticHandler {
	log := logger.NewNop()
	resolver := services.NewResolverService(root, listing, log)
	return NewStaticHandler(resolver, conv, 64*1024, log)
}

func get(t *testing.T, h *StaticHandler, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	require.NoError(t, h.Handle(e.NewContext(req, rec)))
	return rec
}

func TestServeStaticFile(t *testing.T) {
	root := newRoot(t)
	writeFile(t, root, "style.css", "body { color: red }")

	h := newHandler(root, false, stubConverter{})
	rec := get(t, h, "/style.css", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body { color: red }", rec.Body.String())
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/css")
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("ETag"))
}

func TestServeConvertedDocument(t *testing.T) {
	root := newRoot(t)
	writeFile(t, root, "index.mml", "# home")

	h := newHandler(root, false, stubConverter{html: "<h1>home</h1>"})
	rec := get(t, h, "/", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<h1>home</h1>", rec.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("Last-Modified"))
}

func TestConditionalRequestIdempotence(t *testing.T) {
	root := newRoot(t)
	writeFile(t, root, "page.mml", "# page")

	h := newHandler(root, false, stubConverter{html: "<h1>page</h1>"})

	first := get(t, h, "/page", nil)
	require.Equal(t, http.StatusOK, first.Code)
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	// Repeating the conditional GET keeps yielding 304 with an empty
	// body and the same validator, no matter how often.
	for i := 0; i < 3; i++ {
		rec := get(t, h, "/page", http.Header{"If-None-Match": []string{etag}})
		assert.Equal(t, http.StatusNotModified, rec.Code)
		assert.Empty(t, rec.Body.String())
		assert.Equal(t, etag, rec.Header().Get("ETag"))
		assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	}
}

func TestConditionalRequestStaticFile(t *testing.T) {
	root := newRoot(t)
	writeFile(t, root, "data.txt", "payload")

	h := newHandler(root, false, stubConverter{})

	first := get(t, h, "/data.txt", nil)
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	rec := get(t, h, "/data.txt", http.Header{"If-None-Match": []string{etag}})
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())

	// A stale validator gets the full body again.
	rec = get(t, h, "/data.txt", http.Header{"If-None-Match": []string{`"deadbeef"`}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "payload", rec.Body.String())
}

func TestEtagChangesWithContent(t *testing.T) {
	root := newRoot(t)
	writeFile(t, root, "data.txt", "one")

	h := newHandler(root, false, stubConverter{})
	first := get(t, h, "/data.txt", nil).Header().Get("ETag")

	writeFile(t, root, "data.txt", "two")
	second := get(t, h, "/data.txt", nil).Header().Get("ETag")

	assert.NotEqual(t, first, second)
}

func TestConversionFailureIs500(t *testing.T) {
	root := newRoot(t)
	writeFile(t, root, "broken.mml", "# broken")

	h := newHandler(root, false, stubConverter{err: fmt.Errorf("boom: %w", resource.ErrConversionFailed)})
	rec := get(t, h, "/broken", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "MML conversion failed", rec.Body.String())
}

func TestNotFound(t *testing.T) {
	root := newRoot(t)

	h := newHandler(root, false, stubConverter{})
	rec := get(t, h, "/does/not/exist", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", rec.Body.String())
}

func TestForbiddenTraversal(t *testing.T) {
	root := newRoot(t)

	h := newHandler(root, false, stubConverter{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	// Bypass httptest's URL normalization to deliver a raw traversal path.
	req.URL.Path = "/../../etc/passwd"
	rec := httptest.NewRecorder()
	require.NoError(t, h.Handle(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden", rec.Body.String())
}

func TestDirectoryListing(t *testing.T) {
	root := newRoot(t)
	writeFile(t, root, "files/readme.txt", "hi")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "files", "sub"), 0o755))

	h := newHandler(root, true, stubConverter{})
	rec := get(t, h, "/files", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), `<a href="/files/readme.txt">readme.txt</a>`)
	assert.Contains(t, rec.Body.String(), `<a href="/files/sub/">sub/</a>`)
}

func TestDirectoryListingLinksAnchoredAtDirectory(t *testing.T) {
	root := newRoot(t)
	writeFile(t, root, "files/readme.txt", "hi")

	h := newHandler(root, true, stubConverter{})

	// With or without a trailing slash on the request, links must
	// resolve inside the listed directory, never its parent.
	for _, path := range []string{"/files", "/files/"} {
		rec := get(t, h, path, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `<a href="/files/readme.txt">readme.txt</a>`, "path=%s", path)
	}
}

func TestListingDisabledIs404(t *testing.T) {
	root := newRoot(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "files"), 0o755))

	h := newHandler(root, false, stubConverter{})
	rec := get(t, h, "/files", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
