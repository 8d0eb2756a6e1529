package ports

import (
	"context"

	"github.com/parrot/core/internal/domain/resource"
)

// Resolver maps a request URL path to a concrete filesystem target
// under the served root.
type Resolver interface {
	Resolve(urlPath string) (resource.Target, error)
	// Root returns the canonical served root directory.
	Root() string
}

// Converter turns an MML source file into an HTML string. Every failure
// mode collapses into an error wrapping resource.ErrConversionFailed;
// it never panics out to the caller.
type Converter interface {
	Convert(ctx context.Context, mmlPath string) (string, error)
}

// ConvertRequest is the body of POST /api/convert.
type ConvertRequest struct {
	// Path is relative to the served root and must name an .mml file.
	Path string `json:"path" validate:"required"`
}

// ConvertResponse carries the converted document back to the API caller.
type ConvertResponse struct {
	Path string `json:"path"`
	HTML string `json:"html"`
}
