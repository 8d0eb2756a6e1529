package resource

import (
	"errors"
)

// Common errors
var (
	ErrForbidden        = errors.New("path escapes the served root")
	ErrNotFound         = errors.New("no matching file")
	ErrConversionFailed = errors.New("mml conversion failed")
)

// Kind classifies what a resolved URL path maps to.
type Kind string

const (
	// KindStatic is a regular file served byte-for-byte.
	KindStatic Kind = "static"
	// KindDocument is an MML source that must be converted before serving.
	KindDocument Kind = "document"
	// KindListing is a directory with no index file; an HTML index is
	// generated for it when listing is enabled.
	KindListing Kind = "listing"
)

// Target is the outcome of resolving a URL path against the served root.
// Path is always inside the root: for KindStatic and KindDocument it is
// the file to serve or convert, for KindListing the directory to list.
type Target struct {
	Kind Kind
	Path string
}

// Cacheability distinguishes generated HTML from static bytes.
type Cacheability string

const (
	// CacheVolatile marks bodies generated per request; clients must
	// revalidate on every use.
	CacheVolatile Cacheability = "no-cache"
	// CacheShortPublic marks static bytes that may be reused briefly.
	CacheShortPublic Cacheability = "public, max-age=60"
)
