package services

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/parrot/core/internal/domain/resource"
	"github.com/parrot/core/internal/infrastructure/logger"
)

// indexCandidates are probed, in order, when a request maps to a
// directory. MML wins over a possibly stale static HTML copy.
var indexCandidates = []string{"index.mml", "index.html"}

// suffixCandidates are probed, in order, for bare paths and for the
// last-resort sibling recovery. Same priority rule as indexCandidates.
var suffixCandidates = []string{".mml", ".html"}

// ResolverService maps URL paths to files under the served root
type ResolverService struct {
	root          string
	enableListing bool
	logger        *logger.Logger
}

// NewResolverService creates a new resolver service. root must already
// be absolute and symlink-resolved (config.Load guarantees this).
func NewResolverService(root string, enableListing bool, logger *logger.Logger) *ResolverService {
	return &ResolverService{
		root:          filepath.Clean(root),
		enableListing: enableListing,
		logger:        logger,
	}
}

// Root returns the canonical served root directory.
func (s *ResolverService) Root() string {
	return s.root
}

// Resolve determines which filesystem artifact answers a request:
//   - a directory falls back to index.mml, then index.html, then a
//     listing (when enabled);
//   - a bare path probes the .mml and .html extensions;
//   - an existing .mml file routes to conversion, any other existing
//     regular file is served as-is;
//   - as a last resort, .mml and .html siblings of the candidate are
//     probed.
//
// Any path that escapes the root fails with resource.ErrForbidden.
func (s *ResolverService) Resolve(urlPath string) (resource.Target, error) {
	rel := strings.TrimPrefix(urlPath, "/")
	candidate := filepath.Join(s.root, filepath.FromSlash(rel))
	if !s.contains(candidate) {
		return resource.Target{}, resource.ErrForbidden
	}

	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		index := ""
		for _, name := range indexCandidates {
			if p := filepath.Join(candidate, name); isRegularFile(p) {
				index = p
				break
			}
		}
		if index == "" {
			if s.enableListing {
				return s.guard(resource.Target{Kind: resource.KindListing, Path: candidate})
			}
			return resource.Target{}, resource.ErrNotFound
		}
		candidate = index
	}

	if filepath.Ext(candidate) == "" {
		for _, ext := range suffixCandidates {
			if p := candidate + ext; isRegularFile(p) {
				candidate = p
				break
			}
		}
	}

	if filepath.Ext(candidate) == ".mml" && isRegularFile(candidate) {
		return s.guard(resource.Target{Kind: resource.KindDocument, Path: candidate})
	}
	if isRegularFile(candidate) {
		return s.guard(resource.Target{Kind: resource.KindStatic, Path: candidate})
	}

	// Last resort: the requested suffix matched nothing, but a
	// convertible or static sibling might.
	for _, ext := range suffixCandidates {
		p := withExt(candidate, ext)
		if !isRegularFile(p) {
			continue
		}
		kind := resource.KindStatic
		if ext == ".mml" {
			kind = resource.KindDocument
		}
		return s.guard(resource.Target{Kind: kind, Path: p})
	}

	return resource.Target{}, resource.ErrNotFound
}

// guard re-checks containment after resolving symlinks, so a link
// inside the root cannot smuggle out files from elsewhere.
func (s *ResolverService) guard(target resource.Target) (resource.Target, error) {
	real, err := filepath.EvalSymlinks(target.Path)
	if err != nil {
		return resource.Target{}, resource.ErrNotFound
	}
	if !s.contains(real) {
		s.logger.Debugw("Symlink escapes served root", "path", target.Path, "resolved", real)
		return resource.Target{}, resource.ErrForbidden
	}
	target.Path = real
	return target, nil
}

func (s *ResolverService) contains(path string) bool {
	if path == s.root {
		return true
	}
	return strings.HasPrefix(path, s.root+string(filepath.Separator))
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// withExt swaps the candidate's extension, or appends when there is none.
func withExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
