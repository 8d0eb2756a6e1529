package resource

import (
	"crypto/sha1"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"
)

// ETag computes the strong entity tag for a body: the quoted lowercase
// hex SHA-1 of its bytes. Identical content always yields an identical
// tag no matter when it was produced.
func ETag(body []byte) string {
	return fmt.Sprintf("%q", fmt.Sprintf("%x", sha1.Sum(body)))
}

// ETagFromFile computes the same tag as ETag without holding the whole
// file in memory.
func ETagFromFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%q", fmt.Sprintf("%x", h.Sum(nil))), nil
}

// GuessMIMEType maps a file name to a content type by its extension,
// falling back to application/octet-stream.
func GuessMIMEType(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// ModTime returns the file's modification time, or ok=false when the
// file cannot be stat'ed.
func ModTime(path string) (time.Time, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}
