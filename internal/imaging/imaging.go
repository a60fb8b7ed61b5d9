// Package imaging converts uploaded image files into embeddable data URLs.
//
// The persisted format stores images inline with the posts and the profile
// (a base64 data URL), not as files on disk. That keeps the whole state in
// the key-value store — one backup, one restore, no orphaned upload
// directory — at the usual data-URL cost of ~33% size overhead.
package imaging

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MaxImageBytes caps a single upload. Data URLs are re-serialized with the
// whole posts collection on every mutation, so huge images would make
// every write slow, not just this one.
const MaxImageBytes = 5 << 20 // 5 MiB

var (
	ErrNotImage = errors.New("imaging: file is not a recognized image")
	ErrTooLarge = errors.New("imaging: image exceeds size limit")
)

// DataURL reads an uploaded file and returns it as a base64 data URL
// ("data:image/png;base64,...").
//
// The content type comes from sniffing the first bytes, not from the
// client-supplied filename or header — those are trivially forged.
func DataURL(r io.Reader) (string, error) {
	// Read one byte past the limit so we can tell "exactly at the limit"
	// from "too big".
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("imaging: reading upload: %w", err)
	}
	if len(data) > MaxImageBytes {
		return "", ErrTooLarge
	}
	if len(data) == 0 {
		return "", ErrNotImage
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", ErrNotImage
	}

	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data)), nil
}
