package pypi

import (
	"errors"
	"strings"
)

const projectLinkPrefix = "https://pypi.org/"

// ErrInvalidLink is returned when a submitted link is not a usable PyPI
// project link.
var ErrInvalidLink = errors.New("not a valid pypi.org link")

// ParseProjectURL extracts the package slug from a project page link.
// The slug is the last non-empty path segment that does not contain a
// fragment marker.
func ParseProjectURL(link string) (string, error) {
	if !strings.HasPrefix(link, projectLinkPrefix) {
		return "", ErrInvalidLink
	}
	link = strings.TrimSuffix(link, "/")

	segments := strings.Split(link, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		if seg == "" || strings.Contains(seg, "#") {
			continue
		}
		return seg, nil
	}
	return "", ErrInvalidLink
}
