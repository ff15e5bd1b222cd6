package core

import (
	"net/url"
	"path"
	"strings"
)

const maxBoardIDLength = 128

// NormalizeBoardID turns user input into a board key. Ids are
// case-insensitive and a shared board link resolves to its last path segment.
func NormalizeBoardID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if u, err := url.Parse(id); err == nil && u.Scheme != "" && u.Host != "" {
		id = path.Base(strings.TrimRight(u.Path, "/"))
	}
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" || id == "." || id == "/" {
		return "", ErrEmptyBoardID
	}
	if len(id) > maxBoardIDLength {
		return "", ErrBoardIDTooLong
	}
	return id, nil
}
