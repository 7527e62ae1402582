// Package pagination parses offset-based paging parameters.
package pagination

import (
	"errors"
	"strconv"
	"strings"
)

var (
	ErrInvalidLimit  = errors.New("limit must be a non-negative integer")
	ErrInvalidOffset = errors.New("offset must be a non-negative integer")
)

// Page is a window into an ordered result set.
type Page struct {
	Limit  int
	Offset int
}

// Parse reads raw limit and offset query values. Empty values take the
// defaults (defaultLimit, offset 0); a zero limit also means defaultLimit.
// Limits above maxLimit are clamped. Non-integer or negative values are
// rejected.
func Parse(limit, offset string, defaultLimit, maxLimit int) (Page, error) {
	p := Page{Limit: defaultLimit}

	if s := strings.TrimSpace(limit); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return Page{}, ErrInvalidLimit
		}
		if n > 0 {
			p.Limit = n
		}
	}
	if maxLimit > 0 && p.Limit > maxLimit {
		p.Limit = maxLimit
	}

	if s := strings.TrimSpace(offset); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return Page{}, ErrInvalidOffset
		}
		p.Offset = n
	}
	return p, nil
}
