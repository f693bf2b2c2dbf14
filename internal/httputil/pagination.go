package httputil

import (
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/lightldap/internal/errors"
)

const (
	// DefaultPageLimit is used when the request has no limit parameter.
	DefaultPageLimit = 100
	// MaxPageLimit bounds a single page of directory entries.
	MaxPageLimit = 1000
)

var (
	// ErrInvalidOffset indicates an offset that is not a non-negative integer.
	ErrInvalidOffset = apperrors.Wrap(apperrors.ErrInvalidInput, "offset must be a non-negative integer")
	// ErrInvalidLimit indicates a limit outside [1, MaxPageLimit].
	ErrInvalidLimit = apperrors.Wrapf(apperrors.ErrInvalidInput, "limit must be between 1 and %d", MaxPageLimit)
)

// ParsePagination reads the offset and limit query parameters. Both are zero on error.
func ParsePagination(c *gin.Context) (offset, limit int, err error) {
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		return 0, 0, ErrInvalidOffset
	}

	limit, err = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultPageLimit)))
	if err != nil || limit < 1 || limit > MaxPageLimit {
		return 0, 0, ErrInvalidLimit
	}

	return offset, limit, nil
}

// Paginate returns the window of items selected by offset and limit.
func Paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
