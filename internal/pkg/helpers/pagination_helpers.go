package helpers

import (
	"math"
	"strconv"
	"strings"

	"github.com/aits/backend/internal/app/models/dto"
	"github.com/gin-gonic/gin"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	DefaultPage     = 1 // Default page is 1-based
	MaxPage         = math.MaxInt32
)

// CalculateOffsetLimit calculates the offset and limit for SQL queries based on 1-based page index.
func CalculateOffsetLimit(page, size int) (offset uint64, limit int) {
	if size <= 0 || size > MaxPageSize {
		limit = DefaultPageSize
	} else {
		limit = size
	}

	page = clampPage(page)

	offset = uint64(page-1) * uint64(limit)
	return offset, limit
}

func clampPage(page int) int {
	if page < 1 {
		return DefaultPage
	}
	if page > MaxPage {
		return MaxPage
	}
	return page
}

// NewPaginationInfo creates a standard PaginationInfo DTO.
// page should be the 1-based page number.
func NewPaginationInfo(totalItems int64, page, size int) dto.PaginationInfo {
	if size <= 0 {
		size = DefaultPageSize
	}
	page = clampPage(page)

	totalPages := 0
	if totalItems > 0 {
		totalPages = int(math.Ceil(float64(totalItems) / float64(size)))
	} else if page == 1 {
		totalPages = 1
	}

	return dto.PaginationInfo{
		CurrentPage: page,
		TotalPages:  totalPages,
		PageSize:    size,
		TotalItems:  totalItems,
	}
}

// ParsePaginationParams extracts and validates pagination parameters from the request
func ParsePaginationParams(c *gin.Context) (page, size int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		page = DefaultPage
	}
	page = clampPage(page)

	size, err = strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(DefaultPageSize)))
	if err != nil || size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}

	return page, size
}

// ParseSortParam reads ?sort=field or ?sort=-field. Fields outside allowed are ignored
// and the default (newest first) is returned.
func ParseSortParam(c *gin.Context, allowed ...string) (field string, desc bool) {
	raw := strings.TrimSpace(c.Query("sort"))
	if raw == "" {
		return "", true
	}

	desc = strings.HasPrefix(raw, "-")
	raw = strings.TrimPrefix(raw, "-")
	for _, a := range allowed {
		if a == raw {
			return raw, desc
		}
	}
	return "", true
}

// ParseInt64Query parses an optional int64 query parameter.
func ParseInt64Query(c *gin.Context, key string) (*int64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return nil, false
	}
	return &v, true
}

// ParseIDParam parses a positive int64 path parameter.
func ParseIDParam(c *gin.Context, key string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(key), 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
