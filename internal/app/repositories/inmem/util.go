package inmem

import (
	"sort"

	"github.com/aits/backend/internal/pkg/helpers"
)

func sortByID[T any](list []T, id func(T) int64) {
	sort.Slice(list, func(i, j int) bool { return id(list[i]) < id(list[j]) })
}

// page slices list according to the 1-based page and size.
func page[T any](list []T, pageNum, size int) []T {
	offset, limit := helpers.CalculateOffsetLimit(pageNum, size)
	start := int(offset)
	if start >= len(list) {
		return []T{}
	}
	end := start + limit
	if end > len(list) {
		end = len(list)
	}
	return list[start:end]
}
