package util

import "strconv"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

// Calculate turns a 1-based page and a size into offset and limit. Out of
// range values fall back to the first page and the default size.
func Calculate(page, size int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > MaxPageSize {
		size = DefaultPageSize
	}
	return (page - 1) * size, size
}
