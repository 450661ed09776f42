package common

import (
	"net/http"
	"strconv"
	"strings"
)

// AtoiDefault parses value, returning def when it is blank or not a number.
func AtoiDefault(value string, def int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return def
	}
	return parsed
}

// QueryInt reads an integer query parameter clamped to [min, max].
// Missing or malformed values yield def.
func QueryInt(r *http.Request, key string, def, min, max int) int {
	v := AtoiDefault(r.URL.Query().Get(key), def)
	if v < min {
		return min
	}
	if max > min && v > max {
		return max
	}
	return v
}
