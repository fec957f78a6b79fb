package backend

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Discovery depth bounds.
const (
	MinDepth     = 1
	MaxDepth     = 5
	DefaultDepth = 3
)

// ClampDepth bounds depth to [MinDepth, MaxDepth].
func ClampDepth(depth int) int {
	switch {
	case depth < MinDepth:
		return MinDepth
	case depth > MaxDepth:
		return MaxDepth
	default:
		return depth
	}
}

// ParseDepth reads a depth from raw JSON. Numbers and numeric strings are
// returned as-is (clamping happens in Discover); null, absent, booleans and
// non-numeric strings yield DefaultDepth.
func ParseDepth(raw json.RawMessage) int {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return DefaultDepth
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		return depthFromString(num.String())
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return depthFromString(s)
	}
	return DefaultDepth
}

// ParseDepthString is ParseDepth for query parameters and CLI input.
func ParseDepthString(s string) int {
	return depthFromString(s)
}

func depthFromString(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultDepth
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if (err != nil && !errors.Is(err, strconv.ErrRange)) || math.IsNaN(f) {
		return DefaultDepth
	}
	switch {
	case f > math.MaxInt32:
		return MaxDepth
	case f < math.MinInt32:
		return MinDepth
	}
	return int(math.Trunc(f))
}
