package utils

import (
	"hash/fnv"
	"strconv"
)

var palette = []string{
	"#e6194b", "#3cb44b", "#4363d8", "#f58231", "#911eb4",
	"#42d4f4", "#f032e6", "#469990", "#9a6324", "#800000",
}

// ColorFor picks a stable display color for a seed.
func ColorFor(seed string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return palette[h.Sum32()%uint32(len(palette))]
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ParsePositiveInt returns fallback when value is not a positive integer,
// and max when it is above max.
func ParsePositiveInt(value string, fallback, max int) int {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return fallback
	}
	if n > max {
		return max
	}
	return n
}
