package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// CopyMap returns a shallow copy of m. A nil map stays nil.
func CopyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MergeMaps copies base and overlays every entry of overlay on top.
// Returns nil only when both inputs are empty.
func MergeMaps(base, overlay map[string]interface{}) map[string]interface{} {
	if len(base) == 0 && len(overlay) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

// Contains reports whether s is in list.
func Contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// Dedupe removes repeated and empty entries, keeping first-seen order.
func Dedupe(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, item := range list {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// Remove returns list without the first occurrence of s.
func Remove(list []string, s string) []string {
	for i, item := range list {
		if item == s {
			out := make([]string, 0, len(list)-1)
			out = append(out, list[:i]...)
			return append(out, list[i+1:]...)
		}
	}
	return list
}

// ParseKeyValues turns ["k=v", ...] into a map. Values that look like
// booleans or numbers are converted so command line input behaves like JSON.
func ParseKeyValues(pairs []string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid key=value pair %q", pair)
		}
		out[key] = ConvertScalar(value)
	}
	return out, nil
}

// ConvertScalar converts "true", "42" or "1.5" to their typed values and
// leaves everything else as a string.
func ConvertScalar(value string) interface{} {
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}
