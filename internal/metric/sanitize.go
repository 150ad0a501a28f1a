package metric

import (
	"strconv"
	"strings"

	"github.com/lesovsky/pgexporter/internal/log"
)

// renderValue maps a raw SQL string to a numeric-valid Prometheus
// value (spec.md §4.G). tag/name are used only for the trace log on
// the fallback path.
func renderValue(tag, name, val string) string {
	if val == "" {
		return "0"
	}

	switch val {
	case "off", "f", "(disabled)":
		return "0"
	case "on", "t":
		return "1"
	case "NaN":
		return val
	}

	if _, err := strconv.ParseInt(val, 10, 64); err == nil {
		return val
	}

	if _, err := strconv.ParseFloat(val, 64); err == nil {
		return val
	}

	log.Tracef("render_value(%s/%s): %s", tag, name, val)

	return "1"
}

// safeKey replaces each '.' with '_', except a trailing '.' which is
// dropped entirely (spec.md §4.G).
func safeKey(key string) string {
	if key == "" {
		return key
	}

	key = strings.TrimSuffix(key, ".")
	return strings.ReplaceAll(key, ".", "_")
}
