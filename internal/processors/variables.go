package processors

import (
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DefaultGenerators returns the built-in date, time and id variables.
// now is evaluated on every call; a nil now uses time.Now.
func DefaultGenerators(now func() time.Time) map[string]Generator {
	if now == nil {
		now = time.Now
	}
	return map[string]Generator{
		"date":      func() string { return now().Format("2006-01-02") },
		"time":      func() string { return now().Format("15:04:05") },
		"datetime":  func() string { return now().Format("2006-01-02 15:04:05") },
		"iso":       func() string { return now().Format(time.RFC3339) },
		"timestamp": func() string { return strconv.FormatInt(now().UnixMilli(), 10) },
		"year":      func() string { return strconv.Itoa(now().Year()) },
		"month":     func() string { return now().Format("01") },
		"day":       func() string { return now().Format("02") },
		"weekday":   func() string { return now().Weekday().String() },
		"timezone":  func() string { return now().Location().String() },
		"uuid":      uuid.NewString,
		"uuid_short": func() string {
			return uuid.NewString()[:8]
		},
		"random": func() string { return strconv.Itoa(rand.IntN(1_000_000)) },
	}
}

// MergeGenerators overlays later maps over earlier ones.
func MergeGenerators(sets ...map[string]Generator) map[string]Generator {
	out := make(map[string]Generator)
	for _, set := range sets {
		for name, gen := range set {
			out[name] = gen
		}
	}
	return out
}
