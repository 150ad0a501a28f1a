// Package filter implements the collector include-list used by the
// query fan-out to decide which configured metric groups run (spec.md
// §4.B.1): an empty list means "include everything".
package filter

import "github.com/lesovsky/pgexporter/internal/log"

// Set is a flat collector include-list. A nil or empty Set passes
// every collector name.
type Set map[string]struct{}

// NewSet builds a Set from a list of collector-group names.
func NewSet(names []string) Set {
	if len(names) == 0 {
		return nil
	}

	s := make(Set, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}

	log.Debugf("collector include-list: %v", names)

	return s
}

// Pass reports whether collector is allowed to run. An empty set
// passes every collector.
func (s Set) Pass(collector string) bool {
	if len(s) == 0 {
		return true
	}

	_, ok := s[collector]
	return ok
}
