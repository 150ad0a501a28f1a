package metric

import (
	"fmt"
	"strings"

	"github.com/lesovsky/pgexporter/internal/model"
)

// bucketKey identifies a family: the tag, column name (empty for a
// tagless metric) and semantic type together pick exactly one bucket
// (spec.md §4.C "match key").
type bucketKey struct {
	tag  string
	name string
	typ  model.ColumnType
}

// line is one rendered value line plus the first-column value of its
// originating tuple, used only by the BY_FIRST_COLUMN insertion scan.
type line struct {
	text       string
	firstField string
}

type bucket struct {
	key      bucketKey
	sortType model.SortDiscipline
	header   string
	lines    []line
}

// insert places l into the bucket per its sort discipline (spec.md
// §4.C): BY_NAME appends at the tail; BY_FIRST_COLUMN scans to the
// last line sharing l.firstField and inserts immediately after it, or
// at the front if no such line exists yet.
func (b *bucket) insert(l line) {
	if b.sortType != model.SortByFirstColumn || len(b.lines) == 0 {
		b.lines = append(b.lines, l)
		return
	}

	insertAt := -1
	for i, existing := range b.lines {
		if existing.firstField == l.firstField {
			insertAt = i
		}
	}

	if insertAt == -1 {
		b.lines = append([]line{l}, b.lines...)
		return
	}

	b.lines = append(b.lines, line{})
	copy(b.lines[insertAt+2:], b.lines[insertAt+1:])
	b.lines[insertAt+1] = l
}

// Store is the column-grouping engine (spec.md §4.C): an
// insertion-ordered collection of buckets keyed by (tag, column-name,
// type), replacing the original's fixed-size store[MISC_LENGTH] array
// (spec.md §9) with a growable container.
type Store struct {
	order []*bucket
	byKey map[bucketKey]*bucket
}

// NewStore returns an empty column store, good for exactly one scrape.
func NewStore() *Store {
	return &Store{byKey: make(map[bucketKey]*bucket)}
}

// findOrCreate returns the bucket for key, creating it (and its header
// line) on first use.
func (s *Store) findOrCreate(key bucketKey, sortType model.SortDiscipline, description string) *bucket {
	if b, ok := s.byKey[key]; ok {
		return b
	}

	b := &bucket{key: key, sortType: sortType, header: familyHeader(key.tag, key.name, key.typ, description)}
	s.byKey[key] = b
	s.order = append(s.order, b)

	return b
}

// Insert renders one value line into the bucket for (tag, name, typ),
// creating the bucket (with HELP/TYPE header) on first use.
func (s *Store) Insert(tag, name string, typ model.ColumnType, description string, sortType model.SortDiscipline, text, firstField string) {
	b := s.findOrCreate(bucketKey{tag: tag, name: name, typ: typ}, sortType, description)
	b.insert(line{text: text, firstField: firstField})
}

// Emit concatenates every bucket's header and value lines, in
// bucket-insertion order, each family terminated by a blank line
// (spec.md §4.C "emit buckets in store-insertion order").
func (s *Store) Emit() string {
	var sb strings.Builder

	for _, b := range s.order {
		sb.WriteString(b.header)
		for _, l := range b.lines {
			sb.WriteString(l.text)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func fullMetricName(tag, name string) string {
	if name == "" {
		return "pgexporter_" + tag
	}
	return "pgexporter_" + tag + "_" + name
}

func familyHeader(tag, name string, typ model.ColumnType, description string) string {
	full := fullMetricName(tag, name)
	if description == "" {
		description = full
	}
	return fmt.Sprintf("#HELP %s %s\n#TYPE %s %s\n", full, description, full, typ.String())
}
