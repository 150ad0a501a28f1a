// Package model defines the data types shared across the exporter core:
// servers, metric definitions, version-tree nodes and query results.
package model

import "github.com/blang/semver"

// ColumnType is the semantic type of a query-result column.
type ColumnType int

const (
	// ColumnLabel marks a column that only contributes to the label set.
	ColumnLabel ColumnType = iota
	// ColumnGauge marks a column that renders as a gauge value line.
	ColumnGauge
	// ColumnCounter marks a column that renders as a counter value line.
	ColumnCounter
	// ColumnHistogram marks a column that renders as a histogram triad.
	ColumnHistogram
)

// String returns the Prometheus TYPE keyword for the column type.
func (t ColumnType) String() string {
	switch t {
	case ColumnGauge:
		return "gauge"
	case ColumnCounter:
		return "counter"
	case ColumnHistogram:
		return "histogram"
	default:
		return ""
	}
}

// SortDiscipline controls how a family's value lines are ordered within
// the column store.
type SortDiscipline int

const (
	// SortByName preserves stable server-merge order (append at tail).
	SortByName SortDiscipline = iota
	// SortByFirstColumn groups tuples sharing the same first-column value.
	SortByFirstColumn
)

// ServerQueryType restricts a metric to a subset of servers by role.
type ServerQueryType int

const (
	// ServerQueryAny runs the metric on every connected server.
	ServerQueryAny ServerQueryType = iota
	// ServerQueryPrimary restricts the metric to primary servers.
	ServerQueryPrimary
	// ServerQueryReplica restricts the metric to replica servers.
	ServerQueryReplica
)

// ServerRole describes a server's replication role.
type ServerRole int

const (
	// RoleUnknown is used before the first successful role probe.
	RoleUnknown ServerRole = iota
	// RolePrimary marks a server accepting writes.
	RolePrimary
	// RoleReplica marks a server in recovery.
	RoleReplica
)

// Column describes one column of a query variant.
type Column struct {
	Name        string
	Type        ColumnType
	Description string
}

// QueryVariant is one SQL query plus its column schema, the payload
// carried by a version-tree node.
type QueryVariant struct {
	SQL     string
	Columns []Column
	// IsHistogram marks a variant whose result carries pre-aggregated
	// bound/bucket arrays rather than a flat row of scalar columns.
	IsHistogram bool
}

// NumColumns returns the declared column count.
func (v QueryVariant) NumColumns() int {
	return len(v.Columns)
}

// ColumnNames returns the declared column names in order.
func (v QueryVariant) ColumnNames() []string {
	names := make([]string, len(v.Columns))
	for i, c := range v.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndexByName returns the index of the column with the given name,
// or -1 if not present.
func (v QueryVariant) ColumnIndexByName(name string) int {
	for i, c := range v.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// VTreeNode is one node of an AVL tree keyed on a semantic version,
// see internal/vtree for the tree operations.
type VTreeNode struct {
	Version semver.Version
	Variant QueryVariant
	Left    *VTreeNode
	Right   *VTreeNode
	Height  int
}

// PrometheusEntry is a configured metric definition: a tag, a collector
// group, a sort discipline, a server scope, and two version trees (one
// keyed on PostgreSQL version, one on an optional extension version).
type PrometheusEntry struct {
	Tag             string
	Collector       string
	SortType        SortDiscipline
	ServerQueryType ServerQueryType
	// Root is the version tree keyed on PostgreSQL server version.
	Root *VTreeNode
	// ExtRoot is the version tree keyed on extension version; nil unless
	// the entry's variants are gated by an extension rather than core.
	ExtRoot *VTreeNode
}

// Server identifies one monitored PostgreSQL instance.
type Server struct {
	Index  int
	Name   string
	DSN    string
	Online bool
	Role   ServerRole
	// Version is the server's PostgreSQL version, valid only when Online,
	// used for version-tree comparisons.
	Version semver.Version
	// VersionText is the human-readable version string as PostgreSQL
	// itself reports it (e.g. "14.2"), used for display/labels. It is
	// derived independently of Version, which is padded to a 3-field
	// semver for comparison purposes and is not fit for display.
	VersionText string
	// ExtVersion is the monitored extension's version, if configured.
	ExtVersion semver.Version
	// ExtensionUsable latches false on the first extension-query failure
	// and is never re-enabled until process restart (see DESIGN.md).
	ExtensionUsable bool
}

// IsPrimary reports whether the server's last known role is primary.
func (s Server) IsPrimary() bool {
	return s.Role == RolePrimary
}

// IsReplica reports whether the server's last known role is replica.
func (s Server) IsReplica() bool {
	return s.Role == RoleReplica
}

// Tuple is one ordered row of string cells plus the originating server index.
type Tuple struct {
	Server int
	Data   []string
}

// ResultSet is a query result: a shared column header plus an ordered
// sequence of tuples.
type ResultSet struct {
	Tag     string
	Columns []string
	Tuples  []Tuple
}

// ColumnIndex returns the index of the named column in the result's
// own header, or -1 if not present. Used for histogram mode, where
// columns are addressed positionally by name rather than by the
// variant's declared schema (spec.md §4.B.2c).
func (r ResultSet) ColumnIndex(name string) int {
	for i, n := range r.Columns {
		if n == name {
			return i
		}
	}
	return -1
}
