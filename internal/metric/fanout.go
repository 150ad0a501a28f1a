// Package metric implements the query fan-out, column-grouping,
// rendering and value-sanitizing core of the exposition pipeline
// (spec.md §4.B–§4.D, §4.G).
package metric

import (
	"context"

	"github.com/lesovsky/pgexporter/internal/filter"
	"github.com/lesovsky/pgexporter/internal/log"
	"github.com/lesovsky/pgexporter/internal/model"
	"github.com/lesovsky/pgexporter/internal/store"
	"github.com/lesovsky/pgexporter/internal/vtree"
)

// FanoutEntry is the per-(metric,server) record produced by the
// fan-out (spec.md §4.B): one resolved variant plus the result set its
// query produced on one server.
type FanoutEntry struct {
	Tag      string
	Variant  model.QueryVariant
	SortType model.SortDiscipline
	Result   model.ResultSet
}

// FanOut resolves and executes every configured metric against every
// live server, skipping collectors the include-list filters out,
// servers outside a metric's scope, and (metric, server) pairs with no
// matching version-tree variant. A query failure drops just that pair;
// it never fails the scrape as a whole (spec.md §7).
func FanOut(ctx context.Context, entries []*model.PrometheusEntry, servers []*model.Server, conns *store.Conns, filters filter.Set) []FanoutEntry {
	var out []FanoutEntry

	for _, e := range entries {
		if !filters.Pass(e.Collector) {
			continue
		}

		for _, s := range servers {
			if !s.Online {
				continue
			}
			if e.ServerQueryType == model.ServerQueryPrimary && !s.IsPrimary() {
				continue
			}
			if e.ServerQueryType == model.ServerQueryReplica && !s.IsReplica() {
				continue
			}

			node := resolveVariant(e, s)
			if node == nil {
				continue
			}

			conn := conns.Conn(s.Index)
			if conn == nil {
				continue
			}

			var colnames []string
			if !node.Variant.IsHistogram {
				colnames = node.Variant.ColumnNames()
			}

			var result model.ResultSet
			if err := store.CustomQuery(ctx, conn, node.Variant.SQL, e.Tag, colnames, s.Index, &result); err != nil {
				log.Warnf("entry %q: server %q: query failed: %s", e.Tag, s.Name, err)
				continue
			}

			out = append(out, FanoutEntry{
				Tag:      e.Tag,
				Variant:  node.Variant,
				SortType: e.SortType,
				Result:   result,
			})
		}
	}

	return out
}

// resolveVariant picks the version tree to walk: the extension tree
// keyed on the server's extension version when the entry declares one,
// otherwise the core tree keyed on the server's PostgreSQL version.
func resolveVariant(e *model.PrometheusEntry, s *model.Server) *model.VTreeNode {
	if e.ExtRoot != nil {
		if !s.ExtensionUsable {
			return nil
		}
		return vtree.Lookup(e.ExtRoot, s.ExtVersion)
	}
	return vtree.Lookup(e.Root, s.Version)
}
