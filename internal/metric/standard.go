package metric

import (
	"context"
	"fmt"
	"strings"

	"github.com/lesovsky/pgexporter/internal/filter"
	"github.com/lesovsky/pgexporter/internal/log"
	"github.com/lesovsky/pgexporter/internal/model"
	"github.com/lesovsky/pgexporter/internal/store"
)

const (
	queryUptimeSeconds = "SELECT extract(epoch FROM now() - pg_postmaster_start_time())::text AS uptime"
	querySettings      = "SELECT name, setting, coalesce(short_desc, '') AS description FROM pg_settings ORDER BY name"
	queryFunctions     = "SELECT p.proname AS name, " +
		"(p.pronamespace = 'pg_catalog'::regnamespace)::text AS is_system, " +
		"coalesce(d.description, '') AS description, " +
		"'gauge' AS type " +
		"FROM pg_proc p LEFT JOIN pg_description d ON d.objoid = p.oid " +
		"WHERE p.pronargs = 0 AND p.prorettype <> 'record'::regtype::oid"
)

// RenderState renders the always-on pgexporter_state family (spec.md
// §4.D): value is unconditionally 1.
func RenderState() string {
	return familyHeader("state", "", model.ColumnGauge, "The state of pgexporter") +
		"pgexporter_state 1\n\n"
}

// RenderBuildVersion renders the pgexporter_version family (spec.md
// §4.1), labeled by the build version.
func RenderBuildVersion(buildVersion string) string {
	return familyHeader("version", "", model.ColumnCounter, "The pgexporter version") +
		fmt.Sprintf("pgexporter_version{pgexporter_version=\"%s\"} 1\n\n", buildVersion)
}

// RenderServerActive renders pgexporter_postgresql_active for every
// configured server, live or not.
func RenderServerActive(servers []*model.Server) string {
	var sb strings.Builder
	sb.WriteString(familyHeader("postgresql", "active", model.ColumnGauge, "The state of PostgreSQL"))

	for _, s := range servers {
		v := "0"
		if s.Online {
			v = "1"
		}
		fmt.Fprintf(&sb, "pgexporter_postgresql_active{server=\"%s\"} %s\n", s.Name, v)
	}
	sb.WriteString("\n")

	return sb.String()
}

// RenderServerVersion renders pgexporter_postgresql_version for every
// live server.
func RenderServerVersion(servers []*model.Server) string {
	var sb strings.Builder
	header := false

	for _, s := range servers {
		if !s.Online {
			continue
		}
		if !header {
			sb.WriteString(familyHeader("postgresql", "version", model.ColumnGauge, "The PostgreSQL version"))
			header = true
		}
		fmt.Fprintf(&sb, "pgexporter_postgresql_version{server=\"%s\",version=\"%s\"} 1\n", s.Name, s.VersionText)
	}
	if header {
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderServerPrimary renders pgexporter_postgresql_primary for every
// live server.
func RenderServerPrimary(servers []*model.Server) string {
	var sb strings.Builder
	header := false

	for _, s := range servers {
		if !s.Online {
			continue
		}
		if !header {
			sb.WriteString(familyHeader("postgresql", "primary", model.ColumnGauge, "Is the PostgreSQL instance the primary"))
			header = true
		}
		v := "0"
		if s.IsPrimary() {
			v = "1"
		}
		fmt.Fprintf(&sb, "pgexporter_postgresql_primary{server=\"%s\"} %s\n", s.Name, v)
	}
	if header {
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderServerUptime queries every live server for its uptime in
// seconds and renders pgexporter_postgresql_uptime. A per-server query
// failure drops just that server's line (spec.md §7).
func RenderServerUptime(ctx context.Context, conns *store.Conns, servers []*model.Server) string {
	var sb strings.Builder
	header := false

	for _, s := range servers {
		if !s.Online {
			continue
		}

		conn := conns.Conn(s.Index)
		if conn == nil {
			continue
		}

		var out model.ResultSet
		if err := store.CustomQuery(ctx, conn, queryUptimeSeconds, "postgresql_uptime", []string{"uptime"}, s.Index, &out); err != nil {
			log.Warnf("server %q: uptime query failed: %s", s.Name, err)
			continue
		}
		if len(out.Tuples) == 0 {
			continue
		}

		if !header {
			sb.WriteString(familyHeader("postgresql", "uptime", model.ColumnCounter, "The PostgreSQL uptime in seconds"))
			header = true
		}
		fmt.Fprintf(&sb, "pgexporter_postgresql_uptime{server=\"%s\"} %s\n", s.Name, safeData(out.Tuples[0], 0))
	}
	if header {
		sb.WriteString("\n")
	}

	return sb.String()
}

// IngestSettings runs the built-in "settings" fan-out (spec.md §4.1):
// one family per pg_settings name, merged BY_FIRST_COLUMN across
// servers so identical settings coalesce into adjacent lines.
func IngestSettings(ctx context.Context, s *Store, conns *store.Conns, servers []*model.Server, filters filter.Set) {
	if !filters.Pass("settings") {
		return
	}

	for _, srv := range servers {
		if !srv.Online {
			continue
		}

		conn := conns.Conn(srv.Index)
		if conn == nil {
			continue
		}

		var out model.ResultSet
		if err := store.CustomQuery(ctx, conn, querySettings, "settings", []string{"name", "setting", "description"}, srv.Index, &out); err != nil {
			log.Warnf("server %q: settings query failed: %s", srv.Name, err)
			continue
		}

		for _, t := range out.Tuples {
			name := safeKey(safeData(t, 0))
			value := renderValue("settings", name, safeData(t, 1))
			description := safeData(t, 2)

			text := fmt.Sprintf("%s{server=\"%s\"} %s\n", fullMetricName("settings", name), srv.Name, value)
			s.Insert("settings", name, model.ColumnGauge, description, model.SortByFirstColumn, text, safeData(t, 0))
		}
	}
}

// IngestExtensionFunctions runs the built-in "extension" fan-out
// (spec.md §4.1): enumerates every zero-argument function in pg_proc
// outside pg_catalog (not only those of one extension) and exposes one family per
// function, one label per returned column, value always 1. A query
// failure on any function latches ExtensionUsable off for that server
// for the rest of the process lifetime (decided open question, see
// DESIGN.md).
func IngestExtensionFunctions(ctx context.Context, s *Store, conns *store.Conns, servers []*model.Server, filters filter.Set) {
	if !filters.Pass("extension") {
		return
	}

servers:
	for _, srv := range servers {
		if !srv.Online || !srv.ExtensionUsable {
			continue
		}

		conn := conns.Conn(srv.Index)
		if conn == nil {
			continue
		}

		var funcs model.ResultSet
		if err := store.CustomQuery(ctx, conn, queryFunctions, "pgexporter_get_functions", []string{"name", "is_system", "description", "type"}, srv.Index, &funcs); err != nil {
			log.Warnf("server %q: function enumeration failed, disabling extension metrics: %s", srv.Name, err)
			srv.ExtensionUsable = false
			continue
		}

		for _, t := range funcs.Tuples {
			name := safeData(t, 0)
			isSystem := safeData(t, 1)
			description := safeData(t, 2)

			if isSystem == "t" || isSystem == "true" {
				continue
			}
			if name == "pgexporter_get_functions" {
				continue
			}

			sql := fmt.Sprintf("SELECT * FROM %s()", name)

			var result model.ResultSet
			if err := store.CustomQuery(ctx, conn, sql, name, nil, srv.Index, &result); err != nil {
				log.Warnf("server %q: function %q failed, disabling extension metrics: %s", srv.Name, name, err)
				srv.ExtensionUsable = false
				continue servers
			}

			for _, t := range result.Tuples {
				var labelSuffix strings.Builder
				for i, col := range result.Columns {
					labelSuffix.WriteByte(',')
					labelSuffix.WriteString(col)
					labelSuffix.WriteString(`="`)
					labelSuffix.WriteString(safeKey(safeData(t, i)))
					labelSuffix.WriteString(`"`)
				}

				text := fmt.Sprintf("%s{server=\"%s\"%s} 1\n", "pgexporter_"+name, srv.Name, labelSuffix.String())
				s.Insert(name, "", model.ColumnGauge, description, model.SortByName, text, "")
			}
		}
	}
}
