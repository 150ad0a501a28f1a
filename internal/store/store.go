// Package store is the SQL collaborator consumed by the metrics core:
// it opens/closes per-server connections and executes the queries the
// version tree selects, handing results back as model.ResultSet values.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/blang/semver"
	"github.com/jackc/pgx/v4"

	"github.com/lesovsky/pgexporter/internal/log"
	"github.com/lesovsky/pgexporter/internal/model"
)

const (
	queryServerVersionNum = "SHOW server_version_num"
	queryIsInRecovery     = "SELECT pg_is_in_recovery()"
)

// Conns holds one live connection per configured server, keyed by the
// server's Index.
type Conns struct {
	byIndex map[int]*pgx.Conn
}

// OpenConnections connects to every configured server, refreshing each
// server's Online/Role/Version fields in place. A server whose
// connection or version probe fails is left Online=false and is
// excluded from the returned set, so later fan-out naturally skips it.
func OpenConnections(ctx context.Context, servers []*model.Server) *Conns {
	c := &Conns{byIndex: make(map[int]*pgx.Conn, len(servers))}

	for _, s := range servers {
		conn, err := connect(ctx, s.DSN)
		if err != nil {
			log.Warnf("server %q: connection failed: %s", s.Name, err)
			s.Online = false
			continue
		}

		version, versionText, err := probeVersion(ctx, conn)
		if err != nil {
			log.Warnf("server %q: version probe failed: %s", s.Name, err)
			s.Online = false
			_ = conn.Close(ctx)
			continue
		}

		inRecovery, err := probeRecovery(ctx, conn)
		if err != nil {
			log.Warnf("server %q: recovery probe failed: %s", s.Name, err)
		}

		s.Online = true
		s.Version = version
		s.VersionText = versionText
		if inRecovery {
			s.Role = model.RoleReplica
		} else {
			s.Role = model.RolePrimary
		}

		c.byIndex[s.Index] = conn
	}

	return c
}

// CloseConnections closes every connection opened by OpenConnections.
func CloseConnections(ctx context.Context, c *Conns) {
	for idx, conn := range c.byIndex {
		if err := conn.Close(ctx); err != nil {
			log.Warnf("server index %d: close failed: %s; ignore", idx, err)
		}
	}
}

// Conn returns the live connection for a server index, or nil if the
// server is not currently connected.
func (c *Conns) Conn(serverIndex int) *pgx.Conn {
	return c.byIndex[serverIndex]
}

func connect(ctx context.Context, dsn string) (*pgx.Conn, error) {
	config, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	// enable compatibility with pgbouncer-fronted DSNs
	config.PreferSimpleProtocol = true

	return pgx.ConnectConfig(ctx, config)
}

func probeVersion(ctx context.Context, conn *pgx.Conn) (semver.Version, string, error) {
	var numeric int
	if err := conn.QueryRow(ctx, queryServerVersionNum).Scan(&numeric); err != nil {
		return semver.Version{}, "", err
	}
	return versionFromNum(numeric), versionDisplay(numeric), nil
}

// versionFromNum converts Postgres's server_version_num (e.g. 140002)
// into a 3-field semantic version (14.0.2) for version-tree comparisons
// only; it is not a fit display form (see versionDisplay).
func versionFromNum(num int) semver.Version {
	return semver.Version{
		Major: uint64(num / 10000),
		Minor: uint64((num / 100) % 100),
		Patch: uint64(num % 100),
	}
}

// versionDisplay renders server_version_num the way PostgreSQL itself
// reports `SHOW server_version` for releases 10 and newer (e.g. 140002
// -> "14.2"), matching what the original's raw-string version query
// returns.
func versionDisplay(num int) string {
	return fmt.Sprintf("%d.%d", num/10000, num%10000)
}

func probeRecovery(ctx context.Context, conn *pgx.Conn) (bool, error) {
	var inRecovery bool
	err := conn.QueryRow(ctx, queryIsInRecovery).Scan(&inRecovery)
	return inRecovery, err
}

// CustomQuery executes q against conn and appends its rows as tuples
// into out, tagging each tuple with serverIndex. colnames is nil in
// histogram mode (spec.md §4.B.2c): out.Columns is then populated from
// the server's own field descriptions instead of the declared schema,
// since histogram columns are addressed positionally at render time.
func CustomQuery(ctx context.Context, conn *pgx.Conn, q string, tag string, colnames []string, serverIndex int, out *model.ResultSet) error {
	rows, err := conn.Query(ctx, q)
	if err != nil {
		return err
	}
	defer rows.Close()

	out.Tag = tag

	fields := rows.FieldDescriptions()
	if colnames != nil {
		out.Columns = colnames
	} else {
		names := make([]string, len(fields))
		for i, f := range fields {
			names[i] = string(f.Name)
		}
		out.Columns = names
	}

	ncols := len(fields)

	for rows.Next() {
		pointers := make([]interface{}, ncols)
		values := make([]sql.NullString, ncols)
		for i := range pointers {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			log.Warnf("tag %q: skip row: %s", tag, err)
			continue
		}

		out.Tuples = append(out.Tuples, tupleFromValues(serverIndex, values))
	}

	return rows.Err()
}

// tupleFromValues converts a scanned row into a model.Tuple, mapping
// SQL NULLs to empty strings (the sanitizer treats empty the same as
// NULL, spec.md §4.G).
func tupleFromValues(serverIndex int, values []sql.NullString) model.Tuple {
	data := make([]string, len(values))
	for i, v := range values {
		if v.Valid {
			data[i] = v.String
		}
	}
	return model.Tuple{Server: serverIndex, Data: data}
}
