// Package webserver implements the raw HTTP surface (spec.md §4.E): a
// one-shot-per-connection handler that parses the request line by
// hand, routes to the home or metrics page, and writes every freshly
// built successful response with manual chunked-transfer framing (a
// metrics cache hit is written as a flat byte run). This is a
// deliberate departure from net/http (see DESIGN.md) to mirror the
// wire-level behavior original_source/src/libpgexporter/prometheus.c
// implements directly on top of its own socket plumbing.
package webserver

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/lesovsky/pgexporter/internal/cache"
	"github.com/lesovsky/pgexporter/internal/filter"
	"github.com/lesovsky/pgexporter/internal/log"
	"github.com/lesovsky/pgexporter/internal/metric"
	"github.com/lesovsky/pgexporter/internal/model"
	"github.com/lesovsky/pgexporter/internal/store"
)

const (
	pageUnknown = iota
	pageHome
	pageMetrics
	pageBadRequest
)

// httpTimeLayout matches the original's ctime_r output (e.g. "Thu Jan
// 1 00:00:00 1970"), trailing newline already stripped by the layout.
const httpTimeLayout = time.ANSIC

// Server holds everything one request needs to build a response: the
// configured metrics, the servers to scrape and the shared response
// cache. It carries no other state and is safe to share across
// concurrently handled connections.
type Server struct {
	Entries      []*model.PrometheusEntry
	Servers      []*model.Server
	Filters      filter.Set
	Cache        *cache.Cache
	BuildVersion string
	ReadTimeout  time.Duration
}

// HandleConn answers exactly one request on conn and returns; the
// caller is responsible for closing conn once this returns (spec.md
// §4.E: "one-shot per connection").
func (s *Server) HandleConn(ctx context.Context, conn net.Conn) {
	if s.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(s.ReadTimeout)); err != nil {
			log.Debugf("webserver: set read deadline failed: %s", err)
		}
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		log.Debugf("webserver: request read failed: %s", err)
		writeBadRequest(conn)
		return
	}

	switch resolvePage(line) {
	case pageHome:
		writeHomePage(conn, s.collectorTags())
	case pageMetrics:
		s.writeMetricsPage(ctx, conn)
	case pageBadRequest:
		writeBadRequest(conn)
	default:
		writeForbidden(conn)
	}
}

// resolvePage parses a request line ("GET /metrics HTTP/1.1\r\n") the
// way the original does: the first three bytes must be "GET", the
// path starts right after the space at offset 4 and ends at the next
// space (spec.md §4.E).
func resolvePage(line string) int {
	if len(line) < 3 || line[:3] != "GET" {
		return pageBadRequest
	}
	if len(line) < 5 {
		return pageBadRequest
	}

	rest := line[4:]
	end := strings.IndexByte(rest, ' ')
	if end == -1 {
		return pageBadRequest
	}

	switch rest[:end] {
	case "/", "/index.html":
		return pageHome
	case "/metrics":
		return pageMetrics
	}

	return pageUnknown
}

func (s *Server) collectorTags() []string {
	if len(s.Entries) == 0 {
		return []string{"postgresql_active", "postgresql_version", "postgresql_primary", "postgresql_uptime", "settings", "extension"}
	}

	tags := make([]string, len(s.Entries))
	for i, e := range s.Entries {
		tags[i] = e.Tag
	}
	return tags
}

func httpDate() string {
	return time.Now().Format(httpTimeLayout)
}

func writeChunk(conn net.Conn, data []byte) error {
	if _, err := fmt.Fprintf(conn, "%x\r\n", len(data)); err != nil {
		return err
	}
	if _, err := conn.Write(data); err != nil {
		return err
	}
	_, err := conn.Write([]byte("\r\n"))
	return err
}

func writeFinalChunk(conn net.Conn) error {
	_, err := conn.Write([]byte("0\r\n\r\n"))
	return err
}

func writeBadRequest(conn net.Conn) {
	resp := fmt.Sprintf("HTTP/1.1 400 Bad Request\r\nDate: %s\r\n\r\n", httpDate())
	if _, err := conn.Write([]byte(resp)); err != nil {
		log.Debugf("webserver: bad request write failed: %s", err)
	}
}

func writeForbidden(conn net.Conn) {
	resp := fmt.Sprintf("HTTP/1.1 403 Forbidden\r\nDate: %s\r\n\r\n", httpDate())
	if _, err := conn.Write([]byte(resp)); err != nil {
		log.Debugf("webserver: forbidden write failed: %s", err)
	}
}

func writeHomePage(conn net.Conn, tags []string) {
	header := fmt.Sprintf("HTTP/1.1 200 OK\r\nContent-Type: text/html; charset=utf-8\r\nDate: %s\r\nTransfer-Encoding: chunked\r\n\r\n", httpDate())
	if _, err := conn.Write([]byte(header)); err != nil {
		log.Debugf("webserver: home page header write failed: %s", err)
		return
	}

	var body strings.Builder
	body.WriteString("<html>\n<head>\n  <title>pgexporter</title>\n</head>\n<body>\n  <h1>pgexporter</h1>\n  Prometheus exporter for PostgreSQL\n  <p>\n  <a href=\"/metrics\">Metrics</a>\n  <p>\n  Support for\n  <ul>\n")
	for _, tag := range tags {
		fmt.Fprintf(&body, "  <li>%s</li>\n", tag)
	}
	body.WriteString("  </ul>\n  <p>\n  <a href=\"https://pgexporter.github.io/\">pgexporter.github.io/</a>\n</body>\n</html>\n")

	if err := writeChunk(conn, []byte(body.String())); err != nil {
		log.Debugf("webserver: home page body write failed: %s", err)
		return
	}
	if err := writeFinalChunk(conn); err != nil {
		log.Debugf("webserver: home page footer write failed: %s", err)
	}
}

// writeMetricsPage serves /metrics, either straight out of the cache
// or by building a fresh scrape and streaming it chunked while
// opportunistically filling the cache for the next request (spec.md
// §4.F). The bytes appended to the cache intentionally exclude the
// Transfer-Encoding header and the chunk framing: a cache hit is
// served as a flat, self-contained byte run, not reconstructed as a
// chunked stream (matches the original's cache layout exactly).
func (s *Server) writeMetricsPage(ctx context.Context, conn net.Conn) {
	if s.Cache != nil && s.Cache.Configured() {
		s.Cache.Acquire()
		defer s.Cache.Release()

		now := time.Now()
		if s.Cache.Valid(now) {
			log.Debugf("webserver: serving metrics from cache (%d bytes)", len(s.Cache.Bytes()))
			if _, err := conn.Write(s.Cache.Bytes()); err != nil {
				log.Debugf("webserver: cached metrics write failed: %s", err)
			}
			return
		}

		s.Cache.Invalidate()
	}

	header := fmt.Sprintf("HTTP/1.1 200 OK\r\nContent-Type: text/plain; version=0.0.1; charset=utf-8\r\nDate: %s\r\n", httpDate())
	if s.Cache != nil {
		s.Cache.Append([]byte(header))
	}

	if _, err := conn.Write([]byte(header + "Transfer-Encoding: chunked\r\n\r\n")); err != nil {
		log.Debugf("webserver: metrics header write failed: %s", err)
		return
	}

	body := s.buildMetricsBody(ctx)

	if s.Cache != nil {
		s.Cache.Append([]byte(body))
	}

	if err := writeChunk(conn, []byte(body)); err != nil {
		log.Debugf("webserver: metrics body write failed: %s", err)
		return
	}
	if err := writeFinalChunk(conn); err != nil {
		log.Debugf("webserver: metrics footer write failed: %s", err)
		return
	}

	if s.Cache != nil {
		s.Cache.Finalize(time.Now())
	}
}

// buildMetricsBody runs one full scrape: standard metrics in their
// fixed sequence, then the built-in settings/extension fan-outs, then
// every configured custom metric, in that order (spec.md §5 "Ordering
// guarantees").
func (s *Server) buildMetricsBody(ctx context.Context) string {
	var sb strings.Builder

	sb.WriteString(metric.RenderState())
	sb.WriteString(metric.RenderBuildVersion(s.BuildVersion))

	conns := store.OpenConnections(ctx, s.Servers)
	defer store.CloseConnections(ctx, conns)

	sb.WriteString(metric.RenderServerActive(s.Servers))
	sb.WriteString(metric.RenderServerVersion(s.Servers))
	sb.WriteString(metric.RenderServerUptime(ctx, conns, s.Servers))
	sb.WriteString(metric.RenderServerPrimary(s.Servers))

	colStore := metric.NewStore()
	metric.IngestSettings(ctx, colStore, conns, s.Servers, s.Filters)
	metric.IngestExtensionFunctions(ctx, colStore, conns, s.Servers, s.Filters)

	serverNames := make(map[int]string, len(s.Servers))
	for _, srv := range s.Servers {
		serverNames[srv.Index] = srv.Name
	}

	fanout := metric.FanOut(ctx, s.Entries, s.Servers, conns, s.Filters)
	metric.Ingest(colStore, fanout, serverNames)

	sb.WriteString(colStore.Emit())

	return sb.String()
}
