package metric

import (
	"strings"
	"testing"

	"github.com/lesovsky/pgexporter/internal/model"
)

func TestStoreInsertAppendsInByNameOrder(t *testing.T) {
	s := NewStore()

	s.Insert("conns", "count", model.ColumnGauge, "connections", model.SortByName, "pgexporter_conns_count{server=\"a\"} 1\n", "a")
	s.Insert("conns", "count", model.ColumnGauge, "connections", model.SortByName, "pgexporter_conns_count{server=\"b\"} 2\n", "b")

	out := s.Emit()
	idxA := strings.Index(out, `server="a"`)
	idxB := strings.Index(out, `server="b"`)

	if idxA == -1 || idxB == -1 || idxA > idxB {
		t.Fatalf("expected server a before server b in BY_NAME order, got:\n%s", out)
	}
}

func TestStoreEmitsOneHeaderPerFamily(t *testing.T) {
	s := NewStore()

	s.Insert("conns", "count", model.ColumnGauge, "connections", model.SortByName, "pgexporter_conns_count{server=\"a\"} 1\n", "a")
	s.Insert("conns", "count", model.ColumnGauge, "connections", model.SortByName, "pgexporter_conns_count{server=\"b\"} 2\n", "b")

	out := s.Emit()
	if n := strings.Count(out, "#HELP pgexporter_conns_count"); n != 1 {
		t.Errorf("expected exactly one HELP line for the family, got %d in:\n%s", n, out)
	}
	if n := strings.Count(out, "#TYPE pgexporter_conns_count"); n != 1 {
		t.Errorf("expected exactly one TYPE line for the family, got %d in:\n%s", n, out)
	}
}

func TestStoreByFirstColumnGroupsMatchingTuples(t *testing.T) {
	s := NewStore()

	// two different settings, interleaved across two servers, merged
	// BY_FIRST_COLUMN should group same-setting lines adjacently.
	s.Insert("settings", "x", model.ColumnGauge, "", model.SortByFirstColumn, "LINE(shared_buffers,server1)\n", "shared_buffers")
	s.Insert("settings", "x", model.ColumnGauge, "", model.SortByFirstColumn, "LINE(work_mem,server1)\n", "work_mem")
	s.Insert("settings", "x", model.ColumnGauge, "", model.SortByFirstColumn, "LINE(shared_buffers,server2)\n", "shared_buffers")

	out := s.Emit()

	sb1 := strings.Index(out, "LINE(shared_buffers,server1)")
	sb2 := strings.Index(out, "LINE(shared_buffers,server2)")
	wm := strings.Index(out, "LINE(work_mem,server1)")

	if sb1 == -1 || sb2 == -1 || wm == -1 {
		t.Fatalf("missing expected lines in:\n%s", out)
	}
	if !(wm < sb1 && sb1 < sb2) {
		t.Errorf("expected work_mem (new key, placed at the front) followed by adjacent shared_buffers lines, got order in:\n%s", out)
	}
}

func TestStoreByFirstColumnInsertsNewKeyAtFront(t *testing.T) {
	s := NewStore()

	s.Insert("settings", "x", model.ColumnGauge, "", model.SortByFirstColumn, "LINE(b)\n", "b")
	s.Insert("settings", "x", model.ColumnGauge, "", model.SortByFirstColumn, "LINE(a)\n", "a")

	out := s.Emit()
	a := strings.Index(out, "LINE(a)")
	b := strings.Index(out, "LINE(b)")

	if a == -1 || b == -1 || a > b {
		t.Errorf("expected a new first-column key to land at the front, got:\n%s", out)
	}
}

func TestStoreEmitSeparatesFamiliesWithBlankLine(t *testing.T) {
	s := NewStore()

	s.Insert("one", "", model.ColumnGauge, "", model.SortByName, "pgexporter_one 1\n", "")
	s.Insert("two", "", model.ColumnGauge, "", model.SortByName, "pgexporter_two 1\n", "")

	out := s.Emit()
	if !strings.Contains(out, "pgexporter_one 1\n\n#HELP pgexporter_two") {
		t.Errorf("expected blank line between families, got:\n%s", out)
	}
}

func TestFullMetricNameHandlesTaglessColumn(t *testing.T) {
	if got := fullMetricName("state", ""); got != "pgexporter_state" {
		t.Errorf("fullMetricName(state, \"\") = %q, want pgexporter_state", got)
	}
	if got := fullMetricName("conns", "count"); got != "pgexporter_conns_count" {
		t.Errorf("fullMetricName(conns, count) = %q, want pgexporter_conns_count", got)
	}
}
