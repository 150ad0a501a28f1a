package metric

import (
	"fmt"
	"strings"

	"github.com/lesovsky/pgexporter/internal/log"
	"github.com/lesovsky/pgexporter/internal/model"
)

// Ingest renders every fan-out entry's tuples into store, dispatching
// histogram variants to their own encoding (spec.md §4.D) and every
// other column to the gauge/counter line renderer. serverNames maps a
// server index to its configured name, used in the `server=` label.
func Ingest(s *Store, entries []FanoutEntry, serverNames map[int]string) {
	for _, e := range entries {
		if e.Variant.IsHistogram {
			ingestHistogram(s, e, serverNames)
			continue
		}
		ingestGaugeCounter(s, e, serverNames)
	}
}

// labelColumn pairs a LABEL-typed column with its index in the
// variant's declared schema, so tuple values can be fetched
// positionally.
type labelColumn struct {
	idx int
	col model.Column
}

func labelColumns(v model.QueryVariant) []labelColumn {
	var labels []labelColumn
	for i, col := range v.Columns {
		if col.Type == model.ColumnLabel {
			labels = append(labels, labelColumn{idx: i, col: col})
		}
	}
	return labels
}

func ingestGaugeCounter(s *Store, e FanoutEntry, serverNames map[int]string) {
	labels := labelColumns(e.Variant)

	for i, col := range e.Variant.Columns {
		if col.Type == model.ColumnLabel {
			continue
		}

		for _, t := range e.Result.Tuples {
			text := gaugeCounterLine(e.Tag, col.Name, serverNames[t.Server], labels, t, i)
			var firstField string
			if len(t.Data) > 0 {
				firstField = t.Data[0]
			}
			s.Insert(e.Tag, col.Name, col.Type, col.Description, e.SortType, text, firstField)
		}
	}
}

func gaugeCounterLine(tag, name, serverName string, labels []labelColumn, t model.Tuple, valueIdx int) string {
	var sb strings.Builder

	sb.WriteString(fullMetricName(tag, name))
	sb.WriteString(`{server="`)
	sb.WriteString(serverName)
	sb.WriteByte('"')
	writeLabels(&sb, labels, t)
	sb.WriteString(`} `)
	sb.WriteString(renderValue(tag, name, safeData(t, valueIdx)))
	sb.WriteByte('\n')

	return sb.String()
}

func writeLabels(sb *strings.Builder, labels []labelColumn, t model.Tuple) {
	for _, l := range labels {
		sb.WriteByte(',')
		sb.WriteString(l.col.Name)
		sb.WriteString(`="`)
		sb.WriteString(safeKey(safeData(t, l.idx)))
		sb.WriteString(`"`)
	}
}

func safeData(t model.Tuple, idx int) string {
	if idx < 0 || idx >= len(t.Data) {
		return ""
	}
	return t.Data[idx]
}

// histogramNames are the four column names a histogram variant's
// result is expected to carry: bounds, bucket counts, sum and count
// (spec.md §4.D).
type histogramNames struct {
	bounds, buckets, sum, count string
}

func namesFor(base string) histogramNames {
	return histogramNames{
		bounds:  base,
		buckets: base + "_bucket",
		sum:     base + "_sum",
		count:   base + "_count",
	}
}

func ingestHistogram(s *Store, e FanoutEntry, serverNames map[int]string) {
	hIdx := -1
	for i, c := range e.Variant.Columns {
		if c.Type == model.ColumnHistogram {
			hIdx = i
			break
		}
	}
	if hIdx == -1 {
		return
	}

	base := e.Variant.Columns[hIdx].Name
	names := namesFor(base)

	var labels []labelColumn
	for i := 0; i < hIdx; i++ {
		labels = append(labels, labelColumn{idx: i, col: e.Variant.Columns[i]})
	}

	boundsIdx := e.Result.ColumnIndex(names.bounds)
	bucketsIdx := e.Result.ColumnIndex(names.buckets)
	sumIdx := e.Result.ColumnIndex(names.sum)
	countIdx := e.Result.ColumnIndex(names.count)

	for _, t := range e.Result.Tuples {
		if boundsIdx < 0 || bucketsIdx < 0 || sumIdx < 0 || countIdx < 0 {
			continue
		}

		bounds := parseArray(safeData(t, boundsIdx))
		buckets := parseArray(safeData(t, bucketsIdx))

		if len(bounds) != len(buckets) {
			log.Warnf("entry %q: histogram %q: bounds/buckets length mismatch, skipping tuple", e.Tag, base)
			continue
		}

		serverName := serverNames[t.Server]
		var labelSuffix strings.Builder
		writeLabels(&labelSuffix, labels, t)

		var firstField string
		if len(t.Data) > 0 {
			firstField = t.Data[0]
		}

		bucketMetric := fullMetricName(e.Tag, names.buckets)
		for i := range bounds {
			text := fmt.Sprintf("%s{le=\"%s\",server=\"%s\"%s} %s\n",
				bucketMetric, bounds[i], serverName, labelSuffix.String(), buckets[i])
			s.Insert(e.Tag, names.buckets, model.ColumnHistogram, e.Variant.Columns[hIdx].Description, e.SortType, text, firstField)
		}

		countVal := safeData(t, countIdx)
		infText := fmt.Sprintf("%s{le=\"+Inf\",server=\"%s\"%s} %s\n",
			bucketMetric, serverName, labelSuffix.String(), countVal)
		s.Insert(e.Tag, names.buckets, model.ColumnHistogram, e.Variant.Columns[hIdx].Description, e.SortType, infText, firstField)

		sumMetric := fullMetricName(e.Tag, names.sum)
		sumText := fmt.Sprintf("%s{server=\"%s\"%s} %s\n", sumMetric, serverName, labelSuffix.String(), safeData(t, sumIdx))
		s.Insert(e.Tag, names.sum, model.ColumnGauge, "", e.SortType, sumText, firstField)

		countMetric := fullMetricName(e.Tag, names.count)
		countText := fmt.Sprintf("%s{server=\"%s\"%s} %s\n", countMetric, serverName, labelSuffix.String(), countVal)
		s.Insert(e.Tag, names.count, model.ColumnGauge, "", e.SortType, countText, firstField)
	}
}

// parseArray parses a Postgres `{a,b,c}` array literal into its
// elements (spec.md §4.D): strip the braces, split on comma, trim
// nothing else.
func parseArray(raw string) []string {
	raw = strings.TrimPrefix(raw, "{")
	raw = strings.TrimSuffix(raw, "}")
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
