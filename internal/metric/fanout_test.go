package metric

import (
	"context"
	"testing"

	"github.com/blang/semver"
	"github.com/lesovsky/pgexporter/internal/filter"
	"github.com/lesovsky/pgexporter/internal/model"
	"github.com/lesovsky/pgexporter/internal/store"
	"github.com/lesovsky/pgexporter/internal/vtree"
)

func entryWithVariant(tag string, scope model.ServerQueryType, versions ...string) *model.PrometheusEntry {
	var root *model.VTreeNode
	for _, v := range versions {
		root = vtree.Insert(root, vtree.NewNode(semver.MustParse(v), model.QueryVariant{SQL: "select 1"}))
	}
	return &model.PrometheusEntry{
		Tag:             tag,
		Collector:       tag,
		ServerQueryType: scope,
		Root:            root,
	}
}

func TestResolveVariantWalksCoreTreeByServerVersion(t *testing.T) {
	e := entryWithVariant("conns", model.ServerQueryAny, "9.6.0", "12.0.0", "14.0.0")
	s := &model.Server{Version: semver.MustParse("13.5.0")}

	node := resolveVariant(e, s)
	if node == nil {
		t.Fatal("expected a matching variant")
	}
	if node.Version.String() != "12.0.0" {
		t.Errorf("expected greatest version not exceeding target (12.0.0), got %s", node.Version.String())
	}
}

func TestResolveVariantReturnsNilWhenExtensionUnusable(t *testing.T) {
	e := &model.PrometheusEntry{
		Tag:     "ext",
		ExtRoot: vtree.Insert(nil, vtree.NewNode(semver.MustParse("1.0.0"), model.QueryVariant{SQL: "select 1"})),
	}
	s := &model.Server{ExtensionUsable: false, ExtVersion: semver.MustParse("1.0.0")}

	if node := resolveVariant(e, s); node != nil {
		t.Errorf("expected nil when extension is unusable, got %+v", node)
	}
}

func TestFanOutSkipsCollectorsExcludedByFilter(t *testing.T) {
	ctx := context.Background()
	entries := []*model.PrometheusEntry{entryWithVariant("conns", model.ServerQueryAny, "9.6.0")}
	servers := []*model.Server{{Index: 0, Name: "s1", Online: true, Version: semver.MustParse("14.0.0")}}
	conns := store.OpenConnections(ctx, nil)
	filters := filter.NewSet([]string{"other_collector"})

	out := FanOut(ctx, entries, servers, conns, filters)
	if len(out) != 0 {
		t.Errorf("expected no fanout entries when collector is filtered out, got %d", len(out))
	}
}

func TestFanOutSkipsServerOutsideScope(t *testing.T) {
	ctx := context.Background()
	entries := []*model.PrometheusEntry{entryWithVariant("conns", model.ServerQueryPrimary, "9.6.0")}
	servers := []*model.Server{{Index: 0, Name: "replica", Online: true, Role: model.RoleReplica, Version: semver.MustParse("14.0.0")}}
	conns := store.OpenConnections(ctx, nil)
	filters := filter.NewSet(nil)

	out := FanOut(ctx, entries, servers, conns, filters)
	if len(out) != 0 {
		t.Errorf("expected replica to be skipped for a primary-only metric, got %d entries", len(out))
	}
}

func TestFanOutSkipsPairWithNoMatchingVariant(t *testing.T) {
	ctx := context.Background()
	entries := []*model.PrometheusEntry{entryWithVariant("conns", model.ServerQueryAny, "14.0.0")}
	servers := []*model.Server{{Index: 0, Name: "old", Online: true, Version: semver.MustParse("9.6.0")}}
	conns := store.OpenConnections(ctx, nil)
	filters := filter.NewSet(nil)

	out := FanOut(ctx, entries, servers, conns, filters)
	if len(out) != 0 {
		t.Errorf("expected no entry when server version predates every variant, got %d", len(out))
	}
}

func TestFanOutSkipsOfflineServers(t *testing.T) {
	ctx := context.Background()
	entries := []*model.PrometheusEntry{entryWithVariant("conns", model.ServerQueryAny, "9.6.0")}
	servers := []*model.Server{{Index: 0, Name: "down", Online: false, Version: semver.MustParse("14.0.0")}}
	conns := store.OpenConnections(ctx, nil)
	filters := filter.NewSet(nil)

	out := FanOut(ctx, entries, servers, conns, filters)
	if len(out) != 0 {
		t.Errorf("expected offline server to be skipped, got %d entries", len(out))
	}
}
