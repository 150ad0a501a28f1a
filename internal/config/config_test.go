package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v2"

	"github.com/lesovsky/pgexporter/internal/model"
)

const sampleYAML = `
listen_address: "0.0.0.0:9187"
log_level: debug
metrics_cache_max_age: 30
metrics_cache_max_size: 1048576
collectors:
  - settings
servers:
  - name: S1
    dsn: "host=127.0.0.1 dbname=postgres user=postgres"
    primary: true
  - name: S2
    dsn: "host=127.0.0.1 port=5433 dbname=postgres user=postgres"
prometheus:
  - tag: connections
    collector: connections
    sort_type: by_name
    server_query_type: any
    variants:
      - version: "9.0.0"
        query: "SELECT count(*) AS active FROM pg_stat_activity"
        columns:
          - name: active
            type: gauge
            description: "active connections"
      - version: "9.6.0"
        query: "SELECT count(*) AS active FROM pg_stat_activity WHERE state = 'active'"
        columns:
          - name: active
            type: gauge
`

func parseSample(t *testing.T) *Config {
	t.Helper()
	var c Config
	assert.NoError(t, yaml.Unmarshal([]byte(sampleYAML), &c))
	c.applyDefaults()
	return &c
}

func TestLoadAppliesDefaults(t *testing.T) {
	var c Config
	assert.NoError(t, yaml.Unmarshal([]byte(""), &c))
	c.applyDefaults()

	assert.Equal(t, defaultListenAddress, c.ListenAddress)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, int64(defaultReadTimeoutSecond), c.ReadTimeoutSeconds)
}

func TestValidateRejectsEmptyServers(t *testing.T) {
	c := &Config{}
	assert.Error(t, c.Validate())
}

func TestValidateRejectsDuplicateServerNames(t *testing.T) {
	c := &Config{Servers: []Server{
		{Name: "S1", DSN: "x"},
		{Name: "S1", DSN: "y"},
	}}
	assert.Error(t, c.Validate())
}

func TestValidateRejectsEntryWithoutVariants(t *testing.T) {
	c := &Config{
		Servers:    []Server{{Name: "S1", DSN: "x"}},
		Prometheus: []Entry{{Tag: "t"}},
	}
	assert.Error(t, c.Validate())
}

func TestBuildServersAssignsIndexAndPrimaryHint(t *testing.T) {
	c := parseSample(t)
	servers := c.BuildServers()

	assert.Len(t, servers, 2)
	assert.Equal(t, 0, servers[0].Index)
	assert.Equal(t, "S1", servers[0].Name)
	assert.True(t, servers[0].IsPrimary())
	assert.Equal(t, model.RoleUnknown, servers[1].Role)
}

func TestBuildEntriesConstructsVersionTree(t *testing.T) {
	c := parseSample(t)
	entries, err := c.BuildEntries()
	assert.NoError(t, err)
	assert.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "connections", e.Tag)
	assert.Equal(t, model.SortByName, e.SortType)
	assert.Equal(t, model.ServerQueryAny, e.ServerQueryType)
	assert.NotNil(t, e.Root)
	// two variants inserted -> root plus one child
	assert.True(t, e.Root.Left != nil || e.Root.Right != nil)
}

func TestFiltersBuildsIncludeSet(t *testing.T) {
	c := parseSample(t)
	f := c.Filters()
	assert.True(t, f.Pass("settings"))
	assert.False(t, f.Pass("wal"))
}
