// Package config loads the YAML configuration that declares servers,
// custom metric definitions and cache/collector settings (spec.md §6,
// "Config surface consumed from collaborators").
package config

import (
	"fmt"
	"io/ioutil"
	"time"

	"github.com/blang/semver"
	"gopkg.in/yaml.v2"

	"github.com/lesovsky/pgexporter/internal/filter"
	"github.com/lesovsky/pgexporter/internal/model"
	"github.com/lesovsky/pgexporter/internal/vtree"
)

const (
	defaultListenAddress     = "127.0.0.1:9187"
	defaultReadTimeoutSecond = 5
)

// Column is the YAML shape of a query variant's column.
type Column struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description,omitempty"`
}

// Variant is the YAML shape of one version-gated query alternative.
type Variant struct {
	Version     string   `yaml:"version"`
	Query       string   `yaml:"query"`
	Columns     []Column `yaml:"columns"`
	IsHistogram bool     `yaml:"histogram,omitempty"`
}

// Entry is the YAML shape of one custom metric definition.
type Entry struct {
	Tag             string    `yaml:"tag"`
	Collector       string    `yaml:"collector"`
	SortType        string    `yaml:"sort_type"`
	ServerQueryType string    `yaml:"server_query_type"`
	Variants        []Variant `yaml:"variants"`
	ExtVariants     []Variant `yaml:"ext_variants,omitempty"`
}

// Server is the YAML shape of one configured Postgres server.
type Server struct {
	Name    string `yaml:"name"`
	DSN     string `yaml:"dsn"`
	Primary bool   `yaml:"primary,omitempty"`
}

// Config is the root YAML document.
type Config struct {
	ListenAddress       string   `yaml:"listen_address"`
	LogLevel            string   `yaml:"log_level"`
	MetricsCacheMaxAge  int64    `yaml:"metrics_cache_max_age"`
	MetricsCacheMaxSize int      `yaml:"metrics_cache_max_size"`
	ReadTimeoutSeconds  int64    `yaml:"read_timeout_seconds"`
	Collectors          []string `yaml:"collectors"`
	Servers             []Server `yaml:"servers"`
	Prometheus          []Entry  `yaml:"prometheus"`
}

// ReadTimeout is the request-read deadline applied per connection
// (spec.md §4.E's "authentication-timeout bound").
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

// Load reads and parses a YAML configuration file, applying defaults.
func Load(path string) (*Config, error) {
	content, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c Config
	if err := yaml.Unmarshal(content, &c); err != nil {
		return nil, err
	}

	c.applyDefaults()

	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddress == "" {
		c.ListenAddress = defaultListenAddress
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ReadTimeoutSeconds == 0 {
		c.ReadTimeoutSeconds = defaultReadTimeoutSecond
	}
}

// Validate checks the configuration for obviously invalid values.
func (c *Config) Validate() error {
	if len(c.Servers) == 0 {
		return fmt.Errorf("at least one server must be configured")
	}

	seen := make(map[string]struct{}, len(c.Servers))
	for _, s := range c.Servers {
		if s.Name == "" {
			return fmt.Errorf("server entry missing name")
		}
		if s.DSN == "" {
			return fmt.Errorf("server %q: missing dsn", s.Name)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("server %q: duplicate name", s.Name)
		}
		seen[s.Name] = struct{}{}
	}

	for _, e := range c.Prometheus {
		if e.Tag == "" {
			return fmt.Errorf("prometheus entry missing tag")
		}
		if len(e.Variants) == 0 {
			return fmt.Errorf("prometheus entry %q: no query variants", e.Tag)
		}
	}

	return nil
}

// Filters builds the collector include-list from the configured
// collectors.
func (c *Config) Filters() filter.Set {
	return filter.NewSet(c.Collectors)
}

// BuildServers converts the YAML server list into model.Server values,
// index-assigned in declaration order. Role starts from the primary
// hint (RoleUnknown without it); liveness and version are left
// zero-valued. All three are refreshed by store.OpenConnections.
func (c *Config) BuildServers() []*model.Server {
	servers := make([]*model.Server, len(c.Servers))
	for i, s := range c.Servers {
		role := model.RoleUnknown
		if s.Primary {
			role = model.RolePrimary
		}
		servers[i] = &model.Server{
			Index:           i,
			Name:            s.Name,
			DSN:             s.DSN,
			Role:            role,
			ExtensionUsable: true,
		}
	}
	return servers
}

// BuildEntries converts the YAML prometheus list into
// model.PrometheusEntry values, building one AVL version tree per
// entry (and a second one for ext_variants, if present).
func (c *Config) BuildEntries() ([]*model.PrometheusEntry, error) {
	entries := make([]*model.PrometheusEntry, 0, len(c.Prometheus))

	for _, e := range c.Prometheus {
		root, err := buildTree(e.Variants)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", e.Tag, err)
		}

		extRoot, err := buildTree(e.ExtVariants)
		if err != nil {
			return nil, fmt.Errorf("entry %q: ext_variants: %w", e.Tag, err)
		}

		entries = append(entries, &model.PrometheusEntry{
			Tag:             e.Tag,
			Collector:       e.Collector,
			SortType:        parseSortType(e.SortType),
			ServerQueryType: parseServerQueryType(e.ServerQueryType),
			Root:            root,
			ExtRoot:         extRoot,
		})
	}

	return entries, nil
}

func buildTree(variants []Variant) (*model.VTreeNode, error) {
	var root *model.VTreeNode

	for _, v := range variants {
		version, err := semver.Parse(v.Version)
		if err != nil {
			return nil, fmt.Errorf("variant %q: %w", v.Version, err)
		}

		columns := make([]model.Column, len(v.Columns))
		for i, col := range v.Columns {
			columns[i] = model.Column{
				Name:        col.Name,
				Type:        parseColumnType(col.Type),
				Description: col.Description,
			}
		}

		variant := model.QueryVariant{
			SQL:         v.Query,
			Columns:     columns,
			IsHistogram: v.IsHistogram,
		}

		root = vtree.Insert(root, vtree.NewNode(version, variant))
	}

	return root, nil
}

func parseColumnType(s string) model.ColumnType {
	switch s {
	case "gauge":
		return model.ColumnGauge
	case "counter":
		return model.ColumnCounter
	case "histogram":
		return model.ColumnHistogram
	default:
		return model.ColumnLabel
	}
}

func parseSortType(s string) model.SortDiscipline {
	if s == "by_first_column" {
		return model.SortByFirstColumn
	}
	return model.SortByName
}

func parseServerQueryType(s string) model.ServerQueryType {
	switch s {
	case "primary_only":
		return model.ServerQueryPrimary
	case "replica_only":
		return model.ServerQueryReplica
	default:
		return model.ServerQueryAny
	}
}
