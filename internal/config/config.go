// Package config provides configuration loading and structs for the lmsearch server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Layers   LayersConfig   `yaml:"layers"`
	Search   SearchConfig   `yaml:"search"`
	Sources  SourcesConfig  `yaml:"sources"`
	Detail   DetailConfig   `yaml:"detail"`
	Display  DisplayConfig  `yaml:"display"`
	Estate   EstateConfig   `yaml:"estate"`
	Sessions SessionsConfig `yaml:"sessions"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port" validate:"min=1,max=65535"`
}

// StorageConfig holds paths for the layer database and the full-text index.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path" validate:"required"`
	BleveIndexPath string `yaml:"bleve_index_path" validate:"required"`
}

// LayersConfig holds the layer directories imported and watched at startup.
type LayersConfig struct {
	Directories  []string `yaml:"directories"`
	Extensions   []string `yaml:"extensions"`
	Recursive    *bool    `yaml:"recursive"`
	NameProperty string   `yaml:"name_property"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (l *LayersConfig) RecursiveOrDefault() bool {
	if l.Recursive != nil {
		return *l.Recursive
	}
	return true
}

// SearchConfig names the record attributes and sets the suggestion list behaviour.
// Which optional attributes are set decides how a selected suggestion is resolved.
type SearchConfig struct {
	QueryAttribute     string `yaml:"query_attribute" validate:"required"`
	LayerNameAttribute string `yaml:"layer_name_attribute"`
	IDAttribute        string `yaml:"id_attribute"`
	LayerName          string `yaml:"layer_name"`
	GeometryAttribute  string `yaml:"geometry_attribute"`
	TitleAttribute     string `yaml:"title_attribute"`
	ContentAttribute   string `yaml:"content_attribute"`
	Title              string `yaml:"title"`
	EastingAttribute   string `yaml:"easting_attribute"`
	NorthingAttribute  string `yaml:"northing_attribute"`
	Limit              int    `yaml:"limit" validate:"min=1,max=100"`
	MinLength          int    `yaml:"min_length" validate:"min=1"`
	NoMatchLabel       string `yaml:"no_match_label"`
	ParcelType         string `yaml:"parcel_type"`
	ProjectionCode     string `yaml:"projection_code"`
	HintText           string `yaml:"hint_text"`
}

// EndpointConfig is one HTTP suggestion source.
type EndpointConfig struct {
	URL  string `yaml:"url" validate:"omitempty,url"`
	Type string `yaml:"type"`
}

// LocalSourceConfig enables the full-text source over imported layers. Local hits are
// grouped by their layer name.
type LocalSourceConfig struct {
	Enabled bool `yaml:"enabled"`
	Limit   int  `yaml:"limit" validate:"min=0"`
}

// ElasticsearchConfig is the remote full-text source. It is disabled without addresses.
type ElasticsearchConfig struct {
	Addresses []string `yaml:"addresses" validate:"dive,url"`
	Index     string   `yaml:"index" validate:"required_with=Addresses"`
	Fields    []string `yaml:"fields"`
	Type      string   `yaml:"type"`
	Size      int      `yaml:"size" validate:"min=0"`
}

// SourcesConfig holds the suggestion sources, queried in the order listed here.
type SourcesConfig struct {
	Timeout        time.Duration       `yaml:"timeout"`
	RateLimit      float64             `yaml:"rate_limit" validate:"min=0"`
	RateBurst      int                 `yaml:"rate_burst" validate:"min=0"`
	Municipalities []string            `yaml:"municipalities"`
	Address        EndpointConfig      `yaml:"address"`
	Parcel         EndpointConfig      `yaml:"parcel"`
	Locality       EndpointConfig      `yaml:"locality"`
	FullText       EndpointConfig      `yaml:"fulltext"`
	Municipality   EndpointConfig      `yaml:"municipality"`
	Local          LocalSourceConfig   `yaml:"local"`
	Elasticsearch  ElasticsearchConfig `yaml:"elasticsearch"`
}

// DetailConfig holds the detail lookup URL templates.
type DetailConfig struct {
	ObjectURL     string `yaml:"object_url" validate:"omitempty,contains={objectId}"`
	CoordinateURL string `yaml:"coordinate_url" validate:"omitempty,contains={easting},contains={northing}"`
	IDAttribute   string `yaml:"id_attribute"`
}

// StrokeStyle is a line style. Colors are [r, g, b, a].
type StrokeStyle struct {
	Color    []float64 `yaml:"color" json:"color"`
	Width    float64   `yaml:"width" json:"width"`
	LineDash []float64 `yaml:"line_dash,omitempty" json:"line_dash,omitempty"`
}

// FillStyle is an area fill.
type FillStyle struct {
	Color []float64 `yaml:"color" json:"color"`
}

// CircleStyle styles point geometries.
type CircleStyle struct {
	Radius float64     `yaml:"radius" json:"radius"`
	Stroke StrokeStyle `yaml:"stroke" json:"stroke"`
	Fill   FillStyle   `yaml:"fill" json:"fill"`
}

// FeatureStyle is the highlight style of rendered results.
type FeatureStyle struct {
	Stroke StrokeStyle `yaml:"stroke" json:"stroke"`
	Fill   FillStyle   `yaml:"fill" json:"fill"`
	Circle CircleStyle `yaml:"circle" json:"circle"`
}

// LabelStyle styles text labels placed by the reverse lookup.
type LabelStyle struct {
	Font            string    `yaml:"font" json:"font"`
	FontColor       []float64 `yaml:"font_color" json:"font_color"`
	BackgroundColor []float64 `yaml:"background_color" json:"background_color"`
}

// DisplayConfig controls how results are drawn.
type DisplayConfig struct {
	ShowFeature  string       `yaml:"show_feature" validate:"oneof=popup geometryOnly"`
	MaxZoomLevel int          `yaml:"max_zoom_level" validate:"min=0"`
	FeatureStyle FeatureStyle `yaml:"feature_style"`
	Label        LabelStyle   `yaml:"label"`
	// HitTolerance is the click hit-test radius in map units.
	HitTolerance float64 `yaml:"hit_tolerance" validate:"min=0"`
}

// EstateConfig controls the reverse lookup tool and the detail report.
type EstateConfig struct {
	Lookup       bool   `yaml:"lookup"`
	InitialState string `yaml:"initial_state" validate:"oneof=initial active"`
	ReportURL    string `yaml:"report_url" validate:"omitempty,url"`
	ReportWidth  string `yaml:"report_width"`
	ReportHeight string `yaml:"report_height"`
	IconText     string `yaml:"icon_text"`
}

// SessionsConfig controls viewer session lifetime.
type SessionsConfig struct {
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	MaxSessions int           `yaml:"max_sessions" validate:"min=0"`
}

// Load reads and parses the config file at path, expands paths, applies defaults and
// validates the result. Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	for i := range cfg.Layers.Directories {
		cfg.Layers.Directories[i] = expandPath(cfg.Layers.Directories[i], configDir)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
