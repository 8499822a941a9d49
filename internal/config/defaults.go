package config

import "time"

// DefaultIconText is the text drawn on the detail-report icon.
const DefaultIconText = `<text x="5" y="40" font-size="45" font-family="Arial" fill="black">FI</text>`

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/lmsearch/data/db/layers.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/lmsearch/data/indices/bleve"
	}
	if len(cfg.Layers.Extensions) == 0 {
		cfg.Layers.Extensions = []string{".geojson", ".json"}
	}
	if cfg.Layers.NameProperty == "" {
		cfg.Layers.NameProperty = "name"
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Layers.Directories) > 0 && cfg.Layers.Recursive == nil {
		t := true
		cfg.Layers.Recursive = &t
	}

	applySearchDefaults(&cfg.Search)
	applySourceDefaults(&cfg.Sources)

	if cfg.Detail.IDAttribute == "" {
		cfg.Detail.IDAttribute = "id"
	}
	applyDisplayDefaults(&cfg.Display)

	if cfg.Estate.InitialState == "" {
		cfg.Estate.InitialState = "initial"
	}
	if cfg.Estate.ReportWidth == "" {
		cfg.Estate.ReportWidth = "700px"
	}
	if cfg.Estate.ReportHeight == "" {
		cfg.Estate.ReportHeight = "500px"
	}
	if cfg.Estate.IconText == "" {
		cfg.Estate.IconText = DefaultIconText
	}
	if cfg.Sessions.IdleTimeout == 0 {
		cfg.Sessions.IdleTimeout = 30 * time.Minute
	}
}

func applySearchDefaults(s *SearchConfig) {
	if s.QueryAttribute == "" {
		s.QueryAttribute = "NAMN"
	}
	if s.LayerNameAttribute == "" {
		s.LayerNameAttribute = "layer"
	}
	if s.Limit == 0 {
		s.Limit = 9
	}
	if s.MinLength == 0 {
		s.MinLength = 4
	}
	if s.NoMatchLabel == "" {
		s.NoMatchLabel = "Ingen träff"
	}
	if s.ParcelType == "" {
		s.ParcelType = "Fastighet"
	}
	if s.ProjectionCode == "" {
		s.ProjectionCode = "EPSG:3006"
	}
	if s.HintText == "" {
		s.HintText = "Sök..."
	}
}

func applySourceDefaults(s *SourcesConfig) {
	if s.Timeout == 0 {
		s.Timeout = 10 * time.Second
	}
	if s.Address.Type == "" {
		s.Address.Type = "Adress"
	}
	if s.Parcel.Type == "" {
		s.Parcel.Type = "Fastighet"
	}
	if s.Locality.Type == "" {
		s.Locality.Type = "Ort"
	}
	if s.Local.Limit == 0 {
		s.Local.Limit = 20
	}
	if s.Elasticsearch.Size == 0 {
		s.Elasticsearch.Size = 20
	}
}

func applyDisplayDefaults(d *DisplayConfig) {
	if d.ShowFeature == "" {
		d.ShowFeature = "geometryOnly"
	}
	if d.MaxZoomLevel == 0 {
		d.MaxZoomLevel = 18
	}
	st := &d.FeatureStyle
	if len(st.Stroke.Color) == 0 {
		st.Stroke = StrokeStyle{Color: []float64{100, 149, 237, 1}, Width: 4}
	}
	if len(st.Fill.Color) == 0 {
		st.Fill.Color = []float64{100, 149, 237, 0.2}
	}
	if st.Circle.Radius == 0 {
		st.Circle = CircleStyle{
			Radius: 7,
			Stroke: StrokeStyle{Color: []float64{100, 149, 237, 1}, Width: 2},
			Fill:   FillStyle{Color: []float64{255, 255, 255, 1}},
		}
	}
	if d.Label.Font == "" {
		d.Label.Font = "7pt sans-serif"
	}
	if len(d.Label.FontColor) == 0 {
		d.Label.FontColor = []float64{100, 149, 237, 0.3}
	}
	if len(d.Label.BackgroundColor) == 0 {
		d.Label.BackgroundColor = []float64{255, 255, 255, 0.5}
	}
	if d.HitTolerance == 0 {
		d.HitTolerance = 5
	}
}
