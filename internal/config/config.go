package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/wnv-cli/internal/geospatial"
)

// DefaultPath is the config file read when no --config flag is given.
const DefaultPath = "config/wnvoutbreak.yaml"

// Failure policies for the analysis chain.
const (
	PolicySkipDependents = "skip_dependents"
	PolicyContinue       = "continue"
)

// Config holds the full application configuration.
type Config struct {
	Sheet     SheetConfig     `yaml:"sheet" mapstructure:"sheet"`
	Geocoder  GeocoderConfig  `yaml:"geocoder" mapstructure:"geocoder"`
	Workspace WorkspaceConfig `yaml:"workspace" mapstructure:"workspace"`
	Sink      SinkConfig      `yaml:"sink" mapstructure:"sink"`
	Layers    LayersConfig    `yaml:"layers" mapstructure:"layers"`
	Analysis  AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Map       MapConfig       `yaml:"map" mapstructure:"map"`
	History   HistoryConfig   `yaml:"history" mapstructure:"history"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// SheetConfig locates the published address spreadsheet.
type SheetConfig struct {
	RemoteURL    string `yaml:"remote_url" mapstructure:"remote_url"`
	Format       string `yaml:"format" mapstructure:"format"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	PreviewChars int    `yaml:"preview_chars" mapstructure:"preview_chars"`
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
}

// GeocoderConfig configures the geocoding service.
type GeocoderConfig struct {
	PrefixURL   string  `yaml:"prefix_url" mapstructure:"prefix_url"`
	Provider    string  `yaml:"provider" mapstructure:"provider"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// WorkspaceConfig locates the PostGIS workspace.
type WorkspaceConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Schema      string `yaml:"schema" mapstructure:"schema"`
}

// SinkConfig configures the geocoded point dataset.
type SinkConfig struct {
	AddressField string `yaml:"address_field" mapstructure:"address_field"`
	SRID         int    `yaml:"srid" mapstructure:"srid"`
}

// LayersConfig names every layer the pipeline reads or writes.
type LayersConfig struct {
	AvoidPoints string `yaml:"avoid_points" mapstructure:"avoid_points"`
	AvoidBuffer string `yaml:"avoid_buffer" mapstructure:"avoid_buffer"`
	Risk        string `yaml:"risk" mapstructure:"risk"`
	RiskFinal   string `yaml:"risk_final" mapstructure:"risk_final"`
	Addresses   string `yaml:"addresses" mapstructure:"addresses"`
	Joined      string `yaml:"joined" mapstructure:"joined"`
	Notify      string `yaml:"notify" mapstructure:"notify"`
	Target      string `yaml:"target" mapstructure:"target"`
}

// AnalysisConfig parameterizes the analysis chain.
type AnalysisConfig struct {
	BufferFeet     float64 `yaml:"buffer_feet" mapstructure:"buffer_feet"`
	JoinCountField string  `yaml:"join_count_field" mapstructure:"join_count_field"`
	Filter         string  `yaml:"filter" mapstructure:"filter"`
	AddressField   string  `yaml:"address_field" mapstructure:"address_field"`
	FailurePolicy  string  `yaml:"failure_policy" mapstructure:"failure_policy"`
}

// OutputConfig configures files written to the project directory.
type OutputConfig struct {
	ProjDir   string `yaml:"proj_dir" mapstructure:"proj_dir"`
	CSVName   string `yaml:"csv_name" mapstructure:"csv_name"`
	CSVHeader string `yaml:"csv_header" mapstructure:"csv_header"`
	MapPrefix string `yaml:"map_prefix" mapstructure:"map_prefix"`
}

// MapConfig configures map styling and PDF export.
type MapConfig struct {
	Title           string  `yaml:"title" mapstructure:"title"`
	Transparency    float64 `yaml:"transparency" mapstructure:"transparency"`
	DefinitionQuery string  `yaml:"definition_query" mapstructure:"definition_query"`
	PageSize        string  `yaml:"page_size" mapstructure:"page_size"`
	Orientation     string  `yaml:"orientation" mapstructure:"orientation"`
}

// HistoryConfig configures the local run history database. An empty path disables it.
type HistoryConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	File   string `yaml:"file" mapstructure:"file"`
}

// LoadError is returned for every configuration failure. It is the only
// error class the CLI treats as fatal before any stage runs.
type LoadError struct {
	Path    string
	Missing []string
	Err     error
}

func (e *LoadError) Error() string {
	switch {
	case len(e.Missing) > 0:
		return fmt.Sprintf("config: %s: missing required keys: %s", e.Path, strings.Join(e.Missing, ", "))
	case e.Err != nil:
		return fmt.Sprintf("config: %s: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("config: %s: invalid", e.Path)
	}
}

func (e *LoadError) Unwrap() error { return e.Err }

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

func setDefaults(v *viper.Viper) {
	// Required keys are registered empty so env overrides bind to them.
	v.SetDefault("sheet.remote_url", "")
	v.SetDefault("output.proj_dir", "")
	v.SetDefault("geocoder.prefix_url", "")
	v.SetDefault("workspace.database_url", "")

	v.SetDefault("sheet.format", "csv")
	v.SetDefault("sheet.timeout_secs", 30)
	v.SetDefault("sheet.preview_chars", 300)
	v.SetDefault("sheet.user_agent", "wnv-cli/1.0")
	v.SetDefault("geocoder.provider", "arcgis")
	v.SetDefault("geocoder.timeout_secs", 30)
	v.SetDefault("geocoder.rate_limit", 0)
	v.SetDefault("workspace.schema", "wnv")
	v.SetDefault("sink.address_field", "FullAddress")
	v.SetDefault("sink.srid", 4326)
	v.SetDefault("layers.avoid_points", "Avoid_Points")
	v.SetDefault("layers.avoid_buffer", "Avoid_Points_Buffer")
	v.SetDefault("layers.risk", "Risk_Intersect")
	v.SetDefault("layers.risk_final", "Risk_Intersect_Final")
	v.SetDefault("layers.addresses", "Addresses")
	v.SetDefault("layers.joined", "Addresses_To_Notify")
	v.SetDefault("layers.notify", "Addresses_To_Notify_Clean")
	v.SetDefault("layers.target", "Target_Addresses")
	v.SetDefault("analysis.buffer_feet", 1500)
	v.SetDefault("analysis.join_count_field", "Join_Count")
	v.SetDefault("analysis.filter", "Join_Count > 0")
	v.SetDefault("analysis.address_field", "FULLADDR")
	v.SetDefault("analysis.failure_policy", PolicySkipDependents)
	v.SetDefault("output.csv_name", "Target_Addresses.csv")
	v.SetDefault("output.csv_header", "FullAddress")
	v.SetDefault("output.map_prefix", "WNV_Map_")
	v.SetDefault("map.title", "West Nile Virus Model")
	v.SetDefault("map.transparency", 50)
	v.SetDefault("map.definition_query", "Join_Count = 1")
	v.SetDefault("map.page_size", "Letter")
	v.SetDefault("map.orientation", "L")
	v.SetDefault("history.path", "wnv-runs.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("WNV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Default returns the built-in defaults without reading a file. Required keys are empty.
func Default() *Config {
	var cfg Config
	// Unmarshalling plain defaults cannot fail.
	_ = newViper().Unmarshal(&cfg)
	return &cfg
}

// Load reads the YAML file at path, applies WNV_* environment overrides and
// validates the result. Every failure is a *LoadError.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Path: path, Err: eris.Wrap(err, "config: stat file")}
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, &LoadError{Path: path, Err: eris.Wrap(err, "config: read file")}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &LoadError{Path: path, Err: eris.Wrap(err, "config: unmarshal")}
	}

	if missing := cfg.missingRequired(); len(missing) > 0 {
		return nil, &LoadError{Path: path, Missing: missing}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	return &cfg, nil
}

func (c *Config) missingRequired() []string {
	var missing []string
	required := []struct {
		key string
		val string
	}{
		{"sheet.remote_url", c.Sheet.RemoteURL},
		{"output.proj_dir", c.Output.ProjDir},
		{"geocoder.prefix_url", c.Geocoder.PrefixURL},
		{"workspace.database_url", c.Workspace.DatabaseURL},
	}
	for _, r := range required {
		if strings.TrimSpace(r.val) == "" {
			missing = append(missing, r.key)
		}
	}
	return missing
}

// Validate checks value ranges and identifiers. Required keys are checked by Load.
func (c *Config) Validate() error {
	switch c.Sheet.Format {
	case "csv", "xlsx":
	default:
		return eris.Errorf("config: sheet.format must be csv or xlsx, got %q", c.Sheet.Format)
	}
	switch c.Geocoder.Provider {
	case "arcgis", "census":
	default:
		return eris.Errorf("config: unknown geocoder.provider %q", c.Geocoder.Provider)
	}
	switch c.Analysis.FailurePolicy {
	case PolicySkipDependents, PolicyContinue:
	default:
		return eris.Errorf("config: unknown analysis.failure_policy %q", c.Analysis.FailurePolicy)
	}
	if c.Analysis.BufferFeet <= 0 {
		return eris.Errorf("config: analysis.buffer_feet must be positive, got %v", c.Analysis.BufferFeet)
	}
	if c.Map.Transparency < 0 || c.Map.Transparency > 100 {
		return eris.Errorf("config: map.transparency must be within 0-100, got %v", c.Map.Transparency)
	}

	idents := map[string]string{
		"workspace.schema":          c.Workspace.Schema,
		"sink.address_field":        c.Sink.AddressField,
		"layers.avoid_points":       c.Layers.AvoidPoints,
		"layers.avoid_buffer":       c.Layers.AvoidBuffer,
		"layers.risk":               c.Layers.Risk,
		"layers.risk_final":         c.Layers.RiskFinal,
		"layers.addresses":          c.Layers.Addresses,
		"layers.joined":             c.Layers.Joined,
		"layers.notify":             c.Layers.Notify,
		"layers.target":             c.Layers.Target,
		"analysis.join_count_field": c.Analysis.JoinCountField,
		"analysis.address_field":    c.Analysis.AddressField,
	}
	for key, val := range idents {
		if !identRe.MatchString(val) {
			return eris.Errorf("config: %s is not a valid identifier: %q", key, val)
		}
	}

	if _, err := geospatial.ParsePredicate(c.Analysis.Filter); err != nil {
		return eris.Wrap(err, "config: analysis.filter")
	}
	if _, err := geospatial.ParsePredicate(c.Map.DefinitionQuery); err != nil {
		return eris.Wrap(err, "config: map.definition_query")
	}
	return nil
}

// InitLogger initializes the global zap logger. When cfg.File is set the file
// is truncated and receives a copy of every log line.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	if cfg.File != "" {
		if err := os.WriteFile(cfg.File, nil, 0o644); err != nil {
			return eris.Wrapf(err, "config: truncate log file %s", cfg.File)
		}
		zapCfg.OutputPaths = append(zapCfg.OutputPaths, cfg.File)
		zapCfg.ErrorOutputPaths = append(zapCfg.ErrorOutputPaths, cfg.File)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
