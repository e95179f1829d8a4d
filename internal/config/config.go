package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/spf13/viper"

	"github.com/menta2k/mapcrop/pkg/coords"
)

// EnvPrefix is prepended to every environment override, e.g.
// MAPCROP_EXTRACTION_MARGIN for extraction.margin.
const EnvPrefix = "MAPCROP"

// Config holds the application configuration
type Config struct {
	Resolution   ResolutionConfig `mapstructure:"resolution" json:"resolution"`
	Georeference BoundsConfig     `mapstructure:"georeference" json:"georeference"`
	Plausibility BoundsConfig     `mapstructure:"plausibility" json:"plausibility"`
	Extraction   ExtractionConfig `mapstructure:"extraction" json:"extraction"`
	Output       OutputConfig     `mapstructure:"output" json:"output"`
	Logging      LoggingConfig    `mapstructure:"logging" json:"logging"`
}

// ResolutionConfig describes how recorded coordinates are read
type ResolutionConfig struct {
	AxisOrder      string `mapstructure:"axis_order" json:"axis_order"`
	VerticalOrigin string `mapstructure:"vertical_origin" json:"vertical_origin"`
	Unit           string `mapstructure:"unit" json:"unit"`
	MirrorX        bool   `mapstructure:"mirror_x" json:"mirror_x"`
	IDField        string `mapstructure:"id_field" json:"id_field"`
}

// BoundsConfig is a lat/lng rectangle in degrees
type BoundsConfig struct {
	MinLat float64 `mapstructure:"min_lat" json:"min_lat"`
	MinLng float64 `mapstructure:"min_lng" json:"min_lng"`
	MaxLat float64 `mapstructure:"max_lat" json:"max_lat"`
	MaxLng float64 `mapstructure:"max_lng" json:"max_lng"`
}

// Bound returns the rectangle as an orb bound (x = lng, y = lat)
func (b BoundsConfig) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLng, b.MinLat},
		Max: orb.Point{b.MaxLng, b.MaxLat},
	}
}

// ExtractionConfig holds configuration for cropping
type ExtractionConfig struct {
	Margin  int `mapstructure:"margin" json:"margin"`
	Workers int `mapstructure:"workers" json:"workers"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Dir      string `mapstructure:"dir" json:"dir"`
	Format   string `mapstructure:"format" json:"format"`
	Quality  int    `mapstructure:"quality" json:"quality"`
	Lossless bool   `mapstructure:"lossless" json:"lossless"`
	// DebugMaxSide bounds the longer side of the debug overlay image
	DebugMaxSide int `mapstructure:"debug_max_side" json:"debug_max_side"`
}

// LoggingConfig selects the log level and format (json or text)
type LoggingConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Resolution: ResolutionConfig{
			AxisOrder:      string(coords.AxisAuto),
			VerticalOrigin: string(coords.OriginTop),
			Unit:           string(coords.UnitPixel),
			IDField:        "Inventarnummer",
		},
		Plausibility: BoundsConfig{
			MinLat: 47.5,
			MinLng: 16.5,
			MaxLat: 48.5,
			MaxLng: 17.5,
		},
		Extraction: ExtractionConfig{
			Margin:  50,
			Workers: 1,
		},
		Output: OutputConfig{
			Dir:          "./extracted",
			Format:       "jpg",
			Quality:      95,
			DebugMaxSide: 2048,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("resolution.axis_order", d.Resolution.AxisOrder)
	v.SetDefault("resolution.vertical_origin", d.Resolution.VerticalOrigin)
	v.SetDefault("resolution.unit", d.Resolution.Unit)
	v.SetDefault("resolution.mirror_x", d.Resolution.MirrorX)
	v.SetDefault("resolution.id_field", d.Resolution.IDField)

	for _, section := range []struct {
		key string
		b   BoundsConfig
	}{{"georeference", d.Georeference}, {"plausibility", d.Plausibility}} {
		v.SetDefault(section.key+".min_lat", section.b.MinLat)
		v.SetDefault(section.key+".min_lng", section.b.MinLng)
		v.SetDefault(section.key+".max_lat", section.b.MaxLat)
		v.SetDefault(section.key+".max_lng", section.b.MaxLng)
	}

	v.SetDefault("extraction.margin", d.Extraction.Margin)
	v.SetDefault("extraction.workers", d.Extraction.Workers)
	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.quality", d.Output.Quality)
	v.SetDefault("output.lossless", d.Output.Lossless)
	v.SetDefault("output.debug_max_side", d.Output.DebugMaxSide)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// LoadFromFile loads configuration from defaults, an optional file and
// MAPCROP_* environment variables, in increasing priority. An empty filename
// looks for mapcrop.{json,yaml} in the working directory and next to
// GetConfigPath; a missing file is not an error in that case.
func LoadFromFile(filename string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if filename != "" {
		v.SetConfigFile(filename)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("mapcrop")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Dir(GetConfigPath()))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Policy builds the coordinate policy described by the configuration
func (c *Config) Policy() (coords.Policy, error) {
	axis, err := coords.ParseAxisOrder(c.Resolution.AxisOrder)
	if err != nil {
		return coords.Policy{}, err
	}
	origin, err := coords.ParseVerticalOrigin(c.Resolution.VerticalOrigin)
	if err != nil {
		return coords.Policy{}, err
	}
	unit, err := coords.ParseUnit(c.Resolution.Unit)
	if err != nil {
		return coords.Policy{}, err
	}

	p := coords.Policy{
		AxisOrder:      axis,
		VerticalOrigin: origin,
		Unit:           unit,
		MirrorX:        c.Resolution.MirrorX,
		Georeference:   c.Georeference.Bound(),
		Window:         c.Plausibility.Bound(),
	}
	if err := p.Validate(); err != nil {
		return coords.Policy{}, err
	}
	return p, nil
}

// Validate checks that every setting is usable and reports all problems at once
func (c *Config) Validate() error {
	var errs []string

	if _, err := c.Policy(); err != nil {
		errs = append(errs, fmt.Sprintf("resolution: %v", err))
	}
	if c.Resolution.IDField == "" {
		errs = append(errs, "resolution.id_field is required")
	}
	p := c.Plausibility
	if p.MinLat >= p.MaxLat || p.MinLng >= p.MaxLng {
		errs = append(errs, "plausibility window must have min < max for lat and lng")
	}
	if c.Extraction.Margin < 0 {
		errs = append(errs, fmt.Sprintf("extraction.margin must not be negative, got %d", c.Extraction.Margin))
	}
	if c.Extraction.Workers < 1 {
		errs = append(errs, fmt.Sprintf("extraction.workers must be at least 1, got %d", c.Extraction.Workers))
	}
	if c.Output.Dir == "" {
		errs = append(errs, "output.dir is required")
	}
	switch strings.ToLower(c.Output.Format) {
	case "jpg", "jpeg", "png", "webp":
	default:
		errs = append(errs, fmt.Sprintf("output.format must be jpg, png or webp, got %q", c.Output.Format))
	}
	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		errs = append(errs, "output.quality must be between 1 and 100")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("logging.format must be json or text, got %q", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./mapcrop.json"
	}
	return filepath.Join(home, ".config", "mapcrop", "mapcrop.json")
}
