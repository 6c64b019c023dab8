package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"

	"github.com/spectriclabs/rgb-to-z/internal/image"
	"github.com/spectriclabs/rgb-to-z/internal/output"
	"github.com/spectriclabs/rgb-to-z/internal/raster"
	"github.com/spectriclabs/rgb-to-z/internal/reconstruct"
)

// EnvPrefix prefixes environment overrides, e.g. RGBTOZ_POLICY.
const EnvPrefix = "RGBTOZ"

// DefaultConfigFile is read when --config is not given.
const DefaultConfigFile = "./rgbtozConfig.yml"

const (
	LocationLocalFile = "localFile"
	LocationMinio     = "minio"
)

type Location struct {
	LocationName   string `mapstructure:"location_name" json:"location_name"`
	LocationType   string `mapstructure:"location_type" json:"location_type"`
	Path           string `mapstructure:"path" json:"path,omitempty"`
	MinioBucket    string `mapstructure:"minio_bucket" json:"minio_bucket,omitempty"`
	Location       string `mapstructure:"location" json:"location,omitempty"`
	MinioAccessKey string `mapstructure:"minio_access_key" json:"-"`
	MinioSecretKey string `mapstructure:"minio_secret_key" json:"-"`
	MinioSecure    bool   `mapstructure:"minio_secure" json:"minio_secure,omitempty"`
}

// Configuration Struct for Configuration File
type Configuration struct {
	Debug bool   `mapstructure:"debug"`
	Host  string `mapstructure:"host"`
	Port  int    `mapstructure:"port"`

	NoData          float64             `mapstructure:"nodata"`
	Policy          string              `mapstructure:"policy"`
	Workers         int                 `mapstructure:"workers"`
	Round           bool                `mapstructure:"round"`
	OutputDir       string              `mapstructure:"output_dir"`
	OutputFormat    string              `mapstructure:"output_format"`
	PointsFormat    string              `mapstructure:"points_format"`
	PreviewColorMap string              `mapstructure:"preview_colormap"`
	PreviewMaxSize  int                 `mapstructure:"preview_max_size"`
	Geo             raster.GeoTransform `mapstructure:"geo"`

	UseCache        bool       `mapstructure:"use_cache"`
	CacheLocation   string     `mapstructure:"cache_location"`
	CacheMaxBytes   int64      `mapstructure:"cache_max_bytes"`
	CheckCacheEvery int        `mapstructure:"check_cache_every"`
	LocationDetails []Location `mapstructure:"location_details"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 5056)
	v.SetDefault("nodata", raster.DefaultNoData)
	v.SetDefault("policy", reconstruct.Linear.String())
	v.SetDefault("workers", 0)
	v.SetDefault("round", false)
	v.SetDefault("output_dir", ".")
	v.SetDefault("output_format", output.FormatBlue)
	v.SetDefault("points_format", output.PointsCSV)
	v.SetDefault("preview_colormap", "")
	v.SetDefault("preview_max_size", 0)
	v.SetDefault("geo.origin_x", 0.0)
	v.SetDefault("geo.origin_y", 0.0)
	v.SetDefault("geo.cell_width", 0.0)
	v.SetDefault("geo.cell_height", 0.0)
	v.SetDefault("use_cache", true)
	v.SetDefault("cache_location", "./rgbtozcache/")
	v.SetDefault("cache_max_bytes", int64(100000000))
	v.SetDefault("check_cache_every", 60)
}

// Load reads configFile into v and decodes the result. A missing config
// file is not an error; defaults, environment and bound flags still
// apply.
func Load(v *viper.Viper, configFile string) (*Configuration, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
			}
		}
	}

	configuration := &Configuration{}
	if err := v.Unmarshal(configuration); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := configuration.Validate(); err != nil {
		return nil, err
	}
	return configuration, nil
}

// Validate checks the enumerated settings.
func (c *Configuration) Validate() error {
	if _, err := reconstruct.ParsePolicy(c.Policy); err != nil {
		return err
	}
	if !contains(output.GridFormats(), strings.ToLower(c.OutputFormat)) {
		return fmt.Errorf("%w: grid %q", output.ErrUnsupportedFormat, c.OutputFormat)
	}
	if err := output.CheckNoData(c.OutputFormat, c.NoData); err != nil {
		return err
	}
	switch strings.ToLower(c.PointsFormat) {
	case output.PointsCSV, output.PointsGeoJSON, output.PointsNone, "":
	default:
		return fmt.Errorf("%w: points %q", output.ErrUnsupportedFormat, c.PointsFormat)
	}
	if c.PreviewColorMap != "" {
		if _, ok := image.GetColorControlPoints(c.PreviewColorMap); !ok {
			return fmt.Errorf("unknown preview colormap %q, expected one of %v", c.PreviewColorMap, image.ColorMapNames())
		}
	}
	for _, loc := range c.LocationDetails {
		if loc.LocationType != LocationLocalFile && loc.LocationType != LocationMinio {
			return fmt.Errorf("location %s: unsupported location type %q", loc.LocationName, loc.LocationType)
		}
	}
	return nil
}

// FindLocation returns the configured location called name.
func (c *Configuration) FindLocation(name string) (Location, bool) {
	for _, loc := range c.LocationDetails {
		if loc.LocationName == name {
			return loc, true
		}
	}
	return Location{}, false
}

// GeoTransform returns the configured transform, or nil when no cell size
// is set.
func (c *Configuration) GeoTransform() *raster.GeoTransform {
	if !c.Geo.Valid() {
		return nil
	}
	gt := c.Geo
	return &gt
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
