package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spectriclabs/rgb-to-z/internal/api"
	"github.com/spectriclabs/rgb-to-z/internal/cache"
	"github.com/spectriclabs/rgb-to-z/internal/config"
	"github.com/spectriclabs/rgb-to-z/internal/convert"
	"github.com/spectriclabs/rgb-to-z/internal/datasource"
)

// CLI holds the flags that are not configuration keys.
type CLI struct {
	ConfigFile  string
	Image       string
	Calibration string
	Serve       bool
}

// flagKeys maps CLI flag names to configuration keys.
var flagKeys = map[string]string{
	"debug":            "debug",
	"host":             "host",
	"port":             "port",
	"policy":           "policy",
	"nodata":           "nodata",
	"round":            "round",
	"workers":          "workers",
	"output-dir":       "output_dir",
	"output-format":    "output_format",
	"points-format":    "points_format",
	"preview-colormap": "preview_colormap",
	"cache-location":   "cache_location",
	"use-cache":        "use_cache",
}

// SetupFlags defines the command line on fs.
func SetupFlags(fs *pflag.FlagSet) *CLI {
	cli := &CLI{}
	fs.StringVarP(&cli.ConfigFile, "config", "c", config.DefaultConfigFile, "Location of rgbtoz configuration file")
	fs.StringVarP(&cli.Image, "image", "i", "", "Color composite to convert (path or location:path)")
	fs.StringVarP(&cli.Calibration, "calibration", "k", "", "Calibration table of R G B Z lines (path or location:path)")
	fs.BoolVarP(&cli.Serve, "serve", "s", false, "Run the HTTP conversion service")

	fs.BoolP("debug", "d", false, "Whether or not to enable debug logging")
	fs.String("host", "0.0.0.0", "Host where the server will run")
	fs.IntP("port", "p", 5056, "Port where the server will run")
	fs.StringP("policy", "P", "linear", "Reconstruction policy: linear or histogram-equalize")
	fs.Float64("nodata", -9999, "Value written to cells with no calibrated color")
	fs.Bool("round", false, "Round reconstructed Z to integers")
	fs.IntP("workers", "w", 0, "Row bands converted concurrently (0 = GOMAXPROCS)")
	fs.StringP("output-dir", "o", ".", "Directory for output files")
	fs.StringP("output-format", "f", "blue", "Grid format: blue, float32, float64, int16, int32 or ascii")
	fs.String("points-format", "csv", "Point dataset format: csv, geojson or none")
	fs.String("preview-colormap", "", "Write a PNG preview with this colormap")
	fs.String("cache-location", "./rgbtozcache/", "Where the cache will be stored")
	fs.Bool("use-cache", true, "Cache objects fetched from minio locations")
	return cli
}

// ParseCLI parses args and loads the configuration, with explicitly set
// flags overriding the config file and environment.
func ParseCLI(args []string) (*CLI, *config.Configuration, error) {
	fs := pflag.NewFlagSet("rgbtoz", pflag.ContinueOnError)
	cli := SetupFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	v := viper.New()
	for flagName, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(flagName)); err != nil {
			return nil, nil, err
		}
	}
	cfg, err := config.Load(v, cli.ConfigFile)
	if err != nil {
		return nil, nil, err
	}
	return cli, cfg, nil
}

// SetupLogger sets up the zap.Logger structured logger.
func SetupLogger(debug bool) *zap.Logger {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	logger, logErr := zap.Config{
		Encoding:    "json",
		Level:       zap.NewAtomicLevelAt(level),
		OutputPaths: []string{"stdout"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:  "message",
			LevelKey:    "level",
			EncodeLevel: zapcore.CapitalLevelEncoder,

			TimeKey:    "time",
			EncodeTime: zapcore.ISO8601TimeEncoder,

			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,
		},
	}.Build()
	if logErr != nil {
		log.Fatalf("Couldn't setup logger: %v", logErr)
	}

	return logger
}

// Run is the whole program: parse the command line, then either convert
// one image or serve.
func Run(args []string) error {
	cli, cfg, err := ParseCLI(args)
	if err != nil {
		return err
	}
	logger := SetupLogger(cfg.Debug)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if cli.Serve {
		return Serve(ctx, cfg, logger)
	}
	if cli.Image == "" || cli.Calibration == "" {
		return errors.New("--image and --calibration are required unless --serve is given")
	}
	_, err = ConvertFiles(ctx, cfg, logger, cli.Image, cli.Calibration)
	return err
}

// ConvertFiles runs one conversion job and writes its outputs to the
// configured directory.
func ConvertFiles(ctx context.Context, cfg *config.Configuration, logger *zap.Logger, imageRef, calibrationRef string) ([]string, error) {
	params, err := convert.ParamsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	ds := datasource.New(cfg, cache.New(cfg.CacheLocation, logger), logger)
	result, err := convert.RunRefs(ctx, logger, ds, imageRef, calibrationRef, params)
	if err != nil {
		logger.Error(
			"Conversion failed",
			zap.String("image", imageRef),
			zap.String("calibration", calibrationRef),
			zap.Error(err),
		)
		return nil, err
	}
	return convert.Write(logger, result, convert.WriteOptions{
		Dir:             cfg.OutputDir,
		BaseName:        convert.BaseName(imageRef),
		GridFormat:      cfg.OutputFormat,
		PointsFormat:    cfg.PointsFormat,
		PreviewColorMap: cfg.PreviewColorMap,
		PreviewMaxSize:  cfg.PreviewMaxSize,
		Geo:             cfg.GeoTransform(),
	})
}

// Serve runs the HTTP service until ctx is done.
func Serve(ctx context.Context, cfg *config.Configuration, logger *zap.Logger) error {
	rgbtozapi := api.NewRgbToZAPI(cfg, logger)
	if cfg.UseCache {
		if err := SetupCache(ctx, rgbtozapi.Cache, cfg); err != nil {
			return err
		}
	}
	e := SetupServer(rgbtozapi)

	address := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	logger.Info("Starting server", zap.String("address", address))
	errc := make(chan error, 1)
	go func() {
		errc <- e.Start(address)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down the server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func SetupServer(api *api.API) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Debug = api.Cfg.Debug

	// Setup Middleware
	e.Use(middleware.CORS())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/rgbtoz/locations", api.GetFileLocations)
	e.GET("/rgbtoz/colormaps", api.GetColorMaps)
	e.POST("/rgbtoz/convert", api.PostConvert)
	e.GET("/rgbtoz/convert/:location/*", api.GetConvert)

	// Add Prometheus as middleware for metrics gathering
	p := prometheus.NewPrometheus("rgbtoz", nil)
	p.Use(e)

	return e
}

// SetupCache creates the cache directory and starts the purge loop,
// which stops with ctx.
func SetupCache(ctx context.Context, c *cache.Cache, cfg *config.Configuration) error {
	if err := os.MkdirAll(c.Location, 0755); err != nil {
		return fmt.Errorf("creating cache directory %s: %w", c.Location, err)
	}
	interval := time.Duration(cfg.CheckCacheEvery) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	go c.CheckCache(ctx, cache.MinioSubDir, interval, cfg.CacheMaxBytes)
	return nil
}
