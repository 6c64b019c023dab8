package datasource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/spectriclabs/rgb-to-z/internal/cache"
	"github.com/spectriclabs/rgb-to-z/internal/config"
)

var ErrUnknownLocation = errors.New("unknown location")

// DataSource opens images and calibration tables from configured
// locations.
type DataSource struct {
	cfg    *config.Configuration
	cache  *cache.Cache
	logger *zap.Logger
}

func New(cfg *config.Configuration, c *cache.Cache, logger *zap.Logger) *DataSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataSource{cfg: cfg, cache: c, logger: logger}
}

// SplitRef splits "location:path" when location names a configured
// location. Anything else is a plain local path.
func (d *DataSource) SplitRef(ref string) (locationName, filePath string, ok bool) {
	name, rest, found := strings.Cut(ref, ":")
	if !found {
		return "", ref, false
	}
	if _, known := d.cfg.FindLocation(name); !known {
		return "", ref, false
	}
	return name, rest, true
}

// OpenRef opens a "location:path" reference, or a plain local file.
func (d *DataSource) OpenRef(ctx context.Context, ref string) (io.ReadCloser, error) {
	if locationName, filePath, ok := d.SplitRef(ref); ok {
		return d.Open(ctx, locationName, filePath)
	}
	d.logger.Debug("Reading local file", zap.String("path", ref))
	return os.Open(ref)
}

// Open opens filePath inside the location called locationName. Paths
// cannot climb out of the location's root.
func (d *DataSource) Open(ctx context.Context, locationName string, filePath string) (io.ReadCloser, error) {
	currentLocation, ok := d.cfg.FindLocation(locationName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLocation, locationName)
	}
	cleanPath := strings.TrimPrefix(path.Clean("/"+filePath), "/")

	switch currentLocation.LocationType {
	case config.LocationLocalFile:
		fullFilepath := filepath.Join(currentLocation.Path, filepath.FromSlash(cleanPath))
		d.logger.Info(
			"Reading local file",
			zap.String("location_name", locationName),
			zap.String("filename", filePath),
			zap.String("path", fullFilepath),
		)
		file, err := os.Open(fullFilepath)
		if err != nil {
			return nil, err
		}
		return file, nil
	case config.LocationMinio:
		return d.openMinio(ctx, currentLocation, path.Join(currentLocation.Path, cleanPath))
	default:
		return nil, fmt.Errorf("unsupported location type %s in %s", currentLocation.LocationType, currentLocation.LocationName)
	}
}

func (d *DataSource) openMinio(ctx context.Context, loc config.Location, objectName string) (io.ReadCloser, error) {
	cacheFileName := cache.UrlToCacheFileName(path.Join(loc.MinioBucket, objectName))
	if d.cfg.UseCache && d.cache != nil {
		if file, err := d.cache.GetItemFromCache(cacheFileName, cache.MinioSubDir); err == nil {
			d.logger.Debug("Minio object served from cache", zap.String("object", objectName))
			return file, nil
		}
	}

	start := time.Now()
	minioClient, err := minio.New(loc.Location, &minio.Options{
		Creds:  credentials.NewStaticV4(loc.MinioAccessKey, loc.MinioSecretKey, ""),
		Secure: loc.MinioSecure,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to minio %s: %w", loc.Location, err)
	}
	object, err := minioClient.GetObject(ctx, loc.MinioBucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("getting minio object %s/%s: %w", loc.MinioBucket, objectName, err)
	}
	defer object.Close()
	fileData, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("reading minio object %s/%s: %w", loc.MinioBucket, objectName, err)
	}
	d.logger.Info(
		"Fetched minio object",
		zap.String("bucket", loc.MinioBucket),
		zap.String("object", objectName),
		zap.Int("bytes", len(fileData)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if d.cfg.UseCache && d.cache != nil {
		if err := d.cache.PutItemInCache(cacheFileName, cache.MinioSubDir, fileData); err != nil {
			d.logger.Warn("Could not cache minio object", zap.String("object", objectName), zap.Error(err))
		}
	}
	return io.NopCloser(bytes.NewReader(fileData)), nil
}
