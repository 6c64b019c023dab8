package datasource

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spectriclabs/rgb-to-z/internal/cache"
	"github.com/spectriclabs/rgb-to-z/internal/config"
)

func setup(t *testing.T) (*DataSource, string) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "legends"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "legends", "depth.txt"), []byte("255 0 0 0\n"), 0644))

	cfg := &config.Configuration{
		UseCache:      true,
		CacheLocation: t.TempDir(),
		LocationDetails: []config.Location{
			{LocationName: "ServiceDir", LocationType: config.LocationLocalFile, Path: root},
			{LocationName: "bucket", LocationType: config.LocationMinio, MinioBucket: "maps", Location: "127.0.0.1:1", Path: "survey"},
		},
	}
	return New(cfg, cache.New(cfg.CacheLocation, nil), nil), root
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestOpenLocalFile(t *testing.T) {
	d, _ := setup(t)
	rc, err := d.Open(context.Background(), "ServiceDir", "legends/depth.txt")
	require.NoError(t, err)
	assert.Equal(t, "255 0 0 0\n", readAll(t, rc))

	// Paths are confined to the location root.
	rc, err = d.Open(context.Background(), "ServiceDir", "../../legends/depth.txt")
	require.NoError(t, err)
	assert.Equal(t, "255 0 0 0\n", readAll(t, rc))
}

func TestOpenUnknownLocation(t *testing.T) {
	d, _ := setup(t)
	_, err := d.Open(context.Background(), "nowhere", "a.png")
	assert.True(t, errors.Is(err, ErrUnknownLocation))
}

func TestSplitRef(t *testing.T) {
	d, _ := setup(t)
	expected := []struct {
		Input    string
		Location string
		Path     string
		OK       bool
	}{
		{Input: "ServiceDir:legends/depth.txt", Location: "ServiceDir", Path: "legends/depth.txt", OK: true},
		{Input: "bucket:a.png", Location: "bucket", Path: "a.png", OK: true},
		{Input: "C:/maps/a.png", Path: "C:/maps/a.png"},
		{Input: "maps/a.png", Path: "maps/a.png"},
	}
	for _, exp := range expected {
		loc, p, ok := d.SplitRef(exp.Input)
		assert.Equal(t, exp.Location, loc, exp.Input)
		assert.Equal(t, exp.Path, p, exp.Input)
		assert.Equal(t, exp.OK, ok, exp.Input)
	}
}

func TestOpenRefLocalPath(t *testing.T) {
	d, root := setup(t)
	rc, err := d.OpenRef(context.Background(), filepath.Join(root, "legends", "depth.txt"))
	require.NoError(t, err)
	assert.Equal(t, "255 0 0 0\n", readAll(t, rc))
}

func TestOpenMinioFromCache(t *testing.T) {
	d, _ := setup(t)
	name := cache.UrlToCacheFileName("maps/survey/a.txt")
	require.NoError(t, d.cache.PutItemInCache(name, cache.MinioSubDir, []byte("cached")))

	rc, err := d.OpenRef(context.Background(), "bucket:a.txt")
	require.NoError(t, err)
	assert.Equal(t, "cached", readAll(t, rc))
}
