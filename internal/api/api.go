package api

import (
	"go.uber.org/zap"

	"github.com/spectriclabs/rgb-to-z/internal/cache"
	"github.com/spectriclabs/rgb-to-z/internal/config"
	"github.com/spectriclabs/rgb-to-z/internal/datasource"
)

type API struct {
	Cfg    *config.Configuration
	Cache  *cache.Cache
	Source *datasource.DataSource
	Logger *zap.Logger
}

func NewRgbToZAPI(cfg *config.Configuration, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := cache.New(cfg.CacheLocation, logger)
	return &API{
		Cfg:    cfg,
		Cache:  c,
		Source: datasource.New(cfg, c, logger),
		Logger: logger,
	}
}
