package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/spectriclabs/rgb-to-z/internal/image"
)

func (a *API) GetFileLocations(c echo.Context) error {
	return c.JSON(http.StatusOK, a.Cfg.LocationDetails)
}

// GetColorMaps lists the colormap names accepted for previews.
func (a *API) GetColorMaps(c echo.Context) error {
	return c.JSON(http.StatusOK, image.ColorMapNames())
}
