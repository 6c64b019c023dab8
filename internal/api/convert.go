package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/spectriclabs/rgb-to-z/internal/bluefile"
	"github.com/spectriclabs/rgb-to-z/internal/calibration"
	"github.com/spectriclabs/rgb-to-z/internal/convert"
	"github.com/spectriclabs/rgb-to-z/internal/datasource"
	"github.com/spectriclabs/rgb-to-z/internal/image"
	"github.com/spectriclabs/rgb-to-z/internal/output"
	"github.com/spectriclabs/rgb-to-z/internal/ramp"
	"github.com/spectriclabs/rgb-to-z/internal/reconstruct"
)

// ReportHeader carries the JSON report alongside binary responses.
const ReportHeader = "X-Rgbtoz-Report"

// Response formats beside the grid formats.
const (
	outfmtJSON = "json"
	outfmtPNG  = "png"
)

var errBadRequest = errors.New("bad request")

type convertRequest struct {
	params   convert.Params
	outfmt   string
	colormap string
}

// parseConvertRequest reads the optional policy, nodata, round,
// outfmt and colormap values, falling back to the configuration.
func (a *API) parseConvertRequest(value func(string) string) (convertRequest, error) {
	params, err := convert.ParamsFromConfig(a.Cfg)
	if err != nil {
		return convertRequest{}, err
	}
	req := convertRequest{
		params:   params,
		outfmt:   strings.ToLower(a.Cfg.OutputFormat),
		colormap: a.Cfg.PreviewColorMap,
	}

	if v := value("policy"); v != "" {
		if req.params.Policy, err = reconstruct.ParsePolicy(v); err != nil {
			return req, err
		}
	}
	if v := value("nodata"); v != "" {
		if req.params.Options.NoData, err = strconv.ParseFloat(v, 64); err != nil {
			return req, fmt.Errorf("%w: nodata %q", errBadRequest, v)
		}
	}
	if v := value("round"); v != "" {
		if req.params.Options.Round, err = strconv.ParseBool(v); err != nil {
			return req, fmt.Errorf("%w: round %q", errBadRequest, v)
		}
	}
	if v := value("outfmt"); v != "" {
		req.outfmt = strings.ToLower(v)
	}
	if v := value("colormap"); v != "" {
		if _, ok := image.GetColorControlPoints(v); !ok {
			return req, fmt.Errorf("%w: unknown colormap %q", errBadRequest, v)
		}
		req.colormap = v
	}
	if req.colormap == "" {
		req.colormap = image.DefaultColorMap
	}
	if err := output.CheckNoData(req.outfmt, req.params.Options.NoData); err != nil {
		return req, err
	}
	return req, nil
}

// PostConvert converts the multipart `image` file through the
// `calibration` file.
func (a *API) PostConvert(c echo.Context) error {
	req, err := a.parseConvertRequest(c.FormValue)
	if err != nil {
		return a.convertError(c, err)
	}

	imageHeader, err := c.FormFile("image")
	if err != nil {
		return a.convertError(c, fmt.Errorf("%w: image file: %v", errBadRequest, err))
	}
	calibrationHeader, err := c.FormFile("calibration")
	if err != nil {
		return a.convertError(c, fmt.Errorf("%w: calibration file: %v", errBadRequest, err))
	}

	calibrationFile, err := calibrationHeader.Open()
	if err != nil {
		return a.convertError(c, err)
	}
	defer calibrationFile.Close()
	imageFile, err := imageHeader.Open()
	if err != nil {
		return a.convertError(c, err)
	}
	defer imageFile.Close()

	result, err := convert.RunReaders(c.Request().Context(), a.Logger, imageFile, calibrationFile, req.params)
	if err != nil {
		return a.convertError(c, err)
	}
	return a.respond(c, result, req)
}

// GetConvert converts an image stored at a configured location. The
// `calibration` query value is a path in the same location.
func (a *API) GetConvert(c echo.Context) error {
	locationName := c.Param("location")
	filePath := c.Param("*")
	calibrationPath := c.QueryParam("calibration")
	if calibrationPath == "" {
		return a.convertError(c, fmt.Errorf("%w: calibration query parameter is required", errBadRequest))
	}
	req, err := a.parseConvertRequest(c.QueryParam)
	if err != nil {
		return a.convertError(c, err)
	}

	ctx := c.Request().Context()
	calibrationReader, err := a.Source.Open(ctx, locationName, calibrationPath)
	if err != nil {
		return a.convertError(c, err)
	}
	defer calibrationReader.Close()
	imageReader, err := a.Source.Open(ctx, locationName, filePath)
	if err != nil {
		return a.convertError(c, err)
	}
	defer imageReader.Close()

	result, err := convert.RunReaders(ctx, a.Logger, imageReader, calibrationReader, req.params)
	if err != nil {
		return a.convertError(c, err)
	}
	return a.respond(c, result, req)
}

func (a *API) respond(c echo.Context, result *convert.Result, req convertRequest) error {
	buf := new(bytes.Buffer)
	var err error
	switch req.outfmt {
	case outfmtJSON:
		return c.JSON(http.StatusOK, result.Report)
	case outfmtPNG:
		err = image.WritePreview(buf, result.Grid, image.PreviewOptions{ColorMap: req.colormap, MaxSize: a.Cfg.PreviewMaxSize})
	case output.PointsCSV, output.PointsGeoJSON:
		err = output.WritePoints(buf, result.Grid.Points(a.Cfg.GeoTransform()), req.outfmt)
	default:
		err = output.WriteGrid(buf, result.Grid, req.outfmt, a.Cfg.GeoTransform())
	}
	if err != nil {
		return a.convertError(c, err)
	}

	if header, err := json.Marshal(result.Report); err == nil {
		c.Response().Header().Set(ReportHeader, string(compactReport(header)))
	}
	contentType := output.ContentType(req.outfmt)
	if req.outfmt == outfmtPNG {
		contentType = "image/png"
	}
	return c.Blob(http.StatusOK, contentType, buf.Bytes())
}

// compactReport drops the interval list, which can outgrow a header.
func compactReport(full []byte) []byte {
	var m map[string]any
	if err := json.Unmarshal(full, &m); err != nil {
		return full
	}
	delete(m, "intervals")
	out, err := json.Marshal(m)
	if err != nil {
		return full
	}
	return out
}

func (a *API) convertError(c echo.Context, err error) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.Logger.Error("Conversion failed", zap.String("path", c.Path()), zap.Error(err))
	} else {
		a.Logger.Info("Conversion rejected", zap.String("path", c.Path()), zap.Int("status", status), zap.Error(err))
	}
	return c.String(status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, calibration.ErrMalformedSample),
		errors.Is(err, ramp.ErrInsufficientSamples),
		errors.Is(err, ramp.ErrAmbiguousCalibration),
		errors.Is(err, reconstruct.ErrUnknownPolicy),
		errors.Is(err, output.ErrUnsupportedFormat),
		errors.Is(err, bluefile.ErrOutOfRange),
		errors.Is(err, convert.ErrNoDataCalibrated),
		errors.Is(err, image.ErrDecode),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, datasource.ErrUnknownLocation),
		errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
