package providers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kalder/weather-staging/internal/registry"
	"github.com/kalder/weather-staging/internal/wx"
	"github.com/kalder/weather-staging/internal/wx/normalize"
)

const openMeteoName = "openmeteo"

// DefaultModels is the multi-model set requested per location, in request
// order. The response is positionally aligned to this list.
var DefaultModels = []string{
	"best_match",
	"ecmwf_ifs04",
	"ecmwf_ifs025",
	"ecmwf_aifs025",
	"gfs_global",
	"gfs_hrrr",
	"ncep_nbm_conus",
	"gfs_graphcast025",
	"jma_gsm",
	"icon_global",
	"gem_global",
	"gem_regional",
	"meteofrance_arpege_world",
	"ukmo_global_deterministic_10km",
}

// OpenMeteoClient fetches hourly forecasts from several models in one
// batched call. Identical requests within the cache TTL are served from a
// local response cache instead of going back out.
type OpenMeteoClient struct {
	baseURL      string
	models       []string
	forecastDays int
	httpCfg      HTTPClientConfig
	circuit      *gobreaker.CircuitBreaker
	cache        *responseCache
	now          func() time.Time
}

// NewOpenMeteoClient builds the client. Open-Meteo needs no credential.
// A zero cacheTTL disables the response cache.
func NewOpenMeteoClient(client *http.Client, models []string, forecastDays int, cacheTTL time.Duration) *OpenMeteoClient {
	if len(models) == 0 {
		models = DefaultModels
	}
	if forecastDays <= 0 {
		forecastDays = 3
	}
	return &OpenMeteoClient{
		baseURL:      "https://api.open-meteo.com/v1/forecast",
		models:       models,
		forecastDays: forecastDays,
		httpCfg:      HTTPClientConfig{Client: client},
		circuit:      newBreaker(openMeteoName),
		cache:        newResponseCache(cacheTTL),
		now:          time.Now,
	}
}

func (p *OpenMeteoClient) Name() string {
	return openMeteoName
}

// FetchCurrent is not served by this client.
func (p *OpenMeteoClient) FetchCurrent(ctx context.Context, loc registry.LocationEntry) ([]wx.ObservationRecord, error) {
	return nil, wx.ErrNotSupported
}

// FetchForecast issues one batched call for the configured model list and
// parses one hourly series per model, paired positionally with the request.
func (p *OpenMeteoClient) FetchForecast(ctx context.Context, loc registry.LocationEntry) ([]wx.ForecastRecord, error) {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', 4, 64))
	values.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', 4, 64))
	values.Set("forecast_days", strconv.Itoa(p.forecastDays))
	values.Set("current", "temperature_2m")
	values.Set("hourly", "temperature_2m")
	values.Set("timeformat", "unixtime")
	values.Set("models", strings.Join(p.models, ","))
	reqURL := p.baseURL + "?" + values.Encode()

	body, hit := p.cache.get(reqURL)
	if !hit {
		var err error
		body, err = doRequestWithRetry(ctx, p.httpCfg, p.circuit, openMeteoName, func() (*http.Request, error) {
			return http.NewRequest(http.MethodGet, reqURL, nil)
		})
		if err != nil {
			return nil, err
		}
		p.cache.put(reqURL, body)
	}

	return normalize.OpenMeteoForecast(body, p.models, loc, p.now().UTC())
}
