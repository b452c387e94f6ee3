package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kalder/weather-staging/internal/registry"
	"github.com/kalder/weather-staging/internal/wx"
	"github.com/kalder/weather-staging/internal/wx/normalize"
)

const accuWeatherName = "accuweather"

// AccuWeatherClient fetches hourly forecasts from the AccuWeather data
// service. The forecast fetch is two-step: coordinates are resolved to an
// opaque location key via geoposition search, then the hourly feed is
// fetched by that key. Every call carries the API key as a request
// parameter.
type AccuWeatherClient struct {
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	now     func() time.Time
}

// NewAccuWeatherClient builds the client. An empty apiKey falls back to the
// ACCUWEATHER_API_KEY environment variable; a missing key is a construction
// failure since no call can succeed without it.
func NewAccuWeatherClient(client *http.Client, apiKey string) (*AccuWeatherClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ACCUWEATHER_API_KEY")
	}
	if apiKey == "" {
		return nil, &wx.ConfigError{
			Reason: "missing AccuWeather API key; set ACCUWEATHER_API_KEY in the environment or .env",
		}
	}

	return &AccuWeatherClient{
		apiKey:  apiKey,
		baseURL: "https://dataservice.accuweather.com",
		httpCfg: HTTPClientConfig{Client: client},
		circuit: newBreaker(accuWeatherName),
		now:     time.Now,
	}, nil
}

func (p *AccuWeatherClient) Name() string {
	return accuWeatherName
}

// FetchCurrent is not served by this client; observations come from the
// station scraper.
func (p *AccuWeatherClient) FetchCurrent(ctx context.Context, loc registry.LocationEntry) ([]wx.ObservationRecord, error) {
	return nil, wx.ErrNotSupported
}

// FetchForecast resolves the location key for the entry's coordinates and
// fetches the 12-hour hourly forecast.
func (p *AccuWeatherClient) FetchForecast(ctx context.Context, loc registry.LocationEntry) ([]wx.ForecastRecord, error) {
	key, err := p.locationKey(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		return nil, err
	}

	body, err := p.get(ctx, "/forecasts/v1/hourly/12hour/"+url.PathEscape(key), url.Values{
		"metric":   {"true"},
		"details":  {"true"},
		"language": {"en-us"},
	})
	if err != nil {
		return nil, err
	}

	return normalize.AccuWeatherForecast(body, loc, p.now().UTC())
}

func (p *AccuWeatherClient) locationKey(ctx context.Context, lat, lon float64) (string, error) {
	body, err := p.get(ctx, "/locations/v1/cities/geoposition/search", url.Values{
		"q":        {fmt.Sprintf("%.6f,%.6f", lat, lon)},
		"language": {"en-us"},
		"details":  {"false"},
	})
	if err != nil {
		return "", err
	}

	var payload struct {
		Key string `json:"Key"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Key == "" {
		return "", &wx.ResponseError{
			Provider: accuWeatherName,
			Reason:   "unexpected geoposition response shape",
			Excerpt:  wx.Excerpt(body),
		}
	}
	return payload.Key, nil
}

func (p *AccuWeatherClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return doRequestWithRetry(ctx, p.httpCfg, p.circuit, accuWeatherName, func() (*http.Request, error) {
		values := url.Values{}
		for k, vs := range params {
			for _, v := range vs {
				values.Add(k, v)
			}
		}
		values.Set("apikey", p.apiKey)
		return http.NewRequest(http.MethodGet, p.baseURL+path+"?"+values.Encode(), nil)
	})
}
