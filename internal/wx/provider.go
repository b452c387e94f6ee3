package wx

import (
	"context"

	"github.com/kalder/weather-staging/internal/registry"
)

// Client abstracts a weather data provider. A client that does not serve one
// of the two capabilities returns ErrNotSupported for it.
type Client interface {
	Name() string
	FetchCurrent(ctx context.Context, loc registry.LocationEntry) ([]ObservationRecord, error)
	FetchForecast(ctx context.Context, loc registry.LocationEntry) ([]ForecastRecord, error)
}
