package sensors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gekkolab/vivarium/internal/timeutil"
)

// WeatherClient fetches the current outdoor conditions.
type WeatherClient interface {
	Current(ctx context.Context) (*WeatherSample, error)
}

// OpenMeteoClient queries the open-meteo.com forecast API, which needs no
// API key.
type OpenMeteoClient struct {
	baseURL  string
	lat, lon float64
	client   *http.Client
	clock    timeutil.Clock
}

// NewOpenMeteoClient creates a client for the given coordinates. baseURL is
// overridable for tests; pass "" for the production endpoint.
func NewOpenMeteoClient(baseURL string, lat, lon float64, clock timeutil.Clock) *OpenMeteoClient {
	if baseURL == "" {
		baseURL = "https://api.open-meteo.com/v1/forecast"
	}
	return &OpenMeteoClient{
		baseURL: baseURL,
		lat:     lat,
		lon:     lon,
		client:  &http.Client{Timeout: 15 * time.Second},
		clock:   clock,
	}
}

type openMeteoResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Current   struct {
		Temperature float64 `json:"temperature_2m"`
		Humidity    float64 `json:"relative_humidity_2m"`
	} `json:"current"`
}

// Current fetches and decodes one observation.
func (c *OpenMeteoClient) Current(ctx context.Context) (*WeatherSample, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", c.lat))
	q.Set("longitude", fmt.Sprintf("%.4f", c.lon))
	q.Set("current", "temperature_2m,relative_humidity_2m")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building weather request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching weather: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather API returned %s", resp.Status)
	}
	var body openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding weather response: %w", err)
	}

	return &WeatherSample{
		TemperatureC: body.Current.Temperature,
		HumidityPct:  body.Current.Humidity,
		Latitude:     body.Latitude,
		Longitude:    body.Longitude,
		Timestamp:    c.clock.Now(),
	}, nil
}

// SimWeather returns fixed observations for dev mode.
type SimWeather struct {
	lat, lon float64
	clock    timeutil.Clock
}

// NewSimWeather creates a simulator pinned to the given coordinates.
func NewSimWeather(lat, lon float64, clock timeutil.Clock) *SimWeather {
	return &SimWeather{lat: lat, lon: lon, clock: clock}
}

// Current returns a constant mild reading.
func (s *SimWeather) Current(ctx context.Context) (*WeatherSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &WeatherSample{
		TemperatureC: 18.5,
		HumidityPct:  58,
		Latitude:     s.lat,
		Longitude:    s.lon,
		Timestamp:    s.clock.Now(),
	}, nil
}
