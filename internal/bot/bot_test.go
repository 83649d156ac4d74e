package bot

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gekkolab/vivarium/internal/db"
	"github.com/gekkolab/vivarium/internal/sensors"
	"github.com/gekkolab/vivarium/internal/timeutil"
)

type fakeStores struct {
	climate    *db.ClimateReading
	climateErr error
	weather    *db.WeatherReading
	resource   *sensors.ResourceSample
	detected   int64
	since      time.Time
}

func (f *fakeStores) Latest() (*db.ClimateReading, error) { return f.climate, f.climateErr }

type fakeWeather struct{ r *db.WeatherReading }

func (f *fakeWeather) Latest() (*db.WeatherReading, error) { return f.r, nil }

type fakeResources struct{ s *sensors.ResourceSample }

func (f *fakeResources) Latest() *sensors.ResourceSample { return f.s }

func (f *fakeStores) CountDetected(since time.Time) (int64, error) {
	f.since = since
	return f.detected, nil
}

func newTestBot(stores *fakeStores, weather *fakeWeather, res *fakeResources, clock timeutil.Clock) *Bot {
	return New(Config{
		Climate:    stores,
		Weather:    weather,
		Detections: stores,
		Resources:  res,
		Clock:      clock,
	})
}

func TestDispatchTemp(t *testing.T) {
	stores := &fakeStores{climate: &db.ClimateReading{TemperatureC: 28.4, HumidityPct: 61, PressureHPa: 1012}}
	b := newTestBot(stores, &fakeWeather{}, &fakeResources{}, nil)

	assert.Equal(t, "enclosure: 28.4C, 61% humidity, 1012 hPa", b.Dispatch("temp"))
	assert.Equal(t, "enclosure: 28.4C, 61% humidity, 1012 hPa", b.Dispatch("TEMP"))
}

func TestDispatchTempEmptyAndError(t *testing.T) {
	b := newTestBot(&fakeStores{}, &fakeWeather{}, &fakeResources{}, nil)
	assert.Equal(t, "no climate readings yet", b.Dispatch("temp"))

	b = newTestBot(&fakeStores{climateErr: errors.New("locked")}, &fakeWeather{}, &fakeResources{}, nil)
	assert.Contains(t, b.Dispatch("temp"), "locked")
}

func TestDispatchWeather(t *testing.T) {
	w := &fakeWeather{r: &db.WeatherReading{TemperatureC: 19.5, HumidityPct: 72}}
	b := newTestBot(&fakeStores{}, w, &fakeResources{}, nil)
	assert.Equal(t, "outside: 19.5C, 72% humidity", b.Dispatch("weather"))
}

func TestDispatchStatus(t *testing.T) {
	res := &fakeResources{s: &sensors.ResourceSample{CPUPct: 12, MemPct: 48, DiskPct: 33}}
	b := newTestBot(&fakeStores{}, &fakeWeather{}, res, nil)
	assert.Equal(t, "host: cpu 12%, mem 48%, disk 33%", b.Dispatch("status"))

	b = newTestBot(&fakeStores{}, &fakeWeather{}, &fakeResources{}, nil)
	assert.Equal(t, "no resource snapshots yet", b.Dispatch("status"))
}

func TestDispatchGeckoUsesTrailingDay(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	stores := &fakeStores{detected: 3}
	b := newTestBot(stores, &fakeWeather{}, &fakeResources{}, timeutil.NewMockClock(now))

	assert.Equal(t, "3 gecko sighting(s) in the last 24h", b.Dispatch("gecko"))
	assert.Equal(t, now.Add(-24*time.Hour), stores.since)

	stores.detected = 0
	assert.Equal(t, "no gecko sightings in the last 24h", b.Dispatch("gecko"))
}

func TestDispatchUnknown(t *testing.T) {
	b := newTestBot(&fakeStores{}, &fakeWeather{}, &fakeResources{}, nil)
	assert.Equal(t, "commands: temp, weather, status, gecko", b.Dispatch("feed"))
	assert.Equal(t, "commands: temp, weather, status, gecko", b.Dispatch(""))
}
