package agent

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// WeatherInfo is the synthetic weather snapshot for a city.
type WeatherInfo struct {
	Temperature string `yaml:"temperature"`
	Condition   string `yaml:"condition"`
	Humidity    string `yaml:"humidity"`
	WindSpeed   string `yaml:"windSpeed"`
	Forecast    string `yaml:"forecast"`
}

// TimeInfo is the timezone data for a city.
type TimeInfo struct {
	Timezone  string `yaml:"timezone"`
	UTCOffset string `yaml:"utcOffset"`
}

// TrafficInfo is the synthetic traffic snapshot for a city.
type TrafficInfo struct {
	Status         string `yaml:"status"` // Light | Moderate | Heavy | Severe
	AverageSpeed   string `yaml:"averageSpeed"`
	Congestion     string `yaml:"congestion"`
	Incidents      string `yaml:"incidents"`
	Recommendation string `yaml:"recommendation"`
}

// CityInfo bundles the synthetic data for one city.
type CityInfo struct {
	Weather WeatherInfo `yaml:"weather"`
	Time    TimeInfo    `yaml:"time"`
	Traffic TrafficInfo `yaml:"traffic"`
}

// Catalog is the declarative data source backing the built-in agents. Cities
// not listed fall back to the defaults entry, so lookups never fail.
type Catalog struct {
	Defaults CityInfo            `yaml:"defaults"`
	Cities   map[string]CityInfo `yaml:"cities"`
}

// LoadCatalog reads a catalog from path, or the embedded default when path is
// empty. A broken operator-supplied file degrades to the embedded catalog with
// a logged warning rather than failing startup.
func LoadCatalog(path string, logger *slog.Logger) *Catalog {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("cannot read catalog file, using embedded default", "path", path, "err", err)
		} else {
			cat, err := parseCatalog(data)
			if err != nil {
				logger.Warn("cannot parse catalog file, using embedded default", "path", path, "err", err)
			} else {
				logger.Info("loaded city catalog", "path", path, "cities", len(cat.Cities))
				return cat
			}
		}
	}

	cat, err := parseCatalog(defaultCatalogYAML)
	if err != nil {
		// The embedded catalog is validated by tests; reaching this is a build defect.
		panic(fmt.Sprintf("embedded catalog invalid: %v", err))
	}
	return cat
}

func parseCatalog(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if cat.Cities == nil {
		cat.Cities = make(map[string]CityInfo)
	}
	return &cat, nil
}

// Lookup returns the data for a city, filling any gaps from the defaults.
func (c *Catalog) Lookup(city string) CityInfo {
	info, ok := c.Cities[city]
	if !ok {
		return c.Defaults
	}
	fillCityDefaults(&info, c.Defaults)
	return info
}

func fillCityDefaults(info *CityInfo, def CityInfo) {
	if info.Weather.Temperature == "" {
		info.Weather.Temperature = def.Weather.Temperature
	}
	if info.Weather.Condition == "" {
		info.Weather.Condition = def.Weather.Condition
	}
	if info.Weather.Humidity == "" {
		info.Weather.Humidity = def.Weather.Humidity
	}
	if info.Weather.WindSpeed == "" {
		info.Weather.WindSpeed = def.Weather.WindSpeed
	}
	if info.Weather.Forecast == "" {
		info.Weather.Forecast = def.Weather.Forecast
	}
	if info.Time.Timezone == "" {
		info.Time.Timezone = def.Time.Timezone
	}
	if info.Time.UTCOffset == "" {
		info.Time.UTCOffset = def.Time.UTCOffset
	}
	if info.Traffic.Status == "" {
		info.Traffic.Status = def.Traffic.Status
	}
	if info.Traffic.AverageSpeed == "" {
		info.Traffic.AverageSpeed = def.Traffic.AverageSpeed
	}
	if info.Traffic.Congestion == "" {
		info.Traffic.Congestion = def.Traffic.Congestion
	}
	if info.Traffic.Incidents == "" {
		info.Traffic.Incidents = def.Traffic.Incidents
	}
	if info.Traffic.Recommendation == "" {
		info.Traffic.Recommendation = def.Traffic.Recommendation
	}
}
