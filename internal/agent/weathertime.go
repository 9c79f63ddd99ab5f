package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"teamsbot/internal/intent"
)

// WeatherTime answers weather and time prompts from the synthetic city
// catalog. It is the in-process stand-in for an external weather/time agent.
type WeatherTime struct {
	catalog *Catalog
	logger  *slog.Logger
	now     func() time.Time
}

// NewWeatherTime creates the weather/time agent.
func NewWeatherTime(catalog *Catalog, logger *slog.Logger) *WeatherTime {
	return &WeatherTime{catalog: catalog, logger: logger, now: time.Now}
}

func (a *WeatherTime) Name() string { return "weather_time" }

// Run answers a natural-language prompt. Prompts mentioning time get a clock
// answer; everything else is treated as a weather query.
func (a *WeatherTime) Run(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	city := intent.ExtractCity(prompt)
	info := a.catalog.Lookup(city)

	if strings.Contains(strings.ToLower(prompt), "time") {
		reply := fmt.Sprintf("It's %s %s in %s (%s).",
			a.now().Format("3:04 PM"), info.Time.Timezone, city, info.Time.UTCOffset)
		a.logger.Debug("weather_time agent answered", "kind", "time", "city", city)
		return reply, nil
	}

	reply := fmt.Sprintf("It's %s and %s in %s. %s",
		info.Weather.Temperature, strings.ToLower(info.Weather.Condition), city, info.Weather.Forecast)
	a.logger.Debug("weather_time agent answered", "kind", "weather", "city", city)
	return reply, nil
}
