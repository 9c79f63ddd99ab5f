package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"teamsbot/internal/intent"
)

// Traffic answers road-condition prompts from the synthetic city catalog.
type Traffic struct {
	catalog *Catalog
	logger  *slog.Logger
}

// NewTraffic creates the traffic agent.
func NewTraffic(catalog *Catalog, logger *slog.Logger) *Traffic {
	return &Traffic{catalog: catalog, logger: logger}
}

func (a *Traffic) Name() string { return "traffic" }

// Run answers a natural-language traffic prompt. The reply names the status
// in lowercase so downstream consumers can scan for "light"/"heavy".
func (a *Traffic) Run(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	city := intent.ExtractCity(prompt)
	info := a.catalog.Lookup(city).Traffic

	reply := fmt.Sprintf("Traffic in %s is %s right now. %s. Average speed %s. %s",
		city, strings.ToLower(info.Status), info.Incidents, info.AverageSpeed, info.Recommendation)
	a.logger.Debug("traffic agent answered", "city", city, "status", info.Status)
	return reply, nil
}
