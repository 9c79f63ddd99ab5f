// Package agent routes classified requests to agent collaborators and
// normalizes their replies into response envelopes. Collaborator failures
// never propagate: every path out of Dispatch is a well-formed envelope.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"teamsbot/internal/domain"
)

// Fixed user-facing messages for degraded envelopes.
const (
	msgUnavailable   = "Agent service is temporarily unavailable"
	msgAgentFailure  = "An error occurred while processing your request"
	msgNotUnderstood = "I didn't understand that. Try asking about weather, time, or traffic!"
	msgHelpIntro     = "I can help you with weather, time, and traffic information!"
)

// helpCommands is the static command list returned for help intents.
var helpCommands = []string{
	"What's the weather in [city]?",
	"What time is it in [city]?",
	"How's the traffic in [city]?",
}

// Registry holds the agent collaborators and dispatches classified intents
// to them.
type Registry struct {
	weatherTime domain.Agent
	traffic     domain.Agent
	logger      *slog.Logger
}

// RegistryConfig configures a Registry. Either agent may be nil; dispatches
// that need a missing agent degrade to an unavailable-error envelope.
type RegistryConfig struct {
	WeatherTime domain.Agent
	Traffic     domain.Agent
	Logger      *slog.Logger
}

// NewRegistry creates a Registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	return &Registry{
		weatherTime: cfg.WeatherTime,
		traffic:     cfg.Traffic,
		logger:      cfg.Logger,
	}
}

// Dispatch forwards an intent to the matching agent collaborator and wraps
// the reply in an envelope. City defaults to New York for location-bound
// intents. Help and unknown intents never touch an agent.
func (r *Registry) Dispatch(ctx context.Context, in domain.Intent, city string) domain.Envelope {
	switch in {
	case domain.IntentWeather:
		city = defaultCity(city)
		prompt := fmt.Sprintf("What's the weather in %s?", city)
		return r.runAgent(ctx, r.weatherTime, domain.EnvelopeWeather, city, prompt)

	case domain.IntentTime:
		city = defaultCity(city)
		prompt := fmt.Sprintf("What time is it in %s?", city)
		return r.runAgent(ctx, r.weatherTime, domain.EnvelopeTime, city, prompt)

	case domain.IntentTraffic:
		city = defaultCity(city)
		prompt := fmt.Sprintf("How's the traffic in %s?", city)
		return r.runAgent(ctx, r.traffic, domain.EnvelopeTraffic, city, prompt)

	case domain.IntentHelp:
		return domain.Envelope{
			Type:   domain.EnvelopeHelp,
			Data:   domain.EnvelopeData{Message: msgHelpIntro, Commands: helpCommands},
			Status: domain.StatusSuccess,
		}

	default:
		return errorEnvelope(msgNotUnderstood)
	}
}

// runAgent calls an agent collaborator and wraps the result. A nil agent, an
// error, or a panic inside the call all degrade to an error envelope.
func (r *Registry) runAgent(ctx context.Context, a domain.Agent, typ domain.EnvelopeType, city, prompt string) domain.Envelope {
	if a == nil {
		r.logger.Error("agent not wired", "type", typ)
		return errorEnvelope(msgUnavailable)
	}

	r.logger.Info("routing to agent", "agent", a.Name(), "prompt", prompt)

	reply, err := safeRun(ctx, a, prompt)
	if err != nil {
		r.logger.Error("agent call failed", "agent", a.Name(), "err", err)
		return errorEnvelope(msgAgentFailure)
	}

	return domain.Envelope{
		Type:   typ,
		City:   city,
		Data:   domain.EnvelopeData{Reply: reply},
		Status: domain.StatusSuccess,
	}
}

// safeRun shields the caller from a panicking collaborator.
func safeRun(ctx context.Context, a domain.Agent, prompt string) (reply string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("agent panic: %v", rec)
		}
	}()
	return a.Run(ctx, prompt)
}

func defaultCity(city string) string {
	if city == "" {
		return "New York"
	}
	return city
}

func errorEnvelope(message string) domain.Envelope {
	return domain.Envelope{
		Type:   domain.EnvelopeError,
		Data:   domain.EnvelopeData{Message: message},
		Status: domain.StatusError,
	}
}
