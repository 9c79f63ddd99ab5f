// Package card renders response envelopes into Teams Adaptive Card
// attachments. Builders tolerate missing upstream data by substituting
// placeholder values; rendering never fails.
package card

import (
	"strings"
	"time"

	"teamsbot/internal/domain"
)

// Placeholder values substituted when the agent reply carries no usable data.
const (
	defaultTemperature = "72°F"
	defaultCondition   = "Partly Cloudy"
	defaultHumidity    = "65%"
	defaultWindSpeed   = "10 mph"
	defaultForecast    = "Pleasant weather expected throughout the day."
	defaultTimezone    = "EST"
	defaultUTCOffset   = "UTC-5"
)

const maxForecastLen = 200

// trafficStyles maps a traffic status to a container emphasis style.
var trafficStyles = map[string]string{
	"Light":    "Good",
	"Moderate": "Warning",
	"Heavy":    "Attention",
	"Severe":   "Attention",
}

// Formatter renders envelopes into card attachments.
type Formatter struct {
	now func() time.Time
}

// NewFormatter creates a Formatter.
func NewFormatter() *Formatter {
	return &Formatter{now: time.Now}
}

// Render dispatches the envelope to its builder. Unrecognized envelope types
// and panics inside a builder both fall back to the error card, so the chat
// client always gets something renderable.
func (f *Formatter) Render(env domain.Envelope) (att domain.Attachment) {
	defer func() {
		if rec := recover(); rec != nil {
			att = f.ErrorCard("Failed to format response. Please try again.")
		}
	}()

	switch env.Type {
	case domain.EnvelopeWeather:
		return f.WeatherCard(env.City, env.Data.Reply)
	case domain.EnvelopeTime:
		return f.TimeCard(env.City, env.Data.Reply)
	case domain.EnvelopeTraffic:
		return f.TrafficCard(env.City, env.Data.Reply)
	case domain.EnvelopeHelp:
		return f.HelpCard()
	case domain.EnvelopeError:
		message := env.Data.Message
		if message == "" {
			message = "An error occurred"
		}
		return f.ErrorCard(message)
	default:
		return f.ErrorCard("I didn't understand your request. Please try again.")
	}
}

// WeatherCard builds the weather report card. The agent reply (if any)
// becomes the forecast line; the fact set uses placeholder readings.
func (f *Formatter) WeatherCard(city, reply string) domain.Attachment {
	forecast := defaultForecast
	if reply != "" {
		forecast = truncate(reply, maxForecastLen)
	}

	return attachment(domain.AdaptiveCard{
		Schema:  domain.AdaptiveCardSchema,
		Type:    "AdaptiveCard",
		Version: domain.AdaptiveCardVersion,
		Body: []domain.CardElement{
			domain.Container{
				Type: "Container",
				Items: []domain.CardElement{
					domain.TextBlock{
						Type:   "TextBlock",
						Text:   "☁️ Weather in " + city,
						Weight: "Bolder",
						Size:   "Large",
						Wrap:   true,
					},
					domain.TextBlock{
						Type:     "TextBlock",
						Text:     f.now().Format("January 2, 2006 at 3:04 PM"),
						IsSubtle: true,
						Size:     "Small",
						Wrap:     true,
					},
				},
			},
			domain.Container{
				Type: "Container",
				Items: []domain.CardElement{
					domain.FactSet{
						Type: "FactSet",
						Facts: []domain.Fact{
							{Title: "Temperature", Value: defaultTemperature},
							{Title: "Condition", Value: defaultCondition},
							{Title: "Humidity", Value: defaultHumidity},
							{Title: "Wind Speed", Value: defaultWindSpeed},
						},
					},
				},
			},
			domain.TextBlock{
				Type:      "TextBlock",
				Text:      forecast,
				Wrap:      true,
				Separator: true,
				Spacing:   "Medium",
			},
		},
	})
}

// TimeCard builds the clock card.
func (f *Formatter) TimeCard(city, reply string) domain.Attachment {
	now := f.now()

	return attachment(domain.AdaptiveCard{
		Schema:  domain.AdaptiveCardSchema,
		Type:    "AdaptiveCard",
		Version: domain.AdaptiveCardVersion,
		Body: []domain.CardElement{
			domain.Container{
				Type: "Container",
				Items: []domain.CardElement{
					domain.TextBlock{
						Type:   "TextBlock",
						Text:   "🕐 Time in " + city,
						Weight: "Bolder",
						Size:   "Large",
						Wrap:   true,
					},
				},
			},
			domain.Container{
				Type: "Container",
				Items: []domain.CardElement{
					domain.TextBlock{
						Type:                "TextBlock",
						Text:                now.Format("3:04 PM"),
						Weight:              "Bolder",
						Size:                "ExtraLarge",
						HorizontalAlignment: "Center",
						Wrap:                true,
					},
					domain.TextBlock{
						Type:                "TextBlock",
						Text:                now.Format("January 2, 2006"),
						HorizontalAlignment: "Center",
						IsSubtle:            true,
						Wrap:                true,
					},
				},
			},
			domain.FactSet{
				Type: "FactSet",
				Facts: []domain.Fact{
					{Title: "Timezone", Value: defaultTimezone},
					{Title: "UTC Offset", Value: defaultUTCOffset},
				},
				Separator: true,
			},
		},
	})
}

// TrafficCard builds the road-conditions card. The status is scanned out of
// the agent reply and drives both the fact values and the emphasis style.
func (f *Formatter) TrafficCard(city, reply string) domain.Attachment {
	info := trafficFromReply(reply)

	style, ok := trafficStyles[info.status]
	if !ok {
		style = "Default"
	}

	return attachment(domain.AdaptiveCard{
		Schema:  domain.AdaptiveCardSchema,
		Type:    "AdaptiveCard",
		Version: domain.AdaptiveCardVersion,
		Body: []domain.CardElement{
			domain.Container{
				Type: "Container",
				Items: []domain.CardElement{
					domain.TextBlock{
						Type:   "TextBlock",
						Text:   "🚗 Traffic in " + city,
						Weight: "Bolder",
						Size:   "Large",
						Wrap:   true,
					},
					domain.TextBlock{
						Type:     "TextBlock",
						Text:     f.now().Format("January 2, 2006 at 3:04 PM"),
						IsSubtle: true,
						Size:     "Small",
						Wrap:     true,
					},
				},
			},
			domain.Container{
				Type:  "Container",
				Style: style,
				Items: []domain.CardElement{
					domain.TextBlock{
						Type:   "TextBlock",
						Text:   "Status: " + info.status,
						Weight: "Bolder",
						Size:   "Medium",
						Wrap:   true,
					},
				},
			},
			domain.FactSet{
				Type: "FactSet",
				Facts: []domain.Fact{
					{Title: "Average Speed", Value: info.averageSpeed},
					{Title: "Congestion Level", Value: info.congestion},
					{Title: "Incidents", Value: info.incidents},
				},
				Separator: true,
			},
			domain.TextBlock{
				Type:      "TextBlock",
				Text:      info.recommendation,
				Wrap:      true,
				Separator: true,
				Spacing:   "Medium",
			},
		},
	})
}

// HelpCard builds the static welcome card with three quick-action buttons.
// The envelope contents are ignored; the layout is fully fixed.
func (f *Formatter) HelpCard() domain.Attachment {
	return attachment(domain.AdaptiveCard{
		Schema:  domain.AdaptiveCardSchema,
		Type:    "AdaptiveCard",
		Version: domain.AdaptiveCardVersion,
		Body: []domain.CardElement{
			domain.Container{
				Type: "Container",
				Items: []domain.CardElement{
					domain.TextBlock{
						Type:   "TextBlock",
						Text:   "👋 Welcome to Teams Weather Bot!",
						Weight: "Bolder",
						Size:   "Large",
						Wrap:   true,
					},
					domain.TextBlock{
						Type:    "TextBlock",
						Text:    "I can help you with weather, time, and traffic information for any city.",
						Wrap:    true,
						Spacing: "Medium",
					},
				},
			},
			domain.Container{
				Type:      "Container",
				Separator: true,
				Items: []domain.CardElement{
					domain.TextBlock{Type: "TextBlock", Text: "**Available Commands:**", Weight: "Bolder", Wrap: true},
					domain.TextBlock{Type: "TextBlock", Text: "• What's the weather in [city]?", Wrap: true},
					domain.TextBlock{Type: "TextBlock", Text: "• What time is it in [city]?", Wrap: true},
					domain.TextBlock{Type: "TextBlock", Text: "• How's the traffic in [city]?", Wrap: true},
				},
			},
			domain.Container{
				Type:      "Container",
				Separator: true,
				Items: []domain.CardElement{
					domain.TextBlock{Type: "TextBlock", Text: "**Examples:**", Weight: "Bolder", Wrap: true},
					domain.TextBlock{Type: "TextBlock", Text: `• "What's the weather in New York?"`, Wrap: true, IsSubtle: true},
					domain.TextBlock{Type: "TextBlock", Text: `• "What time is it in London?"`, Wrap: true, IsSubtle: true},
					domain.TextBlock{Type: "TextBlock", Text: `• "How's traffic in Los Angeles?"`, Wrap: true, IsSubtle: true},
				},
			},
		},
		Actions: []domain.CardAction{
			{
				Type:  "Action.Submit",
				Title: "Check Weather",
				Data:  domain.CardActionSubmit{Action: "weather", Text: "What's the weather in New York?"},
			},
			{
				Type:  "Action.Submit",
				Title: "Check Time",
				Data:  domain.CardActionSubmit{Action: "time", Text: "What time is it in New York?"},
			},
			{
				Type:  "Action.Submit",
				Title: "Check Traffic",
				Data:  domain.CardActionSubmit{Action: "traffic", Text: "How's traffic in New York?"},
			},
		},
	})
}

// ErrorCard builds the error card around a user-facing message.
func (f *Formatter) ErrorCard(message string) domain.Attachment {
	return attachment(domain.AdaptiveCard{
		Schema:  domain.AdaptiveCardSchema,
		Type:    "AdaptiveCard",
		Version: domain.AdaptiveCardVersion,
		Body: []domain.CardElement{
			domain.Container{
				Type:  "Container",
				Style: "attention",
				Items: []domain.CardElement{
					domain.TextBlock{
						Type:   "TextBlock",
						Text:   "⚠️ Error",
						Weight: "Bolder",
						Size:   "Large",
						Wrap:   true,
					},
					domain.TextBlock{
						Type:    "TextBlock",
						Text:    message,
						Wrap:    true,
						Spacing: "Medium",
					},
				},
			},
			domain.Container{
				Type:      "Container",
				Separator: true,
				Items: []domain.CardElement{
					domain.TextBlock{
						Type:     "TextBlock",
						Text:     "Please try again or type 'help' for available commands.",
						Wrap:     true,
						IsSubtle: true,
					},
				},
			},
		},
		Actions: []domain.CardAction{
			{
				Type:  "Action.Submit",
				Title: "Get Help",
				Data:  domain.CardActionSubmit{Action: "help", Text: "help"},
			},
		},
	})
}

// trafficInfo is what the traffic builder could scan out of an agent reply.
type trafficInfo struct {
	status         string
	averageSpeed   string
	congestion     string
	incidents      string
	recommendation string
}

// trafficFromReply derives traffic facts from keyword hints in the reply.
// Replies with no recognizable hint get the Moderate preset.
func trafficFromReply(reply string) trafficInfo {
	lower := strings.ToLower(reply)
	switch {
	case strings.Contains(lower, "severe"):
		return trafficInfo{
			status:         "Severe",
			averageSpeed:   "10 mph",
			congestion:     "High",
			incidents:      "Major incidents reported",
			recommendation: "Delay non-essential travel until conditions improve.",
		}
	case strings.Contains(lower, "heavy"):
		return trafficInfo{
			status:         "Heavy",
			averageSpeed:   "15 mph",
			congestion:     "High",
			incidents:      "3 accidents reported",
			recommendation: "Avoid main highways. Use alternative routes.",
		}
	case strings.Contains(lower, "light"):
		return trafficInfo{
			status:         "Light",
			averageSpeed:   "45 mph",
			congestion:     "Low",
			incidents:      "No incidents",
			recommendation: "Good time to travel. All routes clear.",
		}
	default:
		return trafficInfo{
			status:         "Moderate",
			averageSpeed:   "25 mph",
			congestion:     "Medium",
			incidents:      "2 minor delays",
			recommendation: "Consider alternative routes during peak hours.",
		}
	}
}

// truncate limits s to n runes without splitting a multibyte character.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func attachment(content domain.AdaptiveCard) domain.Attachment {
	return domain.Attachment{
		ContentType: domain.AdaptiveCardContentType,
		Content:     content,
	}
}
