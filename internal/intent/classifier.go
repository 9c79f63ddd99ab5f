// Package intent classifies free-form message text into a coarse intent
// category and extracts an optional city parameter. Classification is pure,
// rule-based string matching: no state, no external calls.
package intent

import (
	"regexp"
	"strings"

	"teamsbot/internal/domain"
)

// DefaultCity is returned when no city can be extracted from the text.
// Queries for untracked cities are silently attributed to it.
const DefaultCity = "New York"

// cityPatterns are tried in order against the lowercased text; the first
// capture group of the first match wins.
var cityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:weather|time|traffic)\s+(?:in|for|at)\s+([a-z\s]+?)(?:\?|$|\.)`),
	regexp.MustCompile(`(?i)(?:weather|time|traffic)\s+is\s+it\s+(?:in|for|at)\s+([a-z\s]+?)(?:\?|$|\.)`),
	regexp.MustCompile(`(?i)(?:what's|what is|whats)\s+the\s+(?:weather|time|traffic)\s+(?:in|for|at)\s+([a-z\s]+?)(?:\?|$|\.)`),
	regexp.MustCompile(`(?i)(?:how's|how is|hows)\s+(?:the\s+)?(?:weather|traffic)\s+(?:in|for|at)\s+([a-z\s]+?)(?:\?|$|\.)`),
	regexp.MustCompile(`(?i)([a-z\s]+?)\s+(?:weather|time|traffic)`),
}

// knownCities is the substring fallback when no pattern matches.
var knownCities = []string{"new york", "los angeles", "chicago", "houston", "phoenix"}

// stopwords are question lead-ins that the bare "<City> <topic>" pattern would
// otherwise capture as a city ("what time" -> "What"). The bare "s" covers the
// tail of a split contraction ("what's the weather" -> "s the").
var stopwords = map[string]bool{
	"what": true, "whats": true, "what's": true, "how": true, "hows": true,
	"how's": true, "is": true, "it": true, "the": true, "a": true, "an": true,
	"my": true, "me": true, "tell": true, "show": true, "check": true, "s": true,
}

// Keyword lists checked in fixed priority order: the first category whose
// keyword set intersects the text wins.
var (
	weatherKeywords = []string{"weather", "temperature", "forecast", "rain", "sunny", "cloudy"}
	timeKeywords    = []string{"time", "clock", "hour", "timezone", "what time"}
	trafficKeywords = []string{"traffic", "congestion", "roads", "commute", "driving"}
	helpKeywords    = []string{"help", "hello", "hi", "hey", "start", "commands", "what can you do"}
)

// Classify determines the intent of a message and, for location-bound intents,
// the city it refers to. Empty text asks for help; unmatched text is unknown.
func Classify(text string) (domain.Intent, string) {
	if strings.TrimSpace(text) == "" {
		return domain.IntentHelp, ""
	}

	lower := strings.ToLower(strings.TrimSpace(text))
	city := ExtractCity(text)

	if containsAny(lower, weatherKeywords) {
		return domain.IntentWeather, city
	}
	if containsAny(lower, timeKeywords) {
		return domain.IntentTime, city
	}
	if containsAny(lower, trafficKeywords) {
		return domain.IntentTraffic, city
	}
	if containsAny(lower, helpKeywords) {
		return domain.IntentHelp, ""
	}
	return domain.IntentUnknown, ""
}

// ExtractCity pulls a city name out of message text. It never fails: when
// neither the phrase patterns nor the known-city fallback match, it returns
// DefaultCity.
func ExtractCity(text string) string {
	lower := strings.ToLower(text)

	for _, p := range cityPatterns {
		if m := p.FindStringSubmatch(lower); m != nil {
			if city := stripStopwords(m[1]); city != "" {
				return NormalizeCity(city)
			}
		}
	}

	for _, city := range knownCities {
		if strings.Contains(lower, city) {
			return NormalizeCity(city)
		}
	}

	return DefaultCity
}

// NormalizeCity collapses whitespace and capitalizes each word. It is
// idempotent: normalizing an already-normalized city returns it unchanged.
func NormalizeCity(city string) string {
	words := strings.Fields(city)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// stripStopwords drops leading question words from a captured city phrase.
// Returns empty when nothing but stopwords was captured.
func stripStopwords(phrase string) string {
	words := strings.Fields(phrase)
	for len(words) > 0 && stopwords[words[0]] {
		words = words[1:]
	}
	return strings.Join(words, " ")
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
