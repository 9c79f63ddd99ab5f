package domain

// Intent is the coarse category of a user request.
type Intent string

const (
	IntentWeather Intent = "weather"
	IntentTime    Intent = "time"
	IntentTraffic Intent = "traffic"
	IntentHelp    Intent = "help"
	IntentUnknown Intent = "unknown"
)
