package domain

// EnvelopeType tags an agent response envelope with the card builder that
// should render it. It is a closed set: every value maps to exactly one builder.
type EnvelopeType string

const (
	EnvelopeWeather EnvelopeType = "weather"
	EnvelopeTime    EnvelopeType = "time"
	EnvelopeTraffic EnvelopeType = "traffic"
	EnvelopeHelp    EnvelopeType = "help"
	EnvelopeError   EnvelopeType = "error"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the normalized agent response produced by the router and
// consumed by the card formatter. Data carries either the raw agent reply
// (Reply) or a structured message (Message, Commands); the formatter tolerates
// any of them being empty.
type Envelope struct {
	Type   EnvelopeType `json:"type"`
	City   string       `json:"city,omitempty"`
	Data   EnvelopeData `json:"data"`
	Status string       `json:"status"`
}

// EnvelopeData is the payload of an envelope.
type EnvelopeData struct {
	Reply    string   `json:"reply,omitempty"`    // raw natural-language agent reply
	Message  string   `json:"message,omitempty"`  // static help/error message
	Commands []string `json:"commands,omitempty"` // help: supported command list
}
