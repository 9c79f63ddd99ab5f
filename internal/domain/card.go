package domain

// Adaptive Card wire types for Teams attachments.
// Schema: https://adaptivecards.io/schemas/adaptive-card.json, version 1.4.

const (
	AdaptiveCardContentType = "application/vnd.microsoft.card.adaptive"
	AdaptiveCardSchema      = "http://adaptivecards.io/schemas/adaptive-card.json"
	AdaptiveCardVersion     = "1.4"
)

// Attachment wraps a card for the attachments array of a reply activity.
type Attachment struct {
	ContentType string       `json:"contentType"`
	Content     AdaptiveCard `json:"content"`
}

// AdaptiveCard is the root card node.
type AdaptiveCard struct {
	Schema  string        `json:"$schema"`
	Type    string        `json:"type"` // always "AdaptiveCard"
	Version string        `json:"version"`
	Body    []CardElement `json:"body"`
	Actions []CardAction  `json:"actions,omitempty"`
}

// CardElement is a node in a card body. The set of implementations is closed:
// Container, TextBlock, and FactSet.
type CardElement interface {
	cardElement()
}

// Container groups child elements with an optional emphasis style.
type Container struct {
	Type      string        `json:"type"` // always "Container"
	Style     string        `json:"style,omitempty"`
	Separator bool          `json:"separator,omitempty"`
	Items     []CardElement `json:"items"`
}

// TextBlock renders a run of text.
type TextBlock struct {
	Type                string `json:"type"` // always "TextBlock"
	Text                string `json:"text"`
	Weight              string `json:"weight,omitempty"`
	Size                string `json:"size,omitempty"`
	HorizontalAlignment string `json:"horizontalAlignment,omitempty"`
	IsSubtle            bool   `json:"isSubtle,omitempty"`
	Wrap                bool   `json:"wrap,omitempty"`
	Separator           bool   `json:"separator,omitempty"`
	Spacing             string `json:"spacing,omitempty"`
}

// FactSet renders a titled key/value list.
type FactSet struct {
	Type      string `json:"type"` // always "FactSet"
	Facts     []Fact `json:"facts"`
	Separator bool   `json:"separator,omitempty"`
}

// Fact is one row of a FactSet.
type Fact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

func (Container) cardElement() {}
func (TextBlock) cardElement() {}
func (FactSet) cardElement()   {}

// CardAction is a card-level action button. Only Action.Submit is used; the
// data payload re-enters the webhook pipeline as a synthesized user message.
type CardAction struct {
	Type  string           `json:"type"` // always "Action.Submit"
	Title string           `json:"title"`
	Data  CardActionSubmit `json:"data"`
}

// CardActionSubmit is the payload delivered back when a submit button is pressed.
type CardActionSubmit struct {
	Action string `json:"action"`
	Text   string `json:"text"`
}
