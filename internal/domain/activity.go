package domain

// Activity is an inbound Teams activity as delivered by the webhook.
// Only activities of type "message" are routed; everything else is acknowledged
// and ignored.
type Activity struct {
	Type         string              `json:"type"`
	ID           string              `json:"id,omitempty"`
	Timestamp    string              `json:"timestamp,omitempty"`
	ServiceURL   string              `json:"serviceUrl,omitempty"`
	ChannelID    string              `json:"channelId,omitempty"`
	From         Account             `json:"from,omitempty"`
	Conversation ConversationAccount `json:"conversation,omitempty"`
	Recipient    Account             `json:"recipient,omitempty"`
	Text         string              `json:"text,omitempty"`
	Locale       string              `json:"locale,omitempty"`
	Value        map[string]any      `json:"value,omitempty"` // Action.Submit payload
}

// Account identifies a user or bot on the Teams channel.
type Account struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// ConversationAccount identifies the chat thread an activity belongs to.
type ConversationAccount struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// ReplyActivity is the outbound message sent back to the Teams client.
type ReplyActivity struct {
	Type         string              `json:"type"`
	From         Account             `json:"from"`
	Conversation ConversationAccount `json:"conversation,omitempty"`
	Recipient    Account             `json:"recipient,omitempty"`
	Text         string              `json:"text,omitempty"`
	Attachments  []Attachment        `json:"attachments,omitempty"`
	Timestamp    string              `json:"timestamp"`
}

// MessageText returns the effective user input for an activity. Card submit
// actions carry their synthesized query in the value payload rather than the
// text field, so a value "text" entry takes over when the text is empty.
func (a Activity) MessageText() string {
	if a.Text != "" {
		return a.Text
	}
	if a.Value != nil {
		if s, ok := a.Value["text"].(string); ok {
			return s
		}
	}
	return ""
}
