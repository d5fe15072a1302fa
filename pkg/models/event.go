package models

// EventType identifies the content of an inbound message event
type EventType string

// EventType constants
const (
	EventText  EventType = "text"
	EventImage EventType = "image"
	EventAudio EventType = "audio"
)

// InboundEvent is a message event delivered by the messaging platform
type InboundEvent struct {
	Type       EventType
	UserID     string
	ReplyToken string
	MessageID  string
	Text       string // only set for text events
}

// EventDetails are the calendar fields extracted from a picture or web page
type EventDetails struct {
	Title    string `json:"title"`
	Time     string `json:"time"`
	Location string `json:"location"`
	Content  string `json:"content"`
}

// Artifact is binary content captured from a message, such as a recording
type Artifact struct {
	Data     []byte
	MIMEType string
}
