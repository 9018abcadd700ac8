package dto

import "time"

// Event is the broker envelope wrapped around every published message
type Event struct {
	Event    EventDetails  `json:"event"`
	Metadata EventMetadata `json:"metadata"`
}

type EventDetails struct {
	Id        string      `json:"id"`
	EntityId  string      `json:"entityId"`
	EventType string      `json:"eventType"`
	Data      interface{} `json:"data"`
}

type EventMetadata struct {
	UberTraceId string `json:"uberTraceId"`
	Timestamp   string `json:"timestamp"`
}

// EmailIngested announces one newly stored message to downstream consumers
type EmailIngested struct {
	EmailID         uint      `json:"emailId"`
	AccountID       uint      `json:"accountId"`
	MessageID       string    `json:"messageId"`
	Sender          string    `json:"sender"`
	Subject         string    `json:"subject"`
	EmailDate       time.Time `json:"emailDate"`
	AttachmentCount int       `json:"attachmentCount"`
	IngestedAt      time.Time `json:"ingestedAt"`
}
