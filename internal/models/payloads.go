package models

// These structs define the wire payloads between the queue transport and the
// analyze-job worker function.

// PubSubMessage mirrors the Pub/Sub message embedded in a CloudEvent.
// Data arrives base64-encoded and is decoded by encoding/json.
type PubSubMessage struct {
	Data       []byte            `json:"data"`
	Attributes map[string]string `json:"attributes,omitempty"`
	MessageID  string            `json:"messageId,omitempty"`
}

// MessagePublishedData is the CloudEvent data envelope for a Pub/Sub trigger.
type MessagePublishedData struct {
	Message      PubSubMessage `json:"message"`
	Subscription string        `json:"subscription,omitempty"`
}

// AnalyzeJobMessage is the decoded payload of an inbound job trigger.
type AnalyzeJobMessage struct {
	JobID string `json:"jobId"`
}
