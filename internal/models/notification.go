package models

import "encoding/json"

// Envelope types sent by the notification transport.
const (
	EnvelopeSubscriptionConfirmation = "SubscriptionConfirmation"
	EnvelopeNotification             = "Notification"
	EnvelopeUnsubscribeConfirmation  = "UnsubscribeConfirmation"
)

// Envelope is the outer message POSTed to the webhook. Message carries the
// storage event as a JSON string.
type Envelope struct {
	Type         string `json:"Type"`
	MessageID    string `json:"MessageId"`
	TopicArn     string `json:"TopicArn"`
	Message      string `json:"Message"`
	SubscribeURL string `json:"SubscribeURL"`
	Timestamp    string `json:"Timestamp"`
}

// StorageEvent is the S3-style change notification, as published by S3
// and by MinIO bucket notifications.
type StorageEvent struct {
	// Event is only set on the "s3:TestEvent" S3 sends when a notification
	// target is first configured.
	Event     string          `json:"Event,omitempty"`
	EventName string          `json:"EventName,omitempty"`
	Key       string          `json:"Key,omitempty"`
	Records   []StorageRecord `json:"Records"`
}

type StorageRecord struct {
	EventVersion string `json:"eventVersion"`
	EventSource  string `json:"eventSource"`
	EventTime    string `json:"eventTime"`
	EventName    string `json:"eventName"`
	S3           struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key  string `json:"key"`
			Size int64  `json:"size"`
			ETag string `json:"eTag"`
		} `json:"object"`
	} `json:"s3"`
}

// envelopeShape is used to tell payload shapes apart before full decoding.
type envelopeShape struct {
	Type    string          `json:"Type"`
	Records json.RawMessage `json:"Records"`
}

// IsRawStorageEvent reports whether payload is a bare storage event (no
// envelope), which is what MinIO publishes to NATS.
func IsRawStorageEvent(payload []byte) bool {
	var p envelopeShape
	if err := json.Unmarshal(payload, &p); err != nil {
		return false
	}
	return p.Type == "" && len(p.Records) > 0
}
