package cart

import (
	"errors"

	jsoniter "github.com/json-iterator/go"

	"github.com/biblioteca/backend/internal/domain/shared"
)

// Kiosk firmware may add telemetry fields such as device or timestamp
var tagJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// TagReadEvent is published by a kiosk for every tag it reads
type TagReadEvent struct {
	TagID string `json:"rfid_tag"`
}

// BookInfoNotification answers a successful tag read
type BookInfoNotification struct {
	Status string `json:"status"`
	Title  string `json:"titulo"`
	TagID  string `json:"rfid_tag"`
	Added  bool   `json:"added"`
}

// ErrorNotification answers a rejected tag read
type ErrorNotification struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	TagID string `json:"rfid_tag,omitempty"`
}

// ControlMessage tells a kiosk that its session changed state
type ControlMessage struct {
	Action    string `json:"action"`
	Timestamp int64  `json:"timestamp"`
}

// DecodeTagRead parses a tag-read payload
func DecodeTagRead(payload []byte) (TagReadEvent, error) {
	var event TagReadEvent
	if err := tagJSON.Unmarshal(payload, &event); err != nil {
		return TagReadEvent{}, shared.ErrInvalidInput.WithMessage("malformed tag read payload")
	}
	if event.TagID == "" {
		return TagReadEvent{}, shared.ErrInvalidInput.WithMessage("rfid_tag is required")
	}
	return event, nil
}

// ErrorCode returns the domain code of err, or INTERNAL_ERROR
func ErrorCode(err error) string {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return "INTERNAL_ERROR"
}

func encode(v any) ([]byte, error) {
	return jsoniter.ConfigFastest.Marshal(v)
}
