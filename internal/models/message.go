package models

import (
	"encoding/json"
	"fmt"
)

// MessageType tags every message on the bus. The set is closed: receivers answer
// anything they do not know with UnknownType().
type MessageType string

const (
	GetAuthStatus        MessageType = "GET_AUTH_STATUS"
	SetAuthStatus        MessageType = "SET_AUTH_STATUS"
	OpenSidePanel        MessageType = "OPEN_SIDE_PANEL"
	ScanVehicleData      MessageType = "SCAN_VEHICLE_DATA"
	GetExtractedData     MessageType = "GET_EXTRACTED_DATA"
	VehicleDataExtracted MessageType = "VEHICLE_DATA_EXTRACTED"
)

// Error strings carried in Response.Error
const (
	ErrUnknownMessageType = "Unknown message type"
	ErrNoActiveTab        = "No active tab found"
	ErrOpenSidePanel      = "Failed to open side panel"
	ErrInternal           = "Internal error"
)

// Message is the wire unit of the bus
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage builds a message, encoding payload as JSON when it is not nil
func NewMessage(t MessageType, payload interface{}) (Message, error) {
	msg := Message{Type: t}
	if payload == nil {
		return msg, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return msg, fmt.Errorf("failed to encode %s payload: %w", t, err)
	}
	msg.Payload = raw
	return msg, nil
}

// DecodePayload unmarshals the payload into v
func (m Message) DecodePayload(v interface{}) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("%s: failed to decode payload: %w", m.Type, err)
	}
	return nil
}

// Response is what a handler sends back through the response channel.
// Only the fields relevant to the message type are set.
type Response struct {
	Success         bool              `json:"success,omitempty"`
	Error           string            `json:"error,omitempty"`
	IsAuthenticated *bool             `json:"isAuthenticated,omitempty"`
	Data            *ExtractionResult `json:"data,omitempty"`
}

// OK is {success: true}
func OK() Response {
	return Response{Success: true}
}

// WithData is {success: true, data: result}
func WithData(result ExtractionResult) Response {
	return Response{Success: true, Data: &result}
}

// AuthStatus is {isAuthenticated: v}
func AuthStatus(v bool) Response {
	return Response{IsAuthenticated: &v}
}

// Fail is {error: msg}
func Fail(msg string) Response {
	return Response{Error: msg}
}

// UnknownType is the answer to any message type a receiver does not handle
func UnknownType() Response {
	return Fail(ErrUnknownMessageType)
}

// Failed reports whether the response carries an error
func (r Response) Failed() bool {
	return r.Error != ""
}
