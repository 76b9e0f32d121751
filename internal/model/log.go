package model

import (
	"encoding/json"
	"time"
)

// Level is the severity of a log entry.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// LogEntry is one immutable audit record persisted by the log store.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Details   Payload   `json:"details,omitzero"`
	Data      Payload   `json:"data,omitzero"`
	Request   Payload   `json:"request,omitzero"`
	Response  Payload   `json:"response,omitzero"`
}

// RequestInfo describes an outbound HTTP request recorded in a log entry.
type RequestInfo struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    any               `json:"body,omitempty"`
}

// ResponseInfo describes an HTTP response recorded in a log entry.
type ResponseInfo struct {
	Status int `json:"status"`
	Body   any `json:"body,omitempty"`
}

// Payload converts the request into a structured payload.
func (r RequestInfo) Payload() Payload { return PayloadOf(r) }

// Payload converts the response into a structured payload.
func (r ResponseInfo) Payload() Payload { return PayloadOf(r) }

// DecodeResponse reads a Response payload back into a ResponseInfo.
func DecodeResponse(p Payload) (ResponseInfo, bool) {
	var info ResponseInfo
	if p.Kind() != PayloadStructured {
		return info, false
	}
	raw, err := json.Marshal(p.Fields())
	if err != nil {
		return info, false
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return info, false
	}
	return info, true
}
