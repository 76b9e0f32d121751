package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PayloadKind tells which variant a Payload holds.
type PayloadKind int

const (
	PayloadNone PayloadKind = iota
	PayloadText
	PayloadStructured
)

// Payload is an optional structured section of a log entry. It is either
// absent, a plain string, or a JSON object.
type Payload struct {
	kind   PayloadKind
	text   string
	fields map[string]any
}

// NoPayload returns the absent payload.
func NoPayload() Payload { return Payload{} }

// TextPayload wraps a plain string.
func TextPayload(s string) Payload {
	return Payload{kind: PayloadText, text: s}
}

// StructuredPayload wraps a JSON-object-like map. A nil map is treated as
// an empty object.
func StructuredPayload(fields map[string]any) Payload {
	if fields == nil {
		fields = map[string]any{}
	}
	return Payload{kind: PayloadStructured, fields: fields}
}

// PayloadOf converts any JSON-marshalable value into a payload: strings
// become text, everything that marshals to an object becomes structured,
// anything else is kept as its JSON text.
func PayloadOf(v any) Payload {
	switch t := v.(type) {
	case nil:
		return NoPayload()
	case Payload:
		return t
	case string:
		return TextPayload(t)
	case map[string]any:
		return StructuredPayload(t)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return TextPayload(fmt.Sprintf("%v", v))
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err == nil && fields != nil {
		return StructuredPayload(fields)
	}
	return TextPayload(string(raw))
}

// Kind returns the variant tag.
func (p Payload) Kind() PayloadKind { return p.kind }

// IsZero reports whether the payload is absent.
func (p Payload) IsZero() bool { return p.kind == PayloadNone }

// Text returns the string of a text payload, or "" for other variants.
func (p Payload) Text() string { return p.text }

// Fields returns the map of a structured payload, or nil for other variants.
func (p Payload) Fields() map[string]any { return p.fields }

// Field looks up a top-level key of a structured payload.
func (p Payload) Field(key string) (any, bool) {
	if p.kind != PayloadStructured {
		return nil, false
	}
	v, ok := p.fields[key]
	return v, ok
}

// MarshalJSON renders text as a JSON string, structured as an object and
// the absent payload as null.
func (p Payload) MarshalJSON() ([]byte, error) {
	switch p.kind {
	case PayloadText:
		return json.Marshal(p.text)
	case PayloadStructured:
		return json.Marshal(p.fields)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON is the inverse of MarshalJSON. Values that are neither a
// string nor an object are kept as their raw JSON text.
func (p *Payload) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = NoPayload()
		return nil
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		*p = TextPayload(t)
	case map[string]any:
		*p = StructuredPayload(t)
	default:
		*p = TextPayload(string(data))
	}
	return nil
}
