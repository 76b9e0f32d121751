package repository

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/vivi-tora/mfc/internal/model"
)

// Text log format:
//
//	2025-01-02T03:04:05.000Z [INFO] message
//	Request: {
//	    "method": "POST"
//	  }
//	Details: "plain text"
//	<blank line>
//
// A blank line ends an entry. Section labels start at column 0 and their
// values are JSON: a string is a text payload, an object a structured one.
// Every continuation line of the message or of a value is indented by
// continuationIndent, so continuations can never be mistaken for a label or
// for the entry separator.

const (
	timestampLayout    = "2006-01-02T15:04:05.000Z07:00"
	continuationIndent = "  "
)

const (
	labelDetails  = "Details"
	labelData     = "Data"
	labelRequest  = "Request"
	labelResponse = "Response"
)

var sectionLabels = []string{labelDetails, labelData, labelRequest, labelResponse}

// encodeEntry renders one entry, including its trailing blank line.
func encodeEntry(e *model.LogEntry) []byte {
	var b bytes.Buffer
	b.WriteString(e.Timestamp.UTC().Format(timestampLayout))
	b.WriteString(" [")
	b.WriteString(strings.ToUpper(string(e.Level)))
	b.WriteString("] ")
	writeIndented(&b, e.Message)

	for _, s := range []struct {
		label   string
		payload model.Payload
	}{
		{labelDetails, e.Details},
		{labelData, e.Data},
		{labelRequest, e.Request},
		{labelResponse, e.Response},
	} {
		if s.payload.IsZero() {
			continue
		}
		b.WriteByte('\n')
		b.WriteString(s.label)
		b.WriteString(": ")
		writeIndented(&b, encodePayload(s.payload))
	}

	b.WriteString("\n\n")
	return b.Bytes()
}

func writeIndented(b *bytes.Buffer, s string) {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
			b.WriteString(continuationIndent)
		}
		b.WriteString(line)
	}
}

// encodePayload serializes a payload as JSON text. Values that cannot be
// marshaled are coerced to their %v string instead of failing the write.
func encodePayload(p model.Payload) string {
	switch p.Kind() {
	case model.PayloadText:
		out, err := marshalJSON(p.Text(), "")
		if err != nil {
			return fmt.Sprintf("%q", p.Text())
		}
		return out
	case model.PayloadStructured:
		out, err := marshalJSON(p.Fields(), "  ")
		if err == nil {
			return out
		}
		out, err = marshalJSON(coerce(p.Fields()), "  ")
		if err == nil {
			return out
		}
		text, _ := marshalJSON(fmt.Sprintf("%v", p.Fields()), "")
		return text
	default:
		return ""
	}
}

func marshalJSON(v any, indent string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// coerce replaces every value json cannot marshal with its %v string.
func coerce(v any) any {
	if _, err := json.Marshal(v); err == nil {
		return v
	}
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = coerce(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = coerce(val)
		}
		return out
	default:
		return fmt.Sprintf("%v", v)
	}
}

// decodePayload reconstructs a payload from its section text. Anything that
// is not a JSON string or object comes back as raw text.
func decodePayload(raw string) model.Payload {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return model.TextPayload(raw)
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return model.TextPayload(raw)
	}
	switch t := v.(type) {
	case string:
		return model.TextPayload(t)
	case map[string]any:
		return model.StructuredPayload(t)
	default:
		return model.TextPayload(raw)
	}
}

var errBadHeader = errors.New("malformed log header")

// parseHeader splits "TIMESTAMP [LEVEL] message".
func parseHeader(line string) (time.Time, model.Level, string, error) {
	open := strings.Index(line, " [")
	if open <= 0 {
		return time.Time{}, "", "", errBadHeader
	}
	closing := strings.Index(line[open:], "]")
	if closing < 0 {
		return time.Time{}, "", "", errBadHeader
	}
	closing += open

	ts, err := time.Parse(time.RFC3339Nano, line[:open])
	if err != nil {
		return time.Time{}, "", "", fmt.Errorf("%w: %v", errBadHeader, err)
	}
	level := model.Level(strings.ToLower(line[open+2 : closing]))
	message := strings.TrimPrefix(line[closing+1:], " ")
	return ts.UTC(), level, message, nil
}

func matchLabel(line string) (string, string, bool) {
	for _, label := range sectionLabels {
		if strings.HasPrefix(line, label+":") {
			return label, strings.TrimPrefix(line[len(label)+1:], " "), true
		}
	}
	return "", "", false
}

type parseState int

const (
	stateIdle parseState = iota
	stateHeader
	stateSection
	stateSkip
)

// entryParser is a line-driven state machine. A line continues the current
// header or section unless it starts with a section label, in which case it
// opens a new section; a blank line closes the entry.
type entryParser struct {
	entries []model.LogEntry
	corrupt int

	state   parseState
	cur     model.LogEntry
	message []string
	label   string
	value   []string
}

func (p *entryParser) line(line string) {
	if line == "" {
		p.finish()
		return
	}

	switch p.state {
	case stateSkip:
		return
	case stateIdle:
		ts, level, message, err := parseHeader(line)
		if err != nil {
			p.corrupt++
			p.state = stateSkip
			return
		}
		p.cur = model.LogEntry{Timestamp: ts, Level: level}
		p.message = []string{message}
		p.state = stateHeader
		return
	}

	if label, rest, ok := matchLabel(line); ok {
		p.flushSection()
		p.label = label
		p.value = []string{rest}
		p.state = stateSection
		return
	}

	line = strings.TrimPrefix(line, continuationIndent)
	if p.state == stateHeader {
		p.message = append(p.message, line)
	} else {
		p.value = append(p.value, line)
	}
}

func (p *entryParser) flushSection() {
	if p.state != stateSection {
		return
	}
	payload := decodePayload(strings.Join(p.value, "\n"))
	switch p.label {
	case labelDetails:
		p.cur.Details = payload
	case labelData:
		p.cur.Data = payload
	case labelRequest:
		p.cur.Request = payload
	case labelResponse:
		p.cur.Response = payload
	}
	p.label = ""
	p.value = nil
}

func (p *entryParser) finish() {
	switch p.state {
	case stateHeader, stateSection:
		p.flushSection()
		p.cur.Message = strings.Join(p.message, "\n")
		p.entries = append(p.entries, p.cur)
	}
	p.state = stateIdle
	p.cur = model.LogEntry{}
	p.message = nil
}

// decodeEntries parses a whole log stream in file order. Records whose
// header cannot be parsed are counted and skipped; a truncated trailing
// record is still returned.
func decodeEntries(r io.Reader) ([]model.LogEntry, int, error) {
	var p entryParser
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 || err == nil {
			p.line(strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r"))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
	}
	p.finish()
	return p.entries, p.corrupt, nil
}
