// Package format renders queue messages for the operator's screen and log.
// Every function here is total: unparsable bodies degrade to raw text.
package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sungwon/ticket-printer/internal/queue"
)

// Kind tags how a message body was interpreted.
type Kind int

const (
	Raw Kind = iota
	Structured
)

func (k Kind) String() string {
	if k == Structured {
		return "structured"
	}
	return "raw"
}

// Body is the result of Parse. For Structured bodies Value holds the decoded
// JSON value and Text its indented rendering; for Raw bodies Text is the
// original body with invalid UTF-8 replaced.
type Body struct {
	Kind  Kind
	Value any
	Text  string
}

const (
	ruleWidth  = 80
	timeLayout = "2006-01-02 15:04:05"
)

// Parse interprets body as JSON when it is a single valid JSON value and as
// raw text otherwise.
func Parse(body string) Body {
	trimmed := strings.TrimSpace(body)
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		var v any
		dec := json.NewDecoder(strings.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&v); err == nil {
			var buf bytes.Buffer
			if err := json.Indent(&buf, []byte(trimmed), "", "  "); err == nil {
				return Body{Kind: Structured, Value: v, Text: sanitize(buf.String())}
			}
		}
	}
	return Body{Kind: Raw, Text: sanitize(body)}
}

// Format renders msg as the ticket banner shown to the operator.
func Format(msg queue.Message) string {
	rule := strings.Repeat("=", ruleWidth)
	body := Parse(msg.Body)

	id := msg.ID
	if id == "" {
		id = "Unknown"
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(rule)
	b.WriteString("\n")
	fmt.Fprintf(&b, "[%s] New Ticket Message\n", msg.ReceivedAt.Format(timeLayout))
	fmt.Fprintf(&b, "Message ID: %s\n", sanitize(id))
	b.WriteString(rule)
	b.WriteString("\n")
	b.WriteString(body.Text)
	b.WriteString("\n")
	b.WriteString(rule)
	b.WriteString("\n")
	return b.String()
}

// Summary returns a one-line digest of a structured TODO ticket as produced
// by the web submission form ({"importance", "todo", "from", "dueDate"}).
// It returns "" for raw bodies or objects without a "todo" field.
func Summary(body Body) string {
	obj, ok := body.Value.(map[string]any)
	if body.Kind != Structured || !ok {
		return ""
	}
	todo, ok := obj["todo"].(string)
	if !ok || strings.TrimSpace(todo) == "" {
		return ""
	}

	var parts []string
	if imp, ok := obj["importance"]; ok && imp != nil {
		parts = append(parts, fmt.Sprintf("[P%v]", imp))
	}
	parts = append(parts, strings.TrimSpace(todo))
	if from, ok := obj["from"].(string); ok && from != "" {
		parts = append(parts, "from "+from)
	}
	if due, ok := obj["dueDate"].(string); ok && due != "" {
		parts = append(parts, "due "+due)
	}
	return sanitize(strings.Join(parts, " "))
}

// keyFields are the object fields that may name a ticket's image, in order
// of preference.
var keyFields = []string{"key", "image", "screenshot"}

// Key returns the object-store key a message body refers to. A raw body is
// the key itself; a structured body names it in a "key", "image" or
// "screenshot" field, or is a bare JSON string. Key returns "" when the body
// names no image.
func Key(body Body) string {
	if body.Kind == Raw {
		return strings.TrimSpace(body.Text)
	}
	switch v := body.Value.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		for _, f := range keyFields {
			if s, ok := v[f].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func sanitize(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "�")
}
