package format

import (
	"strings"
	"testing"
	"time"

	"github.com/sungwon/ticket-printer/internal/queue"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantKind Kind
		wantText string
	}{
		{"object", `{"a":1}`, Structured, "{\n  \"a\": 1\n}"},
		{"array", `[1, 2]`, Structured, "[\n  1,\n  2\n]"},
		{"scalar string", `"hello"`, Structured, `"hello"`},
		{"number", `42`, Structured, `42`},
		{"surrounding whitespace", "  {\"a\":true}\n", Structured, "{\n  \"a\": true\n}"},
		{"object key", "tickets/abc123.png", Raw, "tickets/abc123.png"},
		{"truncated json", `{"a":`, Raw, `{"a":`},
		{"two values", `{} {}`, Raw, `{} {}`},
		{"empty", "", Raw, ""},
		{"whitespace only", "   ", Raw, "   "},
		{"invalid utf8", "bad\xffbyte", Raw, "bad�byte"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.body)
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if got.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", got.Text, tt.wantText)
			}
		})
	}
}

func TestParse_PreservesLargeNumbers(t *testing.T) {
	got := Parse(`{"id": 12345678901234567890}`)
	if !strings.Contains(got.Text, "12345678901234567890") {
		t.Errorf("number was altered: %s", got.Text)
	}
}

func TestParse_Total(t *testing.T) {
	// Every byte value on its own, plus some hostile mixes.
	inputs := []string{"\x00", "{\x00}", "\"\\u", "[[[[", "\xc3\x28", "nul", "{\"a\":\"\xff\"}"}
	for i := 0; i < 256; i++ {
		inputs = append(inputs, string([]byte{byte(i)}))
	}
	for _, in := range inputs {
		got := Parse(in)
		if got.Kind != Raw && got.Kind != Structured {
			t.Errorf("Parse(%q) returned unknown kind %v", in, got.Kind)
		}
		_ = Format(queue.Message{ID: "x", Body: in})
	}
}

func TestFormat(t *testing.T) {
	msg := queue.Message{
		ID:         "msg-123",
		Body:       `{"todo":"buy milk"}`,
		ReceivedAt: time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC),
	}

	got := Format(msg)
	rule := strings.Repeat("=", 80)

	want := "\n" + rule + "\n" +
		"[2026-10-17 09:30:00] New Ticket Message\n" +
		"Message ID: msg-123\n" +
		rule + "\n" +
		"{\n  \"todo\": \"buy milk\"\n}\n" +
		rule + "\n"
	if got != want {
		t.Errorf("Format mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestFormat_RawBodyAndMissingID(t *testing.T) {
	got := Format(queue.Message{Body: "tickets/abc123.png"})
	if !strings.Contains(got, "Message ID: Unknown") {
		t.Errorf("expected Unknown message ID, got %q", got)
	}
	if !strings.Contains(got, "\ntickets/abc123.png\n") {
		t.Errorf("expected raw body line, got %q", got)
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "full ticket",
			body: `{"importance":5,"todo":"Fix the printer","from":"Sam","dueDate":"2026-10-20","timestamp":"2026-10-17T09:00:00Z"}`,
			want: "[P5] Fix the printer from Sam due 2026-10-20",
		},
		{
			name: "anonymous without due date",
			body: `{"importance":2,"todo":"  call mom ","from":"","dueDate":null}`,
			want: "[P2] call mom",
		},
		{"no todo", `{"importance":1}`, ""},
		{"array", `["todo"]`, ""},
		{"raw", "tickets/abc123.png", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Summary(Parse(tt.body)); got != tt.want {
				t.Errorf("Summary = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKind_String(t *testing.T) {
	if Raw.String() != "raw" || Structured.String() != "structured" {
		t.Errorf("unexpected Kind strings: %s, %s", Raw, Structured)
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"raw key", "  screens/2026/ticket-42.png\n", "screens/2026/ticket-42.png"},
		{"json string", `"ticket-7.png"`, "ticket-7.png"},
		{"key field", `{"key":"a.png","image":"b.png"}`, "a.png"},
		{"image field", `{"image":"b.png"}`, "b.png"},
		{"screenshot field", `{"screenshot":" c.png "}`, "c.png"},
		{"todo without image", `{"todo":"buy milk","importance":2}`, ""},
		{"non-string key", `{"key":12}`, ""},
		{"array", `["a.png"]`, ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Key(Parse(tt.body)); got != tt.want {
				t.Errorf("Key(%q) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}
