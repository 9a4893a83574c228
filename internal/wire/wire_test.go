package wire

import (
	"strings"
	"testing"

	"github.com/jabolina/go-lanmsg/internal/types"
)

func TestFormatParseRoundTrip(t *testing.T) {
	cases := []types.WireMessage{
		{Type: types.MessageDiscovery, MessageID: 1, SenderName: "alice", SenderIP: "192.168.1.5", Content: ""},
		{Type: types.MessageText, MessageID: 42, SenderName: "bob", SenderIP: "10.0.0.9", Content: "hello there"},
		{Type: types.MessageQuit, MessageID: 7, SenderName: "carol", SenderIP: "10.0.0.2", Content: ""},
	}

	for _, want := range cases {
		record, err := FormatMessage(want)
		if err != nil {
			t.Fatalf("FormatMessage(%+v): %v", want, err)
		}
		got, err := ParseMessage(record)
		if err != nil {
			t.Fatalf("ParseMessage(%q): %v", record, err)
		}
		if got.Type != want.Type || got.MessageID != want.MessageID ||
			got.SenderName != want.SenderName || got.SenderIP != want.SenderIP ||
			got.Content != want.Content {
			t.Fatalf("round trip mismatch: want %+v, got %+v", want, got)
		}
		if got.Magic != types.WireMagic {
			t.Fatalf("expected magic %d, got %d", types.WireMagic, got.Magic)
		}
	}
}

func TestParseMessageRejectsMalformed(t *testing.T) {
	_, err := ParseMessage("not-enough-fields")
	if err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestParseMessageRejectsBadMagic(t *testing.T) {
	_, err := ParseMessage("0|TEXT|1|bob|10.0.0.1|hi")
	if err != ErrBadMagic {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestParseMessageRejectsUnknownType(t *testing.T) {
	record := "1129530435|BOGUS|1|bob|10.0.0.1|hi"
	_, err := ParseMessage(record)
	if err != ErrUnknownType {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestContentMayContainDelimiter(t *testing.T) {
	msg := types.WireMessage{
		Type:       types.MessageText,
		MessageID:  1,
		SenderName: "alice",
		SenderIP:   "10.0.0.1",
		Content:    "a|b|c still one field since content is last",
	}
	record, err := FormatMessage(msg)
	if err != nil {
		t.Fatalf("FormatMessage: %v", err)
	}
	got, err := ParseMessage(record)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if got.Content != msg.Content {
		t.Fatalf("content mangled: want %q, got %q", msg.Content, got.Content)
	}
}

func TestFormatMessageTooLarge(t *testing.T) {
	msg := types.WireMessage{
		Type:       types.MessageText,
		SenderName: "alice",
		SenderIP:   "10.0.0.1",
		Content:    strings.Repeat("x", types.BufferSize),
	}
	_, err := FormatMessage(msg)
	if err != ErrTooLarge {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}
