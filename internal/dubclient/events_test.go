package dubclient

import (
	"strings"
	"testing"
)

func TestReadEvents(t *testing.T) {
	body := ": comment\r\n" +
		"data: {\"a\":1}\r\n\r\n" +
		"event: progress\n" +
		"data: line one\n" +
		"data:line two\n" +
		"id: 7\n\n" +
		"\n" +
		"data: incomplete"

	var got []event
	if err := readEvents(strings.NewReader(body), func(ev event) bool {
		got = append(got, ev)
		return true
	}); err != nil {
		t.Fatalf("readEvents: %v", err)
	}
	want := []event{
		{data: `{"a":1}`},
		{name: "progress", data: "line one\nline two"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestReadEventsStopsWhenCallbackDeclines(t *testing.T) {
	body := "data: 1\n\ndata: 2\n\n"
	calls := 0
	if err := readEvents(strings.NewReader(body), func(event) bool {
		calls++
		return false
	}); err != nil {
		t.Fatalf("readEvents: %v", err)
	}
	if calls != 1 {
		t.Fatalf("callback called %d times, want 1", calls)
	}
}

func TestDetailMessage(t *testing.T) {
	tests := map[string]string{
		`{"detail":"ffmpeg missing"}`:                   "ffmpeg missing",
		`{"detail":[{"msg":"a"},{"msg":"b"}]}`:          "a; b",
		`{"detail":{"nested":true}}`:                    "",
		`{"other":"x"}`:                                 "",
		``:                                              "",
		`garbage`:                                       "",
	}
	for body, want := range tests {
		if got := detailMessage([]byte(body)); got != want {
			t.Errorf("detailMessage(%q) = %q, want %q", body, got, want)
		}
	}
}

func TestReadEventsSkipsOversizedLine(t *testing.T) {
	huge := strings.Repeat("x", maxEventLength+10)
	body := "data: {\"status\":\"running\"}\n\n" +
		"data: " + huge + "\n" +
		"data: tail\n\n" +
		"data: {\"status\":\"completed\"}\n\n"

	var got []event
	if err := readEvents(strings.NewReader(body), func(ev event) bool {
		got = append(got, ev)
		return true
	}); err != nil {
		t.Fatalf("readEvents: %v", err)
	}
	want := []event{
		{data: `{"status":"running"}`},
		{oversized: true},
		{data: `{"status":"completed"}`},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
