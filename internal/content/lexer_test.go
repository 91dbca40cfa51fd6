package content

import (
	"reflect"
	"testing"
)

func TestSegments_MixedContent(t *testing.T) {
	text := "# Firmware\n\nFlash this sketch:\n\n```cpp\n#include <Wire.h>\nvoid setup() {}\n```\n\nThen open the serial monitor.\n"

	got := Segments(text)
	want := []Segment{
		{Kind: KindMarkdown, Text: "# Firmware\n\nFlash this sketch:"},
		{Kind: KindCode, Language: "cpp", Text: "#include <Wire.h>\nvoid setup() {}"},
		{Kind: KindMarkdown, Text: "Then open the serial monitor."},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Segments =\n%#v\nwant\n%#v", got, want)
	}
}

func TestSegments_AdjacentFencesSkipBlankMarkdown(t *testing.T) {
	text := "```ini\n[env]\n```\n\n```\nplain\n```"
	got := Segments(text)
	if len(got) != 2 {
		t.Fatalf("got %d segments, want 2: %#v", len(got), got)
	}
	if got[0].Language != "ini" || got[1].Language != "" || got[1].Text != "plain" {
		t.Errorf("segments = %#v", got)
	}
}

func TestSegments_UnterminatedFenceRunsToEnd(t *testing.T) {
	got := Segments("intro\n```python\nprint(1)\nprint(2)")
	if len(got) != 2 {
		t.Fatalf("got %#v", got)
	}
	if got[1].Kind != KindCode || got[1].Text != "print(1)\nprint(2)" {
		t.Errorf("code = %#v", got[1])
	}
}

func TestSegments_TildeFenceAndLongerClose(t *testing.T) {
	got := Segments("~~~ YAML extra\nkey: v\n~~~~\n")
	want := []Segment{{Kind: KindCode, Language: "yaml", Text: "key: v"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Segments = %#v", got)
	}
}

func TestSegments_BacktickFenceNotClosedByTilde(t *testing.T) {
	got := Segments("```\na\n~~~\nb\n```")
	if len(got) != 1 || got[0].Text != "a\n~~~\nb" {
		t.Errorf("Segments = %#v", got)
	}
}

func TestSegments_EmptyInput(t *testing.T) {
	if got := Segments(""); len(got) != 0 {
		t.Errorf("Segments(\"\") = %#v", got)
	}
	if got := Segments("\n\n  \n"); len(got) != 0 {
		t.Errorf("whitespace input = %#v", got)
	}
}

func TestLexer_ResetRestarts(t *testing.T) {
	l := NewLexer("a\n```go\nx\n```\nb")
	var first []Segment
	for seg, ok := l.Next(); ok; seg, ok = l.Next() {
		first = append(first, seg)
	}
	if _, ok := l.Next(); ok {
		t.Fatal("exhausted lexer should stay exhausted")
	}

	l.Reset()
	var second []Segment
	for seg, ok := l.Next(); ok; seg, ok = l.Next() {
		second = append(second, seg)
	}
	if !reflect.DeepEqual(first, second) || len(first) != 3 {
		t.Errorf("first=%#v second=%#v", first, second)
	}
}

func TestCodeBlocks_FilterByLanguage(t *testing.T) {
	text := "```cpp\nA\n```\n```ini\nB\n```\n```CPP\nC\n```"
	got := CodeBlocks(text, "cpp")
	if len(got) != 2 || got[0].Text != "A" || got[1].Text != "C" {
		t.Errorf("CodeBlocks = %#v", got)
	}
}
