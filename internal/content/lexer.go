// Package content splits generated stage text into markdown and code
// segments so clients can render code blocks separately.
package content

import "strings"

// Kind is the type of a segment.
type Kind string

const (
	KindMarkdown Kind = "markdown"
	KindCode     Kind = "code"
)

// Segment is one contiguous run of markdown or one fenced code block.
type Segment struct {
	Kind Kind `json:"kind"`
	// Language is the fence info word, lower-cased; empty for markdown and
	// for unlabeled code blocks.
	Language string `json:"language,omitempty"`
	Text     string `json:"text"`
}

// Lexer walks text one segment at a time. It is finite: Next returns
// false once the input is consumed, and Reset rewinds to the start.
type Lexer struct {
	src string
	pos int
}

// NewLexer returns a lexer positioned at the start of src.
func NewLexer(src string) *Lexer {
	return &Lexer{src: src}
}

// Reset rewinds the lexer.
func (l *Lexer) Reset() { l.pos = 0 }

// Next returns the next segment. Whitespace-only markdown between fences
// is skipped. An unterminated fence runs to the end of input.
func (l *Lexer) Next() (Segment, bool) {
	for l.pos < len(l.src) {
		line, _ := l.peekLine()
		if fence, lang, ok := openFence(line); ok {
			l.advanceLine()
			return l.code(fence, lang), true
		}

		start := l.pos
		for l.pos < len(l.src) {
			line, _ := l.peekLine()
			if _, _, ok := openFence(line); ok {
				break
			}
			l.advanceLine()
		}
		text := l.src[start:l.pos]
		if strings.TrimSpace(text) == "" {
			continue
		}
		return Segment{Kind: KindMarkdown, Text: strings.Trim(text, "\n")}, true
	}
	return Segment{}, false
}

func (l *Lexer) code(fence, lang string) Segment {
	start := l.pos
	end := len(l.src)
	for l.pos < len(l.src) {
		line, _ := l.peekLine()
		if closesFence(line, fence) {
			end = l.pos
			l.advanceLine()
			break
		}
		l.advanceLine()
	}
	return Segment{
		Kind:     KindCode,
		Language: lang,
		Text:     strings.TrimSuffix(l.src[start:end], "\n"),
	}
}

// peekLine returns the current line without its newline.
func (l *Lexer) peekLine() (string, int) {
	rest := l.src[l.pos:]
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		return rest[:i], i + 1
	}
	return rest, len(rest)
}

func (l *Lexer) advanceLine() {
	_, n := l.peekLine()
	l.pos += n
}

// openFence recognizes ``` or ~~~ (three or more) indented at most three
// spaces, and returns the fence run plus the language word.
func openFence(line string) (fence, lang string, ok bool) {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 || len(trimmed) < 3 {
		return "", "", false
	}
	ch := trimmed[0]
	if ch != '`' && ch != '~' {
		return "", "", false
	}
	n := 0
	for n < len(trimmed) && trimmed[n] == ch {
		n++
	}
	if n < 3 {
		return "", "", false
	}
	info := strings.TrimSpace(trimmed[n:])
	if ch == '`' && strings.Contains(info, "`") {
		return "", "", false
	}
	if fields := strings.Fields(info); len(fields) > 0 {
		lang = strings.ToLower(fields[0])
	}
	return trimmed[:n], lang, true
}

func closesFence(line, fence string) bool {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < len(fence) || trimmed[0] != fence[0] {
		return false
	}
	return strings.Trim(trimmed, string(fence[0])) == ""
}

// Segments lexes the whole text.
func Segments(text string) []Segment {
	l := NewLexer(text)
	out := []Segment{}
	for {
		seg, ok := l.Next()
		if !ok {
			return out
		}
		out = append(out, seg)
	}
}

// CodeBlocks returns only the code segments, optionally filtered by
// language (empty matches all).
func CodeBlocks(text, language string) []Segment {
	var out []Segment
	for _, s := range Segments(text) {
		if s.Kind == KindCode && (language == "" || s.Language == strings.ToLower(language)) {
			out = append(out, s)
		}
	}
	return out
}
