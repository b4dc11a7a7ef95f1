package content

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestPlainText(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		if got := PlainText("   "); got != "" {
			t.Errorf("expected empty text, got %q", got)
		}
	})

	t.Run("strips markup", func(t *testing.T) {
		got := PlainText("<p>Hello <b>world</b></p>")
		if !strings.Contains(got, "Hello") || !strings.Contains(got, "world") {
			t.Errorf("expected text content, got %q", got)
		}
		if strings.Contains(got, "<") {
			t.Errorf("expected no markup, got %q", got)
		}
	})

	t.Run("images contribute nothing", func(t *testing.T) {
		got := PlainText(`<p>Hi</p><img src="https://x.test/pixel.png" alt="tracker">`)
		if strings.Contains(got, "pixel.png") || strings.Contains(got, "img") {
			t.Errorf("expected image to be omitted, got %q", got)
		}
	})

	t.Run("links keep their text", func(t *testing.T) {
		got := PlainText(`<p>Read the <a href="http://e.com">report</a> today</p>`)
		if got != "Read the report <http://e.com> today" {
			t.Errorf("unexpected link rendering: %q", got)
		}
	})

	t.Run("line breaks are unix style", func(t *testing.T) {
		got := PlainText("one<br>two")
		if got != "one\ntwo" {
			t.Errorf("expected LF line break, got %q", got)
		}
	})

	t.Run("long paragraphs are wrapped", func(t *testing.T) {
		html := "<p>" + strings.Repeat("lorem ipsum ", 40) + "</p>"
		got := PlainText(html)
		for _, line := range strings.Split(got, "\n") {
			if n := utf8.RuneCountInString(line); n > WrapWidth {
				t.Errorf("line exceeds %d runes: %d", WrapWidth, n)
			}
		}
		if !strings.Contains(got, "\n") {
			t.Error("expected at least one wrapped line")
		}
	})
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  string
	}{
		{name: "short line untouched", text: "a b c", width: 10, want: "a b c"},
		{name: "greedy break", text: "aaa bbb ccc", width: 7, want: "aaa bbb\nccc"},
		{name: "keeps existing breaks", text: "aaa\nbbb ccc ddd", width: 7, want: "aaa\nbbb ccc\nddd"},
		{name: "long word kept whole", text: "x abcdefghij y", width: 5, want: "x\nabcdefghij\ny"},
		{name: "multibyte counted as runes", text: "ééé ééé", width: 7, want: "ééé ééé"},
		{name: "zero width disables wrapping", text: "aaa bbb", width: 0, want: "aaa bbb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Wrap(tt.text, tt.width); got != tt.want {
				t.Errorf("Wrap(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
			}
		})
	}
}
