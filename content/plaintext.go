// Package content derives and extracts message bodies: plain text from
// HTML, and the readable parts of raw RFC 5322 messages.
package content

import (
	"strings"
	"unicode/utf8"

	"github.com/k3a/html2text"
)

// WrapWidth is the column at which derived plain text is wrapped.
const WrapWidth = 130

// PlainText converts an HTML body into readable plain text wrapped at
// WrapWidth columns. Links render as "text <href>", images contribute no
// text and line breaks are "\n". Empty input yields "".
func PlainText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	text := html2text.HTML2TextWithOptions(html,
		html2text.WithUnixLineBreaks(),
		html2text.WithLinksInnerText(),
	)
	return Wrap(strings.TrimSpace(text), WrapWidth)
}

// Wrap greedily re-flows each line of text so that no line exceeds width
// runes, breaking at spaces. Existing line breaks are kept and words longer
// than width are left whole on their own line.
func Wrap(text string, width int) string {
	if width <= 0 || text == "" {
		return text
	}
	lines := strings.Split(text, "\n")
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		wrapLine(&b, line, width)
	}
	return b.String()
}

func wrapLine(b *strings.Builder, line string, width int) {
	if utf8.RuneCountInString(line) <= width {
		b.WriteString(line)
		return
	}
	col := 0
	for _, word := range strings.Fields(line) {
		n := utf8.RuneCountInString(word)
		switch {
		case col == 0:
		case col+1+n > width:
			b.WriteByte('\n')
			col = 0
		default:
			b.WriteByte(' ')
			col++
		}
		b.WriteString(word)
		col += n
	}
}
