package ingest

import (
	"bytes"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/unicode/norm"
)

// textStrategy turns raw bytes into text. An empty result means "try the next one".
type textStrategy struct {
	name string
	fn   func([]byte) string
}

var (
	docxStrategy      = textStrategy{"docx", docxText}
	xlsStrategy       = textStrategy{"xls", xlsText}
	xlsxStrategy      = textStrategy{"xlsx", xlsxText}
	pdfStrategy       = textStrategy{"pdf", pdfText}
	pdfPlainStrategy  = textStrategy{"pdf-plain", pdfPlainText}
	htmlStrategy      = textStrategy{"html", htmlText}
	markupStrategy    = textStrategy{"markup-strip", strippedMarkupText}
	decodeStrategy    = textStrategy{"text", decodeText}
	printableStrategy = textStrategy{"printable", printableText}
)

func strategiesFor(format Format, data []byte) []textStrategy {
	switch format {
	case FormatDocument:
		if isPDF(data) {
			return []textStrategy{pdfStrategy, pdfPlainStrategy, printableStrategy}
		}
		return []textStrategy{docxStrategy, pdfStrategy, pdfPlainStrategy, printableStrategy}
	case FormatLegacyOffice:
		return []textStrategy{xlsStrategy, xlsxStrategy, docxStrategy, printableStrategy}
	case FormatPDF:
		return []textStrategy{pdfStrategy, pdfPlainStrategy, printableStrategy}
	case FormatHTML:
		return []textStrategy{htmlStrategy, markupStrategy, decodeStrategy}
	}
	return []textStrategy{decodeStrategy}
}

// Normalize converts raw bytes of the given format into normalized plain
// text. It never fails: unreadable input yields "".
func Normalize(data []byte, format Format) string {
	text, _ := normalize(data, format)
	return text
}

// normalize also reports which strategy produced the text ("" when none did).
func normalize(data []byte, format Format) (string, string) {
	if len(data) == 0 {
		return "", ""
	}
	for _, s := range strategiesFor(format, data) {
		if text := NormalizeText(safeExtract(s, data)); text != "" {
			return text, s.name
		}
	}
	return "", ""
}

// safeExtract runs one strategy, turning parser panics into an empty result.
func safeExtract(s textStrategy, data []byte) (text string) {
	defer func() {
		if recovered := recover(); recovered != nil {
			text = ""
		}
	}()
	return s.fn(data)
}

var (
	horizontalSpace = regexp.MustCompile(`[^\S\n]+`)
	invisibleChars  = strings.NewReplacer("\u00a0", " ", "\r", "", "\u200b", "", "\ufeff", "")
)

// NormalizeText applies the whitespace rules shared by every format:
// compatibility-normalized runes, no carriage returns or NBSPs, horizontal
// whitespace runs collapsed to one space, line breaks kept.
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")
	s = norm.NFKC.String(s)
	s = invisibleChars.Replace(s)
	s = strings.Map(dropControl, s)
	s = horizontalSpace.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// decodeText reads bytes as UTF-8, UTF-16 with a byte order mark, or
// Windows-1252 as a last resort.
func decodeText(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		data = data[3:]
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}), bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		dec := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		if out, err := dec.Bytes(data); err == nil {
			return string(out)
		}
	}
	if utf8.Valid(data) {
		return string(data)
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "")
	}
	return string(out)
}

var htmlBlockElements = "p,div,li,tr,h1,h2,h3,h4,h5,h6,table,section,article,header,footer,blockquote,pre"

// htmlText renders HTML as text with one line per block element.
func htmlText(data []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	doc.Find("script,style,noscript,template").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("td,th").AppendHtml(" ")
	doc.Find(htmlBlockElements).AppendHtml("\n")
	return doc.Text()
}

// strippedMarkupText drops every tag and unescapes entities.
func strippedMarkupText(data []byte) string {
	return html.UnescapeString(bluemonday.StrictPolicy().Sanitize(string(data)))
}

// HTMLToText converts an HTML fragment to normalized text.
func HTMLToText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return NormalizeText(fragment)
	}
	return NormalizeText(htmlText([]byte(fragment)))
}

// TruncateText cuts a string to max runes, appending an ellipsis if truncated.
func TruncateText(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	runes := []rune(text)
	if maxLen > 3 {
		return strings.TrimSpace(string(runes[:maxLen-3])) + "..."
	}
	return string(runes[:maxLen])
}

func isPDF(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data[:min(len(data), 1024)], " \t\r\n"), []byte("%PDF-"))
}

// printableText keeps runs of at least four printable characters, the way
// strings(1) does for binary files.
func printableText(data []byte) string {
	var out, run strings.Builder
	flush := func() {
		if utf8.RuneCountInString(run.String()) >= 4 {
			out.WriteString(run.String())
			out.WriteByte('\n')
		}
		run.Reset()
	}
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		data = data[size:]
		switch {
		case r == utf8.RuneError && size == 1:
			flush()
		case r == '\t' || r == ' ' || (r > 32 && r != 127 && r < 0xFFFD && !isControl(r)):
			run.WriteRune(r)
		case r == '\n':
			run.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return out.String()
}

func isControl(r rune) bool {
	return r < 32 || (r >= 0x7F && r < 0xA0)
}

func dropControl(r rune) rune {
	if r != '\n' && r != '\t' && isControl(r) {
		return -1
	}
	return r
}
