package ingest

import (
	"bytes"
	"io"
	"math"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
	rpdf "rsc.io/pdf"
)

// pdfText lays out text runs page by page, starting a new line whenever the
// baseline moves.
func pdfText(data []byte) string {
	reader, err := rpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}

	var builder strings.Builder
	for pageIndex := 1; pageIndex <= reader.NumPage(); pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		var prev *rpdf.Text
		for _, fragment := range page.Content().Text {
			if prev != nil {
				switch {
				case math.Abs(fragment.Y-prev.Y) > prev.FontSize/2:
					builder.WriteString("\n")
				case fragment.X-(prev.X+prev.W) > prev.FontSize/4:
					builder.WriteString(" ")
				}
			}
			builder.WriteString(fragment.S)
			f := fragment
			prev = &f
		}
		builder.WriteString("\n")
	}
	return builder.String()
}

// pdfPlainText is the fallback reader for files rsc.io/pdf rejects.
func pdfPlainText(data []byte) string {
	r, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return ""
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return ""
	}
	return string(out)
}
