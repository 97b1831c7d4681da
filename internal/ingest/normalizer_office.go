package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
)

// docxText reads word/document.xml out of a DOCX archive, one line per paragraph.
func docxText(data []byte) string {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}
	for _, f := range r.File {
		if !strings.EqualFold(f.Name, "word/document.xml") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return ""
		}
		defer rc.Close()
		return wordprocessingText(rc)
	}
	return ""
}

func wordprocessingText(r io.Reader) string {
	dec := xml.NewDecoder(r)
	var buf strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				buf.WriteByte('\t')
			case "br", "cr":
				buf.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p", "tr":
				buf.WriteByte('\n')
			case "tc":
				buf.WriteByte('\t')
			}
		case xml.CharData:
			if inText {
				buf.Write(t)
			}
		}
	}
	return buf.String()
}

// xlsxText flattens every sheet of a workbook into tab-separated lines.
func xlsxText(data []byte) string {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	defer f.Close()

	var buf strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		for _, row := range rows {
			writeRow(&buf, row)
		}
	}
	return buf.String()
}

// xlsText does the same for legacy BIFF workbooks.
func xlsText(data []byte) string {
	wb, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return ""
	}

	var buf strings.Builder
	for i := 0; i < wb.GetNumberSheets(); i++ {
		sheet, err := wb.GetSheet(i)
		if err != nil || sheet == nil {
			continue
		}
		for _, row := range sheet.GetRows() {
			cols := row.GetCols()
			values := make([]string, 0, len(cols))
			for _, col := range cols {
				val := col.GetString()
				if val == "" {
					if num := col.GetFloat64(); num != 0 {
						val = strconv.FormatFloat(num, 'f', -1, 64)
					} else if in := col.GetInt64(); in != 0 {
						val = strconv.FormatInt(in, 10)
					}
				}
				values = append(values, val)
			}
			writeRow(&buf, values)
		}
	}
	return buf.String()
}

func writeRow(buf *strings.Builder, cells []string) {
	line := strings.TrimSpace(strings.Join(cells, "\t"))
	if line == "" {
		return
	}
	buf.WriteString(line)
	buf.WriteByte('\n')
}
