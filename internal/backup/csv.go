package backup

import (
	"bufio"
	"io"
	"strings"
	"time"
)

// WriteCSV writes the multi-section CSV export:
//
//	QMS Data Export
//	Exported By,<name>
//	Date,<RFC3339>
//	Range,<start> to <end>
//
//	--- SECTION ---
//	header row
//	record rows
func WriteCSV(w io.Writer, meta Meta, tables []Table) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("QMS Data Export\n")
	bw.WriteString("Exported By," + quoteIfNeeded(meta.ExportedBy) + "\n")
	bw.WriteString("Date," + meta.Date.Format(time.RFC3339) + "\n")
	bw.WriteString("Range," + quoteIfNeeded(meta.Range.Label()) + "\n")
	bw.WriteString("\n")

	for i, t := range tables {
		if i > 0 {
			bw.WriteString("\n")
		}
		bw.WriteString("--- " + t.Section.Title + " ---\n")
		bw.WriteString(strings.Join(t.Columns, ",") + "\n")
		cells := make([]string, len(t.Columns))
		for _, row := range t.Rows {
			for c, col := range t.Columns {
				cells[c] = csvCell(row[col])
			}
			bw.WriteString(strings.Join(cells, ",") + "\n")
		}
	}
	return bw.Flush()
}

// csvCell strings and encoded objects are always quoted; numbers and
// booleans are written raw; null and missing values are empty.
func csvCell(v []byte) string {
	kind, text := classify(v)
	switch kind {
	case cellString, cellComposite:
		return quote(text)
	case cellScalar:
		return text
	}
	return ""
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, ",\"\r\n") {
		return quote(s)
	}
	return s
}
