// Package extracttest builds minimal PDF files for tests.
package extracttest

import (
	"bytes"
	"fmt"
	"strings"
)

// MinimalPDF returns a valid PDF with one page per entry in pages. Each non-empty entry is
// drawn as a single text run with a WinAnsi-encoded standard font; an empty entry produces a
// page with an empty content stream (no extractable text).
func MinimalPDF(pages ...string) []byte {
	runs := make([][]string, len(pages))
	for i, text := range pages {
		if text != "" {
			runs[i] = []string{text}
		}
	}
	return MultiRunPDF(runs...)
}

// MultiRunPDF returns a valid PDF with one page per entry in pages. Each string of a page is
// drawn in its own text object, one line below the previous one.
func MultiRunPDF(pages ...[]string) []byte {
	var buf bytes.Buffer
	var offsets []int
	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	writeObj("<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	writeObj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	for i, runs := range pages {
		writeObj(fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			5+2*i,
		))
		blocks := make([]string, len(runs))
		for j, text := range runs {
			blocks[j] = fmt.Sprintf("BT /F1 12 Tf 72 %d Td (%s) Tj ET", 712-14*j, escapeString(text))
		}
		stream := strings.Join(blocks, "\n")
		writeObj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func escapeString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
