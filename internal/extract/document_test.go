package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func writeZip(t *testing.T, dir, name string, parts map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for partName, content := range parts {
		w, err := zw.Create(partName)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestDocumentConverter_PlainFormats(t *testing.T) {
	dir := t.TempDir()
	c := NewDocumentConverter()

	tests := []struct {
		name     string
		file     string
		content  string
		contains []string
		excludes []string
	}{
		{
			name:     "txt",
			file:     "notes.txt",
			content:  "\ufeffplain text notes",
			contains: []string{"plain text notes"},
			excludes: []string{"\ufeff"},
		},
		{
			name:     "markdown with frontmatter",
			file:     "readme.md",
			content:  "---\ntitle: Onboarding\n---\n# Welcome\n\nStart here.",
			contains: []string{"title: Onboarding", "# Welcome", "Start here."},
		},
		{
			name:     "html",
			file:     "page.html",
			content:  "<html><body><h2>Agenda</h2><script>x()</script><p>Item one</p></body></html>",
			contains: []string{"## Agenda", "Item one"},
			excludes: []string{"x()"},
		},
		{
			name:     "csv",
			file:     "data.csv",
			content:  "name,age\nada,36\n",
			contains: []string{"name,age", "ada,36"},
		},
		{
			name:     "unknown extension with text content",
			file:     "Makefile.mk",
			content:  "build:\n\tgo build ./...",
			contains: []string{"go build"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.file, []byte(tt.content))
			text, err := c.ToText(path)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, text, want)
			}
			for _, not := range tt.excludes {
				assert.NotContains(t, text, not)
			}
		})
	}
}

func TestDocumentConverter_Unsupported(t *testing.T) {
	dir := t.TempDir()
	c := NewDocumentConverter()

	path := writeFile(t, dir, "legacy.doc", []byte{0xD0, 0xCF, 0x11, 0xE0, 0x00, 0x00, 0x01})
	_, err := c.ToText(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	notZip := writeFile(t, dir, "broken.docx", []byte("not a zip"))
	_, err = c.ToText(notZip)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	notPDF := writeFile(t, dir, "broken.pdf", []byte("%PDF-1.4 garbage"))
	_, err = c.ToText(notPDF)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = c.ToText(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestDocumentConverter_Docx(t *testing.T) {
	dir := t.TempDir()
	path := writeZip(t, dir, "report.docx", map[string]string{
		"[Content_Types].xml": `<Types/>`,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Quarterly</w:t></w:r><w:r><w:t xml:space="preserve"> results</w:t></w:r></w:p>
<w:p><w:r><w:t>Name</w:t><w:tab/><w:t>Value</w:t></w:r></w:p>
</w:body></w:document>`,
	})

	text, err := NewDocumentConverter().ToText(path)
	require.NoError(t, err)
	assert.Equal(t, "Quarterly results\nName\tValue", text)
}

func TestDocumentConverter_PptxSlideOrder(t *testing.T) {
	dir := t.TempDir()
	slide := func(text string) string {
		return `<p:sld xmlns:p="p" xmlns:a="a"><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` +
			text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
	}
	path := writeZip(t, dir, "deck.pptx", map[string]string{
		"ppt/slides/slide10.xml":            slide("ten"),
		"ppt/slides/slide2.xml":             slide("two"),
		"ppt/slides/slide1.xml":             slide("one"),
		"ppt/slides/_rels/slide1.xml.rels":  `<Relationships/>`,
		"ppt/slideLayouts/slideLayout1.xml": slide("layout"),
	})

	text, err := NewDocumentConverter().ToText(path)
	require.NoError(t, err)
	assert.Equal(t, "one\n\ntwo\n\nten", text)
}

func TestDocumentConverter_Xlsx(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "budget.xlsx")

	wb := excelize.NewFile()
	require.NoError(t, wb.SetCellValue("Sheet1", "A1", "Region"))
	require.NoError(t, wb.SetCellValue("Sheet1", "B1", "Revenue"))
	require.NoError(t, wb.SetCellValue("Sheet1", "A2", "Northeast"))
	require.NoError(t, wb.SetCellValue("Sheet1", "B2", 1250))
	_, err := wb.NewSheet("Notes")
	require.NoError(t, err)
	require.NoError(t, wb.SetCellValue("Notes", "A1", "Draft figures"))
	require.NoError(t, wb.SaveAs(path))
	require.NoError(t, wb.Close())

	text, err := NewDocumentConverter().ToText(path)
	require.NoError(t, err)
	assert.Equal(t, "Region\tRevenue\nNortheast\t1250\n\nDraft figures", text)
}

func TestDocumentConverter_XlsxEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	wb := excelize.NewFile()
	require.NoError(t, wb.SaveAs(path))
	require.NoError(t, wb.Close())

	_, err := NewDocumentConverter().ToText(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

// buildPDF writes a classic xref PDF whose objects are numbered from 1 in
// the order given. Object 1 must be the catalog.
func buildPDF(t *testing.T, dir, name string, objects ...string) string {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return writeFile(t, dir, name, buf.Bytes())
}

func pdfStream(content string) string {
	return fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content)
}

func TestDocumentConverter_Pdf(t *testing.T) {
	path := buildPDF(t, t.TempDir(), "report.pdf",
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R 6 0 R] /Count 2 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		pdfStream("BT /F1 12 Tf 72 712 Td (Quarterly report) Tj ET"),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 7 0 R >>",
		pdfStream("BT /F1 12 Tf 72 712 Td (Revenue grew) Tj ET"),
	)

	text, err := NewDocumentConverter().ToText(path)
	require.NoError(t, err)
	assert.Equal(t, "Quarterly report\n\nRevenue grew", text)
}

// Embedded subset fonts show glyph ids, not character codes. The text only
// comes back through the font's ToUnicode map.
func TestPlainPDFText_IdentityHFont(t *testing.T) {
	cmap := `/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
/CMapName /Subset-UCS def
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
4 beginbfchar
<002B> <0048>
<0048> <0065>
<004F> <006C>
<0052> <006F>
endbfchar
endcmap
CMapName currentdict /CMap defineresource pop
end
end`
	path := buildPDF(t, t.TempDir(), "subset.pdf",
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		pdfStream("BT /F1 12 Tf 72 712 Td <002B0048004F004F0052> Tj ET"),
		"<< /Type /Font /Subtype /Type0 /BaseFont /ABCDEF+Calibri /Encoding /Identity-H /DescendantFonts [6 0 R] /ToUnicode 7 0 R >>",
		"<< /Type /Font /Subtype /CIDFontType2 /BaseFont /ABCDEF+Calibri /CIDSystemInfo << /Registry (Adobe) /Ordering (Identity) /Supplement 0 >> >>",
		pdfStream(cmap),
	)

	text, err := plainPDFText(path)
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
}
