package extract

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codefulcrum/senseai/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func writeZip(t *testing.T, name string, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for entry, content := range files {
		w, err := zw.Create(entry)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestRegistry_Supports(t *testing.T) {
	r := NewRegistry()

	for _, ext := range []string{"pdf", ".PDF", "doc", "docx", "txt", "csv", "xls", "XLSX"} {
		assert.True(t, r.Supports(ext), ext)
	}
	for _, ext := range []string{"", "png", "md", "exe"} {
		assert.False(t, r.Supports(ext), ext)
	}
	assert.Equal(t, []string{"csv", "doc", "docx", "pdf", "txt", "xls", "xlsx"}, r.Extensions())
}

func TestRegistry_ExtractUnsupported(t *testing.T) {
	_, err := NewRegistry().Extract(context.Background(), "/tmp/x.png", "png")
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register(".MD", ExtractorFunc(func(ctx context.Context, path string) ([]schema.Document, error) {
		return []schema.Document{{PageContent: "# heading"}}, nil
	}))

	assert.True(t, r.Supports("md"))
	docs, err := r.Extract(context.Background(), "notes.md", "md")
	require.NoError(t, err)
	assert.Equal(t, "# heading", docs[0].PageContent)
}

func TestLoadText(t *testing.T) {
	path := writeFile(t, "notes.txt", "first paragraph\n\nsecond paragraph")
	docs, err := NewRegistry().Extract(context.Background(), path, "txt")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].PageContent, "second paragraph")
}

func TestLoadCSV(t *testing.T) {
	path := writeFile(t, "people.csv", "name,city\nAda,London\nGrace,Arlington\n")
	docs, err := NewRegistry().Extract(context.Background(), path, "csv")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Contains(t, docs[0].PageContent, "Ada")
	assert.Contains(t, docs[1].PageContent, "Arlington")
}

func TestLoadPDF_MissingFile(t *testing.T) {
	_, err := NewRegistry().Extract(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"), "pdf")
	assert.Error(t, err)
}

func TestLoadDocx(t *testing.T) {
	document := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Quarterly</w:t></w:r><w:r><w:t xml:space="preserve"> report</w:t></w:r></w:p>
    <w:p><w:r><w:t>Revenue</w:t><w:tab/><w:t>10%</w:t></w:r></w:p>
  </w:body>
</w:document>`
	path := writeZip(t, "report.docx", map[string]string{"word/document.xml": document})

	docs, err := NewRegistry().Extract(context.Background(), path, "docx")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Quarterly report\nRevenue\t10%", docs[0].PageContent)
	assert.Equal(t, "report.docx", docs[0].Metadata["source"])
}

func TestLoadDocx_NotAnArchive(t *testing.T) {
	path := writeFile(t, "legacy.doc", "\xd0\xcf\x11\xe0 binary word file")
	_, err := NewRegistry().Extract(context.Background(), path, "doc")
	assert.ErrorIs(t, err, ErrInvalidArchive)
}

func TestLoadDocx_MissingBody(t *testing.T) {
	path := writeZip(t, "empty.docx", map[string]string{"docProps/core.xml": "<x/>"})
	_, err := NewRegistry().Extract(context.Background(), path, "docx")
	assert.ErrorIs(t, err, ErrInvalidArchive)
}

func TestLoadXlsx(t *testing.T) {
	shared := `<sst><si><t>Region</t></si><si><t>Sales</t></si><si><r><t>No</t></r><r><t>rth</t></r></si></sst>`
	sheet1 := `<worksheet><sheetData>
<row r="1"><c r="A1" t="s"><v>0</v></c><c r="B1" t="s"><v>1</v></c></row>
<row r="2"><c r="A2" t="s"><v>2</v></c><c r="B2"><v>42.5</v></c></row>
<row r="3"></row>
</sheetData></worksheet>`
	sheet2 := `<worksheet><sheetData><row><c t="inlineStr"><is><t>inline</t></is></c></row></sheetData></worksheet>`
	sheet10 := `<worksheet><sheetData></sheetData></worksheet>`

	path := writeZip(t, "sales.xlsx", map[string]string{
		"xl/sharedStrings.xml":      shared,
		"xl/worksheets/sheet1.xml":  sheet1,
		"xl/worksheets/sheet2.xml":  sheet2,
		"xl/worksheets/sheet10.xml": sheet10,
	})

	docs, err := NewRegistry().Extract(context.Background(), path, "xlsx")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Region\tSales\nNorth\t42.5", docs[0].PageContent)
	assert.Equal(t, 1, docs[0].Metadata["sheet"])
	assert.Equal(t, "inline", docs[1].PageContent)
}

func TestLoadXlsx_NoSheets(t *testing.T) {
	path := writeZip(t, "book.xlsx", map[string]string{"xl/workbook.xml": "<workbook/>"})
	_, err := NewRegistry().Extract(context.Background(), path, "xlsx")
	assert.ErrorIs(t, err, ErrInvalidArchive)
}

func TestWordText_Malformed(t *testing.T) {
	_, err := wordText([]byte("<w:document><w:body>"))
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid office archive"))
}
