package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/schema"
)

// loadDocx reads the body text of a word document, one line per paragraph.
func loadDocx(ctx context.Context, path string) ([]schema.Document, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArchive, err)
	}
	defer reader.Close()

	data, err := readZipFile(&reader.Reader, "word/document.xml")
	if err != nil {
		return nil, err
	}

	text, err := wordText(data)
	if err != nil {
		return nil, err
	}
	return []schema.Document{{
		PageContent: text,
		Metadata:    map[string]any{"source": filepath.Base(path)},
	}}, nil
}

// wordText walks document.xml tokens. Text lives in <w:t>, <w:tab/> and
// <w:br/> are whitespace, and </w:p> ends a line.
func wordText(data []byte) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(string(data)))
	var sb strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidArchive, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteString("\t")
			case "br", "cr":
				sb.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// loadXlsx reads every worksheet as a section of tab-separated rows.
func loadXlsx(ctx context.Context, path string) ([]schema.Document, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArchive, err)
	}
	defer reader.Close()

	var shared []string
	if data, err := readZipFile(&reader.Reader, "xl/sharedStrings.xml"); err == nil {
		shared, err = sharedStrings(data)
		if err != nil {
			return nil, err
		}
	}

	sheets := worksheetFiles(&reader.Reader)
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: no worksheets", ErrInvalidArchive)
	}

	docs := make([]schema.Document, 0, len(sheets))
	for _, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := readZipFile(&reader.Reader, sheet.name)
		if err != nil {
			return nil, err
		}
		text, err := sheetText(data, shared)
		if err != nil {
			return nil, err
		}
		if text == "" {
			continue
		}
		docs = append(docs, schema.Document{
			PageContent: text,
			Metadata: map[string]any{
				"source": filepath.Base(path),
				"sheet":  sheet.index,
			},
		})
	}
	return docs, nil
}

type worksheet struct {
	name  string
	index int
}

// worksheetFiles lists xl/worksheets/sheetN.xml entries ordered by N.
func worksheetFiles(reader *zip.Reader) []worksheet {
	var sheets []worksheet
	for _, f := range reader.File {
		base, ok := strings.CutPrefix(f.Name, "xl/worksheets/sheet")
		if !ok || !strings.HasSuffix(base, ".xml") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(base, ".xml"))
		if err != nil {
			continue
		}
		sheets = append(sheets, worksheet{name: f.Name, index: n})
	}
	sort.Slice(sheets, func(i, j int) bool { return sheets[i].index < sheets[j].index })
	return sheets
}

// sharedStrings decodes the shared string table. Rich text runs of one
// entry are concatenated.
func sharedStrings(data []byte) ([]string, error) {
	dec := xml.NewDecoder(strings.NewReader(string(data)))
	var (
		out    []string
		cur    strings.Builder
		inItem bool
		inText bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArchive, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "si":
				inItem = true
				cur.Reset()
			case "t":
				inText = inItem
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "si":
				out = append(out, cur.String())
				inItem = false
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	return out, nil
}

// sheetText renders a worksheet as rows of tab-separated cell values.
func sheetText(data []byte, shared []string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(string(data)))
	var (
		lines    []string
		row      []string
		cellType string
		value    strings.Builder
		capture  bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidArchive, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "row":
				row = row[:0]
			case "c":
				cellType = ""
				for _, attr := range t.Attr {
					if attr.Name.Local == "t" {
						cellType = attr.Value
					}
				}
				value.Reset()
			case "v", "t":
				capture = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "v", "t":
				capture = false
			case "c":
				row = append(row, cellValue(cellType, value.String(), shared))
			case "row":
				line := strings.TrimRight(strings.Join(row, "\t"), "\t")
				if line != "" {
					lines = append(lines, line)
				}
			}
		case xml.CharData:
			if capture {
				value.Write(t)
			}
		}
	}
	return strings.Join(lines, "\n"), nil
}

func cellValue(cellType, raw string, shared []string) string {
	if cellType != "s" {
		return strings.TrimSpace(raw)
	}
	idx, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || idx < 0 || idx >= len(shared) {
		return ""
	}
	return shared[idx]
}

func readZipFile(reader *zip.Reader, name string) ([]byte, error) {
	for _, f := range reader.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArchive, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%w: missing %s", ErrInvalidArchive, name)
}
