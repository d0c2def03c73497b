package extractors

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/custodia-labs/carevault/internal/core/domain"
	"github.com/custodia-labs/carevault/internal/core/ports/driven"
)

// Ensure the tabular extractors implement the interface.
var (
	_ driven.ContentExtractor = (*CSV)(nil)
	_ driven.ContentExtractor = (*XLSX)(nil)
)

// CSV handles comma-separated tabular uploads. Rows are rendered as
// tab-joined lines so column values stay associated with their headers
// in the extracted text.
type CSV struct{}

// NewCSV creates a CSV extractor.
func NewCSV() *CSV {
	return &CSV{}
}

// Extensions returns the extensions this extractor handles.
func (e *CSV) Extensions() []string {
	return []string{".csv"}
}

// Extract renders the table as text, one line per row.
func (e *CSV) Extract(_ context.Context, data []byte, _ string) (*driven.Extraction, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	var b strings.Builder
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrCorruptFile, err)
		}
		b.WriteString(strings.Join(record, "\t"))
		b.WriteString("\n")
	}

	return &driven.Extraction{
		Text:     strings.TrimSpace(b.String()),
		Metadata: domain.DocumentMetadata{Kind: domain.MetadataGeneric},
	}, nil
}

// XLSX handles Office Open XML spreadsheets. Like the DOCX extractor it
// walks the ZIP container directly: shared strings first, then the
// first worksheet's cells rendered row by row.
type XLSX struct{}

// NewXLSX creates an XLSX extractor.
func NewXLSX() *XLSX {
	return &XLSX{}
}

// Extensions returns the extensions this extractor handles.
func (e *XLSX) Extensions() []string {
	return []string{".xlsx"}
}

// Extract renders the first worksheet as text, one line per row.
func (e *XLSX) Extract(_ context.Context, data []byte, _ string) (*driven.Extraction, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a valid xlsx container", domain.ErrCorruptFile)
	}

	shared, err := readSharedStrings(reader)
	if err != nil {
		return nil, err
	}

	text, err := readFirstSheet(reader, shared)
	if err != nil {
		return nil, err
	}

	return &driven.Extraction{
		Text:     text,
		Metadata: domain.DocumentMetadata{Kind: domain.MetadataGeneric},
	}, nil
}

// sharedStringsXML mirrors xl/sharedStrings.xml.
type sharedStringsXML struct {
	Items []struct {
		Text  string `xml:"t"`
		Runs  []struct {
			Text string `xml:"t"`
		} `xml:"r"`
	} `xml:"si"`
}

func readSharedStrings(reader *zip.Reader) ([]string, error) {
	content, ok, err := readZipFile(reader, "xl/sharedStrings.xml")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var sst sharedStringsXML
	if err := xml.Unmarshal(content, &sst); err != nil {
		return nil, fmt.Errorf("%w: malformed shared strings", domain.ErrCorruptFile)
	}

	strs := make([]string, len(sst.Items))
	for i, item := range sst.Items {
		if item.Text != "" {
			strs[i] = item.Text
			continue
		}
		var b strings.Builder
		for _, run := range item.Runs {
			b.WriteString(run.Text)
		}
		strs[i] = b.String()
	}
	return strs, nil
}

// worksheetXML mirrors the cell layout of xl/worksheets/sheet1.xml.
type worksheetXML struct {
	Rows []struct {
		Cells []struct {
			Type  string `xml:"t,attr"`
			Value string `xml:"v"`
		} `xml:"c"`
	} `xml:"sheetData>row"`
}

func readFirstSheet(reader *zip.Reader, shared []string) (string, error) {
	content, ok, err := readZipFile(reader, "xl/worksheets/sheet1.xml")
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}

	var sheet worksheetXML
	if err := xml.Unmarshal(content, &sheet); err != nil {
		return "", fmt.Errorf("%w: malformed worksheet", domain.ErrCorruptFile)
	}

	var b strings.Builder
	for _, row := range sheet.Rows {
		values := make([]string, 0, len(row.Cells))
		for _, cell := range row.Cells {
			value := cell.Value
			if cell.Type == "s" {
				if idx, err := strconv.Atoi(cell.Value); err == nil && idx >= 0 && idx < len(shared) {
					value = shared[idx]
				}
			}
			values = append(values, value)
		}
		b.WriteString(strings.Join(values, "\t"))
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String()), nil
}

// readZipFile reads one named file from the archive. The second return
// reports whether the file was present.
func readZipFile(reader *zip.Reader, name string) ([]byte, bool, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, true, fmt.Errorf("%w: %v", domain.ErrCorruptFile, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, true, fmt.Errorf("%w: %v", domain.ErrCorruptFile, err)
		}
		return content, true, nil
	}
	return nil, false, nil
}
