package extractors

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/custodia-labs/carevault/internal/core/domain"
	"github.com/custodia-labs/carevault/internal/core/ports/driven"
)

// Ensure Docx implements the interface.
var _ driven.ContentExtractor = (*Docx)(nil)

// Docx handles Office Open XML word-processing documents by walking the
// ZIP container and pulling paragraph text out of word/document.xml.
type Docx struct{}

// NewDocx creates a DOCX extractor.
func NewDocx() *Docx {
	return &Docx{}
}

// Extensions returns the extensions this extractor handles.
func (e *Docx) Extensions() []string {
	return []string{".docx"}
}

// Extract pulls the paragraph text out of the document body.
func (e *Docx) Extract(_ context.Context, data []byte, _ string) (*driven.Extraction, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a valid docx container", domain.ErrCorruptFile)
	}

	content, ok, err := readZipFile(reader, "word/document.xml")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: missing document body", domain.ErrCorruptFile)
	}

	return &driven.Extraction{
		Text:     parseDocumentXML(content),
		Metadata: domain.DocumentMetadata{Kind: domain.MetadataGeneric},
	}, nil
}

// documentXML represents the structure of word/document.xml.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

// parseDocumentXML extracts text content from the document XML.
func parseDocumentXML(content []byte) string {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return ""
	}

	var result strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			result.WriteString("\n")
		}
		for _, r := range para.Runs {
			for _, text := range r.Text {
				result.WriteString(text.Content)
			}
		}
	}

	return strings.TrimSpace(result.String())
}
