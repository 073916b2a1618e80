// Package ats extracts resume text and scores it for applicant tracking
// system compatibility.
package ats

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrUnsupportedFormat is returned for files that are not PDF or DOCX.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrUnreadableDocument is returned when a parser cannot read the file.
	ErrUnreadableDocument = errors.New("unreadable document")
)

// DocumentParser extracts text content from document bytes.
type DocumentParser interface {
	Parse(ctx context.Context, data []byte, filename string) (string, error)
	// SupportedFormats returns lower-case extensions without the dot.
	SupportedFormats() []string
}

// Extractor picks a parser by file extension.
type Extractor struct {
	parsers map[string]DocumentParser
}

// NewExtractor registers parsers by their supported formats. With no
// arguments it uses the PDF and DOCX parsers.
func NewExtractor(parsers ...DocumentParser) *Extractor {
	if len(parsers) == 0 {
		parsers = []DocumentParser{PDFParser{}, DOCXParser{}}
	}
	e := &Extractor{parsers: make(map[string]DocumentParser)}
	for _, p := range parsers {
		for _, f := range p.SupportedFormats() {
			e.parsers[f] = p
		}
	}
	return e
}

// Extract returns the trimmed text of the named document.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	p, ok := e.parsers[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
	text, err := p.Parse(ctx, data, filename)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnreadableDocument, ext, err)
	}
	return strings.TrimSpace(text), nil
}

// PDFParser extracts page text with github.com/ledongthuc/pdf.
type PDFParser struct{}

// SupportedFormats implements DocumentParser.
func (PDFParser) SupportedFormats() []string { return []string{"pdf"} }

// Parse joins the plain text of every page, one page per line.
func (PDFParser) Parse(ctx context.Context, data []byte, _ string) (text string, err error) {
	// The reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("read page %d: %w", i, err)
		}
		b.WriteString(pageText)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// DOCXParser reads the main document part of a DOCX package. Legacy .doc
// uploads are routed here as well and fail unless they are really DOCX.
type DOCXParser struct{}

// SupportedFormats implements DocumentParser.
func (DOCXParser) SupportedFormats() []string { return []string{"docx", "doc"} }

// Parse returns the raw text of word/document.xml, one paragraph per line.
func (DOCXParser) Parse(_ context.Context, data []byte, _ string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open document part: %w", err)
		}
		defer rc.Close()
		return docxText(rc)
	}
	return "", errors.New("docx: word/document.xml not found")
}

func docxText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		b      strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document part: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
