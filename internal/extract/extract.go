// Package extract turns uploaded document bytes into plain text.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
)

// Kind is the closed set of document types the extractor understands.
type Kind int

const (
	KindPlainText Kind = iota
	KindPDF
	KindDOCX
)

const (
	MIMEPlainText = "text/plain"
	MIMEPDF       = "application/pdf"
	MIMEDOCX      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

func (k Kind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindDOCX:
		return "docx"
	default:
		return "text"
	}
}

// KindFromMIME maps a declared content type to a Kind. Anything that is not
// exactly the PDF or Word MIME string is treated as plain text.
func KindFromMIME(mimeType string) Kind {
	switch mimeType {
	case MIMEPDF:
		return KindPDF
	case MIMEDOCX:
		return KindDOCX
	default:
		return KindPlainText
	}
}

var ErrInvalidUTF8 = errors.New("content is not valid UTF-8")

// Error wraps any failure to parse a document of the given kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract %s text: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type strategy struct {
	parser    parser.Parser
	separator string
}

// Extractor dispatches on Kind to a parser and joins the parsed segments.
type Extractor struct {
	strategies map[Kind]strategy
}

func New() *Extractor {
	return &Extractor{
		strategies: map[Kind]strategy{
			KindPlainText: {parser: plainTextParser{}},
			KindPDF:       {parser: pdfParser{}},
			KindDOCX:      {parser: docxParser{}, separator: "\n"},
		},
	}
}

// Extract parses data as kind. PDF pages are concatenated with no separator,
// DOCX paragraphs are joined with a newline.
func (e *Extractor) Extract(ctx context.Context, data []byte, kind Kind) (text string, err error) {
	s, ok := e.strategies[kind]
	if !ok {
		s = e.strategies[KindPlainText]
	}

	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &Error{Kind: kind, Err: fmt.Errorf("parser panic: %v", r)}
		}
	}()

	docs, err := s.parser.Parse(ctx, bytes.NewReader(data))
	if err != nil {
		return "", &Error{Kind: kind, Err: err}
	}

	return joinDocuments(docs, s.separator), nil
}

func joinDocuments(docs []*schema.Document, separator string) string {
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		parts = append(parts, doc.Content)
	}
	return strings.Join(parts, separator)
}
