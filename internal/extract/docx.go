package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
	"github.com/fumiama/go-docx"
)

const docxMainPart = "word/document.xml"

var errMissingMainPart = errors.New("word/document.xml not found")

// docxParser yields one document per body-level paragraph of a Word file.
// Paragraphs nested in tables or text boxes are not part of the body text.
type docxParser struct{}

func (docxParser) Parse(ctx context.Context, reader io.Reader, opts ...parser.Option) ([]*schema.Document, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}

	size := int64(len(data))
	zr, err := zip.NewReader(bytes.NewReader(data), size)
	if err != nil {
		return nil, fmt.Errorf("open docx archive: %w", err)
	}
	if !hasPart(zr, docxMainPart) {
		return nil, errMissingMainPart
	}

	doc, err := docx.Parse(bytes.NewReader(data), size)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", docxMainPart, err)
	}

	docs := make([]*schema.Document, 0, len(doc.Document.Body.Items))
	for _, item := range doc.Document.Body.Items {
		p, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		docs = append(docs, &schema.Document{Content: paragraphText(p)})
	}
	return docs, nil
}

func hasPart(zr *zip.Reader, name string) bool {
	for _, f := range zr.File {
		if f.Name == name {
			return true
		}
	}
	return false
}

// paragraphText concatenates the runs of p, including runs inside hyperlinks.
// Unlike Paragraph.String it adds no list indentation or link markup.
func paragraphText(p *docx.Paragraph) string {
	var sb strings.Builder
	for _, child := range p.Children {
		switch c := child.(type) {
		case *docx.Run:
			writeRun(&sb, c)
		case *docx.Hyperlink:
			writeRun(&sb, &c.Run)
		}
	}
	return sb.String()
}

func writeRun(sb *strings.Builder, r *docx.Run) {
	for _, child := range r.Children {
		switch c := child.(type) {
		case *docx.Text:
			sb.WriteString(c.Text)
		case *docx.Tab:
			sb.WriteByte('\t')
		case *docx.BarterRabbet:
			// page and column breaks carry no text
			if c.Type == "" || c.Type == "textWrapping" {
				sb.WriteByte('\n')
			}
		}
	}
}
