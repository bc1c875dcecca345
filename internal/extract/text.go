package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
)

// plainTextParser rejects invalid UTF-8 before handing off to eino's TextParser.
type plainTextParser struct{}

func (plainTextParser) Parse(ctx context.Context, reader io.Reader, opts ...parser.Option) ([]*schema.Document, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, ErrInvalidUTF8
	}
	return parser.TextParser{}.Parse(ctx, bytes.NewReader(data), opts...)
}
