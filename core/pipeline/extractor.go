package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/siherrmann/legalrag/model"
)

// ExtractedDocument is the plain text of a document and its page count.
type ExtractedDocument struct {
	Text  string
	Pages int
}

// ExtractPDF reads the text of every page of the PDF at path.
// Pages that fail to decode are skipped. A document without any extractable
// text is an *model.ExtractionError, as is an unreadable or encrypted file.
func ExtractPDF(path string) (doc *ExtractedDocument, err error) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return nil, &model.ExtractionError{Path: path, Reason: "not a pdf file", Err: model.ErrUnsupportedFileType}
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = &model.ExtractionError{Path: path, Reason: "malformed pdf", Err: fmt.Errorf("%v", r)}
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		if f != nil {
			f.Close()
		}
		if errors.Is(err, pdf.ErrInvalidPassword) {
			return nil, &model.ExtractionError{Path: path, Reason: "encrypted pdf", Err: err}
		}
		return nil, &model.ExtractionError{Path: path, Reason: "unreadable pdf", Err: err}
	}
	defer f.Close()

	numPages := reader.NumPage()
	var b strings.Builder
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		b.WriteString(text)
		b.WriteString("\n")
	}

	text := b.String()
	if strings.TrimSpace(text) == "" {
		return nil, &model.ExtractionError{Path: path, Reason: "no extractable text"}
	}

	return &ExtractedDocument{Text: text, Pages: numPages}, nil
}
