package filestorage

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

var ErrNotPDF = errors.New("file is not a valid PDF")

type PdfInspector struct{}

func NewPdfInspector() *PdfInspector {
	return &PdfInspector{}
}

// PageCount validates data as a PDF and returns how many pages it has.
func (PdfInspector) PageCount(data []byte) (int, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return 0, ErrNotPDF
	}

	if err := api.Validate(bytes.NewReader(data), nil); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}

	pages, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}

	return pages, nil
}
