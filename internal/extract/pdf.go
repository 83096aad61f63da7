package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfText validates the file with pdfcpu and then reads the text of every
// page, mapping glyphs through the font encodings and ToUnicode CMaps.
func pdfText(path string) (string, error) {
	if err := validatePDF(path); err != nil {
		return "", err
	}
	return plainPDFText(path)
}

// validatePDF rejects files pdfcpu cannot parse in relaxed mode.
func validatePDF(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(f, conf)
	if err != nil {
		return fmt.Errorf("%w: read pdf: %v", ErrUnsupportedFormat, err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return fmt.Errorf("%w: validate pdf: %v", ErrUnsupportedFormat, err)
	}
	return nil
}

// plainPDFText joins page texts with blank lines. Pages whose text cannot be
// decoded are skipped.
func plainPDFText(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: malformed pdf: %v", ErrUnsupportedFormat, r)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", filepath.Base(path), err)
	}
	r, err := pdf.NewReader(f, fi.Size())
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %v", ErrUnsupportedFormat, err)
	}

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		fonts := make(map[string]*pdf.Font)
		for _, name := range p.Fonts() {
			font := p.Font(name)
			fonts[name] = &font
		}
		s, err := p.GetPlainText(fonts)
		if err != nil {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			pages = append(pages, s)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}
