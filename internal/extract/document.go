package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/raphaelgruber/helix/internal/parser"
)

// maxDocumentBytes caps how much of a plain-text file is read.
const maxDocumentBytes = 50 << 20

// plainTextExtensions are read verbatim.
var plainTextExtensions = map[string]bool{
	"txt": true, "text": true, "log": true, "csv": true, "tsv": true,
	"json": true, "jsonl": true, "xml": true, "yaml": true, "yml": true,
	"toml": true, "ini": true, "cfg": true, "conf": true, "rst": true,
	"go": true, "py": true, "js": true, "ts": true, "tsx": true, "jsx": true,
	"java": true, "kt": true, "c": true, "h": true, "cpp": true, "hpp": true,
	"cs": true, "rs": true, "rb": true, "php": true, "swift": true,
	"sh": true, "sql": true, "css": true, "scss": true, "tex": true,
}

// DocumentConverter turns document files into text.
type DocumentConverter struct{}

// NewDocumentConverter creates a document converter.
func NewDocumentConverter() *DocumentConverter {
	return &DocumentConverter{}
}

// ToText extracts the text of the file at path, dispatching on extension.
func (c *DocumentConverter) ToText(path string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	switch ext {
	case "md", "markdown":
		data, err := readCapped(path)
		if err != nil {
			return "", err
		}
		return parser.MarkdownToText(string(data)), nil
	case "html", "htm":
		data, err := readCapped(path)
		if err != nil {
			return "", err
		}
		return parser.HTMLToMarkdown(string(data), "")
	case "docx":
		return docxText(path)
	case "pptx":
		return pptxText(path)
	case "xlsx":
		return xlsxText(path)
	case "pdf":
		return pdfText(path)
	}

	data, err := readCapped(path)
	if err != nil {
		return "", err
	}
	if plainTextExtensions[ext] || looksLikeText(data) {
		return strings.TrimPrefix(string(data), "\ufeff"), nil
	}
	return "", fmt.Errorf("%w: .%s", ErrUnsupportedFormat, ext)
}

func readCapped(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", filepath.Base(path), err)
	}
	if info.Size() > maxDocumentBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", filepath.Base(path), maxDocumentBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return data, nil
}

// looksLikeText accepts valid UTF-8 without NUL bytes.
func looksLikeText(data []byte) bool {
	sample := data
	if len(sample) > 8192 {
		sample = sample[:8192]
		// Don't reject a multi-byte rune split at the cut.
		for i := 0; i < utf8.UTFMax && !utf8.Valid(sample); i++ {
			sample = sample[:len(sample)-1]
		}
	}
	return len(data) > 0 && utf8.Valid(sample) && !bytes.Contains(sample, []byte{0})
}
