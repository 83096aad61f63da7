package extract

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var slidePartRegex = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// ooxmlPart describes how to read text out of one Office Open XML part:
// character data inside text elements, with a line break after every
// block element.
type ooxmlPart struct {
	text  string
	block string
}

var paragraphs = ooxmlPart{text: "t", block: "p"}

func docxText(path string) (string, error) {
	return ooxmlText(path, func(names []string) []string {
		return filterNames(names, func(n string) bool { return n == "word/document.xml" })
	}, paragraphs)
}

func pptxText(path string) (string, error) {
	return ooxmlText(path, func(names []string) []string {
		slides := filterNames(names, slidePartRegex.MatchString)
		sort.Slice(slides, func(i, j int) bool {
			return slideNumber(slides[i]) < slideNumber(slides[j])
		})
		return slides
	}, paragraphs)
}

func ooxmlText(path string, selectParts func([]string) []string, part ooxmlPart) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", ErrUnsupportedFormat, filepath.Base(path), err)
	}
	defer zr.Close()

	files := make(map[string]*zip.File, len(zr.File))
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
		names = append(names, f.Name)
	}

	selected := selectParts(names)
	if len(selected) == 0 {
		return "", fmt.Errorf("%w: %s has no text parts", ErrUnsupportedFormat, filepath.Base(path))
	}

	var sb strings.Builder
	for _, name := range selected {
		rc, err := files[name].Open()
		if err != nil {
			return "", fmt.Errorf("open part %s: %w", name, err)
		}
		err = collectXMLText(rc, part, &sb)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read part %s: %w", name, err)
		}
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String()), nil
}

func collectXMLText(r io.Reader, part ooxmlPart, sb *strings.Builder) error {
	dec := xml.NewDecoder(r)
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case part.text:
				inText = true
			case "tab":
				sb.WriteString("\t")
			case "br":
				sb.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case part.text:
				inText = false
			case part.block:
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
}

func filterNames(names []string, keep func(string) bool) []string {
	var out []string
	for _, n := range names {
		if keep(n) {
			out = append(out, n)
		}
	}
	return out
}

func slideNumber(name string) int {
	m := slidePartRegex.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}
