// Package parser converts Markdown and HTML documents into plain text.
package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var h1Regex = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// MarkdownDoc represents a parsed Markdown document.
type MarkdownDoc struct {
	// Frontmatter metadata (from YAML)
	Frontmatter map[string]any

	// Title extracted from frontmatter or first h1
	Title string

	// Main content (after frontmatter)
	Content string
}

// ParseMarkdown parses a Markdown document into structured form.
func ParseMarkdown(content string) (*MarkdownDoc, error) {
	doc := &MarkdownDoc{
		Frontmatter: make(map[string]any),
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")
	remaining := content
	if strings.HasPrefix(content, "---\n") {
		endIdx := strings.Index(content[4:], "\n---")
		if endIdx >= 0 {
			frontmatterYAML := content[4 : 4+endIdx]
			remaining = strings.TrimPrefix(content[4+endIdx+4:], "\n")

			if err := yaml.Unmarshal([]byte(frontmatterYAML), &doc.Frontmatter); err != nil {
				// Malformed frontmatter stays part of the text.
				doc.Frontmatter = make(map[string]any)
				remaining = content
			}
		}
	}

	doc.Content = remaining
	doc.Title = extractTitle(doc.Frontmatter, remaining)

	return doc, nil
}

// extractTitle gets title from frontmatter or first h1.
func extractTitle(fm map[string]any, content string) string {
	if title, ok := fm["title"].(string); ok && title != "" {
		return title
	}
	if name, ok := fm["name"].(string); ok && name != "" {
		return name
	}

	if match := h1Regex.FindStringSubmatch(content); len(match) > 1 {
		return strings.TrimSpace(match[1])
	}

	return ""
}

// Text renders the document as classifier input: frontmatter first as
// "key: value" lines (sorted by key), then the body.
func (d *MarkdownDoc) Text() string {
	var sb strings.Builder

	keys := make([]string, 0, len(d.Frontmatter))
	for k := range d.Frontmatter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := d.frontmatterValue(k)
		if v == "" {
			continue
		}
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(v)
		sb.WriteString("\n")
	}
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString(strings.TrimSpace(d.Content))

	return strings.TrimSpace(sb.String())
}

func (d *MarkdownDoc) frontmatterValue(key string) string {
	if s := d.GetFrontmatterStringSlice(key); s != nil {
		return strings.Join(s, ", ")
	}
	switch v := d.Frontmatter[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// GetFrontmatterString extracts a string from frontmatter.
func (d *MarkdownDoc) GetFrontmatterString(key string) string {
	if v, ok := d.Frontmatter[key].(string); ok {
		return v
	}
	return ""
}

// GetFrontmatterStringSlice extracts a string slice from frontmatter.
func (d *MarkdownDoc) GetFrontmatterStringSlice(key string) []string {
	switch v := d.Frontmatter[key].(type) {
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	case []string:
		return v
	}
	return nil
}

// MarkdownToText parses content and returns its classifier text.
func MarkdownToText(content string) string {
	doc, _ := ParseMarkdown(content)
	return doc.Text()
}
