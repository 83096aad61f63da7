package parser

import (
	"fmt"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// HTMLToMarkdown converts an HTML page into Markdown. Script, style and
// noscript elements are dropped; when baseURL is set, relative links are
// made absolute against it.
func HTMLToMarkdown(html, baseURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	var base *url.URL
	if baseURL != "" {
		base, err = url.Parse(baseURL)
		if err != nil {
			return "", fmt.Errorf("parse base url: %w", err)
		}
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			if ref, err := url.Parse(href); err == nil {
				s.SetAttr("href", base.ResolveReference(ref).String())
			}
		})
	}

	domain := ""
	if base != nil {
		domain = base.Host
	}
	conv := md.NewConverter(domain, true, nil)
	return strings.TrimSpace(conv.Convert(doc.Selection)), nil
}

// MetaContent returns the content attribute of the first <meta> tag whose
// property (or name) equals key, e.g. "og:title".
func MetaContent(doc *goquery.Document, key string) string {
	sel := doc.Find(fmt.Sprintf(`meta[property=%q]`, key)).First()
	if sel.Length() == 0 {
		sel = doc.Find(fmt.Sprintf(`meta[name=%q]`, key)).First()
	}
	content, _ := sel.Attr("content")
	return strings.TrimSpace(content)
}
