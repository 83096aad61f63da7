package resolve

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/raphaelgruber/helix/internal/parser"
)

type linkedinResolver struct {
	fetch *fetcher
}

func (r *linkedinResolver) Resolve(ctx context.Context, u *url.URL) (string, error) {
	body, err := r.fetch.get(ctx, u.String(), nil)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	title := parser.MetaContent(doc, "og:title")
	if title == "" {
		title = "*No title*"
	}
	desc := parser.MetaContent(doc, "og:description")
	if desc == "" {
		desc = "*No description*"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# LinkedIn Post\n\n**URL:** %s\n\n---\n\n", u.String())
	fmt.Fprintf(&sb, "**Title:** %s\n\n", title)
	fmt.Fprintf(&sb, "**Content:** %s\n\n", desc)
	return sb.String(), nil
}
