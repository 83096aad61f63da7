package resolve

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/raphaelgruber/helix/internal/parser"
)

// minWebContent is the shortest page text accepted as meaningful.
const minWebContent = 50

type webResolver struct {
	fetch *fetcher
}

func (r *webResolver) Resolve(ctx context.Context, u *url.URL) (string, error) {
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, u.String())
	}

	body, err := r.fetch.get(ctx, u.String(), nil)
	if err != nil {
		return "", err
	}

	markdown, err := parser.HTMLToMarkdown(string(body), u.String())
	if err != nil {
		return "", fmt.Errorf("convert page: %w", err)
	}
	if utf8.RuneCountInString(strings.TrimSpace(markdown)) < minWebContent {
		return "", fmt.Errorf("%w: %s", ErrNoContent, u.String())
	}
	return markdown, nil
}
