package resolve

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
)

type wikipediaResolver struct {
	fetch *fetcher
	// endpoint overrides the Action API URL; by default it is derived from
	// the article host, e.g. https://en.wikipedia.org/w/api.php.
	endpoint string
}

type wikipediaQuery struct {
	Query struct {
		Pages map[string]struct {
			Title   string  `json:"title"`
			Extract string  `json:"extract"`
			Missing *string `json:"missing"`
		} `json:"pages"`
	} `json:"query"`
}

func (r *wikipediaResolver) Resolve(ctx context.Context, u *url.URL) (string, error) {
	title, err := url.PathUnescape(path.Base(u.Path))
	if err != nil || title == "" || title == "/" || title == "." {
		return "", fmt.Errorf("%w: no article title in %q", ErrInvalidURL, u.String())
	}

	endpoint := r.endpoint
	if endpoint == "" {
		endpoint = "https://" + u.Host + "/w/api.php"
	}
	q := url.Values{}
	q.Set("action", "query")
	q.Set("prop", "extracts")
	q.Set("explaintext", "1")
	q.Set("redirects", "1")
	q.Set("format", "json")
	q.Set("titles", title)

	var resp wikipediaQuery
	if err := r.fetch.getJSON(ctx, endpoint+"?"+q.Encode(), nil, &resp); err != nil {
		return "", err
	}

	for _, page := range resp.Query.Pages {
		if page.Missing != nil || page.Extract == "" {
			return "", fmt.Errorf("%w: wikipedia page %q", ErrNotFound, title)
		}
		summary, _, _ := strings.Cut(strings.TrimSpace(page.Extract), "\n\n")

		var sb strings.Builder
		fmt.Fprintf(&sb, "# Wikipedia: %s\n\n", page.Title)
		fmt.Fprintf(&sb, "**URL:** %s\n\n", u.String())
		fmt.Fprintf(&sb, "**Summary:** %s\n\n---\n\n", summary)
		sb.WriteString("## Full Content\n\n")
		sb.WriteString(page.Extract)
		return sb.String(), nil
	}
	return "", fmt.Errorf("%w: wikipedia page %q", ErrNotFound, title)
}
